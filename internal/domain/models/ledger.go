package models

import (
	"fmt"
	"strconv"
	"time"
)

// LedgerRow is one reconciliation record keyed by (Date, Code).
type LedgerRow struct {
	Date   time.Time
	Code   string
	Name   string
	Actual float64
	System float64
}

// Discrepancy is always derived from the stored inputs.
func (r LedgerRow) Discrepancy() float64 {
	return r.Actual - r.System
}

// Discrepancy describes a product whose counted quantity differs from the extract.
type Discrepancy struct {
	Code   string
	Name   string
	Actual int
	System float64
}

// Delta returns actual minus system.
func (d Discrepancy) Delta() float64 {
	return float64(d.Actual) - d.System
}

func (d Discrepancy) String() string {
	return fmt.Sprintf("%s (%s): Факт = %d, ЕГАИС = %s, Расхождение = %s",
		d.Name, d.Code, d.Actual, FormatQuantity(d.System), FormatQuantity(d.Delta()))
}

// FormatQuantity renders a quantity without trailing zeros.
func FormatQuantity(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
