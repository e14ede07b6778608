package ledger

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mamadbah2/stockcheck/internal/domain/models"
)

// DateLayout is the on-sheet date format of ledger rows.
const DateLayout = "2006-01-02"

// Ledger records one row per (date, product code).
type Ledger interface {
	// Upsert replaces the row for (row.Date, row.Code) or appends a new one.
	Upsert(ctx context.Context, row models.LedgerRow) error
	// ReadAll returns every stored row in storage order.
	ReadAll(ctx context.Context) ([]models.LedgerRow, error)
}

// dateLayouts covers values re-rendered by spreadsheet locales.
var dateLayouts = []string{DateLayout, "02.01.2006", "1/2/2006", "2006/01/02"}

// ParseDate reads a ledger date cell at day granularity.
func ParseDate(value interface{}) (time.Time, error) {
	str := strings.TrimSpace(fmt.Sprint(value))
	if str == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if len(str) > 10 {
		str = str[:10]
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, str); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", str)
}

// ParseQuantity reads a numeric ledger cell; empty cells count as zero.
func ParseQuantity(value interface{}) (float64, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	}
	str := strings.TrimSpace(fmt.Sprint(value))
	if str == "" {
		return 0, nil
	}
	str = strings.ReplaceAll(str, " ", "")
	str = strings.ReplaceAll(str, "\u00a0", "")
	str = strings.ReplaceAll(str, ",", ".")
	return strconv.ParseFloat(str, 64)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
