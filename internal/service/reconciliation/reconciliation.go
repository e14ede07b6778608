// Package reconciliation compares operator counts with the accounting extract.
package reconciliation

import (
	"sort"
	"time"

	"github.com/mamadbah2/stockcheck/internal/domain/models"
)

// Result holds the ledger rows to write and the non-zero discrepancies.
type Result struct {
	Rows          []models.LedgerRow
	Discrepancies []models.Discrepancy
}

// Compute iterates the union of operator and extract codes. Codes missing
// from the counts are taken as 0 counted; codes missing from the extract as
// 0 in the system with an empty name. Output is ordered by code.
func Compute(date time.Time, counts map[string]int, extract models.Extract) Result {
	codes := make([]string, 0, len(counts)+len(extract))
	seen := make(map[string]struct{}, len(counts)+len(extract))
	for code := range counts {
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	for code := range extract {
		if _, ok := seen[code]; !ok {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)

	var res Result
	res.Rows = make([]models.LedgerRow, 0, len(codes))
	for _, code := range codes {
		d := entry(code, counts, extract)
		res.Rows = append(res.Rows, models.LedgerRow{
			Date:   date,
			Code:   code,
			Name:   d.Name,
			Actual: float64(d.Actual),
			System: d.System,
		})
		if d.Delta() != 0 {
			res.Discrepancies = append(res.Discrepancies, d)
		}
	}
	return res
}

// Discrepancies is Compute without the ledger rows.
func Discrepancies(counts map[string]int, extract models.Extract) []models.Discrepancy {
	return Compute(time.Time{}, counts, extract).Discrepancies
}

// Entry returns the comparison for a single code.
func Entry(code string, counts map[string]int, extract models.Extract) models.Discrepancy {
	return entry(code, counts, extract)
}

func entry(code string, counts map[string]int, extract models.Extract) models.Discrepancy {
	item := extract[code]
	return models.Discrepancy{
		Code:   code,
		Name:   item.Name,
		Actual: counts[code],
		System: item.Quantity,
	}
}
