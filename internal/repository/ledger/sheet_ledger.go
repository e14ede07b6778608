package ledger

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mamadbah2/stockcheck/internal/domain/models"
	"github.com/mamadbah2/stockcheck/internal/repository/sheets"
)

// SheetLedger stores ledger rows in a Google Sheets tab with the columns
// date, code, product_name, actual_stock, egais_stock, discrepancy.
type SheetLedger struct {
	repo   sheets.Repository
	sheet  string
	logger *zap.Logger
}

// NewSheetLedger builds a ledger over the named sheet tab.
func NewSheetLedger(repo sheets.Repository, sheet string, logger *zap.Logger) *SheetLedger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SheetLedger{repo: repo, sheet: sheet, logger: logger}
}

func (l *SheetLedger) fullRange() string {
	return fmt.Sprintf("%s!A:F", l.sheet)
}

func (l *SheetLedger) rowRange(n int) string {
	return fmt.Sprintf("%s!A%d:F%d", l.sheet, n, n)
}

// Upsert updates the row for the same date and code when one exists, otherwise appends.
func (l *SheetLedger) Upsert(ctx context.Context, row models.LedgerRow) error {
	values := []interface{}{
		row.Date.Format(DateLayout),
		row.Code,
		row.Name,
		row.Actual,
		row.System,
		row.Discrepancy(),
	}

	rows, err := l.repo.ReadRange(ctx, l.fullRange())
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}

	for i, existing := range rows {
		if len(existing) < 2 || fmt.Sprint(existing[1]) != row.Code {
			continue
		}
		date, err := ParseDate(existing[0])
		if err != nil || !sameDay(date, row.Date) {
			continue
		}
		// Sheet rows are 1-based and the range starts at A1.
		if err := l.repo.UpdateRow(ctx, l.rowRange(i+1), values); err != nil {
			return fmt.Errorf("update ledger row %s/%s: %w", values[0], row.Code, err)
		}
		l.logger.Info("ledger row updated", zap.String("code", row.Code), zap.Int("row", i+1), zap.Float64("actual", row.Actual))
		return nil
	}

	if err := l.repo.WriteRow(ctx, l.fullRange(), values); err != nil {
		return fmt.Errorf("append ledger row %s/%s: %w", values[0], row.Code, err)
	}
	l.logger.Info("ledger row appended", zap.String("code", row.Code), zap.Float64("actual", row.Actual), zap.Float64("system", row.System))
	return nil
}

// ReadAll returns every parsable row of the sheet; header or malformed rows are skipped.
func (l *SheetLedger) ReadAll(ctx context.Context) ([]models.LedgerRow, error) {
	rows, err := l.repo.ReadRange(ctx, l.fullRange())
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	result := make([]models.LedgerRow, 0, len(rows))
	for _, raw := range rows {
		if len(raw) < 2 {
			continue
		}
		date, err := ParseDate(raw[0])
		if err != nil {
			l.logger.Debug("skip ledger row with invalid date", zap.Any("value", raw[0]), zap.Error(err))
			continue
		}

		row := models.LedgerRow{Date: date, Code: fmt.Sprint(raw[1])}
		if len(raw) > 2 {
			row.Name = fmt.Sprint(raw[2])
		}
		if len(raw) > 3 {
			if row.Actual, err = ParseQuantity(raw[3]); err != nil {
				l.logger.Debug("skip ledger row with invalid actual", zap.Any("value", raw[3]), zap.Error(err))
				continue
			}
		}
		if len(raw) > 4 {
			if row.System, err = ParseQuantity(raw[4]); err != nil {
				l.logger.Debug("skip ledger row with invalid system", zap.Any("value", raw[4]), zap.Error(err))
				continue
			}
		}
		result = append(result, row)
	}

	return result, nil
}
