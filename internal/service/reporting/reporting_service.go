package reporting

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/stockcheck/internal/domain/models"
	"github.com/mamadbah2/stockcheck/internal/repository/ledger"
)

// HistoryPeriods are the lookback windows offered to the operator, in days.
var HistoryPeriods = []int{5, 10, 20, 30}

// CatalogReader exposes the catalog entries the digest checks thresholds for.
type CatalogReader interface {
	List() []models.Product
}

// Service builds history views and digests from the ledger.
type Service struct {
	ledger  ledger.Ledger
	catalog CatalogReader
	logger  *zap.Logger
	loc     *time.Location
	now     func() time.Time
}

// NewService wires a new reporting service instance.
func NewService(l ledger.Ledger, catalog CatalogReader, loc *time.Location, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{ledger: l, catalog: catalog, logger: logger, loc: loc, now: time.Now}
}

// History returns the ledger rows of code dated within the last days days,
// today included, in storage order.
func (s *Service) History(ctx context.Context, code string, days int) ([]models.LedgerRow, error) {
	rows, err := s.ledger.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	today := startOfDay(s.now().In(s.loc))
	start := today.AddDate(0, 0, -days)

	var result []models.LedgerRow
	for _, row := range rows {
		if row.Code != code {
			continue
		}
		date := time.Date(row.Date.Year(), row.Date.Month(), row.Date.Day(), 0, 0, 0, 0, s.loc)
		if date.Before(start) || date.After(today) {
			continue
		}
		result = append(result, row)
	}

	s.logger.Debug("history query", zap.String("code", code), zap.Int("days", days), zap.Int("rows", len(result)))
	return result, nil
}

// FormatHistoryLine renders one history row with the discrepancy recomputed.
func FormatHistoryLine(row models.LedgerRow) string {
	return fmt.Sprintf("%s: Факт = %s, ЕГАИС = %s, Расхождение = %s",
		row.Date.Format(ledger.DateLayout),
		models.FormatQuantity(row.Actual),
		models.FormatQuantity(row.System),
		models.FormatQuantity(row.Discrepancy()))
}

// DailyDigest summarizes the reconciliation rows recorded on day.
func (s *Service) DailyDigest(ctx context.Context, day time.Time) (string, error) {
	rows, err := s.ledger.ReadAll(ctx)
	if err != nil {
		return "", fmt.Errorf("load ledger: %w", err)
	}

	day = day.In(s.loc)
	label := day.Format(ledger.DateLayout)

	latest := make(map[string]models.LedgerRow)
	var (
		order      []string
		mismatched []models.LedgerRow
	)
	for _, row := range rows {
		if row.Date.Format(ledger.DateLayout) != label {
			continue
		}
		if _, ok := latest[row.Code]; !ok {
			order = append(order, row.Code)
		}
		latest[row.Code] = row
	}

	if len(order) == 0 {
		return fmt.Sprintf("Сводка за %s: сверка не проводилась.", label), nil
	}

	for _, code := range order {
		if row := latest[code]; row.Discrepancy() != 0 {
			mismatched = append(mismatched, row)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Сводка за %s:\nЗаписей: %d\nС расхождением: %d", label, len(order), len(mismatched))
	for _, row := range mismatched {
		fmt.Fprintf(&b, "\n%s (%s): Факт = %s, ЕГАИС = %s, Расхождение = %s",
			row.Name, row.Code,
			models.FormatQuantity(row.Actual),
			models.FormatQuantity(row.System),
			models.FormatQuantity(row.Discrepancy()))
	}

	var low []string
	if s.catalog != nil {
		for _, p := range s.catalog.List() {
			row, ok := latest[p.Code]
			if !ok || row.Actual >= float64(p.Threshold) {
				continue
			}
			low = append(low, fmt.Sprintf("%s (%s): %s < %d", p.Name, p.Code, models.FormatQuantity(row.Actual), p.Threshold))
		}
	}
	if len(low) > 0 {
		b.WriteString("\nНиже порога:\n")
		b.WriteString(strings.Join(low, "\n"))
	}

	return b.String(), nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
