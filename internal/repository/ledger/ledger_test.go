package ledger

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/mamadbah2/stockcheck/internal/domain/models"
)

// memorySheet emulates a single sheet tab addressed with A1 ranges.
type memorySheet struct {
	rows    [][]interface{}
	updates []string
	failOn  string
}

func (m *memorySheet) WriteRow(_ context.Context, sheetRange string, values []interface{}) error {
	if m.failOn == "write" {
		return errors.New("quota exceeded")
	}
	m.rows = append(m.rows, values)
	return nil
}

func (m *memorySheet) UpdateRow(_ context.Context, sheetRange string, values []interface{}) error {
	// Sheet1!A3:F3 -> row 3
	cell := sheetRange[strings.Index(sheetRange, "!A")+2 : strings.Index(sheetRange, ":")]
	n, err := strconv.Atoi(cell)
	if err != nil {
		return fmt.Errorf("bad range %s", sheetRange)
	}
	m.rows[n-1] = values
	m.updates = append(m.updates, sheetRange)
	return nil
}

func (m *memorySheet) ReadRange(_ context.Context, _ string) ([][]interface{}, error) {
	if m.failOn == "read" {
		return nil, errors.New("unavailable")
	}
	out := make([][]interface{}, len(m.rows))
	for i, r := range m.rows {
		// Sheets returns formatted strings.
		cells := make([]interface{}, len(r))
		for j, v := range r {
			cells[j] = fmt.Sprint(v)
		}
		out[i] = cells
	}
	return out, nil
}

func day(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestSheetLedgerUpsertAppendsThenUpdates(t *testing.T) {
	ctx := context.Background()
	sheet := &memorySheet{rows: [][]interface{}{{"date", "code", "product_name", "actual_stock", "egais_stock", "discrepancy"}}}
	l := NewSheetLedger(sheet, "Sheet1", nil)

	if err := l.Upsert(ctx, models.LedgerRow{Date: day("2026-10-15"), Code: "101", Name: "Apple", Actual: 9, System: 12}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := l.Upsert(ctx, models.LedgerRow{Date: day("2026-10-15"), Code: "102", Name: "Pear", Actual: 3, System: 3}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if err := l.Upsert(ctx, models.LedgerRow{Date: day("2026-10-15"), Code: "101", Name: "Apple", Actual: 12, System: 12}); err != nil {
		t.Fatalf("update upsert: %v", err)
	}

	if len(sheet.rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(sheet.rows))
	}
	if len(sheet.updates) != 1 || sheet.updates[0] != "Sheet1!A2:F2" {
		t.Errorf("expected one update of row 2, got %v", sheet.updates)
	}
	if sheet.rows[1][3] != float64(12) || sheet.rows[1][5] != float64(0) {
		t.Errorf("row not rewritten: %v", sheet.rows[1])
	}

	// A different day appends.
	if err := l.Upsert(ctx, models.LedgerRow{Date: day("2026-10-16"), Code: "101", Name: "Apple", Actual: 1, System: 2}); err != nil {
		t.Fatalf("next day upsert: %v", err)
	}
	if len(sheet.rows) != 4 {
		t.Errorf("expected append for new day, got %d rows", len(sheet.rows))
	}
}

func TestSheetLedgerReadAllSkipsHeader(t *testing.T) {
	sheet := &memorySheet{rows: [][]interface{}{
		{"date", "code", "product_name", "actual_stock", "egais_stock", "discrepancy"},
		{"2026-10-14", "101", "Apple", "9", "12", "-3"},
		{"15.10.2026", "101", "Apple", "12", "", "12"},
		{"2026-10-15", "102"},
	}}
	l := NewSheetLedger(sheet, "Sheet1", nil)

	rows, err := l.ReadAll(context.Background())
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].Discrepancy() != -3 {
		t.Errorf("expected -3, got %v", rows[0].Discrepancy())
	}
	if !sameDay(rows[1].Date, day("2026-10-15")) || rows[1].System != 0 {
		t.Errorf("unexpected second row %+v", rows[1])
	}
	if rows[2].Actual != 0 || rows[2].Name != "" {
		t.Errorf("short row should default to zero values: %+v", rows[2])
	}
}

func TestSheetLedgerPropagatesErrors(t *testing.T) {
	l := NewSheetLedger(&memorySheet{failOn: "read"}, "Sheet1", nil)
	if err := l.Upsert(context.Background(), models.LedgerRow{Date: day("2026-10-15"), Code: "1"}); err == nil {
		t.Error("expected read failure")
	}

	l = NewSheetLedger(&memorySheet{failOn: "write"}, "Sheet1", nil)
	if err := l.Upsert(context.Background(), models.LedgerRow{Date: day("2026-10-15"), Code: "1"}); err == nil {
		t.Error("expected write failure")
	}
}

func TestSQLiteLedgerUpsertKeepsOrder(t *testing.T) {
	ctx := context.Background()
	l, err := NewSQLiteLedger(filepath.Join(t.TempDir(), "nested", "ledger.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { l.Close() })

	for _, row := range []models.LedgerRow{
		{Date: day("2026-10-15"), Code: "101", Name: "Apple", Actual: 9, System: 12},
		{Date: day("2026-10-15"), Code: "102", Name: "Pear", Actual: 3, System: 3},
		{Date: day("2026-10-15"), Code: "101", Name: "Apple", Actual: 12, System: 12},
	} {
		if err := l.Upsert(ctx, row); err != nil {
			t.Fatalf("upsert %s: %v", row.Code, err)
		}
	}

	rows, err := l.ReadAll(ctx)
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Code != "101" || rows[0].Actual != 12 || rows[0].Discrepancy() != 0 {
		t.Errorf("expected updated apple row first, got %+v", rows[0])
	}
	if rows[1].Code != "102" {
		t.Errorf("expected pear second, got %+v", rows[1])
	}
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		in   interface{}
		want float64
	}{
		{"12", 12},
		{"1 234,5", 1234.5},
		{"", 0},
		{nil, 0},
		{float64(3.5), 3.5},
	}
	for _, tc := range tests {
		got, err := ParseQuantity(tc.in)
		if err != nil {
			t.Errorf("ParseQuantity(%v): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseQuantity(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
	if _, err := ParseQuantity("abc"); err == nil {
		t.Error("expected error for non-numeric value")
	}
}
