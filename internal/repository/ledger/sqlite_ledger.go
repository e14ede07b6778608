package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mamadbah2/stockcheck/internal/domain/models"
)

// SQLiteLedger is a local ledger backend for deployments without a spreadsheet.
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLiteLedger opens or creates a SQLite database at the given path.
func NewSQLiteLedger(dbPath string) (*SQLiteLedger, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	l := &SQLiteLedger{db: db}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return l, nil
}

func (l *SQLiteLedger) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS ledger (
		date         TEXT NOT NULL,
		code         TEXT NOT NULL,
		product_name TEXT NOT NULL DEFAULT '',
		actual_stock REAL NOT NULL,
		egais_stock  REAL NOT NULL,
		discrepancy  REAL NOT NULL,
		updated_at   TEXT NOT NULL,
		PRIMARY KEY (date, code)
	);
	CREATE INDEX IF NOT EXISTS idx_ledger_code ON ledger(code);
	`
	_, err := l.db.Exec(schema)
	return err
}

// Upsert inserts the row or replaces the existing one for the same date and code.
// The original insertion order is kept.
func (l *SQLiteLedger) Upsert(ctx context.Context, row models.LedgerRow) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO ledger (date, code, product_name, actual_stock, egais_stock, discrepancy, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date, code) DO UPDATE SET
			product_name = excluded.product_name,
			actual_stock = excluded.actual_stock,
			egais_stock  = excluded.egais_stock,
			discrepancy  = excluded.discrepancy,
			updated_at   = excluded.updated_at`,
		row.Date.Format(DateLayout), row.Code, row.Name, row.Actual, row.System, row.Discrepancy(),
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upsert ledger row %s/%s: %w", row.Date.Format(DateLayout), row.Code, err)
	}
	return nil
}

// ReadAll returns every row in insertion order.
func (l *SQLiteLedger) ReadAll(ctx context.Context) ([]models.LedgerRow, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT date, code, product_name, actual_stock, egais_stock
		FROM ledger ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	var result []models.LedgerRow
	for rows.Next() {
		var (
			date string
			row  models.LedgerRow
		)
		if err := rows.Scan(&date, &row.Code, &row.Name, &row.Actual, &row.System); err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		if row.Date, err = time.Parse(DateLayout, date); err != nil {
			return nil, fmt.Errorf("parse ledger date %q: %w", date, err)
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// Close releases the database handle.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}
