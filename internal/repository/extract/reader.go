package extract

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/mamadbah2/stockcheck/internal/domain/models"
)

// Column headers of the accounting stock export.
const (
	ColumnCode     = "Код товара"
	ColumnName     = "Наименование карточки товара"
	ColumnQuantity = "Количество (1 регистр)"

	// headerRow is 1-based; the export puts three title rows above the header.
	headerRow = 4
)

var (
	// ErrMissingColumns indicates the workbook lacks a required column.
	ErrMissingColumns = errors.New("required columns are missing")
	// ErrInvalidQuantity indicates a quantity cell that is not a number.
	ErrInvalidQuantity = errors.New("invalid quantity")
)

// ReadFile parses the first sheet of an export into code -> {name, quantity},
// summing quantities of repeated codes.
func ReadFile(path string) (models.Extract, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()

	return readWorkbook(f)
}

// Parse is ReadFile for a workbook held in memory.
func Parse(r io.Reader) (models.Extract, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	return readWorkbook(f)
}

func readWorkbook(f *excelize.File) (models.Extract, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets: %w", ErrMissingColumns)
	}

	// Raw values keep number formats such as #,##0.00 out of numeric cells.
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}

	return parseRows(rows)
}

func parseRows(rows [][]string) (models.Extract, error) {
	if len(rows) < headerRow {
		return nil, ErrMissingColumns
	}

	header := rows[headerRow-1]
	codeIdx, nameIdx, qtyIdx := -1, -1, -1
	for i, cell := range header {
		switch strings.TrimSpace(cell) {
		case ColumnCode:
			codeIdx = i
		case ColumnName:
			nameIdx = i
		case ColumnQuantity:
			qtyIdx = i
		}
	}
	if codeIdx < 0 || nameIdx < 0 || qtyIdx < 0 {
		return nil, ErrMissingColumns
	}

	result := make(models.Extract)
	for n, row := range rows[headerRow:] {
		code := normalizeCode(cell(row, codeIdx))
		if code == "" {
			continue
		}

		qty, err := parseQuantity(cell(row, qtyIdx))
		if err != nil {
			return nil, fmt.Errorf("row %d code %s: %w", headerRow+n+1, code, err)
		}

		item, seen := result[code]
		if !seen {
			item.Name = strings.TrimSpace(cell(row, nameIdx))
		}
		item.Quantity += qty
		result[code] = item
	}

	return result, nil
}

func cell(row []string, idx int) string {
	if idx < len(row) {
		return row[idx]
	}
	return ""
}

// normalizeCode turns numeric codes rendered as "101.0" into "101".
func normalizeCode(raw string) string {
	code := strings.TrimSpace(raw)
	if strings.HasSuffix(code, ".0") {
		if _, err := strconv.ParseInt(strings.TrimSuffix(code, ".0"), 10, 64); err == nil {
			return strings.TrimSuffix(code, ".0")
		}
	}
	return code
}

// parseQuantity reads a raw numeric cell, or a text cell typed with
// spaces as thousands separators and a decimal comma ("1 234,5").
func parseQuantity(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, nil
	}
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "\u00a0", "")
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w %q", ErrInvalidQuantity, raw)
	}
	return v, nil
}
