// Package noteio exports note collections to xlsx workbooks and imports them
// back.
//
// The workbook has one sheet with a header row and one row per note:
//
//	Date | Line | Text | Font | Size | Color
//
// Date is the DateKey ("2024-0-15"), Line the one-based position of the
// note within its day.
package noteio

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/maruel/calnotes/internal/notes"
	"github.com/xuri/excelize/v2"
)

// SheetName is the name of the exported sheet. Import reads the first sheet
// whatever its name.
const SheetName = "Notes"

// Header is the first row of an exported sheet.
var Header = []string{"Date", "Line", "Text", "Font", "Size", "Color"}

// Column indexes in a row.
const (
	colDate = iota
	colLine
	colText
	colFont
	colSize
	colColor
)

// RowError reports a row Import could not use.
type RowError struct {
	Row    int // one-based, as shown by spreadsheet programs
	Column string
	Reason string
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d, column %s: %s", e.Row, e.Column, e.Reason)
}

// FileName returns the suggested export file name for the day of t.
func FileName(t time.Time) string {
	return "calnotes_" + t.Format("20060102") + ".xlsx"
}

// Export writes c as an xlsx workbook. Days are in chronological order,
// notes in display order.
func Export(w io.Writer, c notes.Collection) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	row := 2
	for _, key := range c.Keys() {
		for i, n := range c[key] {
			cell, err := excelize.CoordinatesToCellName(1, row)
			if err != nil {
				return err
			}
			values := []any{key, i + 1, n.Text, n.Font, n.Size, n.Color}
			if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
				return fmt.Errorf("failed to write row %d: %w", row, err)
			}
			row++
		}
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// Import reads the first sheet of an xlsx workbook. The header row is
// skipped. Rows that are empty or whose text is blank are skipped. Missing
// font, size and color take the defaults of the notes package. Rows with a
// missing or invalid date are reported in the returned RowError list and
// left out of the collection.
//
// The error is only set when the workbook itself cannot be read.
func Import(r io.Reader) (notes.Collection, []RowError, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, errors.New("workbook has no sheet")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	out := notes.Collection{}
	var rowErrs []RowError
	for i, row := range rows {
		if i == 0 {
			continue
		}
		n, key, ok, rerr := parseRow(i+1, row)
		if rerr != nil {
			rowErrs = append(rowErrs, *rerr)
			continue
		}
		if ok {
			out[key] = append(out[key], n)
		}
	}
	return out, rowErrs, nil
}

// parseRow returns ok=false for rows to skip silently.
func parseRow(num int, row []string) (notes.Note, string, bool, *RowError) {
	if isBlank(row) {
		return notes.Note{}, "", false, nil
	}
	text := strings.TrimSpace(cell(row, colText))
	if text == "" {
		return notes.Note{}, "", false, nil
	}
	key := strings.TrimSpace(cell(row, colDate))
	if key == "" {
		return notes.Note{}, "", false, &RowError{Row: num, Column: Header[colDate], Reason: "missing date"}
	}
	if _, err := notes.ParseDateKey(key); err != nil {
		return notes.Note{}, "", false, &RowError{Row: num, Column: Header[colDate], Reason: err.Error()}
	}
	n := notes.Note{
		Text:  text,
		Font:  orDefault(cell(row, colFont), notes.DefaultFont),
		Size:  orDefault(cell(row, colSize), notes.DefaultSize),
		Color: orDefault(cell(row, colColor), notes.DefaultColor),
	}
	return n, key, true, nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
