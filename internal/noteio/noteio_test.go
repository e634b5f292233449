package noteio

import (
	"bytes"
	"testing"
	"time"

	"github.com/maruel/calnotes/internal/notes"
	"github.com/xuri/excelize/v2"
)

func TestExportImport(t *testing.T) {
	in := notes.Collection{
		"2024-1-3":  {{Text: "later", Font: "Georgia", Size: "14px", Color: "red"}},
		"2024-0-15": {{Text: "first", Font: "Arial", Size: "12px", Color: "#000000"}, {Text: "second", Font: "Microsoft YaHei", Size: "10px", Color: "blue"}},
	}
	var buf bytes.Buffer
	if err := Export(&buf, in); err != nil {
		t.Fatal(err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if got := f.GetSheetList(); len(got) != 1 || got[0] != SheetName {
		t.Errorf("sheets = %v, want [%s]", got, SheetName)
	}
	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatal(err)
	}
	_ = f.Close()
	if len(rows) != 4 {
		t.Fatalf("got %d rows, want header + 3", len(rows))
	}
	if rows[0][0] != "Date" || rows[0][5] != "Color" {
		t.Errorf("header = %v", rows[0])
	}
	// Chronological, then display order.
	if rows[1][0] != "2024-0-15" || rows[1][1] != "1" || rows[2][1] != "2" || rows[3][0] != "2024-1-3" {
		t.Errorf("rows = %v", rows[1:])
	}

	got, rowErrs, err := Import(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if len(rowErrs) != 0 {
		t.Errorf("row errors = %v", rowErrs)
	}
	if !got.Equal(in) {
		t.Errorf("Import() = %v, want %v", got, in)
	}
}

func TestImport_RowHandling(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"日期", "行号", "文字内容", "字体", "字号", "颜色"},
		{"2024-0-15", 1, "  padded  "},
		{"2024-0-15", 2, "styled", "Georgia", "14px", "red"},
		{"2024-0-16", 1, "   "},
		{},
		{"", 1, "no date"},
		{"2024-12-1", 1, "bad month"},
		{"2024-0-17", 1, "ok"},
	}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &r); err != nil {
			t.Fatal(err)
		}
	}
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()

	got, rowErrs, err := Import(&buf)
	if err != nil {
		t.Fatal(err)
	}
	want := notes.Collection{
		"2024-0-15": {
			{Text: "padded", Font: notes.DefaultFont, Size: notes.DefaultSize, Color: notes.DefaultColor},
			{Text: "styled", Font: "Georgia", Size: "14px", Color: "red"},
		},
		"2024-0-17": {{Text: "ok", Font: notes.DefaultFont, Size: notes.DefaultSize, Color: notes.DefaultColor}},
	}
	if !got.Equal(want) {
		t.Errorf("Import() = %v, want %v", got, want)
	}
	if len(rowErrs) != 2 {
		t.Fatalf("row errors = %v, want 2", rowErrs)
	}
	if rowErrs[0].Row != 6 || rowErrs[0].Column != "Date" || rowErrs[1].Row != 7 {
		t.Errorf("row errors = %v", rowErrs)
	}
}

func TestImport_NotAWorkbook(t *testing.T) {
	if _, _, err := Import(bytes.NewReader([]byte("not a zip"))); err == nil {
		t.Error("Import() error = nil")
	}
}

func TestFileName(t *testing.T) {
	if got := FileName(time.Date(2024, time.March, 5, 23, 0, 0, 0, time.UTC)); got != "calnotes_20240305.xlsx" {
		t.Errorf("FileName() = %q", got)
	}
}
