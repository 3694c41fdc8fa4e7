// Package ingest reads raw PV exports and weather-station tables into
// readings.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chrissnell/pvreconcile/pkg/config"
	"github.com/xuri/excelize/v2"
)

// Table is a raw sheet: one header row and the data rows below it.
type Table struct {
	Header []string
	Rows   [][]string
	index  map[string]int
}

// Layout says where the header and data start in a raw file.
type Layout struct {
	Format    string
	Sheet     string
	Delimiter rune
	// HeaderRow is the zero-based row holding column names.
	HeaderRow int
	// SkipRows drops rows between the header and the first data row.
	SkipRows int
}

// InputLayout extracts the layout of the raw PV files.
func InputLayout(in config.InputData) Layout {
	return Layout{Format: in.Format, Sheet: in.Sheet, Delimiter: in.Delimiter, HeaderRow: in.HeaderRow, SkipRows: in.SkipRows}
}

// WeatherLayout extracts the layout of the weather table.
func WeatherLayout(w config.WeatherData) Layout {
	return Layout{Format: w.Format, Delimiter: w.Delimiter, HeaderRow: w.HeaderRow, SkipRows: w.SkipRows}
}

// ReadTable loads the file at path according to layout.
func ReadTable(path string, layout Layout) (*Table, error) {
	var rows [][]string
	var err error
	switch layout.Format {
	case config.FormatXLSX:
		rows, err = readXLSX(path, layout.Sheet)
	case config.FormatCSV, "":
		rows, err = readCSV(path, layout.Delimiter)
	default:
		err = fmt.Errorf("unsupported file format %q", layout.Format)
	}
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	t, err := newTable(rows, layout.HeaderRow, layout.SkipRows)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return t, nil
}

func newTable(rows [][]string, headerRow, skipRows int) (*Table, error) {
	if headerRow >= len(rows) {
		return nil, fmt.Errorf("header row %d beyond end of file (%d rows)", headerRow, len(rows))
	}
	t := &Table{index: make(map[string]int)}
	for i, h := range rows[headerRow] {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		t.Header = append(t.Header, h)
		if _, dup := t.index[h]; !dup {
			t.index[h] = i
		}
	}
	start := headerRow + 1 + skipRows
	for _, r := range rows[min(start, len(rows)):] {
		if blank(r) {
			continue
		}
		t.Rows = append(t.Rows, r)
	}
	return t, nil
}

// Column returns the index of the named column, or -1.
func (t *Table) Column(name string) int {
	if strings.TrimSpace(name) == "" {
		return -1
	}
	if i, ok := t.index[strings.TrimSpace(name)]; ok {
		return i
	}
	return -1
}

// Cell returns row[col], or "" when the row is short.
func Cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func readCSV(path string, delim rune) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer f.Close()
	return parseCSV(f, delim)
}

func parseCSV(r io.Reader, delim rune) ([][]string, error) {
	reader := csv.NewReader(r)
	if delim != 0 {
		reader.Comma = delim
	}
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	return rows, nil
}

func readXLSX(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	return rows, nil
}
