package ingestion

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	apperrors "borsapulse/internal/errors"
)

// Format identifies the container of an uploaded price file
type Format string

const (
	FormatCSV   Format = "csv"
	FormatExcel Format = "excel"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// FormatFromFilename picks the tabular format from a file extension
func FormatFromFilename(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx", ".xlsm", ".xltx":
		return FormatExcel, nil
	}
	return "", apperrors.NewAppValidationError(fmt.Sprintf("unsupported file type %q", filepath.Ext(name))).
		WithContext("filename", name)
}

// Table is a tabularized file. Raw holds unformatted Excel cell values aligned
// with Rows and is nil for CSV input.
type Table struct {
	Format Format
	Rows   [][]string
	Raw    [][]string
}

// RawCell returns the unformatted value at (row, col), or "" when unavailable
func (t *Table) RawCell(row, col int) string {
	if t.Raw == nil || row >= len(t.Raw) || col < 0 || col >= len(t.Raw[row]) {
		return ""
	}
	return t.Raw[row][col]
}

// Tabularize reads r into rows of string cells
func Tabularize(r io.Reader, format Format) (*Table, error) {
	switch format {
	case FormatCSV:
		return readCSV(r)
	case FormatExcel:
		return readExcel(r)
	}
	return nil, apperrors.NewAppValidationError(fmt.Sprintf("unsupported format %q", format))
}

func readCSV(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sniffDelimiter(data)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrTypeParsing, "malformed csv", err)
	}
	return &Table{Format: FormatCSV, Rows: rows}, nil
}

// sniffDelimiter picks the most frequent candidate separator on the first
// line, ignoring anything inside double quotes.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}

	counts := map[rune]int{}
	inQuotes := false
	for _, c := range string(line) {
		switch c {
		case '"':
			inQuotes = !inQuotes
		case ',', ';', '\t':
			if !inQuotes {
				counts[c]++
			}
		}
	}

	best := ','
	for _, c := range []rune{';', '\t'} {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return best
}

func readExcel(r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrTypeParsing, "failed to open workbook", err)
	}
	defer f.Close()

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, apperrors.NewAppError(apperrors.ErrTypeParsing, "failed to read sheet", err).
				WithContext("sheet", sheet)
		}
		if len(rows) == 0 {
			continue
		}

		raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, apperrors.NewAppError(apperrors.ErrTypeParsing, "failed to read sheet", err).
				WithContext("sheet", sheet)
		}
		return &Table{Format: FormatExcel, Rows: rows, Raw: raw}, nil
	}

	return &Table{Format: FormatExcel}, nil
}
