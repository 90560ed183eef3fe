package ingestion

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"borsapulse/internal/shared/testutil"
)

func TestFormatFromFilename(t *testing.T) {
	tests := map[string]Format{
		"prices.csv":  FormatCSV,
		"PRICES.TXT":  FormatCSV,
		"export.xlsx": FormatExcel,
		"macro.xlsm":  FormatExcel,
	}
	for name, want := range tests {
		got, err := FormatFromFilename(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := FormatFromFilename("prices.pdf")
	assert.Error(t, err)
}

func TestTabularizeCSVStripsBOM(t *testing.T) {
	table, err := Tabularize(strings.NewReader(testutil.SampleTurkishCSV), FormatCSV)
	require.NoError(t, err)

	require.Len(t, table.Rows, 3)
	assert.Equal(t, "Tarih", table.Rows[0][0])
	assert.Equal(t, "1.234,50", table.Rows[1][1])
	assert.Equal(t, "", table.RawCell(1, 1))
}

func TestTabularizeCSVSniffsDelimiter(t *testing.T) {
	input := "Date;Open;High;Low;Close;Volume\n\"02.01.2024\";\"1,5\";2;1;\"1,75\";10K\n"

	table, err := Tabularize(strings.NewReader(input), FormatCSV)
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)
	assert.Len(t, table.Rows[0], 6)
	assert.Equal(t, "1,5", table.Rows[1][1])
}

func TestSniffDelimiterIgnoresQuotedCommas(t *testing.T) {
	assert.Equal(t, '\t', sniffDelimiter([]byte("\"a,b,c\"\tx\ty\n")))
	assert.Equal(t, ',', sniffDelimiter([]byte("a,b;c,d")))
	assert.Equal(t, ',', sniffDelimiter([]byte("")))
}

func excelFixture(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	// The first sheet stays empty so the reader has to skip it.
	_, err := f.NewSheet("Prices")
	require.NoError(t, err)

	rows := [][]any{
		{"Date", "Open", "High", "Low", "Close", "Volume"},
		{time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), 10.5, 11, 10.25, 10.75, 150000},
		{"04.01.2024", "10,75", "11,10", "10,50", "11,00", "1,2M"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Prices", cell, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestTabularizeExcel(t *testing.T) {
	table, err := Tabularize(bytes.NewReader(excelFixture(t)), FormatExcel)
	require.NoError(t, err)

	assert.Equal(t, FormatExcel, table.Format)
	require.Len(t, table.Rows, 3)
	assert.Equal(t, "Date", table.Rows[0][0])
	assert.Equal(t, "04.01.2024", table.Rows[2][0])
	assert.NotEmpty(t, table.RawCell(1, 0))
}

func TestTabularizeRejectsGarbageWorkbook(t *testing.T) {
	_, err := Tabularize(strings.NewReader("not a zip"), FormatExcel)
	assert.Error(t, err)
}
