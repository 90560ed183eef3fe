package exporter

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"borsapulse/pkg/contracts/domain"
)

func sampleRecords() []domain.AnalysisRecord {
	return []domain.AnalysisRecord{
		{
			Date:  time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
			Close: 10, MA5: 10, MA10: 10, MA20: 10, MA50: 10, MA100: 10, MA200: 10,
		},
		{
			Date:  time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
			Close: 12.5, MA5: 11.25, MA10: 11.25, MA20: 11.25, MA50: 11.25, MA100: 11.25, MA200: 11.25,
			WeeklyMA30: null.FloatFrom(9.87654),
			RSI14:      null.FloatFrom(100),
		},
	}
}

func TestWriteAnalysis(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteAnalysis(context.Background(), &buf, "THYAO", sampleRecords()))

	content := buf.Bytes()
	require.True(t, bytes.HasPrefix(content, utf8BOM))

	rows, err := csv.NewReader(bytes.NewReader(content[len(utf8BOM):])).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, AnalysisHeaders, rows[0])

	tests := []struct {
		name string
		row  int
		col  string
		want string
	}{
		{"date is ISO", 1, "date", "2024-01-02"},
		{"null weekly is empty", 1, "weekly_ma_30", ""},
		{"null rsi is empty", 1, "rsi_14", ""},
		{"daily average", 2, "ma_5", "11.2500"},
		{"weekly rounded to four places", 2, "weekly_ma_30", "9.8765"},
		{"monthly still null", 2, "monthly_ma_12", ""},
		{"rsi", 2, "rsi_14", "100.0000"},
		{"symbol", 2, "symbol", "THYAO"},
	}

	col := make(map[string]int, len(AnalysisHeaders))
	for i, h := range AnalysisHeaders {
		col[h] = i
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, rows[tt.row][col[tt.col]])
		})
	}
}

func TestWriteAnalysisEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteAnalysis(context.Background(), &buf, "THYAO", nil))

	rows, err := csv.NewReader(bytes.NewReader(buf.Bytes()[len(utf8BOM):])).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestWriteAnalysisCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WriteAnalysis(ctx, &bytes.Buffer{}, "THYAO", sampleRecords())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCreateFileStream(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exports", "nested", "thyao.csv")

	s, err := CreateFileStream(path, []string{"a", "b"})
	require.NoError(t, err)
	require.NoError(t, s.WriteRecord([]string{"1", "x,y"}))
	assert.Equal(t, 1, s.Rows())
	require.NoError(t, s.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "\ufeffa,b\n1,\"x,y\"\n", string(content))
}
