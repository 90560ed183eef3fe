package files

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"borsapulse/internal/ingestion"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	base := time.Now().Add(-time.Hour)
	for i, name := range names {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte("Date,Price\n"), 0644))
		modTime := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, os.Chtimes(path, modTime, modTime))
	}
}

func TestFindPriceFiles(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, filepath.Join(tmpDir, "incoming"),
		"THYAO Historical Data.csv",
		"garan_2024.xlsx",
		"notes.pdf",
		"!!!.csv",
		".hidden.csv",
	)
	require.NoError(t, os.Mkdir(filepath.Join(tmpDir, "incoming", "archive"), 0755))

	res, err := NewDiscovery(tmpDir).FindPriceFiles("incoming")
	require.NoError(t, err)

	require.Len(t, res.Files, 2)
	assert.Equal(t, "THYAO", res.Files[0].Symbol)
	assert.Equal(t, ingestion.FormatCSV, res.Files[0].Format)
	assert.Equal(t, "GARAN", res.Files[1].Symbol)
	assert.Equal(t, ingestion.FormatExcel, res.Files[1].Format)
	assert.Equal(t, filepath.Join(tmpDir, "incoming", "garan_2024.xlsx"), res.Files[1].Path)

	require.Len(t, res.Skipped, 2)
	reasons := map[string]string{}
	for _, s := range res.Skipped {
		reasons[s.Name] = s.Reason
	}
	assert.Equal(t, "unsupported file type", reasons["notes.pdf"])
	assert.Equal(t, "no symbol in file name", reasons["!!!.csv"])
}

func TestFindPriceFilesAbsoluteDir(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "AKBNK.csv")

	res, err := NewDiscovery("/does/not/matter").FindPriceFiles(dir)
	require.NoError(t, err)
	require.Len(t, res.Files, 1)
	assert.Equal(t, "AKBNK", res.Files[0].Symbol)
}

func TestFindPriceFilesMissingDir(t *testing.T) {
	_, err := NewDiscovery(t.TempDir()).FindPriceFiles("nope")
	assert.Error(t, err)
}

func TestSymbolFromFilename(t *testing.T) {
	tests := []struct {
		name   string
		symbol string
		ok     bool
	}{
		{"THYAO.csv", "THYAO", true},
		{"thyao-daily.xlsx", "THYAO", true},
		{"BRK.B prices.csv", "BRK.B", true},
		{"averyveryverylongname.csv", "", false},
		{"_leading.csv", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			symbol, ok := SymbolFromFilename(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.symbol, symbol)
		})
	}
}

func TestModifiedSinceAndGroup(t *testing.T) {
	now := time.Now()
	found := []PriceFile{
		{Name: "a", Symbol: "THYAO", ModTime: now.Add(-2 * time.Hour)},
		{Name: "b", Symbol: "GARAN", ModTime: now.Add(-time.Minute)},
		{Name: "c", Symbol: "THYAO", ModTime: now},
	}

	recent := ModifiedSince(found, now.Add(-time.Hour))
	require.Len(t, recent, 2)
	assert.Equal(t, "b", recent[0].Name)

	groups := GroupBySymbol(found)
	require.Len(t, groups["THYAO"], 2)
	assert.Equal(t, "a", groups["THYAO"][0].Name)
	assert.Len(t, groups["GARAN"], 1)
}
