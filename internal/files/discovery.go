package files

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"borsapulse/internal/ingestion"
	"borsapulse/internal/validation"
)

// PriceFile is a discovered file together with the symbol it belongs to
type PriceFile struct {
	Path    string           `json:"path"`
	Name    string           `json:"name"`
	Symbol  string           `json:"symbol"`
	Format  ingestion.Format `json:"format"`
	Size    int64            `json:"size"`
	ModTime time.Time        `json:"mod_time"`
}

// Skipped names a file that was not picked up and why
type Skipped struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Result is the outcome of a directory scan
type Result struct {
	Files   []PriceFile `json:"files"`
	Skipped []Skipped   `json:"skipped,omitempty"`
}

// Discovery provides file discovery relative to a base path
type Discovery struct {
	basePath string
}

// NewDiscovery creates a new file discovery instance
func NewDiscovery(basePath string) *Discovery {
	return &Discovery{basePath: basePath}
}

func (d *Discovery) resolve(dir string) string {
	if filepath.IsAbs(dir) || d.basePath == "" {
		return dir
	}
	return filepath.Join(d.basePath, dir)
}

// FindPriceFiles lists the readable price files in dir, oldest first.
// Subdirectories and hidden files are ignored.
func (d *Discovery) FindPriceFiles(dir string) (*Result, error) {
	fullPath := d.resolve(dir)

	entries, err := os.ReadDir(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", fullPath, err)
	}

	res := &Result{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		format, err := ingestion.FormatFromFilename(name)
		if err != nil {
			res.Skipped = append(res.Skipped, Skipped{Name: name, Reason: "unsupported file type"})
			continue
		}

		symbol, ok := SymbolFromFilename(name)
		if !ok {
			res.Skipped = append(res.Skipped, Skipped{Name: name, Reason: "no symbol in file name"})
			continue
		}

		info, err := entry.Info()
		if err != nil {
			res.Skipped = append(res.Skipped, Skipped{Name: name, Reason: err.Error()})
			continue
		}

		res.Files = append(res.Files, PriceFile{
			Path:    filepath.Join(fullPath, name),
			Name:    name,
			Symbol:  symbol,
			Format:  format,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.SliceStable(res.Files, func(i, j int) bool {
		return res.Files[i].ModTime.Before(res.Files[j].ModTime)
	})

	return res, nil
}

// SymbolFromFilename takes the leading token of a file name as the symbol.
// "THYAO Historical Data.csv", "thyao_2024.xlsx" and "THYAO.csv" all yield
// THYAO.
func SymbolFromFilename(name string) (string, bool) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if i := strings.IndexAny(base, " _-"); i >= 0 {
		base = base[:i]
	}
	symbol := strings.ToUpper(strings.TrimSpace(base))
	if !validation.ValidSymbol(symbol) {
		return "", false
	}
	return symbol, true
}

// ModifiedSince keeps the files modified after t
func ModifiedSince(files []PriceFile, t time.Time) []PriceFile {
	var filtered []PriceFile
	for _, f := range files {
		if f.ModTime.After(t) {
			filtered = append(filtered, f)
		}
	}
	return filtered
}

// GroupBySymbol buckets files per symbol keeping their order
func GroupBySymbol(files []PriceFile) map[string][]PriceFile {
	groups := make(map[string][]PriceFile)
	for _, f := range files {
		groups[f.Symbol] = append(groups[f.Symbol], f)
	}
	return groups
}
