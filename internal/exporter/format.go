package exporter

import (
	"strconv"

	"github.com/guregu/null/v6"
)

// formatFloat formats averages with four decimal places
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 4, 64)
}

// formatNullFloat writes an empty cell for null values
func formatNullFloat(f null.Float) string {
	if !f.Valid {
		return ""
	}
	return formatFloat(f.Float64)
}
