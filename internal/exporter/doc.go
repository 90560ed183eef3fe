// Package exporter writes analysis series as CSV.
//
// StreamWriter emits one record at a time to any io.Writer and prefixes the
// output with a UTF-8 BOM so spreadsheet tools detect the encoding. Null
// weekly, monthly and yearly aggregates are written as empty cells.
//
// Example usage:
//
//	err := exporter.WriteAnalysis(w, "THYAO", records)
package exporter
