// Package ingestion turns exported daily price files into canonical price bars.
//
// A file is first tabularized (CSV or Excel), its header is resolved against a
// static synonym table, and every data row is then parsed, deduplicated against
// stored bars and upserted on its own. One bad row never aborts the batch; a
// missing required column always does.
package ingestion
