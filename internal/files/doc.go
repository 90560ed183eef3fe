// Package files discovers price files on disk for bulk ingestion.
//
// A Discovery scans one directory for files the ingestion package can read
// and infers the instrument symbol from each file name:
//
//	d := files.NewDiscovery("/srv/prices")
//	found, err := d.FindPriceFiles("incoming")
//	for _, f := range found.Files {
//	    // f.Symbol, f.Path, f.Format
//	}
//
// Files whose names do not start with a valid symbol are reported in
// Result.Skipped rather than failing the scan.
package files
