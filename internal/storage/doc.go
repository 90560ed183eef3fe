// Package storage persists instruments, price bars, analysis records and
// ingestion batches.
//
// Two implementations satisfy Store: MemoryStore for tests and the CLI's
// dry runs, and GormStore for sqlite or MySQL. The package also provides
// the per-instrument Locker that serializes ingestion and aggregation.
package storage
