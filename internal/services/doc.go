// Package services implements the business logic layer of borsapulse.
// It sits between the HTTP handlers and CLI on one side and the storage,
// ingestion and analytics packages on the other.
//
// # Available Services
//
//	- InstrumentService: creates, lists and deletes instruments
//	- IngestionService: turns uploaded files into price bars and batches
//	- AnalysisService: recomputes analysis records, sync or through the job queue
//	- HealthService: liveness and readiness checks
//
// # Concurrency
//
// Every write to an instrument's bars or analysis records happens while
// holding the instrument's lock from storage.Locker, so an ingestion and a
// recompute of the same instrument never interleave. Different instruments
// proceed in parallel.
//
// # Error Handling
//
// Services return the sentinels in errors.go, wrapped with the offending
// identifier, alongside the domain errors from internal/errors:
//
//	- SchemaError when an uploaded file has no usable layout
//	- InsufficientDataError when an instrument has no bars to analyse
//	- PersistenceError when the store fails
//
// The HTTP layer maps all of them to RFC 7807 responses.
//
// # Testing
//
// Services are tested against storage.MemoryStore with a mocked event
// publisher:
//
//	pub := &MockPublisher{}
//	pub.On("Publish", mock.Anything, events.TypeAnalysisCompleted, mock.Anything).Return()
package services
