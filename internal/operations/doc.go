// Package operations runs background jobs on a fixed pool of workers.
//
// A JobQueue dispatches each Job to the Handler registered for its Kind.
// Job state is kept in a JobStore so callers can poll progress by ID while
// the work runs; the in-memory store is the only implementation today.
//
// Jobs carry the trace ID of the request that enqueued them, so log lines
// written by a handler correlate with the originating HTTP call.
package operations
