package operations

import "errors"

var (
	// ErrJobNotFound is returned for unknown job IDs
	ErrJobNotFound = errors.New("job not found")
	// ErrQueueFull is returned when the buffered queue cannot take another job
	ErrQueueFull = errors.New("job queue is full")
	// ErrQueueStopped is returned when enqueueing after Stop
	ErrQueueStopped = errors.New("job queue is stopped")
	// ErrUnknownKind is returned when no handler is registered for a job kind
	ErrUnknownKind = errors.New("no handler registered for job kind")
	// ErrNotCancellable is returned when cancelling a job that already finished
	ErrNotCancellable = errors.New("job cannot be cancelled")
)
