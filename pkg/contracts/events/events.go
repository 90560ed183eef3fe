// Package events defines the JSON messages pushed to event stream clients.
package events

import (
	"time"

	"borsapulse/pkg/contracts/domain"
)

// Type names an event on the stream
type Type string

const (
	TypeConnected          Type = "connected"
	TypeIngestionCompleted Type = "ingestion:completed"
	TypeAnalysisCompleted  Type = "analysis:completed"
	TypeAnalysisFailed     Type = "analysis:failed"
)

// Message is the envelope for every event frame
type Message struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	TraceID   string    `json:"trace_id,omitempty"`
	Data      any       `json:"data,omitempty"`
}

// Connected is sent once to a client right after it registers
type Connected struct {
	ClientID string `json:"client_id"`
	Version  string `json:"version"`
}

// IngestionCompleted reports a processed upload
type IngestionCompleted struct {
	BatchID string                  `json:"batch_id"`
	Symbol  string                  `json:"symbol"`
	Summary domain.IngestionSummary `json:"summary"`
}

// AnalysisCompleted reports a successful recompute
type AnalysisCompleted struct {
	Symbol     string    `json:"symbol"`
	JobID      string    `json:"job_id,omitempty"`
	Records    int       `json:"records"`
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`
	DurationMs int64     `json:"duration_ms"`
}

// AnalysisFailed reports a recompute that wrote nothing
type AnalysisFailed struct {
	Symbol string `json:"symbol"`
	JobID  string `json:"job_id,omitempty"`
	Code   string `json:"code"`
	Error  string `json:"error"`
}
