package domain

import (
	"time"
)

// RowStatus is the terminal state of a single ingested row
type RowStatus string

const (
	RowSuccess   RowStatus = "success"
	RowDuplicate RowStatus = "duplicate"
	RowError     RowStatus = "error"
)

// RowOutcome is the result of processing one data row of an ingestion file
type RowOutcome struct {
	Row     int       `json:"row"`
	Status  RowStatus `json:"status"`
	Message string    `json:"message,omitempty"`
}

// IngestionSummary is the structured report returned for one ingestion pass
type IngestionSummary struct {
	TotalRows      int      `json:"total_rows"`
	SuccessCount   int      `json:"success_count"`
	DuplicateCount int      `json:"duplicate_count"`
	ErrorCount     int      `json:"error_count"`
	ErrorDetails   []string `json:"error_details"`
	ProcessedRatio float64  `json:"processed_ratio"`
}

// Record folds a row outcome into the summary
func (s *IngestionSummary) Record(o RowOutcome) {
	s.TotalRows++
	switch o.Status {
	case RowSuccess:
		s.SuccessCount++
	case RowDuplicate:
		s.DuplicateCount++
	case RowError:
		s.ErrorCount++
		s.ErrorDetails = append(s.ErrorDetails, o.Message)
	}
	s.ProcessedRatio = float64(s.SuccessCount+s.DuplicateCount) / float64(s.TotalRows)
}

// IngestionBatch tracks the processing outcome of one uploaded source file
type IngestionBatch struct {
	ID             string     `json:"id"`
	InstrumentID   string     `json:"instrument_id"`
	Filename       string     `json:"filename"`
	Note           string     `json:"note,omitempty"`
	UploadedBy     string     `json:"uploaded_by,omitempty"`
	UploadedAt     time.Time  `json:"uploaded_at"`
	SuccessCount   int        `json:"success_count"`
	DuplicateCount int        `json:"duplicate_count"`
	ErrorCount     int        `json:"error_count"`
	ErrorLog       string     `json:"error_log,omitempty"`
	Processed      bool       `json:"processed"`
	ProcessedAt    *time.Time `json:"processed_at,omitempty"`
}
