package analyses

import (
	"time"
)

// OperationID tipe untuk analysis job
type OperationID string

// Status enum
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusRunning    Status = "running"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
	StatusTimedOut   Status = "timed_out"
)

// Terminal reports whether the status is final. A terminal job is
// immutable except for late result-pointer attachment.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusTimedOut:
		return true
	}
	return false
}

// Error codes surfaced on failed jobs
const (
	ErrCodeExternal    = "ExternalFailed"
	ErrCodePersistence = "PersistenceFailed"
	ErrCodeTimedOut    = "TimedOut"
)

// Aggregate Root: Job (one submitted analysis execution)
type Job struct {
	OperationID OperationID `json:"operation_id"`
	TenantID    string      `json:"tenant_id"`
	AnalyzerID  string      `json:"analyzer_id"`
	CaseID      string      `json:"case_id,omitempty"`
	Status      Status      `json:"status"`
	// OperationLocation is the exact callback URL returned by the external
	// service. It is replayed verbatim on every status check; rebuilding it
	// from the analyzer id causes spurious not-found errors.
	OperationLocation string    `json:"operation_location"`
	ResultPointer     string    `json:"result_pointer,omitempty"`
	ErrorCode         string    `json:"error_code,omitempty"`
	ErrorMessage      string    `json:"error_message,omitempty"`
	Ephemeral         bool      `json:"ephemeral"`
	CreatedAt         time.Time `json:"created_at"`
	LastPolledAt      time.Time `json:"last_polled_at,omitempty"`
	PollAttempts      int       `json:"poll_attempts"`
}

// ResultKey picks the object-store path for a job's payload. Case-bound
// jobs share one deterministic path that is overwritten on re-analysis;
// ephemeral jobs get one path per operation.
func ResultKey(j *Job) string {
	if j.CaseID != "" {
		return "case-" + j.CaseID + "/result.json"
	}
	return string(j.OperationID) + ".json"
}
