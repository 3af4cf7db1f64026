package pollerrors

import "time"

// PollError represents a persisted poll failure entry
type PollError struct {
	ID          int64     `json:"id"`
	TenantID    string    `json:"tenant_id"`
	OperationID string    `json:"operation_id"`
	Phase       string    `json:"phase,omitempty"` // poll | persist | external
	Message     string    `json:"message"`
	DetailsJSON string    `json:"details_json,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
