package analyzers

import "time"

// Analyzer is the local record of an extraction configuration registered
// with the external service. The id is assigned externally and opaque.
type Analyzer struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenant_id"`
	SchemaDigest string    `json:"schema_digest"`
	OwnerCaseID  string    `json:"owner_case_id,omitempty"`
	Ephemeral    bool      `json:"ephemeral"`
	CreatedAt    time.Time `json:"created_at"`
}
