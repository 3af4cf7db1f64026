package cases

import "time"

// CaseID tipe untuk Case
type CaseID string

// Case groups repeated analyses behind one reusable analyzer.
// AnalyzerID is set exactly once per case; it is never silently replaced
// without an explicit case reset.
type Case struct {
	ID                CaseID    `json:"id"`
	TenantID          string    `json:"tenant_id"`
	AnalyzerID        string    `json:"analyzer_id,omitempty"`
	AnalyzerCreatedAt time.Time `json:"analyzer_created_at,omitempty"`
	LastAnalyzedAt    time.Time `json:"last_analyzed_at,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}
