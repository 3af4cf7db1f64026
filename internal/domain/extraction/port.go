package extraction

import "context"

// OpStatus is the status vocabulary of the external extraction service.
type OpStatus string

const (
	OpNotStarted OpStatus = "notStarted"
	OpRunning    OpStatus = "running"
	OpSucceeded  OpStatus = "succeeded"
	OpFailed     OpStatus = "failed"
)

// Input is one document handed to the analyzer.
type Input struct {
	DocumentURL string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
}

// OperationSnapshot is the decoded body of one status check.
type OperationSnapshot struct {
	Status       OpStatus
	Fields       map[string]FieldValue
	ErrorCode    string
	ErrorMessage string
}

// Client port over the external AI extraction service.
//
// SubmitAnalysis returns the service's Operation-Location URL. Callers must
// store it and pass it back to GetOperation verbatim; it is opaque and must
// never be reconstructed.
type Client interface {
	CreateAnalyzer(ctx context.Context, schema Schema) (string, error)
	DeleteAnalyzer(ctx context.Context, analyzerID string) error
	SubmitAnalysis(ctx context.Context, analyzerID string, input Input) (string, error)
	GetOperation(ctx context.Context, operationLocation string) (*OperationSnapshot, error)
}

// CredentialProvider supplies a bearer credential per outbound call.
// Acquisition failures surface as ErrAuth and are never retried here.
type CredentialProvider interface {
	Token(ctx context.Context) (string, error)
}
