package summaries

import "context"

// Client port over the AI summarization model.
type Client interface {
	Summarize(ctx context.Context, payload []byte) (string, error)
}
