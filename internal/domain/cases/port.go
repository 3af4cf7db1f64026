package cases

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates the case record does not exist.
var ErrNotFound = errors.New("case not found")

// Repository port (interface untuk persistence)
type Repository interface {
	Save(ctx context.Context, c *Case) error
	Get(ctx context.Context, tenant string, id CaseID) (*Case, error)

	// AttachAnalyzer persists the analyzer binding in a single atomic update
	// keyed by case id. Concurrent first-analyses resolve by last write wins.
	AttachAnalyzer(ctx context.Context, tenant string, id CaseID, analyzerID string, at time.Time) error

	// Touch refreshes last_analyzed_at.
	Touch(ctx context.Context, tenant string, id CaseID, at time.Time) error
}
