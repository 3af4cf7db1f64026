package analyzers

import (
	"context"
	"errors"
)

// ErrNotFound indicates the analyzer record does not exist.
var ErrNotFound = errors.New("analyzer not found")

// ErrCreationFailed indicates the external service refused to create the
// analyzer; the whole analysis request aborts before any job exists.
var ErrCreationFailed = errors.New("analyzer creation failed")

// Repository port for analyzer metadata records
type Repository interface {
	Save(ctx context.Context, a *Analyzer) error
	Get(ctx context.Context, tenant string, id string) (*Analyzer, error)
	Delete(ctx context.Context, tenant string, id string) error
}
