package analyses

import (
	"context"
	"time"
)

// Repository port (interface untuk persistence)
type Repository interface {
	Save(ctx context.Context, j *Job) error
	Get(ctx context.Context, tenant string, id OperationID) (*Job, error)

	// RecordPoll writes poll bookkeeping (non-terminal status, last_polled_at,
	// poll_attempts). Implementations must refuse the write when the stored
	// status is already terminal so a late poll cannot regress it.
	RecordPoll(ctx context.Context, tenant string, id OperationID, status Status, at time.Time, attempts int) error

	// Finish moves the job to a terminal status. Implementations must guard
	// on the stored status being non-terminal; finishing an already-terminal
	// job is a no-op.
	Finish(ctx context.Context, tenant string, id OperationID, status Status, resultPointer, errCode, errMsg string, at time.Time, attempts int) error

	Latest(ctx context.Context, tenant string, limit int) ([]*Job, error)
	Paginate(ctx context.Context, tenant string, page, pageSize int) (PaginatedResult, error)
}

// ResultStore port (interface untuk bulk object store)
type ResultStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes the object; deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error
}
