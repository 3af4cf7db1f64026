package pollerrors

import "context"

// Repository defines persistence for poll errors
type Repository interface {
	Save(ctx context.Context, e *PollError) error
	ListByOperation(ctx context.Context, tenant string, operationID string, limit int) ([]*PollError, error)
}
