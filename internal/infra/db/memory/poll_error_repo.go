package memory

import (
	"context"
	"sync"

	domain "github.com/adityawrm/docintel/internal/domain/pollerrors"
)

type PollErrorRepository struct {
	mu      sync.Mutex
	nextID  int64
	entries []*domain.PollError
}

func NewPollErrorRepository() *PollErrorRepository {
	return &PollErrorRepository{}
}

func (r *PollErrorRepository) Save(ctx context.Context, e *domain.PollError) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	cp := *e
	cp.ID = r.nextID
	r.entries = append(r.entries, &cp)
	return nil
}

func (r *PollErrorRepository) ListByOperation(ctx context.Context, tenant string, operationID string, limit int) ([]*domain.PollError, error) {
	if limit <= 0 {
		limit = 20
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.PollError
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		e := r.entries[i]
		if e.TenantID == tenant && e.OperationID == operationID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}
