package memory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	domain "github.com/adityawrm/docintel/internal/domain/analyses"
)

type JobRepository struct {
	mu   sync.Mutex
	jobs map[string]*domain.Job // key: tenant + "/" + id
}

func NewJobRepository() *JobRepository {
	return &JobRepository{jobs: make(map[string]*domain.Job)}
}

func jobKey(tenant string, id domain.OperationID) string { return tenant + "/" + string(id) }

func (r *JobRepository) Save(ctx context.Context, j *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *j
	r.jobs[jobKey(j.TenantID, j.OperationID)] = &cp
	return nil
}

func (r *JobRepository) Get(ctx context.Context, tenant string, id domain.OperationID) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[jobKey(tenant, id)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (r *JobRepository) RecordPoll(ctx context.Context, tenant string, id domain.OperationID, status domain.Status, at time.Time, attempts int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[jobKey(tenant, id)]
	if !ok {
		return domain.ErrNotFound
	}
	if j.Status.Terminal() {
		return nil
	}
	j.Status = status
	j.LastPolledAt = at
	j.PollAttempts = attempts
	return nil
}

func (r *JobRepository) Finish(ctx context.Context, tenant string, id domain.OperationID, status domain.Status, resultPointer, errCode, errMsg string, at time.Time, attempts int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[jobKey(tenant, id)]
	if !ok {
		return domain.ErrNotFound
	}
	if j.Status.Terminal() {
		return nil
	}
	j.Status = status
	j.ResultPointer = resultPointer
	j.ErrorCode = errCode
	j.ErrorMessage = errMsg
	j.LastPolledAt = at
	j.PollAttempts = attempts
	return nil
}

func (r *JobRepository) Latest(ctx context.Context, tenant string, limit int) ([]*domain.Job, error) {
	if limit <= 0 {
		limit = 20
	}
	all := r.byTenant(tenant)
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r *JobRepository) Paginate(ctx context.Context, tenant string, page, pageSize int) (domain.PaginatedResult, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	all := r.byTenant(tenant)
	total := int64(len(all))

	start := (page - 1) * pageSize
	if start > len(all) {
		start = len(all)
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}

	return domain.PaginatedResult{
		Data:       all[start:end],
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	}, nil
}

func (r *JobRepository) byTenant(tenant string) []*domain.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Job
	for _, j := range r.jobs {
		if j.TenantID == tenant {
			cp := *j
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, k int) bool {
		if !out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].CreatedAt.After(out[k].CreatedAt)
		}
		return out[i].OperationID > out[k].OperationID
	})
	return out
}
