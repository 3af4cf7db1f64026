package memory

import (
	"context"
	"sync"

	domain "github.com/adityawrm/docintel/internal/domain/analyzers"
)

type AnalyzerRepository struct {
	mu        sync.Mutex
	analyzers map[string]*domain.Analyzer // key: tenant + "/" + id
}

func NewAnalyzerRepository() *AnalyzerRepository {
	return &AnalyzerRepository{analyzers: make(map[string]*domain.Analyzer)}
}

func (r *AnalyzerRepository) Save(ctx context.Context, a *domain.Analyzer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.analyzers[a.TenantID+"/"+a.ID] = &cp
	return nil
}

func (r *AnalyzerRepository) Get(ctx context.Context, tenant string, id string) (*domain.Analyzer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.analyzers[tenant+"/"+id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *AnalyzerRepository) Delete(ctx context.Context, tenant string, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.analyzers, tenant+"/"+id)
	return nil
}
