// Package memory provides mutex-guarded in-memory repositories, used by
// tests and local runs without a database.
package memory

import (
	"context"
	"sync"
	"time"

	domain "github.com/adityawrm/docintel/internal/domain/cases"
)

type CaseRepository struct {
	mu    sync.Mutex
	cases map[string]*domain.Case // key: tenant + "/" + id
}

func NewCaseRepository() *CaseRepository {
	return &CaseRepository{cases: make(map[string]*domain.Case)}
}

func caseKey(tenant string, id domain.CaseID) string { return tenant + "/" + string(id) }

func (r *CaseRepository) Save(ctx context.Context, c *domain.Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	r.cases[caseKey(c.TenantID, c.ID)] = &cp
	return nil
}

func (r *CaseRepository) Get(ctx context.Context, tenant string, id domain.CaseID) (*domain.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cases[caseKey(tenant, id)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *CaseRepository) AttachAnalyzer(ctx context.Context, tenant string, id domain.CaseID, analyzerID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cases[caseKey(tenant, id)]
	if !ok {
		return domain.ErrNotFound
	}
	// single atomic update; concurrent first-analyses resolve last write wins
	c.AnalyzerID = analyzerID
	c.AnalyzerCreatedAt = at
	c.LastAnalyzedAt = at
	return nil
}

func (r *CaseRepository) Touch(ctx context.Context, tenant string, id domain.CaseID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cases[caseKey(tenant, id)]
	if !ok {
		return domain.ErrNotFound
	}
	c.LastAnalyzedAt = at
	return nil
}
