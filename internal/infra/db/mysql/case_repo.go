package mysql

import (
	"context"
	"database/sql"
	"time"

	domain "github.com/adityawrm/docintel/internal/domain/cases"
)

type CaseRepository struct {
	db *sql.DB
}

func NewCaseRepository(db *sql.DB) *CaseRepository {
	return &CaseRepository{db: db}
}

// Save insert/update Case record
func (r *CaseRepository) Save(ctx context.Context, c *domain.Case) error {
	const q = `
INSERT INTO analysis_cases
(id, tenant_id, analyzer_id, analyzer_created_at, last_analyzed_at, created_at)
VALUES (?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
 analyzer_id=VALUES(analyzer_id),
 analyzer_created_at=VALUES(analyzer_created_at),
 last_analyzed_at=VALUES(last_analyzed_at);
`
	tenant := stringOrDash(c.TenantID)
	created := c.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q,
		c.ID, tenant, nullString(c.AnalyzerID),
		nullTime(c.AnalyzerCreatedAt), nullTime(c.LastAnalyzedAt), created,
	)
	return err
}

// Get by ID + Tenant
func (r *CaseRepository) Get(ctx context.Context, tenant string, id domain.CaseID) (*domain.Case, error) {
	const q = `
SELECT id, tenant_id, analyzer_id, analyzer_created_at, last_analyzed_at, created_at
FROM analysis_cases
WHERE tenant_id=? AND id=? LIMIT 1;
`
	row := r.db.QueryRowContext(ctx, q, tenant, id)

	var c domain.Case
	var analyzerID sql.NullString
	var analyzerCreated, lastAnalyzed sql.NullTime
	if err := row.Scan(&c.ID, &c.TenantID, &analyzerID, &analyzerCreated, &lastAnalyzed, &c.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	c.AnalyzerID = analyzerID.String
	if analyzerCreated.Valid {
		c.AnalyzerCreatedAt = analyzerCreated.Time
	}
	if lastAnalyzed.Valid {
		c.LastAnalyzedAt = lastAnalyzed.Time
	}
	return &c, nil
}

// AttachAnalyzer sets the analyzer binding in one atomic update keyed by
// case id; concurrent first-analyses resolve by last write wins.
func (r *CaseRepository) AttachAnalyzer(ctx context.Context, tenant string, id domain.CaseID, analyzerID string, at time.Time) error {
	const q = `
UPDATE analysis_cases
SET analyzer_id=?, analyzer_created_at=?, last_analyzed_at=?
WHERE tenant_id=? AND id=?;
`
	_, err := r.db.ExecContext(ctx, q, analyzerID, at, at, tenant, id)
	return err
}

// Touch hanya refresh last_analyzed_at
func (r *CaseRepository) Touch(ctx context.Context, tenant string, id domain.CaseID, at time.Time) error {
	const q = `
UPDATE analysis_cases
SET last_analyzed_at=?
WHERE tenant_id=? AND id=?;
`
	_, err := r.db.ExecContext(ctx, q, at, tenant, id)
	return err
}
