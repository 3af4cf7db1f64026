package mysql

import (
	"context"
	"database/sql"
	"time"

	domain "github.com/adityawrm/docintel/internal/domain/analyzers"
)

type AnalyzerRepository struct {
	db *sql.DB
}

func NewAnalyzerRepository(db *sql.DB) *AnalyzerRepository {
	return &AnalyzerRepository{db: db}
}

// Save inserts an analyzer record
func (r *AnalyzerRepository) Save(ctx context.Context, a *domain.Analyzer) error {
	const q = `
INSERT INTO analyzers
(id, tenant_id, schema_digest, owner_case_id, ephemeral, created_at)
VALUES (?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
 schema_digest=VALUES(schema_digest), owner_case_id=VALUES(owner_case_id), ephemeral=VALUES(ephemeral);
`
	tenant := stringOrDash(a.TenantID)
	created := a.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q, a.ID, tenant, a.SchemaDigest, nullString(a.OwnerCaseID), a.Ephemeral, created)
	return err
}

// Get by ID + Tenant
func (r *AnalyzerRepository) Get(ctx context.Context, tenant string, id string) (*domain.Analyzer, error) {
	const q = `
SELECT id, tenant_id, schema_digest, owner_case_id, ephemeral, created_at
FROM analyzers
WHERE tenant_id=? AND id=? LIMIT 1;
`
	row := r.db.QueryRowContext(ctx, q, tenant, id)

	var a domain.Analyzer
	var owner sql.NullString
	if err := row.Scan(&a.ID, &a.TenantID, &a.SchemaDigest, &owner, &a.Ephemeral, &a.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	a.OwnerCaseID = owner.String
	return &a, nil
}

// Delete removes the analyzer record
func (r *AnalyzerRepository) Delete(ctx context.Context, tenant string, id string) error {
	const q = `DELETE FROM analyzers WHERE tenant_id=? AND id=?;`
	_, err := r.db.ExecContext(ctx, q, tenant, id)
	return err
}
