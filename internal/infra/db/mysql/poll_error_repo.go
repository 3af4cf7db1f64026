package mysql

import (
	"context"
	"database/sql"
	"time"

	domain "github.com/adityawrm/docintel/internal/domain/pollerrors"
)

type PollErrorRepository struct {
	db *sql.DB
}

func NewPollErrorRepository(db *sql.DB) *PollErrorRepository {
	return &PollErrorRepository{db: db}
}

// Save inserts a poll error entry
func (r *PollErrorRepository) Save(ctx context.Context, e *domain.PollError) error {
	const q = `
INSERT INTO poll_errors
(tenant_id, operation_id, phase, message, details_json, created_at)
VALUES (?,?,?,?,?,?);
`
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	details := e.DetailsJSON
	if details == "" {
		details = "{}"
	}
	_, err := r.db.ExecContext(ctx, q,
		stringOrDash(e.TenantID), e.OperationID, stringOrDash(e.Phase), e.Message, details, created,
	)
	return err
}

// ListByOperation returns poll errors for one operation, newest first
func (r *PollErrorRepository) ListByOperation(ctx context.Context, tenant string, operationID string, limit int) ([]*domain.PollError, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, tenant_id, operation_id, phase, message, details_json, created_at
FROM poll_errors
WHERE tenant_id=? AND operation_id=?
ORDER BY created_at DESC, id DESC
LIMIT ?;
`
	rows, err := r.db.QueryContext(ctx, q, tenant, operationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.PollError
	for rows.Next() {
		var e domain.PollError
		if err := rows.Scan(&e.ID, &e.TenantID, &e.OperationID, &e.Phase, &e.Message, &e.DetailsJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
