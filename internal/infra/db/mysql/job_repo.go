package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	domain "github.com/adityawrm/docintel/internal/domain/analyses"
)

type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Save insert/update Job record
func (r *JobRepository) Save(ctx context.Context, j *domain.Job) error {
	const q = `
INSERT INTO analysis_jobs
(id, tenant_id, analyzer_id, case_id, status, operation_location,
 result_pointer, error_code, error_message, ephemeral,
 created_at, last_polled_at, poll_attempts)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
 status=VALUES(status),
 result_pointer=VALUES(result_pointer),
 error_code=VALUES(error_code), error_message=VALUES(error_message),
 last_polled_at=VALUES(last_polled_at), poll_attempts=VALUES(poll_attempts);
`
	tenant := stringOrDash(j.TenantID)
	status := stringOrDash(string(j.Status))
	created := j.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	_, err := r.db.ExecContext(ctx, q,
		j.OperationID, tenant, j.AnalyzerID, nullString(j.CaseID), status, j.OperationLocation,
		nullString(j.ResultPointer), nullString(j.ErrorCode), nullString(j.ErrorMessage), j.Ephemeral,
		created, nullTime(j.LastPolledAt), j.PollAttempts,
	)
	return err
}

// Get by ID + Tenant
func (r *JobRepository) Get(ctx context.Context, tenant string, id domain.OperationID) (*domain.Job, error) {
	const q = `
SELECT id, tenant_id, analyzer_id, case_id, status, operation_location,
       result_pointer, error_code, error_message, ephemeral,
       created_at, last_polled_at, poll_attempts
FROM analysis_jobs
WHERE tenant_id=? AND id=? LIMIT 1;
`
	row := r.db.QueryRowContext(ctx, q, tenant, id)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return j, err
}

// RecordPoll writes poll bookkeeping; refuses the write once terminal.
func (r *JobRepository) RecordPoll(ctx context.Context, tenant string, id domain.OperationID, status domain.Status, at time.Time, attempts int) error {
	const q = `
UPDATE analysis_jobs
SET status=?, last_polled_at=?, poll_attempts=?
WHERE tenant_id=? AND id=?` + nonTerminalGuard + `;`
	_, err := r.db.ExecContext(ctx, q, status, at, attempts, tenant, id)
	return err
}

// Finish moves the job to a terminal status; a no-op when already terminal.
func (r *JobRepository) Finish(ctx context.Context, tenant string, id domain.OperationID, status domain.Status, resultPointer, errCode, errMsg string, at time.Time, attempts int) error {
	const q = `
UPDATE analysis_jobs
SET status=?, result_pointer=?, error_code=?, error_message=?,
    last_polled_at=?, poll_attempts=?
WHERE tenant_id=? AND id=?` + nonTerminalGuard + `;`
	_, err := r.db.ExecContext(ctx, q,
		status, nullString(resultPointer), nullString(errCode), nullString(errMsg),
		at, attempts, tenant, id,
	)
	return err
}

// Latest jobs per tenant
func (r *JobRepository) Latest(ctx context.Context, tenant string, limit int) ([]*domain.Job, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, tenant_id, analyzer_id, case_id, status, operation_location,
       result_pointer, error_code, error_message, ephemeral,
       created_at, last_polled_at, poll_attempts
FROM analysis_jobs
WHERE tenant_id=? ORDER BY created_at DESC, id DESC LIMIT ?;
`
	rows, err := r.db.QueryContext(ctx, q, tenant, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// Paginate with offset + limit (classic pagination)
func (r *JobRepository) Paginate(ctx context.Context, tenant string, page, pageSize int) (domain.PaginatedResult, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	const q = `
SELECT id, tenant_id, analyzer_id, case_id, status, operation_location,
       result_pointer, error_code, error_message, ephemeral,
       created_at, last_polled_at, poll_attempts
FROM analysis_jobs
WHERE tenant_id=?
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?;
`
	rows, err := r.db.QueryContext(ctx, q, tenant, pageSize, offset)
	if err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("querying jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return domain.PaginatedResult{}, fmt.Errorf("scanning row: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err = rows.Err(); err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("iterating rows: %w", err)
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM analysis_jobs WHERE tenant_id=?;`, tenant).Scan(&total); err != nil {
		return domain.PaginatedResult{}, fmt.Errorf("getting total count: %w", err)
	}

	return domain.PaginatedResult{
		Data:       jobs,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var j domain.Job
	var caseID, pointer, errCode, errMsg sql.NullString
	var lastPolled sql.NullTime
	if err := row.Scan(
		&j.OperationID, &j.TenantID, &j.AnalyzerID, &caseID, &j.Status, &j.OperationLocation,
		&pointer, &errCode, &errMsg, &j.Ephemeral,
		&j.CreatedAt, &lastPolled, &j.PollAttempts,
	); err != nil {
		return nil, err
	}
	j.CaseID = caseID.String
	j.ResultPointer = pointer.String
	j.ErrorCode = errCode.String
	j.ErrorMessage = errMsg.String
	if lastPolled.Valid {
		j.LastPolledAt = lastPolled.Time
	}
	return &j, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
