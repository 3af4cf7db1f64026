package analyses

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/adityawrm/docintel/internal/application"
	"github.com/adityawrm/docintel/internal/application/registry"
	domain "github.com/adityawrm/docintel/internal/domain/analyses"
	"github.com/adityawrm/docintel/internal/domain/analyzers"
	"github.com/adityawrm/docintel/internal/domain/cases"
	"github.com/adityawrm/docintel/internal/domain/extraction"
	"github.com/adityawrm/docintel/internal/domain/pollerrors"
)

// PollPolicy bounds the background driver: fixed interval, bounded
// attempts, so the maximum wait is Interval * MaxAttempts regardless of
// clock skew.
type PollPolicy struct {
	Interval    time.Duration
	MaxAttempts int
}

// Service implements use-cases for analysis jobs: submission, the
// caller-facing single-shot status check, result tiering and ephemeral
// cleanup. Safe for concurrent use.
type Service struct {
	Jobs       domain.Repository
	Cases      cases.Repository
	Analyzers  analyzers.Repository
	Registry   *registry.Service
	Extraction extraction.Client
	Results    domain.ResultStore
	PollErrors pollerrors.Repository // optional
	Clock      application.Clock
	Poll       PollPolicy

	mu      sync.Mutex
	pending map[domain.OperationID][]byte // payloads awaiting a persistence retry
}

//
// ==== USE CASES ====
//

// Command untuk submit analysis
type SubmitCommand struct {
	TenantID string
	CaseID   string
	Schema   extraction.Schema
	Input    extraction.Input
}

type SubmitResult struct {
	OperationID       string `json:"operation_id"`
	OperationLocation string `json:"operation_location"`
	AnalyzerID        string `json:"analyzer_id"`
	AnalyzerReused    bool   `json:"analyzer_reused"`
	Status            string `json:"status"`
}

// Submit resolves the analyzer, submits the job to the external service
// and records it. Analyzer creation failure aborts before any job exists.
func (s *Service) Submit(ctx context.Context, cmd SubmitCommand) (SubmitResult, error) {
	if !cmd.Schema.Valid() {
		return SubmitResult{}, fmt.Errorf("schema must declare at least one typed field")
	}
	if cmd.Input.DocumentURL == "" {
		return SubmitResult{}, fmt.Errorf("input document url is required")
	}

	res, err := s.Registry.ResolveOrCreate(ctx, cmd.TenantID, cases.CaseID(cmd.CaseID), cmd.Schema.Digest(),
		func(ctx context.Context) (string, error) {
			return s.Extraction.CreateAnalyzer(ctx, cmd.Schema)
		})
	if err != nil {
		return SubmitResult{}, err
	}

	opLoc, err := s.Extraction.SubmitAnalysis(ctx, res.AnalyzerID, cmd.Input)
	if err != nil {
		return SubmitResult{}, err
	}

	job := &domain.Job{
		OperationID:       domain.OperationID(uuid.New().String()),
		TenantID:          cmd.TenantID,
		AnalyzerID:        res.AnalyzerID,
		CaseID:            cmd.CaseID,
		Status:            domain.StatusNotStarted,
		OperationLocation: opLoc,
		Ephemeral:         res.Ephemeral,
		CreatedAt:         s.Clock.Now(),
	}
	if err := s.Jobs.Save(ctx, job); err != nil {
		return SubmitResult{}, err
	}

	return SubmitResult{
		OperationID:       string(job.OperationID),
		OperationLocation: job.OperationLocation,
		AnalyzerID:        job.AnalyzerID,
		AnalyzerReused:    res.Reused,
		Status:            string(job.Status),
	}, nil
}

// CheckOnce queries the external service exactly once and persists the
// observed state. It never sleeps or retries internally; callers own the
// poll loop. Calling it on an already-terminal job is a no-op read and
// does not re-run the tiering writer.
func (s *Service) CheckOnce(ctx context.Context, tenant string, id domain.OperationID) (*domain.Job, error) {
	job, err := s.Jobs.Get(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		return job, nil
	}

	now := s.Clock.Now()

	// A previous poll fetched the payload but failed to persist it; retry
	// from the in-memory copy instead of re-fetching.
	if payload, ok := s.pendingPayload(job.OperationID); ok {
		job.PollAttempts++
		job.LastPolledAt = now
		return s.completeSucceeded(ctx, job, payload)
	}

	snap, err := s.Extraction.GetOperation(ctx, job.OperationLocation)
	if err != nil {
		if errors.Is(err, extraction.ErrAuth) {
			// fail fast so the caller can refresh credentials; auth errors
			// do not count against the poll budget
			return job, err
		}
		job.PollAttempts++
		job.LastPolledAt = now
		s.recordPollError(ctx, job, "poll", err.Error())
		if uerr := s.Jobs.RecordPoll(ctx, tenant, id, job.Status, now, job.PollAttempts); uerr != nil {
			return job, uerr
		}
		return job, err
	}

	job.PollAttempts++
	job.LastPolledAt = now

	switch snap.Status {
	case extraction.OpNotStarted:
		job.Status = domain.StatusNotStarted
		return job, s.Jobs.RecordPoll(ctx, tenant, id, job.Status, now, job.PollAttempts)

	case extraction.OpRunning:
		job.Status = domain.StatusRunning
		return job, s.Jobs.RecordPoll(ctx, tenant, id, job.Status, now, job.PollAttempts)

	case extraction.OpFailed:
		job.Status = domain.StatusFailed
		job.ErrorCode = snap.ErrorCode
		if job.ErrorCode == "" {
			job.ErrorCode = domain.ErrCodeExternal
		}
		job.ErrorMessage = snap.ErrorMessage
		s.recordPollError(ctx, job, "external", job.ErrorMessage)
		if err := s.Jobs.Finish(ctx, tenant, id, domain.StatusFailed, "", job.ErrorCode, job.ErrorMessage, now, job.PollAttempts); err != nil {
			return job, err
		}
		s.reapIfEphemeral(ctx, job)
		return job, nil

	case extraction.OpSucceeded:
		if snap.Fields == nil {
			// the service no longer returns the payload and we have no
			// cached copy; the result is unrecoverable
			job.Status = domain.StatusFailed
			job.ErrorCode = domain.ErrCodePersistence
			job.ErrorMessage = domain.ErrPersistenceFailed.Error()
			if err := s.Jobs.Finish(ctx, tenant, id, domain.StatusFailed, "", job.ErrorCode, job.ErrorMessage, now, job.PollAttempts); err != nil {
				return job, err
			}
			s.reapIfEphemeral(ctx, job)
			return job, domain.ErrPersistenceFailed
		}
		payload, err := marshalResult(job, snap.Fields, now)
		if err != nil {
			return job, err
		}
		return s.completeSucceeded(ctx, job, payload)

	default:
		return job, fmt.Errorf("unknown external status: %s", snap.Status)
	}
}

// completeSucceeded runs the tiering writer and only then marks the job
// succeeded, so status=succeeded always implies a readable result pointer.
func (s *Service) completeSucceeded(ctx context.Context, job *domain.Job, payload []byte) (*domain.Job, error) {
	key := domain.ResultKey(job)
	now := job.LastPolledAt

	if err := s.Results.Put(ctx, key, payload, "application/json"); err != nil {
		// keep the job non-terminal and the payload in memory; the next
		// poll retries persistence without touching the external service
		s.setPending(job.OperationID, payload)
		s.recordPollError(ctx, job, "persist", err.Error())
		job.Status = domain.StatusRunning
		if uerr := s.Jobs.RecordPoll(ctx, job.TenantID, job.OperationID, job.Status, now, job.PollAttempts); uerr != nil {
			return job, uerr
		}
		return job, fmt.Errorf("persist analysis result: %w", err)
	}

	s.clearPending(job.OperationID)
	job.Status = domain.StatusSucceeded
	job.ResultPointer = key
	if err := s.Jobs.Finish(ctx, job.TenantID, job.OperationID, domain.StatusSucceeded, key, "", "", now, job.PollAttempts); err != nil {
		return job, err
	}
	if job.CaseID != "" {
		if err := s.Cases.Touch(ctx, job.TenantID, cases.CaseID(job.CaseID), now); err != nil {
			log.Printf("analyses: touch case %s failed: %v", job.CaseID, err)
		}
	}
	s.reapIfEphemeral(ctx, job)
	return job, nil
}

// Reap deletes the one-shot analyzer and its result payload once an
// ephemeral job is terminal. Safe to call more than once: already-deleted
// resources count as success. Never invoked for case-bound analyzers.
func (s *Service) Reap(ctx context.Context, job *domain.Job) error {
	if !job.Ephemeral {
		return nil
	}
	if err := s.Extraction.DeleteAnalyzer(ctx, job.AnalyzerID); err != nil && !errors.Is(err, extraction.ErrNotFound) {
		return fmt.Errorf("delete analyzer %s: %w", job.AnalyzerID, err)
	}
	if job.ResultPointer != "" {
		if err := s.Results.Delete(ctx, job.ResultPointer); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("delete result %s: %w", job.ResultPointer, err)
		}
	}
	if err := s.Analyzers.Delete(ctx, job.TenantID, job.AnalyzerID); err != nil && !errors.Is(err, analyzers.ErrNotFound) {
		return err
	}
	return nil
}

// Result returns the tiered payload of a succeeded job.
func (s *Service) Result(ctx context.Context, tenant string, id domain.OperationID) ([]byte, error) {
	job, err := s.Jobs.Get(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.StatusSucceeded || job.ResultPointer == "" {
		return nil, domain.ErrResultNotReady
	}
	return s.Results.Get(ctx, job.ResultPointer)
}

// Get ambil 1 job by id
func (s *Service) Get(ctx context.Context, tenant string, id domain.OperationID) (*domain.Job, error) {
	return s.Jobs.Get(ctx, tenant, id)
}

// Latest ambil N job terakhir
func (s *Service) Latest(ctx context.Context, tenant string, limit int) ([]*domain.Job, error) {
	return s.Jobs.Latest(ctx, tenant, limit)
}

// Paginate list jobs per tenant
func (s *Service) Paginate(ctx context.Context, tenant string, page, pageSize int) (domain.PaginatedResult, error) {
	return s.Jobs.Paginate(ctx, tenant, page, pageSize)
}

// ListPollErrors returns the audit trail for one operation.
func (s *Service) ListPollErrors(ctx context.Context, tenant string, id domain.OperationID, limit int) ([]*pollerrors.PollError, error) {
	if s.PollErrors == nil {
		return nil, nil
	}
	return s.PollErrors.ListByOperation(ctx, tenant, string(id), limit)
}

//
// ==== helpers ====
//

func (s *Service) reapIfEphemeral(ctx context.Context, job *domain.Job) {
	if !job.Ephemeral {
		return
	}
	if err := s.Reap(ctx, job); err != nil {
		log.Printf("analyses: reap operation %s failed: %v", job.OperationID, err)
	}
}

func (s *Service) recordPollError(ctx context.Context, job *domain.Job, phase, message string) {
	if s.PollErrors == nil {
		return
	}
	e := &pollerrors.PollError{
		TenantID:    job.TenantID,
		OperationID: string(job.OperationID),
		Phase:       phase,
		Message:     message,
		CreatedAt:   s.Clock.Now(),
	}
	if err := s.PollErrors.Save(ctx, e); err != nil {
		log.Printf("analyses: save poll error for %s failed: %v", job.OperationID, err)
	}
}

func (s *Service) pendingPayload(id domain.OperationID) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, ok := s.pending[id]
	return payload, ok
}

func (s *Service) setPending(id domain.OperationID, payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		s.pending = make(map[domain.OperationID][]byte)
	}
	s.pending[id] = payload
}

func (s *Service) clearPending(id domain.OperationID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
}

func marshalResult(job *domain.Job, fields map[string]extraction.FieldValue, at time.Time) ([]byte, error) {
	doc := struct {
		OperationID string                           `json:"operation_id"`
		AnalyzerID  string                           `json:"analyzer_id"`
		CaseID      string                           `json:"case_id,omitempty"`
		AnalyzedAt  time.Time                        `json:"analyzed_at"`
		Fields      map[string]extraction.FieldValue `json:"fields"`
	}{
		OperationID: string(job.OperationID),
		AnalyzerID:  job.AnalyzerID,
		CaseID:      job.CaseID,
		AnalyzedAt:  at,
		Fields:      fields,
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal result payload: %w", err)
	}
	return b, nil
}
