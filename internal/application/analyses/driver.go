package analyses

import (
	"context"
	"errors"
	"time"

	domain "github.com/adityawrm/docintel/internal/domain/analyses"
	"github.com/adityawrm/docintel/internal/domain/extraction"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultMaxAttempts  = 60
)

// DriveResult is what the background driver finished with.
type DriveResult struct {
	Job *domain.Job
	Err error
}

// DriveHandle identifies a running background driver. The result channel is
// buffered so the driver never blocks on a caller that walked away.
type DriveHandle struct {
	OperationID domain.OperationID
	done        chan DriveResult
}

// Done yields exactly one DriveResult when the driver stops.
func (h *DriveHandle) Done() <-chan DriveResult { return h.done }

// Drive repeatedly invokes the single-shot check until the job is terminal
// or the attempt budget is exhausted, which marks the job timed_out.
// Cancelling ctx stops polling; the job keeps its last observed state and
// nothing is cancelled server-side.
func (s *Service) Drive(ctx context.Context, tenant string, id domain.OperationID) *DriveHandle {
	h := &DriveHandle{OperationID: id, done: make(chan DriveResult, 1)}
	go func() {
		h.done <- s.drive(ctx, tenant, id)
	}()
	return h
}

func (s *Service) drive(ctx context.Context, tenant string, id domain.OperationID) DriveResult {
	interval := s.Poll.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	maxAttempts := s.Poll.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	var job *domain.Job
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return DriveResult{Job: job, Err: ctx.Err()}
			case <-time.After(interval):
			}
		}

		j, err := s.CheckOnce(ctx, tenant, id)
		if j != nil {
			job = j
		}
		if err != nil {
			if errors.Is(err, extraction.ErrAuth) {
				return DriveResult{Job: job, Err: err}
			}
			if job != nil && job.Status.Terminal() {
				return DriveResult{Job: job, Err: err}
			}
			// transient; retry on the normal cadence, no extra backoff
			continue
		}
		if job.Status.Terminal() {
			return DriveResult{Job: job}
		}
	}

	// budget exhausted: distinct from an external failure
	now := s.Clock.Now()
	attempts := 0
	if job != nil {
		attempts = job.PollAttempts
	}
	if err := s.Jobs.Finish(ctx, tenant, id, domain.StatusTimedOut, "", domain.ErrCodeTimedOut, "poll attempt budget exhausted", now, attempts); err != nil {
		return DriveResult{Job: job, Err: err}
	}
	final, err := s.Jobs.Get(ctx, tenant, id)
	if err != nil {
		return DriveResult{Job: job, Err: err}
	}
	s.reapIfEphemeral(ctx, final)
	return DriveResult{Job: final}
}
