package summaries

import (
	"context"

	domain "github.com/adityawrm/docintel/internal/domain/analyses"
	"github.com/adityawrm/docintel/internal/domain/summaries"
)

// Service produces a caller-readable AI summary of a finished analysis.
type Service struct {
	Jobs    domain.Repository
	Results domain.ResultStore
	Client  summaries.Client
}

func NewService(jobs domain.Repository, results domain.ResultStore, client summaries.Client) *Service {
	return &Service{Jobs: jobs, Results: results, Client: client}
}

// Summarize loads the tiered payload of a succeeded job and hands it to
// the AI model. The payload is passed through as-is; no field-level
// interpretation happens here.
func (s *Service) Summarize(ctx context.Context, tenant string, id domain.OperationID) (string, error) {
	job, err := s.Jobs.Get(ctx, tenant, id)
	if err != nil {
		return "", err
	}
	if job.Status != domain.StatusSucceeded || job.ResultPointer == "" {
		return "", domain.ErrResultNotReady
	}
	payload, err := s.Results.Get(ctx, job.ResultPointer)
	if err != nil {
		return "", err
	}
	return s.Client.Summarize(ctx, payload)
}
