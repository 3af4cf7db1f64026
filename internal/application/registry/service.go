package registry

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/adityawrm/docintel/internal/application"
	"github.com/adityawrm/docintel/internal/domain/analyzers"
	"github.com/adityawrm/docintel/internal/domain/cases"
)

// Service maps a case to a durable analyzer id with idempotent
// get-or-create semantics. Analyzer creation itself is delegated to the
// caller via CreateFn so this package stays free of transport concerns.
type Service struct {
	Cases     cases.Repository
	Analyzers analyzers.Repository
	Clock     application.Clock
}

// CreateFn registers a new analyzer with the external service and returns
// its externally assigned id.
type CreateFn func(ctx context.Context) (string, error)

// Resolution is the outcome of ResolveOrCreate.
type Resolution struct {
	AnalyzerID string
	Reused     bool
	Ephemeral  bool
}

// ResolveOrCreate resolves the analyzer for one analysis request.
//
//   - no case id: always a fresh ephemeral analyzer, no lookup.
//   - case found with an analyzer: reuse it and refresh last_analyzed_at.
//     The requested schema is intentionally not re-validated against the
//     stored digest here (see DESIGN.md).
//   - case found without an analyzer: create one and attach it in a single
//     atomic update keyed by case id. Two concurrent first-analyses may each
//     create an analyzer; the case ends up pointing at exactly one of them
//     (last write wins) and the loser is an orphan on the external service.
//   - case not found: anomaly, degrade to an unassociated ephemeral analyzer.
func (s *Service) ResolveOrCreate(ctx context.Context, tenant string, caseID cases.CaseID, schemaDigest string, create CreateFn) (Resolution, error) {
	now := s.Clock.Now()

	if caseID == "" {
		id, err := s.createAnalyzer(ctx, create, tenant, schemaDigest, "", true)
		if err != nil {
			return Resolution{}, err
		}
		return Resolution{AnalyzerID: id, Ephemeral: true}, nil
	}

	c, err := s.Cases.Get(ctx, tenant, caseID)
	if err != nil {
		if errors.Is(err, cases.ErrNotFound) {
			log.Printf("registry: case %s not found for tenant %s, creating unassociated analyzer", caseID, tenant)
			id, cerr := s.createAnalyzer(ctx, create, tenant, schemaDigest, "", true)
			if cerr != nil {
				return Resolution{}, cerr
			}
			return Resolution{AnalyzerID: id, Ephemeral: true}, nil
		}
		return Resolution{}, err
	}

	if c.AnalyzerID != "" {
		if err := s.Cases.Touch(ctx, tenant, caseID, now); err != nil {
			return Resolution{}, err
		}
		return Resolution{AnalyzerID: c.AnalyzerID, Reused: true}, nil
	}

	id, err := s.createAnalyzer(ctx, create, tenant, schemaDigest, string(caseID), false)
	if err != nil {
		return Resolution{}, err
	}
	if err := s.Cases.AttachAnalyzer(ctx, tenant, caseID, id, now); err != nil {
		return Resolution{}, err
	}
	return Resolution{AnalyzerID: id}, nil
}

// RegisterCase records a case so later analyses can bind a durable
// analyzer to it. Registering an existing case is an upsert; the analyzer
// binding, if any, is untouched.
func (s *Service) RegisterCase(ctx context.Context, tenant string, caseID cases.CaseID) (*cases.Case, error) {
	if existing, err := s.Cases.Get(ctx, tenant, caseID); err == nil {
		return existing, nil
	} else if !errors.Is(err, cases.ErrNotFound) {
		return nil, err
	}
	c := &cases.Case{
		ID:        caseID,
		TenantID:  tenant,
		CreatedAt: s.Clock.Now(),
	}
	if err := s.Cases.Save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// GetCase ambil 1 case by id
func (s *Service) GetCase(ctx context.Context, tenant string, caseID cases.CaseID) (*cases.Case, error) {
	return s.Cases.Get(ctx, tenant, caseID)
}

func (s *Service) createAnalyzer(ctx context.Context, create CreateFn, tenant, schemaDigest, ownerCaseID string, ephemeral bool) (string, error) {
	id, err := create(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", analyzers.ErrCreationFailed, err)
	}
	a := &analyzers.Analyzer{
		ID:           id,
		TenantID:     tenant,
		SchemaDigest: schemaDigest,
		OwnerCaseID:  ownerCaseID,
		Ephemeral:    ephemeral,
		CreatedAt:    s.Clock.Now(),
	}
	if err := s.Analyzers.Save(ctx, a); err != nil {
		return "", err
	}
	return id, nil
}
