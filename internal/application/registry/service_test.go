package registry

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adityawrm/docintel/internal/domain/analyzers"
	"github.com/adityawrm/docintel/internal/domain/cases"
	"github.com/adityawrm/docintel/internal/infra/db/memory"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func newTestService() (*Service, *memory.CaseRepository, *memory.AnalyzerRepository) {
	caseRepo := memory.NewCaseRepository()
	analyzerRepo := memory.NewAnalyzerRepository()
	svc := &Service{
		Cases:     caseRepo,
		Analyzers: analyzerRepo,
		Clock:     fixedClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)},
	}
	return svc, caseRepo, analyzerRepo
}

func sequentialCreate(prefix string) CreateFn {
	var n int64
	return func(ctx context.Context) (string, error) {
		return fmt.Sprintf("%s-%d", prefix, atomic.AddInt64(&n, 1)), nil
	}
}

func TestResolveOrCreate_NoCaseIsEphemeral(t *testing.T) {
	t.Parallel()

	svc, _, analyzerRepo := newTestService()

	res, err := svc.ResolveOrCreate(context.Background(), "t1", "", "digest", sequentialCreate("an"))
	require.NoError(t, err)

	assert.Equal(t, "an-1", res.AnalyzerID)
	assert.True(t, res.Ephemeral)
	assert.False(t, res.Reused)

	a, err := analyzerRepo.Get(context.Background(), "t1", "an-1")
	require.NoError(t, err)
	assert.True(t, a.Ephemeral)
	assert.Empty(t, a.OwnerCaseID)
}

func TestResolveOrCreate_FirstAnalysisAttachesAnalyzer(t *testing.T) {
	t.Parallel()

	svc, caseRepo, _ := newTestService()
	require.NoError(t, caseRepo.Save(context.Background(), &cases.Case{ID: "c1", TenantID: "t1"}))

	res, err := svc.ResolveOrCreate(context.Background(), "t1", "c1", "digest", sequentialCreate("an"))
	require.NoError(t, err)

	assert.Equal(t, "an-1", res.AnalyzerID)
	assert.False(t, res.Reused)
	assert.False(t, res.Ephemeral)

	c, err := caseRepo.Get(context.Background(), "t1", "c1")
	require.NoError(t, err)
	assert.Equal(t, "an-1", c.AnalyzerID)
	assert.False(t, c.LastAnalyzedAt.IsZero())
}

func TestResolveOrCreate_SecondAnalysisReuses(t *testing.T) {
	t.Parallel()

	svc, caseRepo, _ := newTestService()
	require.NoError(t, caseRepo.Save(context.Background(), &cases.Case{ID: "c1", TenantID: "t1"}))

	create := sequentialCreate("an")
	first, err := svc.ResolveOrCreate(context.Background(), "t1", "c1", "digest", create)
	require.NoError(t, err)

	second, err := svc.ResolveOrCreate(context.Background(), "t1", "c1", "digest", create)
	require.NoError(t, err)

	assert.Equal(t, first.AnalyzerID, second.AnalyzerID)
	assert.True(t, second.Reused)
	assert.False(t, second.Ephemeral)
}

func TestResolveOrCreate_UnknownCaseDegradesToEphemeral(t *testing.T) {
	t.Parallel()

	svc, caseRepo, _ := newTestService()

	res, err := svc.ResolveOrCreate(context.Background(), "t1", "ghost", "digest", sequentialCreate("an"))
	require.NoError(t, err)

	assert.True(t, res.Ephemeral)
	assert.Equal(t, "an-1", res.AnalyzerID)

	// the unknown case must not have been created as a side effect
	_, err = caseRepo.Get(context.Background(), "t1", "ghost")
	assert.ErrorIs(t, err, cases.ErrNotFound)
}

func TestResolveOrCreate_CreationFailureAborts(t *testing.T) {
	t.Parallel()

	svc, caseRepo, analyzerRepo := newTestService()
	require.NoError(t, caseRepo.Save(context.Background(), &cases.Case{ID: "c1", TenantID: "t1"}))

	failing := func(ctx context.Context) (string, error) {
		return "", fmt.Errorf("upstream said no")
	}
	_, err := svc.ResolveOrCreate(context.Background(), "t1", "c1", "digest", failing)
	require.ErrorIs(t, err, analyzers.ErrCreationFailed)

	c, err := caseRepo.Get(context.Background(), "t1", "c1")
	require.NoError(t, err)
	assert.Empty(t, c.AnalyzerID)
	_, err = analyzerRepo.Get(context.Background(), "t1", "an-1")
	assert.ErrorIs(t, err, analyzers.ErrNotFound)
}

func TestResolveOrCreate_ConcurrentFirstAnalysis(t *testing.T) {
	t.Parallel()

	svc, caseRepo, _ := newTestService()
	require.NoError(t, caseRepo.Save(context.Background(), &cases.Case{ID: "c1", TenantID: "t1"}))

	create := sequentialCreate("an")
	const workers = 16

	results := make([]Resolution, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.ResolveOrCreate(context.Background(), "t1", "c1", "digest", create)
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	// the case ends up bound to exactly one analyzer
	c, err := caseRepo.Get(context.Background(), "t1", "c1")
	require.NoError(t, err)
	require.NotEmpty(t, c.AnalyzerID)

	created := map[string]bool{}
	for _, res := range results {
		require.NotEmpty(t, res.AnalyzerID)
		if !res.Reused {
			created[res.AnalyzerID] = true
		}
	}
	assert.True(t, created[c.AnalyzerID], "winning analyzer must be one of the created ids")
}

func TestRegisterCase_Idempotent(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService()

	first, err := svc.RegisterCase(context.Background(), "t1", "c1")
	require.NoError(t, err)

	second, err := svc.RegisterCase(context.Background(), "t1", "c1")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
}
