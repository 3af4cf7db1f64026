package analyses

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adityawrm/docintel/internal/application/registry"
	domain "github.com/adityawrm/docintel/internal/domain/analyses"
	"github.com/adityawrm/docintel/internal/domain/cases"
	"github.com/adityawrm/docintel/internal/domain/extraction"
	"github.com/adityawrm/docintel/internal/infra/db/memory"
)

//
// ==== fakes ====
//

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type getResult struct {
	snap *extraction.OperationSnapshot
	err  error
}

// fakeExtraction scripts GetOperation responses in order; the last entry
// repeats once the script is exhausted.
type fakeExtraction struct {
	mu       sync.Mutex
	nextID   int
	opLoc    string
	script   []getResult
	getCalls int
	getLocs  []string
	deleted  map[string]int
}

func newFakeExtraction(opLoc string, script ...getResult) *fakeExtraction {
	return &fakeExtraction{opLoc: opLoc, script: script, deleted: map[string]int{}}
}

func (f *fakeExtraction) CreateAnalyzer(ctx context.Context, schema extraction.Schema) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return fmt.Sprintf("an-%d", f.nextID), nil
}

func (f *fakeExtraction) DeleteAnalyzer(ctx context.Context, analyzerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted[analyzerID]++
	if f.deleted[analyzerID] > 1 {
		return extraction.ErrNotFound
	}
	return nil
}

func (f *fakeExtraction) SubmitAnalysis(ctx context.Context, analyzerID string, input extraction.Input) (string, error) {
	return f.opLoc, nil
}

func (f *fakeExtraction) GetOperation(ctx context.Context, operationLocation string) (*extraction.OperationSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	f.getLocs = append(f.getLocs, operationLocation)
	i := f.getCalls - 1
	if i >= len(f.script) {
		i = len(f.script) - 1
	}
	r := f.script[i]
	return r.snap, r.err
}

// flakyStore fails the first failPuts Put calls, then delegates.
type flakyStore struct {
	*memory.ResultStore
	mu       sync.Mutex
	failPuts int
	putCalls int
}

func (s *flakyStore) Put(ctx context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	s.putCalls++
	fail := s.putCalls <= s.failPuts
	s.mu.Unlock()
	if fail {
		return fmt.Errorf("object store unavailable")
	}
	return s.ResultStore.Put(ctx, key, data, contentType)
}

func running() getResult {
	return getResult{snap: &extraction.OperationSnapshot{Status: extraction.OpRunning}}
}

func succeededWith(fields map[string]extraction.FieldValue) getResult {
	return getResult{snap: &extraction.OperationSnapshot{Status: extraction.OpSucceeded, Fields: fields}}
}

func sampleFields() map[string]extraction.FieldValue {
	return map[string]extraction.FieldValue{
		"invoice_number": {Kind: extraction.KindString, Str: "INV-42"},
		"total":          {Kind: extraction.KindNumber, Num: 1250.5},
	}
}

type testEnv struct {
	svc      *Service
	jobs     *memory.JobRepository
	cases    *memory.CaseRepository
	store    *flakyStore
	client   *fakeExtraction
	pollErrs *memory.PollErrorRepository
}

func newTestEnv(t *testing.T, client *fakeExtraction) *testEnv {
	t.Helper()
	jobs := memory.NewJobRepository()
	caseRepo := memory.NewCaseRepository()
	analyzerRepo := memory.NewAnalyzerRepository()
	pollErrs := memory.NewPollErrorRepository()
	store := &flakyStore{ResultStore: memory.NewResultStore()}
	clock := fixedClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}

	svc := &Service{
		Jobs:      jobs,
		Cases:     caseRepo,
		Analyzers: analyzerRepo,
		Registry: &registry.Service{
			Cases:     caseRepo,
			Analyzers: analyzerRepo,
			Clock:     clock,
		},
		Extraction: client,
		Results:    store,
		PollErrors: pollErrs,
		Clock:      clock,
	}
	return &testEnv{svc: svc, jobs: jobs, cases: caseRepo, store: store, client: client, pollErrs: pollErrs}
}

func submit(t *testing.T, env *testEnv, caseID string) SubmitResult {
	t.Helper()
	res, err := env.svc.Submit(context.Background(), SubmitCommand{
		TenantID: "t1",
		CaseID:   caseID,
		Schema: extraction.Schema{
			Name:   "invoice",
			Fields: map[string]extraction.FieldSpec{"invoice_number": {Type: "string"}},
		},
		Input: extraction.Input{DocumentURL: "https://docs.example.com/inv.pdf"},
	})
	require.NoError(t, err)
	return res
}

//
// ==== tests ====
//

func TestSubmit_RecordsJobWithVerbatimOperationLocation(t *testing.T) {
	t.Parallel()

	opLoc := "https://svc.example.com/operations/abc?api-version=2024-12-01&sig=XYZ"
	env := newTestEnv(t, newFakeExtraction(opLoc, running()))
	require.NoError(t, env.cases.Save(context.Background(), &cases.Case{ID: "c1", TenantID: "t1"}))

	res := submit(t, env, "c1")

	assert.Equal(t, string(domain.StatusNotStarted), res.Status)
	assert.Equal(t, opLoc, res.OperationLocation)

	job, err := env.jobs.Get(context.Background(), "t1", domain.OperationID(res.OperationID))
	require.NoError(t, err)
	assert.Equal(t, opLoc, job.OperationLocation)
	assert.Equal(t, "an-1", job.AnalyzerID)
	assert.False(t, job.Ephemeral)
}

func TestSubmit_ReusesCaseAnalyzer(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, newFakeExtraction("https://svc/op/1", running()))
	require.NoError(t, env.cases.Save(context.Background(), &cases.Case{ID: "c1", TenantID: "t1"}))

	first := submit(t, env, "c1")
	second := submit(t, env, "c1")

	assert.False(t, first.AnalyzerReused)
	assert.True(t, second.AnalyzerReused)
	assert.Equal(t, first.AnalyzerID, second.AnalyzerID)
}

func TestSubmit_RejectsEmptySchema(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, newFakeExtraction("https://svc/op/1"))

	_, err := env.svc.Submit(context.Background(), SubmitCommand{
		TenantID: "t1",
		Schema:   extraction.Schema{Name: "empty"},
		Input:    extraction.Input{DocumentURL: "https://docs.example.com/x.pdf"},
	})
	assert.Error(t, err)
}

func TestCheckOnce_RunningThenSucceeded(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, newFakeExtraction("https://svc/op/1",
		running(), running(), succeededWith(sampleFields())))
	require.NoError(t, env.cases.Save(context.Background(), &cases.Case{ID: "c1", TenantID: "t1"}))
	res := submit(t, env, "c1")
	id := domain.OperationID(res.OperationID)

	job, err := env.svc.CheckOnce(context.Background(), "t1", id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRunning, job.Status)
	assert.Equal(t, 1, job.PollAttempts)

	job, err = env.svc.CheckOnce(context.Background(), "t1", id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRunning, job.Status)
	assert.Equal(t, 2, job.PollAttempts)

	job, err = env.svc.CheckOnce(context.Background(), "t1", id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSucceeded, job.Status)
	assert.Equal(t, "case-c1/result.json", job.ResultPointer)
	assert.Equal(t, 3, job.PollAttempts)

	// the tiered payload is readable and carries the extracted fields
	payload, err := env.svc.Result(context.Background(), "t1", id)
	require.NoError(t, err)
	var doc struct {
		Fields map[string]extraction.FieldValue `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(payload, &doc))
	assert.Equal(t, "INV-42", doc.Fields["invoice_number"].Str)

	// every status check replayed the stored location verbatim
	for _, loc := range env.client.getLocs {
		assert.Equal(t, "https://svc/op/1", loc)
	}

	// case activity refreshed on completion
	c, err := env.cases.Get(context.Background(), "t1", "c1")
	require.NoError(t, err)
	assert.False(t, c.LastAnalyzedAt.IsZero())
}

func TestCheckOnce_TerminalJobIsNoOp(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, newFakeExtraction("https://svc/op/1", succeededWith(sampleFields())))
	require.NoError(t, env.cases.Save(context.Background(), &cases.Case{ID: "c1", TenantID: "t1"}))
	res := submit(t, env, "c1")
	id := domain.OperationID(res.OperationID)

	_, err := env.svc.CheckOnce(context.Background(), "t1", id)
	require.NoError(t, err)
	callsAfterTerminal := env.client.getCalls

	job, err := env.svc.CheckOnce(context.Background(), "t1", id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSucceeded, job.Status)
	assert.Equal(t, callsAfterTerminal, env.client.getCalls, "terminal job must not hit the external service")
}

func TestCheckOnce_AuthErrorDoesNotCountAgainstBudget(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, newFakeExtraction("https://svc/op/1",
		getResult{err: fmt.Errorf("%w: status 401", extraction.ErrAuth)}))
	res := submit(t, env, "")
	id := domain.OperationID(res.OperationID)

	_, err := env.svc.CheckOnce(context.Background(), "t1", id)
	require.ErrorIs(t, err, extraction.ErrAuth)

	job, err := env.jobs.Get(context.Background(), "t1", id)
	require.NoError(t, err)
	assert.Equal(t, 0, job.PollAttempts)
	assert.False(t, job.Status.Terminal())
}

func TestCheckOnce_TransientErrorCountsAndIsAudited(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, newFakeExtraction("https://svc/op/1",
		getResult{err: fmt.Errorf("connection reset")}))
	res := submit(t, env, "")
	id := domain.OperationID(res.OperationID)

	_, err := env.svc.CheckOnce(context.Background(), "t1", id)
	require.Error(t, err)

	job, err := env.jobs.Get(context.Background(), "t1", id)
	require.NoError(t, err)
	assert.Equal(t, 1, job.PollAttempts)

	audit, err := env.pollErrs.ListByOperation(context.Background(), "t1", res.OperationID, 10)
	require.NoError(t, err)
	require.Len(t, audit, 1)
	assert.Equal(t, "poll", audit[0].Phase)
}

func TestCheckOnce_ExternalFailureIsTerminal(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, newFakeExtraction("https://svc/op/1", getResult{
		snap: &extraction.OperationSnapshot{
			Status:       extraction.OpFailed,
			ErrorCode:    "InvalidDocument",
			ErrorMessage: "unreadable pdf",
		},
	}))
	res := submit(t, env, "")
	id := domain.OperationID(res.OperationID)

	job, err := env.svc.CheckOnce(context.Background(), "t1", id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, job.Status)
	assert.Equal(t, "InvalidDocument", job.ErrorCode)
	assert.Equal(t, "unreadable pdf", job.ErrorMessage)

	// ephemeral analyzer reaped after the terminal transition
	assert.Equal(t, 1, env.client.deleted[res.AnalyzerID])
}

func TestCheckOnce_PersistFailureRetriesFromCache(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, newFakeExtraction("https://svc/op/1", succeededWith(sampleFields())))
	env.store.failPuts = 1
	require.NoError(t, env.cases.Save(context.Background(), &cases.Case{ID: "c1", TenantID: "t1"}))
	res := submit(t, env, "c1")
	id := domain.OperationID(res.OperationID)

	_, err := env.svc.CheckOnce(context.Background(), "t1", id)
	require.Error(t, err)

	job, err := env.jobs.Get(context.Background(), "t1", id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRunning, job.Status, "job must stay non-terminal while the payload is unpersisted")

	audit, err := env.pollErrs.ListByOperation(context.Background(), "t1", res.OperationID, 10)
	require.NoError(t, err)
	require.Len(t, audit, 1)
	assert.Equal(t, "persist", audit[0].Phase)

	fetchesBeforeRetry := env.client.getCalls
	job, err = env.svc.CheckOnce(context.Background(), "t1", id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSucceeded, job.Status)
	assert.Equal(t, "case-c1/result.json", job.ResultPointer)
	assert.Equal(t, fetchesBeforeRetry, env.client.getCalls, "retry must use the cached payload, not refetch")
}

func TestCheckOnce_SucceededWithoutPayloadFailsPersistence(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, newFakeExtraction("https://svc/op/1",
		getResult{snap: &extraction.OperationSnapshot{Status: extraction.OpSucceeded}}))
	res := submit(t, env, "")
	id := domain.OperationID(res.OperationID)

	_, err := env.svc.CheckOnce(context.Background(), "t1", id)
	require.ErrorIs(t, err, domain.ErrPersistenceFailed)

	job, err := env.jobs.Get(context.Background(), "t1", id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, job.Status)
	assert.Equal(t, domain.ErrCodePersistence, job.ErrorCode)
}

func TestReap_Idempotent(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, newFakeExtraction("https://svc/op/1", succeededWith(sampleFields())))
	res := submit(t, env, "")
	id := domain.OperationID(res.OperationID)

	job, err := env.svc.CheckOnce(context.Background(), "t1", id)
	require.NoError(t, err)
	require.Equal(t, domain.StatusSucceeded, job.Status)

	// ephemeral job already reaped on completion; a second reap sees the
	// analyzer gone and still succeeds
	require.NoError(t, env.svc.Reap(context.Background(), job))
	require.NoError(t, env.svc.Reap(context.Background(), job))
}

func TestResult_NotReadyWhileRunning(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, newFakeExtraction("https://svc/op/1", running()))
	res := submit(t, env, "")
	id := domain.OperationID(res.OperationID)

	_, err := env.svc.CheckOnce(context.Background(), "t1", id)
	require.NoError(t, err)

	_, err = env.svc.Result(context.Background(), "t1", id)
	assert.ErrorIs(t, err, domain.ErrResultNotReady)
}

func TestResultKey_DeterministicPerCase(t *testing.T) {
	t.Parallel()

	a := &domain.Job{OperationID: "op-1", CaseID: "c1"}
	b := &domain.Job{OperationID: "op-2", CaseID: "c1"}
	assert.Equal(t, domain.ResultKey(a), domain.ResultKey(b))
	assert.Equal(t, "case-c1/result.json", domain.ResultKey(a))

	eph := &domain.Job{OperationID: "op-3"}
	assert.Equal(t, "op-3.json", domain.ResultKey(eph))
}
