package summaries

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/adityawrm/docintel/internal/domain/analyses"
	"github.com/adityawrm/docintel/internal/infra/db/memory"
)

type capturingClient struct {
	payload []byte
}

func (c *capturingClient) Summarize(ctx context.Context, payload []byte) (string, error) {
	c.payload = payload
	return `{"summary": "ok"}`, nil
}

func TestSummarize_PassesStoredPayloadThrough(t *testing.T) {
	t.Parallel()

	jobs := memory.NewJobRepository()
	store := memory.NewResultStore()
	client := &capturingClient{}
	svc := NewService(jobs, store, client)

	require.NoError(t, store.Put(context.Background(), "case-c1/result.json", []byte(`{"fields":{}}`), "application/json"))
	require.NoError(t, jobs.Save(context.Background(), &domain.Job{
		OperationID:   "op-1",
		TenantID:      "t1",
		Status:        domain.StatusSucceeded,
		ResultPointer: "case-c1/result.json",
		CreatedAt:     time.Now(),
	}))

	out, err := svc.Summarize(context.Background(), "t1", "op-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"summary": "ok"}`, out)
	assert.JSONEq(t, `{"fields":{}}`, string(client.payload))
}

func TestSummarize_RequiresSucceededJob(t *testing.T) {
	t.Parallel()

	jobs := memory.NewJobRepository()
	svc := NewService(jobs, memory.NewResultStore(), &capturingClient{})

	require.NoError(t, jobs.Save(context.Background(), &domain.Job{
		OperationID: "op-1",
		TenantID:    "t1",
		Status:      domain.StatusRunning,
		CreatedAt:   time.Now(),
	}))

	_, err := svc.Summarize(context.Background(), "t1", "op-1")
	assert.ErrorIs(t, err, domain.ErrResultNotReady)

	_, err = svc.Summarize(context.Background(), "t1", "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
