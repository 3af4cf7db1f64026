package contentai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adityawrm/docintel/internal/domain/extraction"
)

func testSchema() extraction.Schema {
	return extraction.Schema{
		Name:   "invoice",
		Fields: map[string]extraction.FieldSpec{"total": {Type: "number"}},
	}
}

func TestCreateAnalyzer(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/analyzers", r.URL.Path)
		assert.Equal(t, "2024-12-01", r.URL.Query().Get("api-version"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var body extraction.Schema
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "invoice", body.Name)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"analyzerId": "an-123"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "2024-12-01", NewStaticCredentials("secret"))
	id, err := c.CreateAnalyzer(context.Background(), testSchema())
	require.NoError(t, err)
	assert.Equal(t, "an-123", id)
}

func TestSubmitAnalysis_ReturnsOperationLocationVerbatim(t *testing.T) {
	t.Parallel()

	opLoc := "https://svc.example.com/operations/abc?api-version=2024-12-01&sig=XYZ%3D%3D"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/analyzers/an-123:analyze", r.URL.Path)
		w.Header().Set("Operation-Location", opLoc)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "2024-12-01", NewStaticCredentials("secret"))
	got, err := c.SubmitAnalysis(context.Background(), "an-123", extraction.Input{DocumentURL: "https://docs/x.pdf"})
	require.NoError(t, err)
	assert.Equal(t, opLoc, got)
}

func TestSubmitAnalysis_MissingLocationIsError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "2024-12-01", NewStaticCredentials("secret"))
	_, err := c.SubmitAnalysis(context.Background(), "an-123", extraction.Input{DocumentURL: "https://docs/x.pdf"})
	assert.Error(t, err)
}

func TestGetOperation_DecodesStatusAndFields(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// the stored location is replayed as-is, query string included
		assert.Equal(t, "/operations/abc", r.URL.Path)
		assert.Equal(t, "sig", r.URL.Query().Get("check"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"status": "succeeded",
			"result": {"fields": {"total": 12.5, "vendor": "ACME"}}
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "2024-12-01", NewStaticCredentials("secret"))
	snap, err := c.GetOperation(context.Background(), srv.URL+"/operations/abc?check=sig")
	require.NoError(t, err)

	assert.Equal(t, extraction.OpSucceeded, snap.Status)
	assert.Equal(t, 12.5, snap.Fields["total"].Num)
	assert.Equal(t, "ACME", snap.Fields["vendor"].Str)
}

func TestGetOperation_FailedCarriesErrorDetails(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "failed", "error": {"code": "InvalidDocument", "message": "unreadable"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "2024-12-01", NewStaticCredentials("secret"))
	snap, err := c.GetOperation(context.Background(), srv.URL+"/operations/abc")
	require.NoError(t, err)

	assert.Equal(t, extraction.OpFailed, snap.Status)
	assert.Equal(t, "InvalidDocument", snap.ErrorCode)
	assert.Equal(t, "unreadable", snap.ErrorMessage)
	assert.Nil(t, snap.Fields)
}

func TestUnauthorizedMapsToErrAuth(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "2024-12-01", NewStaticCredentials("secret"))
	_, err := c.GetOperation(context.Background(), srv.URL+"/operations/abc")
	assert.ErrorIs(t, err, extraction.ErrAuth)
}

func TestEmptyCredentialIsErrAuthWithoutNetworkCall(t *testing.T) {
	t.Parallel()

	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "2024-12-01", NewStaticCredentials(""))
	_, err := c.GetOperation(context.Background(), srv.URL+"/operations/abc")
	assert.ErrorIs(t, err, extraction.ErrAuth)
	assert.False(t, called)
}

func TestDeleteAnalyzer_NotFoundMapsToErrNotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "2024-12-01", NewStaticCredentials("secret"))
	err := c.DeleteAnalyzer(context.Background(), "an-gone")
	assert.ErrorIs(t, err, extraction.ErrNotFound)
}

func TestDeleteAnalyzer_NoContentIsSuccess(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "2024-12-01", NewStaticCredentials("secret"))
	assert.NoError(t, c.DeleteAnalyzer(context.Background(), "an-123"))
}
