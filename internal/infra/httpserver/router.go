package httpserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	appanalyses "github.com/adityawrm/docintel/internal/application/analyses"
	appregistry "github.com/adityawrm/docintel/internal/application/registry"
	appsummaries "github.com/adityawrm/docintel/internal/application/summaries"
	domain "github.com/adityawrm/docintel/internal/domain/analyses"
	"github.com/adityawrm/docintel/internal/domain/analyzers"
	"github.com/adityawrm/docintel/internal/domain/cases"
	"github.com/adityawrm/docintel/internal/domain/extraction"
	domsum "github.com/adityawrm/docintel/internal/domain/summaries"
	"github.com/adityawrm/docintel/internal/middleware"
)

type Router struct {
	analysesSvc  *appanalyses.Service
	registrySvc  *appregistry.Service
	summariesSvc *appsummaries.Service
}

func NewRouter(analysesSvc *appanalyses.Service, registrySvc *appregistry.Service, summariesSvc *appsummaries.Service) http.Handler {
	r := &Router{analysesSvc: analysesSvc, registrySvc: registrySvc, summariesSvc: summariesSvc}
	mux := chi.NewRouter()

	mux.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route("/v1/{tenant}", func(rt chi.Router) {
		rt.Post("/analyses", r.wrap(r.handleSubmit))
		rt.Get("/analyses", r.wrap(r.handleList))
		rt.Get("/analyses/latest", r.wrap(r.handleLatest))
		rt.Get("/analyses/{id}", r.wrap(r.handleCheck))
		rt.Get("/analyses/{id}/result", r.wrap(r.handleResult))
		rt.Get("/analyses/{id}/errors", r.wrap(r.handlePollErrors))
		rt.Post("/analyses/{id}/summary", r.wrap(r.handleSummarize))
		rt.Post("/cases", r.wrap(r.handleRegisterCase))
		rt.Get("/cases/{id}", r.wrap(r.handleGetCase))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			switch {
			case errors.Is(err, sql.ErrNoRows),
				errors.Is(err, domain.ErrNotFound),
				errors.Is(err, cases.ErrNotFound),
				errors.Is(err, analyzers.ErrNotFound):
				http.Error(w, "not found", http.StatusNotFound)
			case errors.Is(err, domain.ErrResultNotReady):
				http.Error(w, "result not ready", http.StatusConflict)
			case errors.Is(err, extraction.ErrAuth):
				http.Error(w, "extraction credentials rejected", http.StatusBadGateway)
			case errors.Is(err, analyzers.ErrCreationFailed):
				http.Error(w, err.Error(), http.StatusBadGateway)
			case errors.Is(err, domsum.ErrQuotaExceeded):
				http.Error(w, "ai quota exceeded", http.StatusTooManyRequests)
			case errors.Is(err, errBadRequest):
				http.Error(w, err.Error(), http.StatusBadRequest)
			default:
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
		}
	}
}

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// POST /v1/{tenant}/analyses
// Body: {"case_id": "...", "schema": {...}, "input": {"document_url": "..."}}
func (r *Router) handleSubmit(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")

	var body struct {
		CaseID string `json:"case_id"`
		Schema struct {
			Name   string                          `json:"name"`
			Fields map[string]extraction.FieldSpec `json:"fields"`
		} `json:"schema"`
		Input struct {
			DocumentURL string `json:"document_url"`
			ContentType string `json:"content_type"`
		} `json:"input"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return badRequest("invalid json body: %v", err)
	}
	if err := middleware.ValidateCaseID(body.CaseID); err != nil {
		return badRequest("%v", err)
	}
	if err := middleware.ValidateURL(body.Input.DocumentURL); err != nil {
		return badRequest("%v", err)
	}

	cmd := appanalyses.SubmitCommand{
		TenantID: tenant,
		CaseID:   body.CaseID,
		Schema: extraction.Schema{
			Name:   middleware.SanitizeString(body.Schema.Name),
			Fields: body.Schema.Fields,
		},
		Input: extraction.Input{
			DocumentURL: body.Input.DocumentURL,
			ContentType: body.Input.ContentType,
		},
	}

	res, err := r.analysesSvc.Submit(req.Context(), cmd)
	if err != nil {
		return err
	}
	middleware.IncrementAnalyses()

	// 🚀 Jalankan polling di background, biar jalan sampai selesai.
	// The request context dies with this response, so the driver gets its
	// own context and only the attempt budget bounds it.
	handle := r.analysesSvc.Drive(context.Background(), tenant, domain.OperationID(res.OperationID))
	go func() {
		middleware.IncrementAnalysesPolling()
		defer middleware.DecrementAnalysesPolling()
		dr := <-handle.Done()
		if dr.Err != nil {
			middleware.IncrementAnalysesFailed()
			log.Printf("background poll error for tenant=%s operation=%s: %v", tenant, res.OperationID, dr.Err)
			return
		}
		if dr.Job != nil && dr.Job.Status != domain.StatusSucceeded {
			middleware.IncrementAnalysesFailed()
		}
		if dr.Job != nil {
			log.Printf("analysis finished: tenant=%s operation=%s status=%s", tenant, res.OperationID, dr.Job.Status)
		}
	}()

	// 🔙 langsung balikin respons ke client
	resp := map[string]any{
		"operation_id":       res.OperationID,
		"operation_location": res.OperationLocation,
		"analyzer_id":        res.AnalyzerID,
		"analyzer_reused":    res.AnalyzerReused,
		"status":             res.Status,
		"message":            "analysis started in background",
		"queuedAt":           time.Now(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	return json.NewEncoder(w).Encode(resp)
}

// GET /v1/{tenant}/analyses/{id}
// Performs a single status check against the external service and returns
// the refreshed job. No retry loop happens on this path.
func (r *Router) handleCheck(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateOperationID(id); err != nil {
		return badRequest("%v", err)
	}

	job, err := r.analysesSvc.CheckOnce(req.Context(), tenant, domain.OperationID(id))
	if err != nil && job == nil {
		return err
	}
	if err != nil {
		log.Printf("check once for operation=%s returned error: %v", id, err)
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(job)
}

// GET /v1/{tenant}/analyses/{id}/result
func (r *Router) handleResult(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateOperationID(id); err != nil {
		return badRequest("%v", err)
	}

	payload, err := r.analysesSvc.Result(req.Context(), tenant, domain.OperationID(id))
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(payload)
	return err
}

// GET /v1/{tenant}/analyses/{id}/errors?limit=20
func (r *Router) handlePollErrors(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	id := chi.URLParam(req, "id")
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	list, err := r.analysesSvc.ListPollErrors(req.Context(), tenant, domain.OperationID(id), middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(list)
}

// POST /v1/{tenant}/analyses/{id}/summary
func (r *Router) handleSummarize(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateOperationID(id); err != nil {
		return badRequest("%v", err)
	}

	summary, err := r.summariesSvc.Summarize(req.Context(), tenant, domain.OperationID(id))
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(map[string]any{
		"operation_id": id,
		"summary":      json.RawMessage(summary),
	})
}

// GET /v1/{tenant}/analyses/latest?limit=20
func (r *Router) handleLatest(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	list, err := r.analysesSvc.Latest(req.Context(), tenant, middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(list)
}

// GET /v1/{tenant}/analyses?page=&page_size=
func (r *Router) handleList(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	page, _ := strconv.Atoi(req.URL.Query().Get("page"))
	size, _ := strconv.Atoi(req.URL.Query().Get("page_size"))

	list, err := r.analysesSvc.Paginate(req.Context(), tenant, page, size)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(list)
}

// POST /v1/{tenant}/cases
// Body: {"case_id": "..."}
func (r *Router) handleRegisterCase(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")

	var body struct {
		CaseID string `json:"case_id"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return badRequest("invalid json body: %v", err)
	}
	if body.CaseID == "" {
		return badRequest("case_id is required")
	}
	if err := middleware.ValidateCaseID(body.CaseID); err != nil {
		return badRequest("%v", err)
	}

	c, err := r.registrySvc.RegisterCase(req.Context(), tenant, cases.CaseID(body.CaseID))
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	return json.NewEncoder(w).Encode(c)
}

// GET /v1/{tenant}/cases/{id}
func (r *Router) handleGetCase(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	id := chi.URLParam(req, "id")

	c, err := r.registrySvc.GetCase(req.Context(), tenant, cases.CaseID(id))
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(c)
}
