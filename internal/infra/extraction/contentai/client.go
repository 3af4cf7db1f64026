package contentai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/adityawrm/docintel/internal/domain/extraction"
)

// Client is a thin REST adapter over the external content-analysis
// service. Operation locations returned by the service are opaque; they
// are replayed verbatim and never rebuilt from the analyzer id.
type Client struct {
	http       *http.Client
	endpoint   string
	apiVersion string
	creds      extraction.CredentialProvider
}

func NewClient(endpoint, apiVersion string, creds extraction.CredentialProvider) *Client {
	return &Client{
		http:       &http.Client{Timeout: 30 * time.Second},
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiVersion: apiVersion,
		creds:      creds,
	}
}

// WithHTTPClient overrides the underlying http.Client (mainly for tests).
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.http = h
	return c
}

// CreateAnalyzer registers an extraction schema; the service assigns the id.
func (c *Client) CreateAnalyzer(ctx context.Context, schema extraction.Schema) (string, error) {
	body, err := schema.MarshalCanonical()
	if err != nil {
		return "", err
	}
	url := fmt.Sprintf("%s/analyzers?api-version=%s", c.endpoint, c.apiVersion)
	resp, err := c.do(ctx, http.MethodPost, url, body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", c.statusError(resp)
	}
	var out struct {
		AnalyzerID string `json:"analyzerId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode create analyzer response: %w", err)
	}
	if out.AnalyzerID == "" {
		return "", fmt.Errorf("create analyzer response missing analyzerId")
	}
	return out.AnalyzerID, nil
}

// DeleteAnalyzer removes the analyzer; a 404 maps to ErrNotFound so the
// reaper can treat "already deleted" as success.
func (c *Client) DeleteAnalyzer(ctx context.Context, analyzerID string) error {
	url := fmt.Sprintf("%s/analyzers/%s?api-version=%s", c.endpoint, analyzerID, c.apiVersion)
	resp, err := c.do(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return extraction.ErrNotFound
	default:
		return c.statusError(resp)
	}
}

// SubmitAnalysis starts one analysis and returns the Operation-Location
// header exactly as the service sent it.
func (c *Client) SubmitAnalysis(ctx context.Context, analyzerID string, input extraction.Input) (string, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return "", err
	}
	url := fmt.Sprintf("%s/analyzers/%s:analyze?api-version=%s", c.endpoint, analyzerID, c.apiVersion)
	resp, err := c.do(ctx, http.MethodPost, url, body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return "", c.statusError(resp)
	}
	opLoc := resp.Header.Get("Operation-Location")
	if opLoc == "" {
		return "", fmt.Errorf("analyze response missing Operation-Location header")
	}
	return opLoc, nil
}

// GetOperation performs exactly one status check against the stored
// operation location. No retry, no sleep.
func (c *Client) GetOperation(ctx context.Context, operationLocation string) (*extraction.OperationSnapshot, error) {
	resp, err := c.do(ctx, http.MethodGet, operationLocation, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError(resp)
	}

	var out struct {
		Status string `json:"status"`
		Result *struct {
			Fields map[string]extraction.FieldValue `json:"fields"`
		} `json:"result"`
		Error *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode operation response: %w", err)
	}

	snap := &extraction.OperationSnapshot{}
	switch out.Status {
	case "notStarted":
		snap.Status = extraction.OpNotStarted
	case "running":
		snap.Status = extraction.OpRunning
	case "succeeded":
		snap.Status = extraction.OpSucceeded
	case "failed":
		snap.Status = extraction.OpFailed
	default:
		return nil, fmt.Errorf("unknown operation status %q", out.Status)
	}
	if out.Result != nil {
		snap.Fields = out.Result.Fields
		if snap.Fields == nil {
			snap.Fields = map[string]extraction.FieldValue{}
		}
	}
	if out.Error != nil {
		snap.ErrorCode = out.Error.Code
		snap.ErrorMessage = out.Error.Message
	}
	return snap, nil
}

func (c *Client) do(ctx context.Context, method, url string, body []byte) (*http.Response, error) {
	token, err := c.creds.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", extraction.ErrAuth, err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: status %d", extraction.ErrAuth, resp.StatusCode)
	}
	return resp, nil
}

func (c *Client) statusError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return fmt.Errorf("extraction service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
}
