// Package remote is the HTTP client for per-language executor services. A
// profile carrying a backend URL routes its executions to one of these
// services instead of a local sandbox.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sakif/execbox/internal/model"
)

const (
	// executeGrace is added on top of the requested execution timeout so the
	// remote service, which owns the real deadline, reports the timeout
	// itself rather than having the connection cut from under it.
	executeGrace    = 10 * time.Second
	validateTimeout = 10 * time.Second
	healthTimeout   = 5 * time.Second
	maxErrorBody    = 200
)

// StatusError reports a non-2xx reply from an executor service.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("executor service replied HTTP %d: %s", e.Code, e.Body)
}

// Client talks to executor services. The zero http.Client timeout is
// deliberate: every call carries its own context deadline.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client shared across all remote routes.
func NewClient(logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// Execute submits code to the service behind baseURL and returns its result.
// Transport failures and non-2xx replies come back as errors for the caller
// to normalize; *StatusError distinguishes the latter.
func (c *Client) Execute(ctx context.Context, baseURL string, req model.ExecutionRequest) (model.ExecutionResult, error) {
	budget := time.Duration(req.Timeout)*time.Second + executeGrace
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	var result model.ExecutionResult
	if err := c.postJSON(ctx, baseURL+"/execute", req, &result); err != nil {
		return model.ExecutionResult{}, err
	}
	return result, nil
}

// Validate asks the service to syntax-check code. Replies are parsed
// tolerantly: services answer with either isValid or is_valid, and a reply
// missing both counts as valid.
func (c *Client) Validate(ctx context.Context, baseURL string, req model.ValidationRequest) (model.ValidationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, validateTimeout)
	defer cancel()

	var wire struct {
		IsValid      *bool    `json:"isValid"`
		IsValidSnake *bool    `json:"is_valid"`
		Errors       []string `json:"errors"`
		Warnings     []string `json:"warnings"`
	}
	if err := c.postJSON(ctx, baseURL+"/validate", req, &wire); err != nil {
		return model.ValidationResult{}, err
	}

	valid := true
	switch {
	case wire.IsValid != nil:
		valid = *wire.IsValid
	case wire.IsValidSnake != nil:
		valid = *wire.IsValidSnake
	}
	result := model.ValidationResult{IsValid: valid, Errors: wire.Errors, Warnings: wire.Warnings}
	if result.Errors == nil {
		result.Errors = []string{}
	}
	if result.Warnings == nil {
		result.Warnings = []string{}
	}
	return result, nil
}

// Health probes the service. A nil return means it answered 200 within the
// probe budget.
func (c *Client) Health(ctx context.Context, baseURL string) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}

// Info fetches the service's advertised capabilities.
func (c *Client) Info(ctx context.Context, baseURL string) (model.ServiceInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/info", nil)
	if err != nil {
		return model.ServiceInfo{}, fmt.Errorf("build info request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.ServiceInfo{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.ServiceInfo{}, &StatusError{Code: resp.StatusCode, Body: readSnippet(resp.Body)}
	}
	var info model.ServiceInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return model.ServiceInfo{}, fmt.Errorf("decode info reply: %w", err)
	}
	return info, nil
}

func (c *Client) postJSON(ctx context.Context, url string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, Body: readSnippet(resp.Body)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode reply: %w", err)
	}
	return nil
}

// readSnippet returns the leading chunk of an error body, enough to say what
// went wrong without echoing a whole HTML error page into results.
func readSnippet(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return strings.TrimSpace(string(data))
}
