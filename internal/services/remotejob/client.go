// Package remotejob implements the asynchronous submit/poll contract shared
// by every collaborator microservice: POST /jobs returns a job id, GET
// /jobs/{id} reports pending, running, done, or error.
package remotejob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"clipper/internal/services"
)

const defaultHTTPTimeout = 30 * time.Second

// HTTPDoer is the seam tests use to stub transport behavior.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client drives one collaborator's job API.
type Client struct {
	baseURL      string
	stage        string
	httpClient   HTTPDoer
	pollInterval time.Duration
	pollTimeout  time.Duration
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client HTTPDoer) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// PollingSeconds builds the polling option from configured second counts.
// Zero values keep the defaults.
func PollingSeconds(interval, timeout int) Option {
	return WithPolling(time.Duration(interval)*time.Second, time.Duration(timeout)*time.Second)
}

// WithPolling overrides the status poll cadence and overall deadline.
func WithPolling(interval, timeout time.Duration) Option {
	return func(c *Client) {
		if interval > 0 {
			c.pollInterval = interval
		}
		if timeout > 0 {
			c.pollTimeout = timeout
		}
	}
}

// NewClient constructs a client for one collaborator base URL. The stage
// name is stamped into wrapped errors for classification.
func NewClient(baseURL, stage string, opts ...Option) *Client {
	client := &Client{
		baseURL:      strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		stage:        stage,
		httpClient:   &http.Client{Timeout: defaultHTTPTimeout},
		pollInterval: 2 * time.Second,
		pollTimeout:  15 * time.Minute,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// BaseURL returns the configured collaborator endpoint.
func (c *Client) BaseURL() string { return c.baseURL }

type submitResponse struct {
	ID string `json:"id"`
}

type statusResponse struct {
	Status string          `json:"status"`
	Error  string          `json:"error,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
}

// Submit posts a job payload and returns the remote job id.
func (c *Client) Submit(ctx context.Context, operation string, payload any) (string, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, c.stage, operation, "encode request", err)
	}
	body, err := c.roundTrip(ctx, http.MethodPost, "/jobs", bytes.NewReader(encoded), operation)
	if err != nil {
		return "", err
	}
	var submitted submitResponse
	if err := json.Unmarshal(body, &submitted); err != nil {
		return "", services.Wrap(services.ErrMicroservice, c.stage, operation, "decode submit response", err)
	}
	if submitted.ID == "" {
		return "", services.Wrap(services.ErrMicroservice, c.stage, operation, "submit response missing job id", nil)
	}
	return submitted.ID, nil
}

// Await polls the job status until it reaches done or error. A done status
// returns the raw result payload for the typed client to decode.
func (c *Client) Await(ctx context.Context, operation, jobID string) (json.RawMessage, error) {
	deadline := time.Now().Add(c.pollTimeout)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		body, err := c.roundTrip(ctx, http.MethodGet, "/jobs/"+url.PathEscape(jobID), nil, operation)
		if err != nil {
			return nil, err
		}
		var status statusResponse
		if err := json.Unmarshal(body, &status); err != nil {
			return nil, services.Wrap(services.ErrMicroservice, c.stage, operation, "decode status response", err)
		}
		switch status.Status {
		case "done":
			return status.Result, nil
		case "error":
			message := status.Error
			if message == "" {
				message = "remote job failed"
			}
			return nil, services.Wrap(services.ErrProcessing, c.stage, operation, message, nil)
		case "pending", "running":
		default:
			return nil, services.Wrap(services.ErrMicroservice, c.stage, operation,
				fmt.Sprintf("unexpected job status %q", status.Status), nil)
		}
		if time.Now().After(deadline) {
			return nil, services.Wrap(services.ErrMicroservice, c.stage, operation, "remote job timed out", nil)
		}
		select {
		case <-ctx.Done():
			return nil, services.Wrap(services.ErrMicroservice, c.stage, operation, "wait cancelled", ctx.Err())
		case <-ticker.C:
		}
	}
}

// Run submits a payload and waits for the result in one call.
func (c *Client) Run(ctx context.Context, operation string, payload any) (json.RawMessage, error) {
	id, err := c.Submit(ctx, operation, payload)
	if err != nil {
		return nil, err
	}
	return c.Await(ctx, operation, id)
}

// Healthy probes the collaborator's health endpoint.
func (c *Client) Healthy(ctx context.Context) error {
	_, err := c.roundTrip(ctx, http.MethodGet, "/health", nil, "health")
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body io.Reader, operation string) ([]byte, error) {
	if c.baseURL == "" {
		return nil, services.Wrap(services.ErrValidation, c.stage, operation, "service url not configured", nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, c.stage, operation, "build request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrMicroservice, c.stage, operation, "request failed", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrMicroservice, c.stage, operation, "read response", err)
	}
	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, services.Wrap(services.ErrMicroservice, c.stage, operation,
			fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(payload))), nil)
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, services.Wrap(services.ErrValidation, c.stage, operation,
			fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(payload))), nil)
	}
	return payload, nil
}
