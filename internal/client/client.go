// Package client provides the HTTP client the CLI uses to talk to a
// running captions daemon.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nickh0112/insta-captions/internal/api"
)

const defaultHTTPTimeout = 30 * time.Second

// ErrDaemonUnavailable flags connection failures so callers can suggest
// starting the daemon instead of printing a raw dial error.
var ErrDaemonUnavailable = errors.New("daemon unavailable")

// Client talks to the captions daemon HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New constructs a client for the daemon listening at bind, which may be
// a bare host:port or a full http URL.
func New(bind string, opts ...Option) *Client {
	base := strings.TrimSpace(bind)
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	client := &Client{
		baseURL:    strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Submit posts a batch of URLs and returns the created job id.
func (c *Client) Submit(ctx context.Context, urls []string) (api.SubmitResponse, error) {
	var out api.SubmitResponse
	err := c.doJSON(ctx, http.MethodPost, "/submit", api.SubmitRequest{URLs: urls}, &out)
	return out, err
}

// Status fetches the current state of one job.
func (c *Client) Status(ctx context.Context, jobID string) (api.JobStatus, error) {
	var out api.JobStatus
	err := c.doJSON(ctx, http.MethodGet, "/status/"+url.PathEscape(jobID), nil, &out)
	return out, err
}

// Jobs lists every job the daemon knows about.
func (c *Client) Jobs(ctx context.Context) ([]api.JobStatus, error) {
	var out api.JobListResponse
	if err := c.doJSON(ctx, http.MethodGet, "/jobs", nil, &out); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

// Delete removes a job, cancelling it first if it is still running.
func (c *Client) Delete(ctx context.Context, jobID string) (api.MessageResponse, error) {
	var out api.MessageResponse
	err := c.doJSON(ctx, http.MethodDelete, "/jobs/"+url.PathEscape(jobID), nil, &out)
	return out, err
}

// Health reports daemon liveness and external tool availability.
func (c *Client) Health(ctx context.Context) (api.HealthResponse, error) {
	var out api.HealthResponse
	err := c.doJSON(ctx, http.MethodGet, "/healthz", nil, &out)
	return out, err
}

// Result downloads the transcript archive for a completed job into dir and
// returns the written path.
func (c *Client) Result(ctx context.Context, jobID, dir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/result/"+url.PathEscape(jobID), nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDaemonUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", decodeError(resp)
	}

	dest := filepath.Join(dir, "transcripts_"+jobID+".zip")
	file, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create archive: %w", err)
	}
	defer file.Close()
	if _, err := io.Copy(file, resp.Body); err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("download archive: %w", err)
	}
	return dest, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDaemonUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil {
		var apiErr api.ErrorResponse
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("http %d: %s", resp.StatusCode, apiErr.Error)
		}
	}
	return fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
}
