package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nickh0112/insta-captions/internal/api"
	"github.com/nickh0112/insta-captions/internal/jobs"
	"github.com/nickh0112/insta-captions/internal/pipeline"
	"github.com/nickh0112/insta-captions/internal/testsupport"
	"github.com/nickh0112/insta-captions/internal/workspace"
)

type stubStage struct {
	name  string
	files []string
	block chan struct{}
}

func (s *stubStage) Name() string { return s.name }

func (s *stubStage) Run(ctx context.Context, ws *workspace.Workspace, urls []string) (int, error) {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	for _, file := range s.files {
		if err := os.WriteFile(filepath.Join(ws.OutputDir(), file), []byte("transcript"), 0o644); err != nil {
			return 0, err
		}
	}
	return len(s.files), nil
}

func newTestDaemon(t *testing.T, scrape, fallback pipeline.StageRunner) (*Daemon, string) {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	registry := jobs.NewRegistry()
	manager := workspace.NewManager(cfg.Paths.WorkspaceRoot)
	executor := pipeline.NewExecutor(registry, manager, scrape, fallback, nil)
	dispatcher := pipeline.NewDispatcher(executor, cfg.Workflow.WorkerCount, nil)

	d, err := New(cfg, registry, dispatcher, manager, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(d.Stop)

	return d, "http://" + d.server.Addr()
}

func producingDaemon(t *testing.T) (*Daemon, string) {
	t.Helper()
	return newTestDaemon(t,
		&stubStage{name: "scrape", files: []string{"a.txt"}},
		&stubStage{name: "asr-fallback"},
	)
}

func submitJob(t *testing.T, baseURL string, urls []string) api.SubmitResponse {
	t.Helper()
	body, err := json.Marshal(api.SubmitRequest{URLs: urls})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(baseURL+"/submit", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /submit: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		payload, _ := io.ReadAll(resp.Body)
		t.Fatalf("unexpected status %d: %s", resp.StatusCode, payload)
	}
	var out api.SubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func waitForJobState(t *testing.T, d *Daemon, jobID string, want jobs.State) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := d.registry.Get(jobID)
		if err == nil && job.State == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	job, err := d.registry.Get(jobID)
	t.Fatalf("job never reached %s (last: %+v, err: %v)", want, job, err)
}

func TestSubmitTokenizesURLs(t *testing.T) {
	d, baseURL := producingDaemon(t)

	resp := submitJob(t, baseURL, []string{"https://a https://b\nhttps://c"})
	if resp.JobID == "" {
		t.Fatal("expected a job id")
	}
	if resp.Message != "Job submitted successfully" {
		t.Fatalf("unexpected message: %q", resp.Message)
	}

	job, err := d.registry.Get(resp.JobID)
	if err != nil {
		t.Fatalf("job missing from registry: %v", err)
	}
	if len(job.URLs) != 3 {
		t.Fatalf("expected 3 tokenized urls, got %#v", job.URLs)
	}
}

func TestSubmitRejectsEmptyBatch(t *testing.T) {
	_, baseURL := producingDaemon(t)

	for _, payload := range []string{`{"urls": []}`, `{"urls": ["   "]}`, `{}`} {
		resp, err := http.Post(baseURL+"/submit", "application/json", strings.NewReader(payload))
		if err != nil {
			t.Fatalf("POST /submit: %v", err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("payload %s: expected 400, got %d", payload, resp.StatusCode)
		}
		var apiErr api.ErrorResponse
		if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Error != "No URLs provided" {
			t.Fatalf("payload %s: unexpected error body %s", payload, body)
		}
	}
}

func TestSubmitRejectsMalformedBody(t *testing.T) {
	_, baseURL := producingDaemon(t)

	resp, err := http.Post(baseURL+"/submit", "application/json", strings.NewReader("{"))
	if err != nil {
		t.Fatalf("POST /submit: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestStatusEndpoint(t *testing.T) {
	d, baseURL := producingDaemon(t)
	created := submitJob(t, baseURL, []string{"https://instagram.com/reel/a"})
	waitForJobState(t, d, created.JobID, jobs.StateCompleted)

	resp, err := http.Get(baseURL + "/status/" + created.JobID)
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var status api.JobStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.JobID != created.JobID || status.State != "completed" || status.Progress != 1.0 {
		t.Fatalf("unexpected status: %+v", status)
	}
	if len(status.URLs) != 0 {
		t.Fatalf("status should omit urls, got %#v", status.URLs)
	}
	if status.CompletedAt == "" {
		t.Fatal("expected completed_at to be set")
	}
}

func TestStatusUnknownJob(t *testing.T) {
	_, baseURL := producingDaemon(t)

	resp, err := http.Get(baseURL + "/status/no-such-job")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestJobsEndpointIncludesURLs(t *testing.T) {
	d, baseURL := producingDaemon(t)
	created := submitJob(t, baseURL, []string{"https://instagram.com/reel/a"})
	waitForJobState(t, d, created.JobID, jobs.StateCompleted)

	resp, err := http.Get(baseURL + "/jobs")
	if err != nil {
		t.Fatalf("GET /jobs: %v", err)
	}
	defer resp.Body.Close()

	var list api.JobListResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(list.Jobs))
	}
	if len(list.Jobs[0].URLs) != 1 {
		t.Fatalf("expected urls in list payload, got %+v", list.Jobs[0])
	}
}

func TestResultDownload(t *testing.T) {
	d, baseURL := producingDaemon(t)
	created := submitJob(t, baseURL, []string{"https://instagram.com/reel/a"})
	waitForJobState(t, d, created.JobID, jobs.StateCompleted)

	resp, err := http.Get(baseURL + "/result/" + created.JobID)
	if err != nil {
		t.Fatalf("GET /result: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, payload)
	}
	if got := resp.Header.Get("Content-Type"); got != "application/zip" {
		t.Fatalf("unexpected content type %q", got)
	}
	wantName := fmt.Sprintf("transcripts_%s.zip", created.JobID)
	if got := resp.Header.Get("Content-Disposition"); !strings.Contains(got, wantName) {
		t.Fatalf("expected filename %s in disposition %q", wantName, got)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	if len(data) == 0 || string(data[:2]) != "PK" {
		t.Fatal("expected a zip payload")
	}
}

func TestResultBeforeCompletion(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	d, baseURL := newTestDaemon(t,
		&stubStage{name: "scrape", block: block},
		&stubStage{name: "asr-fallback"},
	)
	created := submitJob(t, baseURL, []string{"https://instagram.com/reel/a"})
	waitForJobState(t, d, created.JobID, jobs.StateRunning)

	resp, err := http.Get(baseURL + "/result/" + created.JobID)
	if err != nil {
		t.Fatalf("GET /result: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for running job, got %d", resp.StatusCode)
	}
}

func TestResultUnknownJob(t *testing.T) {
	_, baseURL := producingDaemon(t)

	resp, err := http.Get(baseURL + "/result/no-such-job")
	if err != nil {
		t.Fatalf("GET /result: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestResultAfterWorkspaceDestroyed(t *testing.T) {
	d, baseURL := producingDaemon(t)
	created := submitJob(t, baseURL, []string{"https://instagram.com/reel/a"})
	waitForJobState(t, d, created.JobID, jobs.StateCompleted)

	job, err := d.registry.Get(created.JobID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if err := job.Workspace.Destroy(); err != nil {
		t.Fatalf("destroy workspace: %v", err)
	}

	resp, err := http.Get(baseURL + "/result/" + created.JobID)
	if err != nil {
		t.Fatalf("GET /result: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after workspace teardown, got %d", resp.StatusCode)
	}
}

func TestDeleteJobRemovesWorkspace(t *testing.T) {
	d, baseURL := producingDaemon(t)
	created := submitJob(t, baseURL, []string{"https://instagram.com/reel/a"})
	waitForJobState(t, d, created.JobID, jobs.StateCompleted)

	job, err := d.registry.Get(created.JobID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	root := job.Workspace.Root()

	req, err := http.NewRequest(http.MethodDelete, baseURL+"/jobs/"+created.JobID, nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE /jobs: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var msg api.MessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if msg.Message != "Job deleted successfully" {
		t.Fatalf("unexpected message: %q", msg.Message)
	}

	if _, err := d.registry.Get(created.JobID); err == nil {
		t.Fatal("expected job removed from registry")
	}
	if _, err := os.Stat(root); !os.IsNotExist(err) {
		t.Fatalf("expected workspace removed, stat returned %v", err)
	}
}

func TestDeleteUnknownJob(t *testing.T) {
	_, baseURL := producingDaemon(t)

	req, _ := http.NewRequest(http.MethodDelete, baseURL+"/jobs/no-such-job", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE /jobs: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestDeleteCancelsRunningJob(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	d, baseURL := newTestDaemon(t,
		&stubStage{name: "scrape", block: block},
		&stubStage{name: "asr-fallback"},
	)
	created := submitJob(t, baseURL, []string{"https://instagram.com/reel/a"})
	waitForJobState(t, d, created.JobID, jobs.StateRunning)

	req, _ := http.NewRequest(http.MethodDelete, baseURL+"/jobs/"+created.JobID, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE /jobs: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if _, err := d.registry.Get(created.JobID); err == nil {
		t.Fatal("expected job removed from registry")
	}
}

func TestHealthEndpoint(t *testing.T) {
	_, baseURL := producingDaemon(t)

	resp, err := http.Get(baseURL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var health api.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if !health.Running {
		t.Fatal("expected running daemon")
	}
	if len(health.Dependencies) != 3 {
		t.Fatalf("expected 3 dependency checks, got %d", len(health.Dependencies))
	}
}

func TestMethodNotAllowed(t *testing.T) {
	_, baseURL := producingDaemon(t)

	resp, err := http.Get(baseURL + "/submit")
	if err != nil {
		t.Fatalf("GET /submit: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}

func TestPathIDRejectsNested(t *testing.T) {
	if _, ok := pathID("/status/a/b", "/status/"); ok {
		t.Fatal("expected nested path to be rejected")
	}
	if _, ok := pathID("/status/", "/status/"); ok {
		t.Fatal("expected empty id to be rejected")
	}
	id, ok := pathID("/status/abc", "/status/")
	if !ok || id != "abc" {
		t.Fatalf("unexpected id %q ok=%v", id, ok)
	}
}
