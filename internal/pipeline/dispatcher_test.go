package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/nickh0112/insta-captions/internal/jobs"
	"github.com/nickh0112/insta-captions/internal/pipeline"
	"github.com/nickh0112/insta-captions/internal/workspace"
)

func waitForState(t *testing.T, registry *jobs.Registry, jobID string, want jobs.State) jobs.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := registry.Get(jobID)
		if err == nil && job.State == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	job, err := registry.Get(jobID)
	t.Fatalf("job %s never reached %s (last: %+v, err: %v)", jobID, want, job, err)
	return jobs.Job{}
}

func TestDispatcherRunsJobToCompletion(t *testing.T) {
	registry := jobs.NewRegistry()
	manager := workspace.NewManager(t.TempDir())
	executor := pipeline.NewExecutor(registry, manager,
		writeOutputs("scrape", "a.txt"), noopStage("asr-fallback"), nil)
	dispatcher := pipeline.NewDispatcher(executor, 2, nil)

	if err := dispatcher.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer dispatcher.Stop()

	job, err := registry.Create([]string{"https://instagram.com/reel/a"})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	if err := dispatcher.Dispatch(job.ID); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	done := waitForState(t, registry, job.ID, jobs.StateCompleted)
	if done.Message != "Successfully processed 1 transcripts" {
		t.Fatalf("unexpected message: %q", done.Message)
	}
}

func TestDispatchRequiresStart(t *testing.T) {
	registry := jobs.NewRegistry()
	manager := workspace.NewManager(t.TempDir())
	executor := pipeline.NewExecutor(registry, manager, noopStage("scrape"), noopStage("asr-fallback"), nil)
	dispatcher := pipeline.NewDispatcher(executor, 1, nil)

	if err := dispatcher.Dispatch("job-1"); err == nil {
		t.Fatal("expected error when dispatcher is not running")
	}
}

func TestDispatcherBoundsConcurrency(t *testing.T) {
	registry := jobs.NewRegistry()
	manager := workspace.NewManager(t.TempDir())

	running := make(chan string, 2)
	release := make(chan struct{})
	blocking := &fakeStage{name: "scrape", run: func(ctx context.Context, ws *workspace.Workspace, urls []string) (int, error) {
		running <- "started"
		select {
		case <-release:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
		return 0, nil
	}}

	executor := pipeline.NewExecutor(registry, manager, blocking, writeOutputs("asr-fallback", "a.txt"), nil)
	dispatcher := pipeline.NewDispatcher(executor, 1, nil)
	if err := dispatcher.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer dispatcher.Stop()

	first, _ := registry.Create([]string{"https://instagram.com/reel/a"})
	second, _ := registry.Create([]string{"https://instagram.com/reel/b"})
	if err := dispatcher.Dispatch(first.ID); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if err := dispatcher.Dispatch(second.ID); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	<-running
	select {
	case <-running:
		t.Fatal("second job ran before the single worker slot freed")
	case <-time.After(100 * time.Millisecond):
	}
	if active := dispatcher.Active(); active != 2 {
		t.Fatalf("expected 2 active jobs, got %d", active)
	}

	close(release)
	waitForState(t, registry, first.ID, jobs.StateCompleted)
	waitForState(t, registry, second.ID, jobs.StateCompleted)
}

func TestCancelQueuedJob(t *testing.T) {
	registry := jobs.NewRegistry()
	manager := workspace.NewManager(t.TempDir())

	started := make(chan struct{})
	release := make(chan struct{})
	blocking := &fakeStage{name: "scrape", run: func(ctx context.Context, ws *workspace.Workspace, urls []string) (int, error) {
		close(started)
		select {
		case <-release:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
		return 0, nil
	}}

	executor := pipeline.NewExecutor(registry, manager, blocking, writeOutputs("asr-fallback", "a.txt"), nil)
	dispatcher := pipeline.NewDispatcher(executor, 1, nil)
	if err := dispatcher.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer dispatcher.Stop()

	first, _ := registry.Create([]string{"https://instagram.com/reel/a"})
	second, _ := registry.Create([]string{"https://instagram.com/reel/b"})
	if err := dispatcher.Dispatch(first.ID); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	<-started
	if err := dispatcher.Dispatch(second.ID); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	if !dispatcher.Cancel(second.ID) {
		t.Fatal("expected Cancel to find the queued job")
	}
	cancelled := waitForState(t, registry, second.ID, jobs.StateFailed)
	if cancelled.Message != "Job cancelled" {
		t.Fatalf("unexpected message: %q", cancelled.Message)
	}

	close(release)
	waitForState(t, registry, first.ID, jobs.StateCompleted)
}

func TestCancelUnknownJob(t *testing.T) {
	registry := jobs.NewRegistry()
	manager := workspace.NewManager(t.TempDir())
	executor := pipeline.NewExecutor(registry, manager, noopStage("scrape"), noopStage("asr-fallback"), nil)
	dispatcher := pipeline.NewDispatcher(executor, 1, nil)
	if err := dispatcher.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer dispatcher.Stop()

	if dispatcher.Cancel("missing") {
		t.Fatal("expected Cancel to report no in-flight execution")
	}
}

func TestStopInterruptsRunningJobs(t *testing.T) {
	registry := jobs.NewRegistry()
	manager := workspace.NewManager(t.TempDir())

	started := make(chan struct{})
	blocking := &fakeStage{name: "scrape", run: func(ctx context.Context, ws *workspace.Workspace, urls []string) (int, error) {
		close(started)
		<-ctx.Done()
		return 0, ctx.Err()
	}}

	executor := pipeline.NewExecutor(registry, manager, blocking, noopStage("asr-fallback"), nil)
	dispatcher := pipeline.NewDispatcher(executor, 1, nil)
	if err := dispatcher.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	job, _ := registry.Create([]string{"https://instagram.com/reel/a"})
	if err := dispatcher.Dispatch(job.ID); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	<-started

	dispatcher.Stop()

	stopped, err := registry.Get(job.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stopped.State != jobs.StateFailed || stopped.Message != "Job cancelled" {
		t.Fatalf("expected cancelled job after Stop, got %s (%q)", stopped.State, stopped.Message)
	}
	if dispatcher.Active() != 0 {
		t.Fatalf("expected no active jobs after Stop, got %d", dispatcher.Active())
	}
}
