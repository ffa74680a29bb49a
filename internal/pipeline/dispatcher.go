package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/nickh0112/insta-captions/internal/logging"
	"github.com/nickh0112/insta-captions/internal/services"
)

// Dispatcher schedules job executions on a bounded worker pool. Dispatch
// never blocks the caller; concurrency is capped by the pool size and each
// job keeps a cancel function so delete-while-running can interrupt it.
type Dispatcher struct {
	executor *Executor
	logger   *slog.Logger

	slots chan struct{}

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewDispatcher creates a dispatcher running at most workers jobs at once.
func NewDispatcher(executor *Executor, workers int, logger *slog.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Dispatcher{
		executor: executor,
		logger:   logger.With(logging.String(logging.FieldComponent, "dispatcher")),
		slots:    make(chan struct{}, workers),
		cancels:  make(map[string]context.CancelFunc),
	}
}

// Start makes the dispatcher accept work until ctx is done or Stop is
// called.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return errors.New("dispatcher already running")
	}
	d.ctx, d.cancel = context.WithCancel(ctx)
	d.running = true
	return nil
}

// Stop cancels all in-flight jobs and waits for the workers to drain.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	cancel := d.cancel
	d.running = false
	d.cancel = nil
	d.mu.Unlock()

	cancel()
	d.wg.Wait()
}

// Dispatch queues the job for background execution.
func (d *Dispatcher) Dispatch(jobID string) error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return errors.New("dispatcher not running")
	}
	jobCtx, jobCancel := context.WithCancel(d.ctx)
	d.cancels[jobID] = jobCancel
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		defer d.release(jobID)

		select {
		case d.slots <- struct{}{}:
			defer func() { <-d.slots }()
		case <-jobCtx.Done():
			// Cancelled or shut down before a worker slot opened; resolve
			// the record so it is not left pending forever.
			d.executor.fail(d.logger, jobID, nil, jobCtx.Err())
			return
		}

		runCtx := services.WithRequestID(jobCtx, uuid.NewString())
		d.executor.Execute(runCtx, jobID)
	}()
	return nil
}

// Cancel signals the job's pipeline to stop at its next check. It reports
// whether the job had an in-flight execution.
func (d *Dispatcher) Cancel(jobID string) bool {
	d.mu.Lock()
	cancel, ok := d.cancels[jobID]
	d.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Active returns the number of jobs currently holding or waiting for a
// worker slot.
func (d *Dispatcher) Active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.cancels)
}

func (d *Dispatcher) release(jobID string) {
	d.mu.Lock()
	if cancel, ok := d.cancels[jobID]; ok {
		delete(d.cancels, jobID)
		d.mu.Unlock()
		cancel()
		return
	}
	d.mu.Unlock()
}
