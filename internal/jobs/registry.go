package jobs

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nickh0112/insta-captions/internal/workspace"
)

// ErrNotFound is returned when a job id has no registry entry.
var ErrNotFound = errors.New("job not found")

// ErrTerminal is returned when a mutation targets a terminal job.
var ErrTerminal = errors.New("job already in a terminal state")

// Registry is the authoritative in-memory table of job records. All methods
// are safe for concurrent use; reads return snapshots.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	now  func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		jobs: make(map[string]*Job),
		now:  time.Now,
	}
}

// Create registers a new pending job for the given URL batch and returns a
// snapshot of the record. The id is generated here and never reused.
func (r *Registry) Create(urls []string) (Job, error) {
	if len(urls) == 0 {
		return Job{}, errors.New("no URLs provided")
	}

	job := &Job{
		ID:        uuid.NewString(),
		State:     StatePending,
		Progress:  0,
		Message:   "Job created",
		URLs:      append([]string(nil), urls...),
		CreatedAt: r.now().UTC(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = job
	return job.Clone(), nil
}

// Get returns a snapshot of the job with the given id.
func (r *Registry) Get(id string) (Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return job.Clone(), nil
}

// List returns snapshots of every job ordered by creation time.
func (r *Registry) List() []Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, job.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Delete removes the job record and returns the removed snapshot so the
// caller can tear down its workspace.
func (r *Registry) Delete(id string) (Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	delete(r.jobs, id)
	return job.Clone(), nil
}

// SetWorkspace attaches the workspace handle the executor created.
func (r *Registry) SetWorkspace(id string, ws *workspace.Workspace) error {
	return r.update(id, func(job *Job) error {
		job.Workspace = ws
		return nil
	})
}

// SetRunning transitions a pending job to running with the initial progress
// checkpoint.
func (r *Registry) SetRunning(id string, progress float64, message string) error {
	return r.update(id, func(job *Job) error {
		if !validTransition(job.State, StateRunning) {
			return fmt.Errorf("invalid transition: %s -> %s", job.State, StateRunning)
		}
		job.State = StateRunning
		job.Message = message
		return applyProgress(job, progress)
	})
}

// SetProgress records a checkpoint on a running job. Progress never moves
// backwards.
func (r *Registry) SetProgress(id string, progress float64, message string) error {
	return r.update(id, func(job *Job) error {
		job.Message = message
		return applyProgress(job, progress)
	})
}

// SetCompleted freezes the job in the completed state with progress 1.0.
func (r *Registry) SetCompleted(id string, message string) error {
	return r.update(id, func(job *Job) error {
		if !validTransition(job.State, StateCompleted) {
			return fmt.Errorf("invalid transition: %s -> %s", job.State, StateCompleted)
		}
		now := r.now().UTC()
		job.State = StateCompleted
		job.Progress = 1.0
		job.Message = message
		job.CompletedAt = &now
		return nil
	})
}

// SetFailed freezes the job in the failed state and resets progress to zero.
func (r *Registry) SetFailed(id string, message string) error {
	return r.update(id, func(job *Job) error {
		if !validTransition(job.State, StateFailed) {
			return fmt.Errorf("invalid transition: %s -> %s", job.State, StateFailed)
		}
		now := r.now().UTC()
		job.State = StateFailed
		job.Progress = 0
		job.Message = message
		job.CompletedAt = &now
		return nil
	})
}

func (r *Registry) update(id string, mutate func(*Job) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if job.State.Terminal() {
		return ErrTerminal
	}
	return mutate(job)
}

func applyProgress(job *Job, progress float64) error {
	if progress < 0 || progress > 1 {
		return fmt.Errorf("progress %v out of range", progress)
	}
	if progress > job.Progress {
		job.Progress = progress
	}
	return nil
}
