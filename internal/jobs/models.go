package jobs

import (
	"time"

	"github.com/nickh0112/insta-captions/internal/workspace"
)

// State represents the lifecycle of a job.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

var allStates = []State{StatePending, StateRunning, StateCompleted, StateFailed}

// AllStates returns the ordered list of known states.
func AllStates() []State {
	out := make([]State, len(allStates))
	copy(out, allStates)
	return out
}

// Terminal reports whether no further transitions may leave the state.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// validTransition enforces the allowed state machine edges.
func validTransition(from, to State) bool {
	switch from {
	case StatePending:
		return to == StateRunning || to == StateFailed
	case StateRunning:
		return to == StateRunning || to == StateCompleted || to == StateFailed
	default:
		return false
	}
}

// Job is the unit of work for one submitted batch of URLs.
type Job struct {
	ID          string
	State       State
	Progress    float64
	Message     string
	URLs        []string
	CreatedAt   time.Time
	CompletedAt *time.Time

	// Workspace is owned exclusively by this job. It is nil until the
	// executor creates it and is invalidated when the job is deleted.
	Workspace *workspace.Workspace
}

// Clone returns a copy that shares no mutable state with the original.
func (j Job) Clone() Job {
	out := j
	out.URLs = append([]string(nil), j.URLs...)
	if j.CompletedAt != nil {
		completed := *j.CompletedAt
		out.CompletedAt = &completed
	}
	return out
}
