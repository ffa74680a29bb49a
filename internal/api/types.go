// Package api defines the JSON payloads exchanged over the HTTP surface.
package api

import (
	"time"

	"github.com/nickh0112/insta-captions/internal/jobs"
)

// SubmitRequest carries a batch of media URLs for processing.
type SubmitRequest struct {
	URLs []string `json:"urls"`
}

// SubmitResponse acknowledges a created job.
type SubmitResponse struct {
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

// JobStatus is the transport form of one job record.
type JobStatus struct {
	JobID       string   `json:"job_id"`
	State       string   `json:"state"`
	Progress    float64  `json:"progress"`
	Message     string   `json:"message"`
	URLs        []string `json:"urls,omitempty"`
	CreatedAt   string   `json:"created_at"`
	CompletedAt string   `json:"completed_at,omitempty"`
}

// JobListResponse wraps every registered job.
type JobListResponse struct {
	Jobs []JobStatus `json:"jobs"`
}

// MessageResponse carries a human-readable acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse carries a client-visible failure detail.
type ErrorResponse struct {
	Error string `json:"error"`
}

// DependencyStatus captures availability of an external tool.
type DependencyStatus struct {
	Name      string `json:"name"`
	Command   string `json:"command"`
	Optional  bool   `json:"optional"`
	Available bool   `json:"available"`
	Detail    string `json:"detail,omitempty"`
}

// HealthResponse aggregates daemon runtime information.
type HealthResponse struct {
	Running      bool               `json:"running"`
	ActiveJobs   int                `json:"active_jobs"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// FromJob converts a registry snapshot into its transport form. The URL list
// is included only when withURLs is set; status polling omits it.
func FromJob(job jobs.Job, withURLs bool) JobStatus {
	out := JobStatus{
		JobID:     job.ID,
		State:     string(job.State),
		Progress:  job.Progress,
		Message:   job.Message,
		CreatedAt: job.CreatedAt.UTC().Format(time.RFC3339),
	}
	if job.CompletedAt != nil {
		out.CompletedAt = job.CompletedAt.UTC().Format(time.RFC3339)
	}
	if withURLs {
		out.URLs = append([]string(nil), job.URLs...)
	}
	return out
}
