// Package jobs is the single source of truth for job lifecycle semantics.
//
// A Job tracks one submitted batch of URLs through the extraction pipeline.
// The Registry is the authoritative in-memory table of job records; every
// mutation goes through it so concurrent status reads never observe a
// partially updated record. State transitions follow pending -> running ->
// completed|failed, progress is monotonically non-decreasing outside of
// failure, and terminal records are frozen.
package jobs
