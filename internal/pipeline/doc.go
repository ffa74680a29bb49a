// Package pipeline drives one job's two extraction stages against its
// workspace.
//
// The Executor owns the checkpoint sequence and terminal resolution for a
// single job; the Dispatcher schedules executors on a bounded worker pool
// and retains a per-job cancel function so a delete can interrupt a running
// job between stages. Stage implementations report a produced-file count and
// distinguish per-URL soft failures (logged, non-fatal) from hard errors
// that abort the job.
package pipeline
