// Package daemon coordinates the long-running captions process.
//
// It wires configuration, the job registry, the pipeline dispatcher, and the
// HTTP API into a single lifecycle with flock-based locking to prevent
// multiple instances. The daemon also checks the external tool dependencies
// at startup and reports them through the health endpoint.
//
// Keep orchestration logic here: pipeline semantics live in their own
// packages while the daemon focuses on startup, shutdown, and the request
// boundary.
package daemon
