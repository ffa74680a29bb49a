// Package whisper wraps the whisper CLI for fallback transcription and
// renders the on-disk transcript format the analysis tooling consumes.
package whisper
