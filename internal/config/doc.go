// Package config loads and validates the TOML configuration shared by the
// captions daemon and CLI.
//
// Configuration sections by subsystem:
//   - Paths: workspace root, log directory, API bind address
//   - Scrape: yt-dlp caption extraction and dedup ledger settings
//   - Transcribe: whisper fallback transcription settings
//   - Workflow: pipeline worker pool sizing
//   - Logging: log format and level
//
// Load applies defaults, expands ~ in every path field, and validates the
// result so downstream packages never re-check configuration values.
package config
