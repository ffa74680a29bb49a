// Package ytdlp wraps the yt-dlp executable for the two ways the pipeline
// uses it: a per-batch caption scrape and per-URL audio-only downloads.
//
// The scrape consults a dedup ledger via yt-dlp's own --download-archive
// mechanism, which is why the ledger must stay a plain text file. When the
// ledger is shared across jobs the invocation is serialized with a file
// lock; per-workspace ledgers need no locking.
package ytdlp
