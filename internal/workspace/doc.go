// Package workspace manages the isolated directory tree backing one job.
//
// Each workspace holds the batch URL list (reels.txt), the output area for
// finished transcripts (subs/), and a scratch area for transient audio
// downloads (tmp/). The Workspace value is an owned-resource handle: Destroy
// removes the tree exactly once per handle and tolerates an already-missing
// path, so workspace lifetime cannot be confused with job-record lifetime.
package workspace
