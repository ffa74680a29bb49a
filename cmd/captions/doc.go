// Command captions is the CLI for the captions daemon. It submits reel
// URLs, tracks job progress, downloads transcript archives, and runs
// offline transcript analysis.
package main
