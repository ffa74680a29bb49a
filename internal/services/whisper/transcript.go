package whisper

import (
	"fmt"
	"os"
	"strings"
)

const segmentHeader = "=== SEGMENTED TRANSCRIPT ==="

// RenderTranscript formats a transcription into the on-disk layout: the
// source URL, the flattened text, then one line per time-coded segment.
func RenderTranscript(url string, t Transcription) string {
	var b strings.Builder
	fmt.Fprintf(&b, "URL: %s\n", url)
	fmt.Fprintf(&b, "Transcribed: %s\n\n", strings.TrimSpace(t.Text))
	b.WriteString(segmentHeader)
	b.WriteByte('\n')
	for _, seg := range t.Segments {
		text := strings.TrimSpace(seg.Text)
		fmt.Fprintf(&b, "[%s-%s] %s\n", formatClock(seg.Start), formatClock(seg.End), text)
	}
	return b.String()
}

// WriteTranscript renders the transcript for url and writes it to path.
func WriteTranscript(path, url string, t Transcription) error {
	return os.WriteFile(path, []byte(RenderTranscript(url, t)), 0o644)
}

// formatClock renders whole seconds as MM:SS.
func formatClock(seconds float64) string {
	total := int(seconds)
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
