package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteTranscript drops a finished transcript file with the standard layout
// into dir and returns its path.
func WriteTranscript(t testing.TB, dir, slug, url, text string) string {
	t.Helper()

	content := "URL: " + url + "\n" +
		"Transcribed: " + text + "\n\n" +
		"=== SEGMENTED TRANSCRIPT ===\n" +
		"[00:00-00:05] " + text + "\n"
	path := filepath.Join(dir, slug+".txt")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write transcript %s: %v", path, err)
	}
	return path
}

// WriteFile fills the target path with the given content, creating parent
// directories as needed.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
