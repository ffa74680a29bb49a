package workspace

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/nickh0112/insta-captions/internal/services"
)

const (
	urlListName    = "reels.txt"
	outputDirName  = "subs"
	scratchDirName = "tmp"
	ledgerName     = "downloaded.txt"
	archiveName    = "transcripts.zip"

	// minFreeBytes is the free-space floor checked before a workspace is
	// allocated; audio scratch files run a few MiB per minute of media.
	minFreeBytes = 256 << 20
)

// Workspace is the owned handle to one job's directory tree.
type Workspace struct {
	root      string
	destroyed atomic.Bool
}

// Manager creates and tears down per-job workspaces under a fixed root.
type Manager struct {
	root string
}

// NewManager returns a manager rooted at dir.
func NewManager(dir string) *Manager {
	return &Manager{root: dir}
}

// Create allocates a fresh workspace for jobID with the output and scratch
// areas in place. Failures surface as services.ErrWorkspace.
func (m *Manager) Create(jobID string) (*Workspace, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, services.Wrap(services.ErrWorkspace, "workspace", "create", "job id is required", nil)
	}
	if err := os.MkdirAll(m.root, 0o755); err != nil {
		return nil, services.Wrap(services.ErrWorkspace, "workspace", "create", "ensure workspace root", err)
	}
	if err := checkFreeSpace(m.root); err != nil {
		return nil, err
	}

	root, err := os.MkdirTemp(m.root, fmt.Sprintf("job_%s_", jobID))
	if err != nil {
		return nil, services.Wrap(services.ErrWorkspace, "workspace", "create", "allocate directory", err)
	}
	for _, sub := range []string{outputDirName, scratchDirName} {
		if err := os.MkdirAll(filepath.Join(root, sub), 0o755); err != nil {
			_ = os.RemoveAll(root)
			return nil, services.Wrap(services.ErrWorkspace, "workspace", "create", "create "+sub, err)
		}
	}
	return &Workspace{root: root}, nil
}

// Destroy recursively removes the workspace tree. It is exactly-once per
// handle and safe to call on an already-missing path.
func (m *Manager) Destroy(ws *Workspace) error {
	if ws == nil {
		return nil
	}
	return ws.Destroy()
}

// Root returns the workspace root directory.
func (w *Workspace) Root() string { return w.root }

// URLListPath returns the batch URL list file path.
func (w *Workspace) URLListPath() string { return filepath.Join(w.root, urlListName) }

// OutputDir returns the directory finished transcripts are written to.
func (w *Workspace) OutputDir() string { return filepath.Join(w.root, outputDirName) }

// ScratchDir returns the directory for transient intermediate files.
func (w *Workspace) ScratchDir() string { return filepath.Join(w.root, scratchDirName) }

// LedgerPath returns the workspace-scoped dedup ledger location.
func (w *Workspace) LedgerPath() string { return filepath.Join(w.root, ledgerName) }

// ArchivePath returns the fixed location of the packaged result.
func (w *Workspace) ArchivePath() string { return filepath.Join(w.root, archiveName) }

// Destroyed reports whether the handle has been torn down.
func (w *Workspace) Destroyed() bool { return w.destroyed.Load() }

// Destroy removes the tree. Repeat calls are no-ops.
func (w *Workspace) Destroy() error {
	if w == nil || !w.destroyed.CompareAndSwap(false, true) {
		return nil
	}
	if err := os.RemoveAll(w.root); err != nil {
		return services.Wrap(services.ErrWorkspace, "workspace", "destroy", w.root, err)
	}
	return nil
}

// WriteURLList writes the submitted URLs one per line.
func (w *Workspace) WriteURLList(urls []string) error {
	var b strings.Builder
	for _, url := range urls {
		trimmed := strings.TrimSpace(url)
		if trimmed == "" {
			continue
		}
		b.WriteString(trimmed)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(w.URLListPath(), []byte(b.String()), 0o644); err != nil {
		return services.Wrap(services.ErrWorkspace, "workspace", "write url list", w.URLListPath(), err)
	}
	return nil
}

// ReadURLList returns the batch URLs, skipping blank lines and # comments.
func (w *Workspace) ReadURLList() ([]string, error) {
	file, err := os.Open(w.URLListPath())
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var urls []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return urls, nil
}

// TranscriptFiles returns the sorted names of finished transcript files in
// the output area.
func (w *Workspace) TranscriptFiles() ([]string, error) {
	entries, err := os.ReadDir(w.OutputDir())
	if err != nil {
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".txt") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func checkFreeSpace(dir string) error {
	var stat unix.Statfs_t
	if err := unix.Statfs(dir, &stat); err != nil {
		return services.Wrap(services.ErrWorkspace, "workspace", "create", "statfs "+dir, err)
	}
	free := stat.Bavail * uint64(stat.Bsize)
	if free < minFreeBytes {
		return services.Wrap(services.ErrWorkspace, "workspace", "create",
			fmt.Sprintf("insufficient disk space: %d bytes free", free), nil)
	}
	return nil
}
