// Package archive packages a completed job's output area into the single
// downloadable zip the result endpoint streams.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/nickh0112/insta-captions/internal/workspace"
)

// Package writes every file under the workspace output area into the
// workspace archive path, preserving relative paths. The walk order is
// sorted and entry timestamps are fixed, so repeated calls over unchanged
// output produce identical archives. The archive may be regenerated at any
// time; it is never cached against mutation of the output directory.
func Package(ws *workspace.Workspace) (string, error) {
	outputDir := ws.OutputDir()
	var files []string
	err := filepath.WalkDir(outputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(outputDir, path)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("enumerate output files: %w", err)
	}
	sort.Strings(files)

	archivePath := ws.ArchivePath()
	tmpPath := archivePath + ".partial"
	out, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("create archive: %w", err)
	}
	defer func() {
		_ = out.Close()
		_ = os.Remove(tmpPath)
	}()

	zw := zip.NewWriter(out)
	for _, rel := range files {
		if err := addFile(zw, outputDir, rel); err != nil {
			return "", err
		}
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("finalize archive: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("flush archive: %w", err)
	}
	if err := os.Rename(tmpPath, archivePath); err != nil {
		return "", fmt.Errorf("place archive: %w", err)
	}
	return archivePath, nil
}

func addFile(zw *zip.Writer, baseDir, rel string) error {
	header := &zip.FileHeader{
		Name:   filepath.ToSlash(rel),
		Method: zip.Deflate,
	}
	writer, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("archive entry %s: %w", rel, err)
	}
	file, err := os.Open(filepath.Join(baseDir, rel))
	if err != nil {
		return fmt.Errorf("open %s: %w", rel, err)
	}
	defer file.Close()
	if _, err := io.Copy(writer, file); err != nil {
		return fmt.Errorf("write %s: %w", rel, err)
	}
	return nil
}
