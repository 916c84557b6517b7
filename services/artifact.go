package services

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// artifactWriter writes one export artifact so that it only becomes
// visible under its final name once fully written.
type artifactWriter struct {
	dir   string
	final string
	tmp   *os.File
}

func newArtifactWriter(dir, ext string) (*artifactWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".export-*.part")
	if err != nil {
		return nil, fmt.Errorf("create temp artifact: %w", err)
	}
	return &artifactWriter{
		dir:   dir,
		final: filepath.Join(dir, uuid.NewString()+"."+ext),
		tmp:   tmp,
	}, nil
}

func (a *artifactWriter) Write(p []byte) (int, error) { return a.tmp.Write(p) }

// Commit flushes the temp file and renames it into place.
func (a *artifactWriter) Commit() (string, error) {
	if err := a.tmp.Sync(); err != nil {
		a.Abort()
		return "", fmt.Errorf("sync artifact: %w", err)
	}
	if err := a.tmp.Close(); err != nil {
		os.Remove(a.tmp.Name())
		return "", fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(a.tmp.Name(), a.final); err != nil {
		os.Remove(a.tmp.Name())
		return "", fmt.Errorf("publish artifact: %w", err)
	}
	return a.final, nil
}

// Abort discards the partial file. Safe to call after Commit.
func (a *artifactWriter) Abort() {
	a.tmp.Close()
	os.Remove(a.tmp.Name())
}

var _ io.Writer = (*artifactWriter)(nil)
