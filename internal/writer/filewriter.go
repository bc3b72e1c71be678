// Package writer writes files atomically.
package writer

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FileWriter streams into a temporary file next to its destination and
// renames it into place on Commit, so readers never see a partial file.
type FileWriter struct {
	path string
	tmp  *os.File
	bw   *bufio.Writer
}

// Create starts an atomic write of path.
func Create(path string) (*FileWriter, error) {
	// Temp file in the same directory keeps the rename atomic.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".fixheap-tmp-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	return &FileWriter{path: path, tmp: tmp, bw: bufio.NewWriter(tmp)}, nil
}

// Write implements io.Writer.
func (w *FileWriter) Write(p []byte) (int, error) {
	if w.tmp == nil {
		return 0, os.ErrClosed
	}
	return w.bw.Write(p)
}

// Commit flushes, syncs and renames the temporary file over the destination.
func (w *FileWriter) Commit() error {
	if w.tmp == nil {
		return os.ErrClosed
	}
	if err := w.bw.Flush(); err != nil {
		return errors.Join(fmt.Errorf("flush temp file: %w", err), w.Abort())
	}
	if err := w.tmp.Sync(); err != nil {
		return errors.Join(fmt.Errorf("sync temp file: %w", err), w.Abort())
	}

	tmpPath := w.tmp.Name()
	err := w.tmp.Close()
	w.tmp = nil
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, w.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Abort discards the temporary file. It is a no-op after Commit.
func (w *FileWriter) Abort() error {
	if w.tmp == nil {
		return nil
	}
	tmpPath := w.tmp.Name()
	err := w.tmp.Close()
	w.tmp = nil
	return errors.Join(err, os.Remove(tmpPath))
}
