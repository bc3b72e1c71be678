// Package mmfile provides platform-specific helpers for memory-mapping heap
// image files read-write.
package mmfile

import (
	"errors"
	"fmt"
	"os"

	"github.com/joshuapare/fixheap/internal/buf"
)

var (
	// ErrEmpty is returned when mapping a zero-length file.
	ErrEmpty = errors.New("mmfile: cannot map empty file")

	// ErrClosed is returned by operations on a closed mapping.
	ErrClosed = errors.New("mmfile: mapping closed")

	// ErrRange is returned when a sync range falls outside the mapping.
	ErrRange = errors.New("mmfile: range out of bounds")
)

// Mapping is a writable view of a whole file. Writes to Bytes reach the file
// once the affected range is synced (or the mapping is closed).
type Mapping struct {
	f    *os.File
	data []byte
}

// Create creates a new file of exactly size bytes and maps it. It fails if
// path already exists.
func Create(path string, size int) (*Mapping, error) {
	if size <= 0 {
		return nil, ErrEmpty
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	m, err := mapFile(f, size)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	return m, nil
}

// MapRW maps an existing file read-write.
func MapRW(path string) (*Mapping, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	size := info.Size()
	if size == 0 {
		f.Close()
		return nil, ErrEmpty
	}
	if size > int64(^uint(0)>>1) {
		f.Close()
		return nil, fmt.Errorf("mmfile: file too large to map (%d bytes)", size)
	}
	m, err := mapFile(f, int(size))
	if err != nil {
		f.Close()
		return nil, err
	}
	return m, nil
}

// Bytes returns the mapped memory. It is nil after Close.
func (m *Mapping) Bytes() []byte { return m.data }

// Len returns the mapped size in bytes.
func (m *Mapping) Len() int { return len(m.data) }

// SyncRange writes bytes [off, off+n) back to the file.
func (m *Mapping) SyncRange(off, n int) error {
	if m.data == nil {
		return ErrClosed
	}
	if !buf.Has(m.data, off, n) {
		return fmt.Errorf("%w: [%d, +%d) of %d", ErrRange, off, n, len(m.data))
	}
	if n == 0 {
		return nil
	}
	return m.syncRange(off, n)
}

// Sync writes the whole mapping back to the file.
func (m *Mapping) Sync() error {
	return m.SyncRange(0, m.Len())
}

// Close unmaps the file and closes it. Closing twice is a no-op.
func (m *Mapping) Close() error {
	if m.data == nil {
		return nil
	}
	err := m.unmap()
	m.data = nil
	return errors.Join(err, m.f.Close())
}
