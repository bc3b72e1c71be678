//go:build !unix

package mmfile

import (
	"io"
	"os"
	"unsafe"
)

// mapFile reads the file into word-backed memory when mmap is not
// available. Writes reach the file through syncRange.
func mapFile(f *os.File, size int) (*Mapping, error) {
	words := make([]uint64, (size+7)/8)
	data := unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(words))), size)
	if _, err := io.ReadFull(io.NewSectionReader(f, 0, int64(size)), data); err != nil {
		return nil, err
	}
	return &Mapping{f: f, data: data}, nil
}

func (m *Mapping) syncRange(off, n int) error {
	if _, err := m.f.WriteAt(m.data[off:off+n], int64(off)); err != nil {
		return err
	}
	return m.f.Sync()
}

func (m *Mapping) unmap() error {
	return m.Sync()
}
