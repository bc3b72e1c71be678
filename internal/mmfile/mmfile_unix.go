//go:build unix

package mmfile

import (
	"os"

	"golang.org/x/sys/unix"
)

// mapFile maps the first size bytes of f shared and writable. The mapping
// starts on a page boundary, so every 4-byte file offset is 4-aligned in
// memory.
func mapFile(f *os.File, size int) (*Mapping, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	return &Mapping{f: f, data: data}, nil
}

// syncRange msyncs the pages covering [off, off+n). msync requires a
// page-aligned start address, so off is rounded down.
func (m *Mapping) syncRange(off, n int) error {
	page := os.Getpagesize()
	start := off &^ (page - 1)
	return unix.Msync(m.data[start:off+n], unix.MS_SYNC)
}

func (m *Mapping) unmap() error {
	return unix.Munmap(m.data)
}
