package image

import (
	"context"
	"errors"
	"fmt"

	"github.com/joshuapare/fixheap/heap"
	"github.com/joshuapare/fixheap/heap/buffer"
	"github.com/joshuapare/fixheap/heap/dirty"
	"github.com/joshuapare/fixheap/heap/raw"
	"github.com/joshuapare/fixheap/heap/verify"
	"github.com/joshuapare/fixheap/internal/format"
	"github.com/joshuapare/fixheap/internal/mmfile"
)

// Image is an open, memory-mapped heap image.
type Image struct {
	path string
	m    *mmfile.Mapping
	dt   *dirty.Tracker
	buf  *buffer.Buffer
}

// Create writes a new image at path holding an empty heap of capacity bytes.
// It fails if path already exists.
func Create(path string, capacity int) (*Image, error) {
	if err := format.CheckCapacity(capacity, format.MinCapacity); err != nil {
		return nil, fmt.Errorf("image: %w", err)
	}
	m, err := mmfile.Create(path, format.ImageHeaderSize+capacity)
	if err != nil {
		return nil, fmt.Errorf("image: create %s: %w", path, err)
	}
	format.PutImageHeader(m.Bytes(), capacity)

	img := &Image{path: path, m: m, dt: dirty.NewTracker(format.ImageHeaderSize)}
	if img.buf, err = buffer.FromBytes(m.Bytes()[format.ImageHeaderSize:], img.dt); err != nil {
		return nil, errors.Join(err, m.Close())
	}
	// The image header sits outside the heap, so the tracker never sees it.
	if err := m.Sync(); err != nil {
		return nil, errors.Join(err, m.Close())
	}
	img.dt.Reset()
	return img, nil
}

// Open maps an existing image after validating its header and chain.
func Open(path string) (*Image, error) {
	m, err := mmfile.MapRW(path)
	if err != nil {
		return nil, fmt.Errorf("image: open %s: %w", path, err)
	}
	if err := verify.AllInvariants(m.Bytes()); err != nil {
		return nil, errors.Join(fmt.Errorf("image: %s: %w", path, err), m.Close())
	}

	img := &Image{path: path, m: m, dt: dirty.NewTracker(format.ImageHeaderSize)}
	if img.buf, err = buffer.Attach(m.Bytes()[format.ImageHeaderSize:], img.dt); err != nil {
		return nil, errors.Join(err, m.Close())
	}
	return img, nil
}

// Path returns the file the image was opened from.
func (img *Image) Path() string { return img.path }

// Capacity returns the heap size in bytes.
func (img *Image) Capacity() int { return img.buf.Len() }

// Bytes returns the whole image, header included.
func (img *Image) Bytes() []byte { return img.m.Bytes() }

// Buffer returns the heap buffer backed by the mapping.
func (img *Image) Buffer() *buffer.Buffer { return img.buf }

// Raw returns a raw allocator over the image's heap. Unlike Allocator it
// reports free errors, which diagnostic tools want to see.
func (img *Image) Raw() (*raw.Allocator, error) {
	return raw.Open(img.buf)
}

// Allocator returns the public allocator over the image's heap.
func (img *Image) Allocator(opts ...heap.Option) (*heap.Allocator, error) {
	return heap.Open(img.buf, opts...)
}

// Dirty returns the tracker recording header writes.
func (img *Image) Dirty() *dirty.Tracker { return img.dt }

// Flush writes back the pages holding headers changed since the last flush.
func (img *Image) Flush(ctx context.Context) error {
	return img.dt.Flush(ctx, img.m)
}

// Sync writes back the whole image, including payload bytes.
func (img *Image) Sync() error {
	if err := img.m.Sync(); err != nil {
		return err
	}
	img.dt.Reset()
	return nil
}

// Close flushes pending header writes and unmaps the image. Closing twice is
// a no-op.
func (img *Image) Close() error {
	if img.m.Bytes() == nil {
		return nil
	}
	return errors.Join(img.Flush(context.Background()), img.m.Close())
}
