// Package buffer implements the fixed-capacity byte storage underneath the
// heap allocators.
//
// A Buffer is an ordered, gap-free chain of blocks starting at offset 0. Each
// block is one header word immediately followed by its payload, and the chain
// tiles the whole buffer. Block boundaries are discovered only by walking the
// chain from offset 0 (Entries), which yields ValidatedOffset tokens; every
// other indexing operation takes such a token and can therefore skip bounds
// validation.
//
// Blocks never move. Their headers change state and size, a block may be
// split in two (MarkAsUsed), and a block may absorb its right neighbour (by
// the caller rewriting its header with the combined size).
package buffer

import (
	"fmt"
	"iter"
	"unsafe"

	"github.com/joshuapare/fixheap/heap/dirty"
	"github.com/joshuapare/fixheap/internal/buf"
	"github.com/joshuapare/fixheap/internal/format"
)

// ValidatedOffset addresses a real, in-bounds, aligned header. It can only be
// obtained by walking the chain.
type ValidatedOffset struct {
	off int
}

// Int returns the byte offset of the header.
func (v ValidatedOffset) Int() int { return v.off }

func (v ValidatedOffset) String() string {
	return fmt.Sprintf("ValidatedOffset(%d)", v.off)
}

// Buffer is a 4-byte aligned byte region holding a block chain.
type Buffer struct {
	mem []byte
	dt  dirty.DirtyTracker
}

// New allocates a buffer of capacity bytes holding a single free block.
//
// capacity must be at least format.HeaderSize and divisible by it.
func New(capacity int) (*Buffer, error) {
	if err := format.CheckCapacity(capacity, format.HeaderSize); err != nil {
		return nil, fmt.Errorf("buffer: %w", err)
	}
	// Word-backed storage guarantees the 4-byte alignment payloads rely on.
	words := make([]uint64, (capacity+7)/8)
	mem := unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(words))), capacity)

	b := &Buffer{mem: mem}
	b.reset()
	return b, nil
}

// MustNew is like New but panics on an invalid capacity. It is meant for
// capacities fixed at build time.
func MustNew(capacity int) *Buffer {
	b, err := New(capacity)
	if err != nil {
		panic(err)
	}
	return b
}

// FromBytes initializes mem as a buffer holding a single free block. Header
// writes are reported to dt when it is non-nil.
func FromBytes(mem []byte, dt dirty.DirtyTracker) (*Buffer, error) {
	b, err := Attach(mem, dt)
	if err != nil {
		return nil, err
	}
	b.reset()
	return b, nil
}

// Attach adopts mem, which must already hold a block chain, without writing
// to it. Callers verify the chain (see package verify) before using it.
func Attach(mem []byte, dt dirty.DirtyTracker) (*Buffer, error) {
	if err := format.CheckCapacity(len(mem), format.HeaderSize); err != nil {
		return nil, fmt.Errorf("buffer: %w", err)
	}
	if uintptr(unsafe.Pointer(unsafe.SliceData(mem)))&format.HeaderAlignmentMask != 0 {
		return nil, fmt.Errorf("buffer: %w", format.ErrMisaligned)
	}
	return &Buffer{mem: mem, dt: dt}, nil
}

func (b *Buffer) reset() {
	b.writeAt(0, format.FreeHeader(len(b.mem)-format.HeaderSize))
}

// Len returns the capacity in bytes.
func (b *Buffer) Len() int { return len(b.mem) }

// Bytes returns the backing memory, headers included.
func (b *Buffer) Bytes() []byte { return b.mem }

// Base returns the address of the first byte of the buffer.
func (b *Buffer) Base() uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(b.mem)))
}

// OffsetOf maps a slice that points into the buffer back to the byte offset
// of its first element. It reports false for nil slices, foreign memory and
// zero-capacity slices, whose data pointer is unspecified.
func (b *Buffer) OffsetOf(p []byte) (int, bool) {
	if cap(p) == 0 {
		return 0, false
	}
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(p)))
	base := b.Base()
	if addr < base || addr-base >= uintptr(len(b.mem)) {
		return 0, false
	}
	return int(addr - base), true
}

// Entries walks the chain from offset 0, advancing by size+HeaderSize, and
// stops once fewer than HeaderSize bytes remain. The sequence is lazy and can
// be ranged over any number of times.
func (b *Buffer) Entries() iter.Seq[ValidatedOffset] {
	return func(yield func(ValidatedOffset) bool) {
		v, ok := ValidatedOffset{off: 0}, b.fits(0)
		for ok {
			next, more := b.next(v)
			if !yield(v) {
				return
			}
			v, ok = next, more
		}
	}
}

// Header returns the header at v.
func (b *Buffer) Header(v ValidatedOffset) format.Header {
	return b.readAt(v.off)
}

// SetHeader overwrites the header at v.
func (b *Buffer) SetHeader(v ValidatedOffset, h format.Header) {
	b.writeAt(v.off, h)
}

// FollowingFreeEntry inspects the block directly after v and returns its
// header when it exists and is free.
func (b *Buffer) FollowingFreeEntry(v ValidatedOffset) (format.Header, bool) {
	next, ok := b.next(v)
	if !ok {
		return 0, false
	}
	h := b.readAt(next.off)
	if !h.IsFree() {
		return 0, false
	}
	return h, true
}

// PayloadRange returns the half-open byte range [start, end) of the payload
// following the header at v.
func (b *Buffer) PayloadRange(v ValidatedOffset) (start, end int) {
	start = v.off + format.HeaderSize
	return start, start + b.readAt(v.off).Size()
}

// MemoryOf returns the payload following the header at v. Its length is the
// header's size and its capacity is clipped to the same value.
func (b *Buffer) MemoryOf(v ValidatedOffset) []byte {
	start, end := b.PayloadRange(v)
	return b.mem[start:end:end]
}

// MarkAsUsed turns the free block at v into a used block of size bytes.
//
// The block must be free and at least size bytes large, and size must be a
// multiple of format.HeaderSize. When the leftover can hold a header, the
// block is split and a free block describing the rest is written directly
// after the used payload. A smaller leftover stays inside the used block so
// that the chain never contains a header-less gap. MarkAsUsed reports whether
// a split happened.
func (b *Buffer) MarkAsUsed(v ValidatedOffset, size int) bool {
	old := b.readAt(v.off)
	if !old.IsFree() || size < 0 || size > old.Size() {
		panic(fmt.Sprintf("buffer: cannot mark %v at %d as used(%d)", old, v.off, size))
	}

	leftover := old.Size() - size
	if leftover < format.HeaderSize {
		b.writeAt(v.off, format.UsedHeader(old.Size()))
		return false
	}

	b.writeAt(v.off, format.UsedHeader(size))
	b.writeAt(v.off+format.HeaderSize+size, format.FreeHeader(leftover-format.HeaderSize))
	return true
}

// next returns the offset of the block after v, if one fits in the buffer.
func (b *Buffer) next(v ValidatedOffset) (ValidatedOffset, bool) {
	off, ok := buf.AddOverflowSafe(v.off, b.readAt(v.off).Size()+format.HeaderSize)
	if !ok || !b.fits(off) {
		return ValidatedOffset{}, false
	}
	return ValidatedOffset{off: off}, true
}

// fits reports whether a whole header fits at off.
func (b *Buffer) fits(off int) bool {
	return buf.Has(b.mem, off, format.HeaderSize)
}

func (b *Buffer) checkHeaderOffset(off int) {
	if !format.IsHeaderAligned(off) || !b.fits(off) {
		panic(fmt.Sprintf("buffer: invalid header offset %d (capacity %d)", off, len(b.mem)))
	}
}

func (b *Buffer) readAt(off int) format.Header {
	b.checkHeaderOffset(off)
	return format.ReadHeader(b.mem, off)
}

func (b *Buffer) writeAt(off int, h format.Header) {
	b.checkHeaderOffset(off)
	format.PutHeader(b.mem, off, h)
	if b.dt != nil {
		b.dt.Add(off, format.HeaderSize)
	}
}
