// Package raw implements the alignment-oblivious allocation engine that runs
// over a single heap buffer.
//
// Allocation is best-fit over the whole block chain: the smallest free block
// that can hold the request wins, and among equal sizes the one at the lowest
// offset. Free locates the block containing a pointer (interior pointers are
// accepted), rejects double frees, and merges the block with its right
// neighbour when that neighbour is free. Merging never looks left, since
// finding the left neighbour means rescanning from offset 0; the resulting
// fragmentation is accepted.
//
// An Allocator is not safe for concurrent use. Package heap wraps it with a
// mutex.
package raw

import (
	"fmt"

	"github.com/joshuapare/fixheap/heap/buffer"
	"github.com/joshuapare/fixheap/heap/verify"
	"github.com/joshuapare/fixheap/internal/buf"
	"github.com/joshuapare/fixheap/internal/format"
)

// Allocator owns one buffer and carves allocations out of it.
type Allocator struct {
	buf   *buffer.Buffer
	stats Stats
}

// New creates an allocator over a fresh buffer of capacity bytes.
// capacity must be at least format.MinCapacity and divisible by
// format.HeaderSize.
func New(capacity int) (*Allocator, error) {
	if err := format.CheckCapacity(capacity, format.MinCapacity); err != nil {
		return nil, fmt.Errorf("raw: %w", err)
	}
	b, err := buffer.New(capacity)
	if err != nil {
		return nil, fmt.Errorf("raw: %w", err)
	}
	return &Allocator{buf: b}, nil
}

// MustNew is like New but panics on an invalid capacity.
func MustNew(capacity int) *Allocator {
	a, err := New(capacity)
	if err != nil {
		panic(err)
	}
	return a
}

// Open creates an allocator over an existing buffer, such as one backed by a
// heap image. The buffer's chain is verified first.
func Open(b *buffer.Buffer) (*Allocator, error) {
	if err := format.CheckCapacity(b.Len(), format.MinCapacity); err != nil {
		return nil, fmt.Errorf("raw: %w", err)
	}
	if err := verify.Chain(b.Bytes()); err != nil {
		return nil, fmt.Errorf("raw: %w", err)
	}
	return &Allocator{buf: b}, nil
}

// Buffer returns the underlying buffer.
func (a *Allocator) Buffer() *buffer.Buffer { return a.buf }

// Capacity returns the size of the heap in bytes, headers included.
func (a *Allocator) Capacity() int { return a.buf.Len() }

// Alloc reserves at least n bytes and returns the payload of the chosen
// block. n is rounded up to a multiple of format.HeaderSize, so the payload
// may be longer than requested. The memory is not zeroed.
//
// Alloc reports false when no free block is large enough; that is an
// ordinary outcome, not an error.
func (a *Allocator) Alloc(n int) ([]byte, bool) {
	a.stats.AllocCalls++
	if n < 0 || n > format.MaxPayloadSize {
		a.stats.AllocFailures++
		return nil, false
	}
	n = format.AlignHeader(n)

	best, ok := a.bestFit(n)
	if !ok {
		a.stats.AllocFailures++
		return nil, false
	}

	if a.buf.MarkAsUsed(best, n) {
		a.stats.Splits++
	}
	mem := a.buf.MemoryOf(best)
	a.stats.BytesAllocated += int64(len(mem))
	return mem, true
}

// bestFit returns the smallest free block holding at least n bytes. Ties go
// to the first block found, i.e. the lowest offset.
func (a *Allocator) bestFit(n int) (buffer.ValidatedOffset, bool) {
	var (
		best     buffer.ValidatedOffset
		bestSize = -1
	)
	for v := range a.buf.Entries() {
		h := a.buf.Header(v)
		if !h.IsFree() || h.Size() < n {
			continue
		}
		if bestSize < 0 || h.Size() < bestSize {
			best, bestSize = v, h.Size()
		}
	}
	return best, bestSize >= 0
}

// Free releases the block whose payload contains the first byte of p.
// p may point anywhere inside the payload.
func (a *Allocator) Free(p []byte) error {
	off, ok := a.buf.OffsetOf(p)
	if !ok {
		a.stats.FreeCalls++
		a.stats.NotFound++
		return fmt.Errorf("%w: pointer outside heap", ErrNotFound)
	}
	return a.FreeAt(off)
}

// FreeAt releases the block whose payload contains heap offset off.
//
// It returns ErrNotFound when no payload contains off and ErrDoubleFree when
// the block is already free. Otherwise the block becomes free and absorbs its
// right neighbour if that neighbour is free.
func (a *Allocator) FreeAt(off int) error {
	a.stats.FreeCalls++

	target, ok := a.find(off)
	if !ok {
		a.stats.NotFound++
		return fmt.Errorf("%w: offset %d", ErrNotFound, off)
	}

	h := a.buf.Header(target)
	if h.IsFree() {
		a.stats.DoubleFrees++
		return fmt.Errorf("%w: block at offset %d", ErrDoubleFree, target.Int())
	}

	size := h.Size()
	a.stats.BytesFreed += int64(size)
	if next, ok := a.buf.FollowingFreeEntry(target); ok {
		size += format.HeaderSize + next.Size()
		a.stats.Coalesces++
	}
	a.buf.SetHeader(target, format.FreeHeader(size))
	return nil
}

// find returns the block whose payload range contains off.
func (a *Allocator) find(off int) (buffer.ValidatedOffset, bool) {
	for v := range a.buf.Entries() {
		start, end := a.buf.PayloadRange(v)
		if buf.Within(off, start, end) {
			return v, true
		}
	}
	return buffer.ValidatedOffset{}, false
}

// Verify checks that the chain still tiles the whole buffer.
func (a *Allocator) Verify() error {
	return verify.Chain(a.buf.Bytes())
}
