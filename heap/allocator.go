package heap

import (
	"log/slog"
	"sync"

	"github.com/joshuapare/fixheap/heap/buffer"
	"github.com/joshuapare/fixheap/heap/raw"
	"github.com/joshuapare/fixheap/internal/buf"
	"github.com/joshuapare/fixheap/internal/format"
)

// Allocator is the alignment-adapting, mutex-guarded heap allocator.
type Allocator struct {
	mu  sync.Mutex
	raw *raw.Allocator
	log *slog.Logger
}

// New creates an allocator owning a fresh heap of capacity bytes. capacity
// must be at least 8 and divisible by 4.
func New(capacity int, opts ...Option) (*Allocator, error) {
	r, err := raw.New(capacity)
	if err != nil {
		return nil, err
	}
	return newAllocator(r, opts), nil
}

// MustNew is like New but panics on an invalid capacity. Use it for
// capacities fixed at build time.
func MustNew(capacity int, opts ...Option) *Allocator {
	a, err := New(capacity, opts...)
	if err != nil {
		panic(err)
	}
	return a
}

// Open creates an allocator over an existing buffer, for example one backed
// by a heap image. The buffer's chain is verified first.
func Open(b *buffer.Buffer, opts ...Option) (*Allocator, error) {
	r, err := raw.Open(b)
	if err != nil {
		return nil, err
	}
	return newAllocator(r, opts), nil
}

func newAllocator(r *raw.Allocator, opts []Option) *Allocator {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	return &Allocator{raw: r, log: o.logger}
}

// Allocate returns size bytes aligned to align, or nil when the heap cannot
// satisfy the request. align must be a power of two; anything else, a
// negative size, or a size that overflows with its alignment yields nil.
//
// The result has length size and capacity size. Its contents are not zeroed.
//
// A zero-size request is not forwarded as zero: it reserves one byte (a
// 4-byte block) and returns a slice of length 0 and capacity 1. A
// zero-capacity slice has no address Deallocate could map back to a block.
func (a *Allocator) Allocate(size, align int) []byte {
	if size < 0 || !format.IsPowerOfTwo(align) {
		return nil
	}

	// A zero-size block would have an empty payload that no pointer can
	// address, so it could never be freed.
	request := max(size, 1)
	if align > format.HeaderAlignment {
		var ok bool
		if request, ok = buf.AddOverflowSafe(request, align); !ok {
			return nil
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	mem, ok := a.raw.Alloc(request)
	if !ok {
		a.log.Debug("heap: allocation failed", "size", size, "align", align, "request", request)
		return nil
	}

	skip := a.alignmentSkip(mem, align)
	return mem[skip : skip+size : skip+max(size, 1)]
}

// alignmentSkip returns how many leading bytes of mem to skip to reach an
// address that is a multiple of align.
func (a *Allocator) alignmentSkip(mem []byte, align int) int {
	b := a.raw.Buffer()
	off, _ := b.OffsetOf(mem)
	addr := b.Base() + uintptr(off)
	return int(format.AlignUp(addr, uintptr(align)) - addr)
}

// Deallocate returns memory obtained from Allocate. sizeHint is accepted for
// interface compatibility and ignored; the block header records the size.
//
// Deallocate never fails. Freeing memory this allocator does not own, or
// freeing twice, is logged at debug level and otherwise ignored.
func (a *Allocator) Deallocate(p []byte, sizeHint int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.raw.Free(p); err != nil {
		a.log.Debug("heap: deallocate ignored", "error", err, "sizeHint", sizeHint)
	}
}

// OffsetOf reports the heap offset of the first byte of p.
func (a *Allocator) OffsetOf(p []byte) (int, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.raw.Buffer().OffsetOf(p)
}

// Capacity returns the heap size in bytes.
func (a *Allocator) Capacity() int {
	return a.raw.Capacity()
}

// Stats returns the raw allocator's counters.
func (a *Allocator) Stats() raw.Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.raw.Stats()
}

// Usage returns a snapshot of heap usage.
func (a *Allocator) Usage() raw.Usage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.raw.Usage()
}

// Blocks returns a snapshot of the block chain.
func (a *Allocator) Blocks() []raw.Block {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.raw.Blocks()
}

// Verify checks that the block chain tiles the heap.
func (a *Allocator) Verify() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.raw.Verify()
}
