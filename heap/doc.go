// Package heap provides a fixed-capacity, general-purpose allocator over a
// single statically sized byte buffer.
//
// # Overview
//
// The heap is one contiguous buffer carved into blocks. Each block is a
// 4-byte header (state bit plus 31-bit payload size) followed by its
// payload, so bookkeeping costs exactly 4 bytes per allocation. The layers
// are, leaves first:
//
//   - internal/format: the header word encoding
//   - heap/buffer: storage, chain traversal and block splitting
//   - heap/raw: best-fit allocation and free with right-only coalescing
//   - heap: this package, adding alignment and locking
//
// # Usage Example
//
//	a, err := heap.New(64 * 1024)
//	if err != nil {
//	    return err
//	}
//
//	p := a.Allocate(24, 16) // 24 bytes, 16-byte aligned
//	if p == nil {
//	    return errOutOfMemory
//	}
//	defer a.Deallocate(p, 24)
//
// # Contract
//
// Allocate never panics on ordinary input and returns nil when no block is
// large enough. Deallocate never fails visibly: freeing foreign memory or
// freeing twice is detected by heap/raw but swallowed here (and logged at
// debug level when a logger is configured).
//
// # Alignment
//
// Every payload is 4-byte aligned. For larger alignments Allocate
// over-allocates size+align bytes and returns the first aligned sub-slice;
// Deallocate accepts that interior pointer unchanged.
//
// # Concurrency
//
// Each Allocator holds one mutex for the full duration of every call. Using
// an Allocator from a signal handler or any context that can preempt a lock
// holder on the same thread deadlocks; the allocator cannot detect this.
package heap
