package raw

import "github.com/joshuapare/fixheap/internal/format"

// Stats holds cumulative allocator counters.
type Stats struct {
	AllocCalls     int   // Total Alloc() calls
	AllocFailures  int   // Alloc() calls that found no block
	Splits         int   // Allocations that split a free block
	FreeCalls      int   // Total Free()/FreeAt() calls
	Coalesces      int   // Frees that absorbed the right neighbour
	DoubleFrees    int   // Frees rejected with ErrDoubleFree
	NotFound       int   // Frees rejected with ErrNotFound
	BytesAllocated int64 // Payload bytes handed out (after rounding)
	BytesFreed     int64 // Payload bytes returned
}

// Stats returns a copy of the counters.
func (a *Allocator) Stats() Stats { return a.stats }

// Block describes one block of the chain.
type Block struct {
	Offset int          // Offset of the header
	State  format.State // Free or Used
	Size   int          // Payload size, header excluded
}

// Header returns the header word describing the block.
func (b Block) Header() format.Header {
	if b.State == format.Used {
		return format.UsedHeader(b.Size)
	}
	return format.FreeHeader(b.Size)
}

// Blocks returns a snapshot of the chain in offset order.
func (a *Allocator) Blocks() []Block {
	var out []Block
	for v := range a.buf.Entries() {
		h := a.buf.Header(v)
		out = append(out, Block{Offset: v.Int(), State: h.State(), Size: h.Size()})
	}
	return out
}

// Headers returns the chain's headers in offset order.
func (a *Allocator) Headers() []format.Header {
	var out []format.Header
	for v := range a.buf.Entries() {
		out = append(out, a.buf.Header(v))
	}
	return out
}

// Usage summarizes how the heap is carved up at one point in time.
type Usage struct {
	Capacity    int // Heap size in bytes, headers included
	Blocks      int // Number of blocks in the chain
	UsedBlocks  int
	FreeBlocks  int
	UsedBytes   int // Payload bytes in used blocks
	FreeBytes   int // Payload bytes in free blocks
	LargestFree int // Largest single free payload; the biggest satisfiable request
	Overhead    int // Bytes taken by headers
}

// Fragmentation returns 1 - LargestFree/FreeBytes: 0 when all free memory is
// one block, approaching 1 as free memory splinters.
func (u Usage) Fragmentation() float64 {
	if u.FreeBytes == 0 {
		return 0
	}
	return 1 - float64(u.LargestFree)/float64(u.FreeBytes)
}

// Usage walks the chain and returns current usage figures.
func (a *Allocator) Usage() Usage {
	u := Usage{Capacity: a.buf.Len()}
	for v := range a.buf.Entries() {
		h := a.buf.Header(v)
		u.Blocks++
		u.Overhead += format.HeaderSize
		if h.IsFree() {
			u.FreeBlocks++
			u.FreeBytes += h.Size()
			u.LargestFree = max(u.LargestFree, h.Size())
			continue
		}
		u.UsedBlocks++
		u.UsedBytes += h.Size()
	}
	return u
}
