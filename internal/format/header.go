package format

import "fmt"

// State is the allocation state recorded in bit 0 of a header word.
type State uint8

const (
	// Free marks a block whose payload is available for allocation.
	Free State = 0
	// Used marks a block whose payload has been handed out.
	Used State = 1
)

func (s State) String() string {
	switch s {
	case Free:
		return "free"
	case Used:
		return "used"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Header is the packed descriptor preceding every block's payload.
//
// The encoding is part of the heap's on-disk and in-memory contract and must
// not change: bit 0 holds the State, bits 1..31 hold the payload size.
type Header uint32

// FreeHeader returns a Free header describing size payload bytes.
// It panics when size is outside [0, MaxPayloadSize].
func FreeHeader(size int) Header {
	mustFitPayload(size)
	return Header(uint32(size) << sizeShift)
}

// UsedHeader returns a Used header describing size payload bytes.
// It panics when size is outside [0, MaxPayloadSize].
func UsedHeader(size int) Header {
	mustFitPayload(size)
	return Header(uint32(size)<<sizeShift | uint32(Used))
}

// State decodes the allocation state.
func (h Header) State() State {
	return State(uint32(h) & stateMask)
}

// Size decodes the payload size in bytes.
func (h Header) Size() int {
	return int(uint32(h) >> sizeShift)
}

// IsFree reports whether the header describes a free block.
func (h Header) IsFree() bool { return h.State() == Free }

// Raw returns the header word as stored in the heap.
func (h Header) Raw() uint32 { return uint32(h) }

// String renders the header as "used(4)" or "free(20)".
func (h Header) String() string {
	return fmt.Sprintf("%s(%d)", h.State(), h.Size())
}

func mustFitPayload(size int) {
	if size < 0 || size > MaxPayloadSize {
		panic(fmt.Sprintf("format: payload size %d outside header range [0, %d]", size, MaxPayloadSize))
	}
}
