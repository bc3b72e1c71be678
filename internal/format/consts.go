package format

// Heap layout constants.
//
// A heap is a single contiguous byte region carved into blocks. Every block
// is a 4-byte header word followed by its payload:
//
//	Offset  Size  Description
//	0x00    4     Header word. Bit 0 = state (0 free, 1 used),
//	              bits 1..31 = payload size in bytes (header excluded).
//	0x04    ...   Payload.
//
// The header size is part of the stability contract: it bounds the minimum
// heap size, the rounding of requested sizes and all offset arithmetic.
const (
	// HeaderSize is the number of bytes occupied by a block header.
	HeaderSize = 4

	// HeaderAlignment is the alignment every header offset must satisfy.
	// Payloads inherit it because the backing buffer is 4-byte aligned.
	HeaderAlignment = HeaderSize

	// HeaderAlignmentMask is HeaderAlignment - 1.
	HeaderAlignmentMask = HeaderAlignment - 1

	// MaxPayloadSize is the largest payload size a header can encode (2^31-1).
	MaxPayloadSize = 0x7FFF_FFFF

	// MinCapacity is the smallest heap an allocator accepts: one header plus
	// one header-sized payload.
	MinCapacity = 2 * HeaderSize

	// stateMask selects the state bit of a header word.
	stateMask = 0x1

	// sizeShift is the position of the payload size inside a header word.
	sizeShift = 1
)
