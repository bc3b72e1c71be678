package format

// Heap image layout. A heap image is a file holding a small header followed
// by the raw heap bytes:
//
//	Offset  Size  Description
//	0x00    4     Signature "fxhp"
//	0x04    4     Format version
//	0x08    4     Heap capacity in bytes
//	0x0C    4     Checksum: XOR of the three preceding dwords
//	0x10    N     Heap block chain
//
// The header is 16 bytes so that a page-aligned mapping keeps the heap
// 4-byte aligned.
const (
	ImageSignatureOffset = 0x00
	ImageVersionOffset   = 0x04
	ImageCapacityOffset  = 0x08
	ImageChecksumOffset  = 0x0C

	// ImageHeaderSize is the number of bytes preceding the heap chain.
	ImageHeaderSize = 0x10

	// ImageVersion is the only image format version written and accepted.
	ImageVersion = 1
)

// ImageSignature is the magic at the start of every heap image.
var ImageSignature = []byte("fxhp")

// ImageChecksum computes the header checksum over the first three dwords.
func ImageChecksum(b []byte) uint32 {
	var sum uint32
	for off := 0; off < ImageChecksumOffset; off += 4 {
		sum ^= ReadU32(b, off)
	}
	return sum
}

// PutImageHeader writes a complete image header for a heap of capacity bytes.
func PutImageHeader(b []byte, capacity int) {
	copy(b[ImageSignatureOffset:], ImageSignature)
	PutU32(b, ImageVersionOffset, ImageVersion)
	PutU32(b, ImageCapacityOffset, uint32(capacity))
	PutU32(b, ImageChecksumOffset, ImageChecksum(b))
}
