package format

import "encoding/binary"

// Header words and image metadata are stored little-endian so heap images
// can move between hosts.

// PutU32 writes a uint32 value to the buffer at the specified offset in little-endian format.
func PutU32(b []byte, off int, v uint32) {
	binary.LittleEndian.PutUint32(b[off:off+4], v)
}

// ReadU32 reads a uint32 value from the buffer at the specified offset in little-endian format.
func ReadU32(b []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(b[off : off+4])
}

// ReadHeader decodes the header word stored at off.
// The caller is responsible for bounds and alignment.
func ReadHeader(b []byte, off int) Header {
	return Header(ReadU32(b, off))
}

// PutHeader encodes h at off.
// The caller is responsible for bounds and alignment.
func PutHeader(b []byte, off int, h Header) {
	PutU32(b, off, h.Raw())
}
