package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/fixheap/internal/format"
)

// chain builds a heap by writing hdrs back to back.
func chain(capacity int, hdrs ...format.Header) []byte {
	heap := make([]byte, capacity)
	off := 0
	for _, h := range hdrs {
		format.PutHeader(heap, off, h)
		off += format.HeaderSize + h.Size()
	}
	return heap
}

func image(capacity int, hdrs ...format.Header) []byte {
	img := make([]byte, format.ImageHeaderSize)
	format.PutImageHeader(img, capacity)
	return append(img, chain(capacity, hdrs...)...)
}

func TestChain_Valid(t *testing.T) {
	tests := []struct {
		name string
		heap []byte
	}{
		{"fresh", chain(32, format.FreeHeader(28))},
		{"split", chain(32, format.UsedHeader(4), format.FreeHeader(20))},
		{"full", chain(16, format.UsedHeader(4), format.UsedHeader(4))},
		{"trailing empty block", chain(16, format.UsedHeader(8), format.FreeHeader(0))},
		{"header only", chain(4, format.FreeHeader(0))},
		{"fragmented", chain(60,
			format.FreeHeader(8), format.UsedHeader(8), format.FreeHeader(8),
			format.UsedHeader(8), format.FreeHeader(8))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, Chain(tt.heap))
		})
	}
}

func TestChain_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		heap   []byte
		offset int
	}{
		{"overrun", chain(32, format.UsedHeader(4), format.FreeHeader(24)), 8},
		{"gap", chain(32, format.UsedHeader(4), format.FreeHeader(12), format.UsedHeader(2)), 24},
		{"misaligned", chain(32, format.UsedHeader(6)), 0},
		{"bad length", make([]byte, 6), -1},
		{"empty", nil, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Chain(tt.heap)
			require.Error(t, err)
			require.ErrorIs(t, err, format.ErrCorrupt)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "Chain", verr.Type)
			assert.Equal(t, tt.offset, verr.Offset)
		})
	}
}

func TestImageHeader(t *testing.T) {
	good := image(32, format.FreeHeader(28))
	require.NoError(t, ImageHeader(good))
	require.NoError(t, AllInvariants(good))

	corrupt := func(mutate func([]byte)) []byte {
		img := append([]byte(nil), good...)
		mutate(img)
		return img
	}

	tests := []struct {
		name   string
		img    []byte
		offset int
	}{
		{"truncated", good[:8], -1},
		{"signature", corrupt(func(b []byte) { b[0] = 'X' }), format.ImageSignatureOffset},
		{"version", corrupt(func(b []byte) { format.PutU32(b, format.ImageVersionOffset, 9) }), format.ImageVersionOffset},
		{"length", good[:len(good)-4], format.ImageCapacityOffset},
		{"checksum", corrupt(func(b []byte) { b[format.ImageChecksumOffset] ^= 0xFF }), format.ImageChecksumOffset},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ImageHeader(tt.img)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "ImageHeader", verr.Type)
			assert.Equal(t, tt.offset, verr.Offset)
		})
	}
}

func TestAllInvariants_CorruptChain(t *testing.T) {
	img := image(32, format.UsedHeader(4), format.FreeHeader(24))
	err := AllInvariants(img)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Chain", verr.Type)
}

func TestValidationError_Message(t *testing.T) {
	err := &ValidationError{Type: "Chain", Message: "boom", Offset: 16}
	assert.Equal(t, "Chain at offset 0x10: boom", err.Error())

	err = &ValidationError{Type: "Chain", Message: "boom", Offset: -1}
	assert.Equal(t, "Chain: boom", err.Error())
}
