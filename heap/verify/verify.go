// Package verify provides validation functions for heap block chains and heap
// images. The allocators use it when adopting existing memory; tests use it to
// assert that every operation leaves the chain intact.
package verify

import (
	"bytes"
	"fmt"

	"github.com/joshuapare/fixheap/internal/format"
)

// ValidationError describes the first structural problem found.
type ValidationError struct {
	Type    string
	Message string
	Offset  int
}

func (e *ValidationError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("%s at offset 0x%X: %s", e.Type, e.Offset, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap lets callers match any validation failure with format.ErrCorrupt.
func (e *ValidationError) Unwrap() error { return format.ErrCorrupt }

// AllInvariants validates an image: its header first, then its chain.
func AllInvariants(image []byte) error {
	if err := ImageHeader(image); err != nil {
		return err
	}
	return Chain(image[format.ImageHeaderSize:])
}

// Chain validates that the headers in heap exactly tile it: every header is
// aligned and in bounds, no block overruns the buffer, and the last block
// ends at len(heap).
func Chain(heap []byte) error {
	if len(heap) < format.HeaderSize || len(heap)%format.HeaderSize != 0 {
		return &ValidationError{
			Type:    "Chain",
			Message: fmt.Sprintf("invalid heap length %d", len(heap)),
			Offset:  -1,
		}
	}

	off := 0
	for off+format.HeaderSize <= len(heap) {
		h := format.ReadHeader(heap, off)
		end := off + format.HeaderSize + h.Size()
		if end > len(heap) {
			return &ValidationError{
				Type:    "Chain",
				Message: fmt.Sprintf("%v overruns heap of %d bytes", h, len(heap)),
				Offset:  off,
			}
		}
		if end != len(heap) && !format.IsHeaderAligned(end) {
			return &ValidationError{
				Type:    "Chain",
				Message: fmt.Sprintf("%v leaves next header misaligned at 0x%X", h, end),
				Offset:  off,
			}
		}
		off = end
	}

	if off != len(heap) {
		return &ValidationError{
			Type:    "Chain",
			Message: fmt.Sprintf("%d trailing bytes not covered by any block", len(heap)-off),
			Offset:  off,
		}
	}
	return nil
}

// ImageHeader validates the signature, version, capacity and checksum of an
// image header against the image length.
func ImageHeader(image []byte) error {
	if len(image) < format.ImageHeaderSize {
		return &ValidationError{
			Type:    "ImageHeader",
			Message: fmt.Sprintf("image too small: %d bytes (need %d)", len(image), format.ImageHeaderSize),
			Offset:  -1,
		}
	}

	sig := image[format.ImageSignatureOffset : format.ImageSignatureOffset+4]
	if !bytes.Equal(sig, format.ImageSignature) {
		return &ValidationError{
			Type:    "ImageHeader",
			Message: fmt.Sprintf("invalid signature: got %q, expected %q", sig, format.ImageSignature),
			Offset:  format.ImageSignatureOffset,
		}
	}

	if v := format.ReadU32(image, format.ImageVersionOffset); v != format.ImageVersion {
		return &ValidationError{
			Type:    "ImageHeader",
			Message: fmt.Sprintf("unsupported version %d", v),
			Offset:  format.ImageVersionOffset,
		}
	}

	capacity := int(format.ReadU32(image, format.ImageCapacityOffset))
	if capacity != len(image)-format.ImageHeaderSize {
		return &ValidationError{
			Type: "ImageHeader",
			Message: fmt.Sprintf("capacity %d does not match image length %d",
				capacity, len(image)-format.ImageHeaderSize),
			Offset: format.ImageCapacityOffset,
		}
	}

	stored := format.ReadU32(image, format.ImageChecksumOffset)
	if computed := format.ImageChecksum(image); stored != computed {
		return &ValidationError{
			Type:    "ImageHeader",
			Message: fmt.Sprintf("checksum mismatch: stored 0x%08X, computed 0x%08X", stored, computed),
			Offset:  format.ImageChecksumOffset,
		}
	}
	return nil
}
