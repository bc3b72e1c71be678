package format

import (
	"errors"
	"fmt"
)

var (
	// ErrCapacityTooSmall indicates a heap capacity below the supported minimum.
	ErrCapacityTooSmall = errors.New("format: capacity too small")
	// ErrCapacityTooLarge indicates a heap whose payload cannot be described by one header.
	ErrCapacityTooLarge = errors.New("format: capacity too large")
	// ErrCapacityUnaligned indicates a heap capacity that is not a multiple of HeaderSize.
	ErrCapacityUnaligned = errors.New("format: capacity has to be divisible by 4")
	// ErrMisaligned indicates backing memory that does not start on a 4-byte boundary.
	ErrMisaligned = errors.New("format: memory not 4-byte aligned")
	// ErrCorrupt indicates a block chain that does not exactly tile its buffer.
	ErrCorrupt = errors.New("format: corrupt block chain")
)

// CheckCapacity validates a heap capacity against the given minimum.
// Failures wrap ErrCapacityTooSmall, ErrCapacityUnaligned or ErrCapacityTooLarge.
func CheckCapacity(capacity, minimum int) error {
	if capacity < minimum {
		return fmt.Errorf("%w: %d < %d", ErrCapacityTooSmall, capacity, minimum)
	}
	if capacity%HeaderSize != 0 {
		return fmt.Errorf("%w: %d", ErrCapacityUnaligned, capacity)
	}
	if capacity-HeaderSize > MaxPayloadSize {
		return fmt.Errorf("%w: %d", ErrCapacityTooLarge, capacity)
	}
	return nil
}
