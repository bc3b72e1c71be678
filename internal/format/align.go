package format

// Alignment utilities for heap offsets and addresses.

// AlignHeader returns n rounded up to the next multiple of HeaderSize.
// Every payload size the allocator records is rounded this way, which keeps
// split offsets header-aligned.
//
// Example:
//
//	AlignHeader(0) = 0
//	AlignHeader(1) = 4
//	AlignHeader(4) = 4
//	AlignHeader(5) = 8
func AlignHeader(n int) int {
	return (n + HeaderAlignmentMask) & ^HeaderAlignmentMask
}

// IsHeaderAligned reports whether off is a valid header position.
func IsHeaderAligned(off int) bool {
	return off&HeaderAlignmentMask == 0
}

// IsPowerOfTwo reports whether a is a positive power of two.
func IsPowerOfTwo(a int) bool {
	return a > 0 && a&(a-1) == 0
}

// AlignUp returns n rounded up to the next multiple of align, which must be a
// power of two.
//
// Example:
//
//	AlignUp(0x11, 4)  = 0x14
//	AlignUp(0x10, 4)  = 0x10
//	AlignUp(0x1c, 16) = 0x20
func AlignUp(n, align uintptr) uintptr {
	return (n + align - 1) & ^(align - 1)
}
