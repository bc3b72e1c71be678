package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAlignHeader(t *testing.T) {
	cases := map[int]int{0: 0, 1: 4, 3: 4, 4: 4, 5: 8, 10: 12, 36: 36}
	for in, want := range cases {
		assert.Equal(t, want, AlignHeader(in), "AlignHeader(%d)", in)
	}
}

func TestAlignUp(t *testing.T) {
	assert.Equal(t, uintptr(0x14), AlignUp(0x11, 4))
	assert.Equal(t, uintptr(0x10), AlignUp(0x10, 4))
	assert.Equal(t, uintptr(0x11), AlignUp(0x11, 1))
	assert.Equal(t, uintptr(0x20), AlignUp(0x1c, 16))
	assert.Equal(t, uintptr(4<<20), AlignUp(1, 4<<20))
}

func TestIsPowerOfTwo(t *testing.T) {
	for _, a := range []int{1, 2, 4, 8, 32, 1 << 22} {
		assert.True(t, IsPowerOfTwo(a), "%d", a)
	}
	for _, a := range []int{0, -4, 3, 6, 12, 100} {
		assert.False(t, IsPowerOfTwo(a), "%d", a)
	}
}

func TestIsHeaderAligned(t *testing.T) {
	assert.True(t, IsHeaderAligned(0))
	assert.True(t, IsHeaderAligned(16))
	assert.False(t, IsHeaderAligned(2))
	assert.False(t, IsHeaderAligned(17))
}
