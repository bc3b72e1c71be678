package buffer

import (
	"slices"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/fixheap/internal/format"
)

// offsets collects the chain offsets as plain ints.
func offsets(b *Buffer) []int {
	var out []int
	for v := range b.Entries() {
		out = append(out, v.Int())
	}
	return out
}

// headers collects the chain headers in order.
func headers(b *Buffer) []format.Header {
	var out []format.Header
	for v := range b.Entries() {
		out = append(out, b.Header(v))
	}
	return out
}

type rangeRecorder struct{ ranges [][2]int }

func (r *rangeRecorder) Add(off, length int) { r.ranges = append(r.ranges, [2]int{off, length}) }

func TestValidatedOffset(t *testing.T) {
	assert.Equal(t, "ValidatedOffset(12)", ValidatedOffset{off: 12}.String())
	assert.Equal(t, ValidatedOffset{off: 12}, ValidatedOffset{off: 12})
	assert.NotEqual(t, ValidatedOffset{off: 12}, ValidatedOffset{off: 24})
}

func TestNew_EmptyBuffer(t *testing.T) {
	b, err := New(32)
	require.NoError(t, err)
	assert.Equal(t, 32, b.Len())
	assert.Equal(t, format.FreeHeader(28), b.readAt(0))
	assert.Equal(t, []format.Header{format.FreeHeader(28)}, headers(b))
}

func TestNew_IsAligned(t *testing.T) {
	for _, capacity := range []int{4, 8, 12, 36, 4096} {
		b := MustNew(capacity)
		assert.Zero(t, b.Base()%format.HeaderAlignment, "capacity %d", capacity)
	}
}

func TestNew_InvalidCapacity(t *testing.T) {
	_, err := New(3)
	require.ErrorIs(t, err, format.ErrCapacityTooSmall)

	_, err = New(13)
	require.ErrorIs(t, err, format.ErrCapacityUnaligned)

	assert.PanicsWithError(t, "buffer: format: capacity too small: 0 < 4", func() { MustNew(0) })
}

func TestEntries(t *testing.T) {
	b := MustNew(32)
	assert.Equal(t, []int{0}, offsets(b))

	b.writeAt(0, format.FreeHeader(4))
	b.writeAt(8, format.UsedHeader(4))
	b.writeAt(16, format.FreeHeader(12))
	assert.Equal(t, []int{0, 8, 16}, offsets(b))

	// Restartable: a second walk yields the same chain.
	assert.Equal(t, []int{0, 8, 16}, offsets(b))
}

func TestEntries_EarlyStop(t *testing.T) {
	b := MustNew(32)
	b.writeAt(0, format.FreeHeader(4))
	b.writeAt(8, format.UsedHeader(4))
	b.writeAt(16, format.FreeHeader(12))

	var seen []int
	for v := range b.Entries() {
		seen = append(seen, v.Int())
		if v.Int() == 8 {
			break
		}
	}
	assert.Equal(t, []int{0, 8}, seen)
}

// TestEntries_TrailingEmptyBlock covers a zero-sized free block occupying the
// last header slot; it is part of the chain.
func TestEntries_TrailingEmptyBlock(t *testing.T) {
	b := MustNew(16)
	b.writeAt(0, format.UsedHeader(8))
	b.writeAt(12, format.FreeHeader(0))
	assert.Equal(t, []int{0, 12}, offsets(b))
}

func TestEntries_HeaderOnlyBuffer(t *testing.T) {
	b := MustNew(4)
	assert.Equal(t, []format.Header{format.FreeHeader(0)}, headers(b))
}

func TestHeaderIndexing(t *testing.T) {
	b := MustNew(32)
	b.writeAt(0, format.FreeHeader(4))
	b.writeAt(8, format.UsedHeader(4))
	b.writeAt(16, format.FreeHeader(12))

	vs := slices.Collect(b.Entries())
	require.Len(t, vs, 3)
	assert.Equal(t, format.UsedHeader(4), b.Header(vs[1]))

	b.SetHeader(vs[1], format.FreeHeader(20))
	assert.Equal(t, format.FreeHeader(20), b.Header(vs[1]))
	assert.Equal(t, []int{0, 8}, offsets(b))
}

func TestHeaderAccess_Panics(t *testing.T) {
	b := MustNew(32)
	assert.Panics(t, func() { b.readAt(2) }, "misaligned offset")
	assert.Panics(t, func() { b.readAt(32) }, "offset past the end")
	assert.Panics(t, func() { b.writeAt(-4, format.FreeHeader(0)) }, "negative offset")
	assert.NotPanics(t, func() { b.readAt(28) })
}

func TestFollowingFreeEntry(t *testing.T) {
	b := MustNew(32)
	b.writeAt(0, format.UsedHeader(4))
	b.writeAt(8, format.FreeHeader(4))
	b.writeAt(16, format.UsedHeader(4))
	b.writeAt(24, format.UsedHeader(4))

	vs := slices.Collect(b.Entries())
	require.Len(t, vs, 4)

	h, ok := b.FollowingFreeEntry(vs[0])
	require.True(t, ok)
	assert.Equal(t, format.FreeHeader(4), h)

	_, ok = b.FollowingFreeEntry(vs[1])
	assert.False(t, ok, "neighbour is used")

	_, ok = b.FollowingFreeEntry(vs[3])
	assert.False(t, ok, "last block has no neighbour")
}

func TestMemoryOf(t *testing.T) {
	b := MustNew(32)
	b.writeAt(0, format.UsedHeader(8))
	b.writeAt(12, format.FreeHeader(16))

	vs := slices.Collect(b.Entries())
	require.Len(t, vs, 2)

	mem := b.MemoryOf(vs[0])
	assert.Len(t, mem, 8)
	assert.Equal(t, 8, cap(mem))
	assert.Same(t, &b.mem[4], &mem[0])

	start, end := b.PayloadRange(vs[1])
	assert.Equal(t, 16, start)
	assert.Equal(t, 32, end)
	assert.Len(t, b.MemoryOf(vs[1]), 16)
}

func TestMarkAsUsed_Split(t *testing.T) {
	b := MustNew(32)
	first := slices.Collect(b.Entries())[0]

	split := b.MarkAsUsed(first, 4)
	assert.True(t, split)
	assert.Equal(t, []format.Header{format.UsedHeader(4), format.FreeHeader(20)}, headers(b))
}

func TestMarkAsUsed_ExactFit(t *testing.T) {
	b := MustNew(32)
	first := slices.Collect(b.Entries())[0]

	split := b.MarkAsUsed(first, 28)
	assert.False(t, split)
	assert.Equal(t, []format.Header{format.UsedHeader(28)}, headers(b))
}

func TestMarkAsUsed_LeftoverExactlyOneHeader(t *testing.T) {
	b := MustNew(16)
	first := slices.Collect(b.Entries())[0]

	assert.True(t, b.MarkAsUsed(first, 8))
	assert.Equal(t, []format.Header{format.UsedHeader(8), format.FreeHeader(0)}, headers(b))
}

// TestMarkAsUsed_SliverAbsorbed checks that a leftover too small for a header
// is folded into the used block instead of leaving an unreachable gap.
func TestMarkAsUsed_SliverAbsorbed(t *testing.T) {
	mem := make([]uint32, 4)
	b, err := FromBytes(unsafe.Slice((*byte)(unsafe.Pointer(&mem[0])), 16), nil)
	require.NoError(t, err)
	b.writeAt(0, format.FreeHeader(10))

	first := slices.Collect(b.Entries())[0]
	assert.False(t, b.MarkAsUsed(first, 8))
	assert.Equal(t, format.UsedHeader(10), b.readAt(0))
}

func TestMarkAsUsed_PreconditionPanics(t *testing.T) {
	b := MustNew(32)
	first := slices.Collect(b.Entries())[0]

	assert.Panics(t, func() { b.MarkAsUsed(first, 32) }, "larger than block")
	b.MarkAsUsed(first, 28)
	assert.Panics(t, func() { b.MarkAsUsed(first, 4) }, "block already used")
}

func TestOffsetOf(t *testing.T) {
	b := MustNew(32)
	first := slices.Collect(b.Entries())[0]
	b.MarkAsUsed(first, 8)
	mem := b.MemoryOf(first)

	off, ok := b.OffsetOf(mem)
	require.True(t, ok)
	assert.Equal(t, 4, off)

	off, ok = b.OffsetOf(mem[3:])
	require.True(t, ok)
	assert.Equal(t, 7, off)

	_, ok = b.OffsetOf(nil)
	assert.False(t, ok)

	_, ok = b.OffsetOf(make([]byte, 4))
	assert.False(t, ok, "foreign memory")

	_, ok = b.OffsetOf(b.mem[32:])
	assert.False(t, ok, "one past the end")

	_, ok = b.OffsetOf(mem[len(mem):])
	assert.False(t, ok, "zero capacity slice at the end of a payload")

	off, ok = b.OffsetOf(mem[:0:1])
	require.True(t, ok, "empty slice with capacity still has an address")
	assert.Equal(t, 4, off)
}

func TestFromBytes_TracksHeaderWrites(t *testing.T) {
	mem := make([]uint32, 8)
	rec := &rangeRecorder{}
	b, err := FromBytes(unsafe.Slice((*byte)(unsafe.Pointer(&mem[0])), 32), rec)
	require.NoError(t, err)

	first := slices.Collect(b.Entries())[0]
	b.MarkAsUsed(first, 4)

	assert.Equal(t, [][2]int{{0, 4}, {0, 4}, {8, 4}}, rec.ranges)
}

func TestFromBytes_Misaligned(t *testing.T) {
	mem := make([]uint32, 9)
	raw := unsafe.Slice((*byte)(unsafe.Pointer(&mem[0])), 36)

	_, err := FromBytes(raw[1:33], nil)
	require.ErrorIs(t, err, format.ErrMisaligned)

	_, err = FromBytes(raw[:30], nil)
	require.ErrorIs(t, err, format.ErrCapacityUnaligned)
}

func TestAttach_DoesNotWrite(t *testing.T) {
	src := MustNew(32)
	first := slices.Collect(src.Entries())[0]
	src.MarkAsUsed(first, 12)

	rec := &rangeRecorder{}
	b, err := Attach(src.Bytes(), rec)
	require.NoError(t, err)
	assert.Empty(t, rec.ranges)
	assert.Equal(t, []format.Header{format.UsedHeader(12), format.FreeHeader(12)}, headers(b))
}
