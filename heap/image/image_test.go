package image

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/fixheap/heap/dirty"
	"github.com/joshuapare/fixheap/heap/raw"
	"github.com/joshuapare/fixheap/heap/verify"
	"github.com/joshuapare/fixheap/internal/format"
)

func newImage(t *testing.T, capacity int) (*Image, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "heap.img")
	img, err := Create(path, capacity)
	require.NoError(t, err)
	t.Cleanup(func() { img.Close() })
	return img, path
}

func TestCreate_WritesHeaderAndEmptyHeap(t *testing.T) {
	img, path := newImage(t, 4096)
	require.NoError(t, img.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, data, format.ImageHeaderSize+4096)
	assert.Equal(t, "fxhp", string(data[:4]))
	require.NoError(t, verify.AllInvariants(data))
	assert.Equal(t, format.FreeHeader(4092), format.ReadHeader(data, format.ImageHeaderSize))
}

func TestCreate_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Create(filepath.Join(dir, "small.img"), 4)
	require.ErrorIs(t, err, format.ErrCapacityTooSmall)

	_, err = Create(filepath.Join(dir, "odd.img"), 30)
	require.ErrorIs(t, err, format.ErrCapacityUnaligned)

	img, path := newImage(t, 64)
	require.NoError(t, img.Close())
	_, err = Create(path, 64)
	require.Error(t, err, "existing file must not be overwritten")
}

func TestReopen_PreservesChainAndPayload(t *testing.T) {
	img, path := newImage(t, 1024)

	a, err := img.Raw()
	require.NoError(t, err)
	p, ok := a.Alloc(12)
	require.True(t, ok)
	copy(p, "persisted!!!")
	_, ok = a.Alloc(100)
	require.True(t, ok)
	require.NoError(t, a.FreeAt(0+format.HeaderSize))
	want := a.Headers()

	require.NoError(t, img.Sync())
	require.NoError(t, img.Close())
	require.NoError(t, img.Close(), "double close")

	img, err = Open(path)
	require.NoError(t, err)
	defer img.Close()

	b, err := img.Raw()
	require.NoError(t, err)
	assert.Equal(t, want, b.Headers())
	assert.Equal(t, "persisted!!!", string(img.Bytes()[format.ImageHeaderSize+format.HeaderSize:][:12]))
}

func TestOpen_RejectsCorruptImages(t *testing.T) {
	tests := []struct {
		name   string
		mutate func([]byte)
	}{
		{"signature", func(b []byte) { b[0] = 'X' }},
		{"checksum", func(b []byte) { b[format.ImageChecksumOffset] ^= 0xFF }},
		{"version", func(b []byte) {
			format.PutU32(b, format.ImageVersionOffset, 9)
			format.PutU32(b, format.ImageChecksumOffset, format.ImageChecksum(b))
		}},
		{"chain overrun", func(b []byte) {
			format.PutHeader(b, format.ImageHeaderSize, format.UsedHeader(4096))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, path := newImage(t, 256)
			require.NoError(t, img.Close())

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			tt.mutate(data)
			require.NoError(t, os.WriteFile(path, data, 0o644))

			_, err = Open(path)
			require.ErrorIs(t, err, format.ErrCorrupt)
			var verr *verify.ValidationError
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestFlush_SyncsOnlyDirtyHeaderPages(t *testing.T) {
	img, _ := newImage(t, 64*1024)
	assert.Zero(t, img.Dirty().Pending(), "create leaves nothing pending")

	a, err := img.Allocator()
	require.NoError(t, err)
	require.NotNil(t, a.Allocate(8, 4))
	require.NotNil(t, a.Allocate(10000, 4))

	// Headers at heap offsets 0, 12 and 10016 land in pages 0 and 2 of the file.
	assert.Equal(t, []dirty.Range{
		{Off: 0, Len: dirty.StandardPageSize},
		{Off: 2 * dirty.StandardPageSize, Len: dirty.StandardPageSize},
	}, img.Dirty().DebugCoalescedRanges())

	require.NoError(t, img.Flush(context.Background()))
	assert.Zero(t, img.Dirty().Pending())
}

func TestFlush_CancelledKeepsRanges(t *testing.T) {
	img, _ := newImage(t, 1024)
	a, err := img.Raw()
	require.NoError(t, err)
	_, ok := a.Alloc(4)
	require.True(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, img.Flush(ctx), context.Canceled)
	assert.Positive(t, img.Dirty().Pending())
}

func TestAllocator_OverImage(t *testing.T) {
	img, path := newImage(t, 4096)

	a, err := img.Allocator()
	require.NoError(t, err)
	p := a.Allocate(24, 16)
	require.NotNil(t, p)
	a.Deallocate(p, 24)
	require.NoError(t, a.Verify())
	require.NoError(t, img.Close())

	img, err = Open(path)
	require.NoError(t, err)
	defer img.Close()
	r, err := img.Raw()
	require.NoError(t, err)
	u := r.Usage()
	assert.Zero(t, u.UsedBlocks)
	assert.Equal(t, raw.Block{Offset: 0, State: format.Free, Size: 4092}, r.Blocks()[0])
}
