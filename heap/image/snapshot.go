package image

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/joshuapare/fixheap/heap/verify"
	"github.com/joshuapare/fixheap/internal/format"
	"github.com/joshuapare/fixheap/internal/mmfile"
)

// Codec selects the compression of a snapshot.
type Codec uint8

const (
	// CodecNone stores the image uncompressed.
	CodecNone Codec = 0
	// CodecZstd compresses with zstd (better ratio).
	CodecZstd Codec = 1
	// CodecLZ4 compresses with lz4 (faster).
	CodecLZ4 Codec = 2
)

const (
	// snapshotHeaderSize covers the codec tag and the uncompressed length.
	snapshotHeaderSize = 5

	// maxSnapshotSize is the largest image a snapshot can hold: an image
	// header plus the largest heap one block header can describe.
	maxSnapshotSize = format.ImageHeaderSize + format.HeaderSize + format.MaxPayloadSize
)

var (
	// ErrUnknownCodec is returned for an unrecognized codec name or tag.
	ErrUnknownCodec = errors.New("image: unknown snapshot codec")

	// ErrSnapshotSize is returned when a snapshot decodes to the wrong length.
	ErrSnapshotSize = errors.New("image: snapshot size mismatch")
)

// ParseCodec maps "none", "zstd" or "lz4" to a Codec.
func ParseCodec(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "none", "":
		return CodecNone, nil
	case "zstd":
		return CodecZstd, nil
	case "lz4":
		return CodecLZ4, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

// String returns the codec name.
func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecZstd:
		return "zstd"
	case CodecLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("Codec(%d)", uint8(c))
	}
}

// WriteSnapshot writes data to w as a snapshot:
//
//	[codec uint8][uncompressed length uint32 LE][stream...]
func WriteSnapshot(w io.Writer, data []byte, codec Codec) error {
	if codec > CodecLZ4 {
		return fmt.Errorf("%w: %v", ErrUnknownCodec, codec)
	}

	var hdr [snapshotHeaderSize]byte
	hdr[0] = byte(codec)
	format.PutU32(hdr[:], 1, uint32(len(data)))

	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}

	var enc io.WriteCloser
	switch codec {
	case CodecNone:
		_, err := w.Write(data)
		return err
	case CodecZstd:
		zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return err
		}
		enc = zw
	case CodecLZ4:
		enc = lz4.NewWriter(w)
	}

	if _, err := enc.Write(data); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// ReadSnapshot decodes a snapshot written by WriteSnapshot.
func ReadSnapshot(r io.Reader) ([]byte, error) {
	var hdr [snapshotHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("image: snapshot header: %w", err)
	}
	codec := Codec(hdr[0])
	declared := int64(format.ReadU32(hdr[:], 1))
	if declared > maxSnapshotSize {
		return nil, fmt.Errorf("%w: declared %d bytes exceeds %d", ErrSnapshotSize, declared, int64(maxSnapshotSize))
	}
	size := int(declared)

	var src io.Reader
	switch codec {
	case CodecNone:
		src = r
	case CodecZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		src = zr
	case CodecLZ4:
		src = lz4.NewReader(r)
	default:
		return nil, fmt.Errorf("%w: tag %d", ErrUnknownCodec, hdr[0])
	}

	// Memory grows with the data actually present, not the declared size.
	data, err := io.ReadAll(io.LimitReader(src, declared+1))
	if err != nil {
		return nil, fmt.Errorf("image: snapshot data: %w", err)
	}
	switch {
	case len(data) < size:
		return nil, fmt.Errorf("%w: got %d of %d bytes", ErrSnapshotSize, len(data), size)
	case len(data) > size:
		return nil, fmt.Errorf("%w: trailing data after %d bytes", ErrSnapshotSize, size)
	}
	return data, nil
}

// Save writes a snapshot of img. Pending header writes need not be flushed
// first; the snapshot reads the mapped memory.
func Save(img *Image, w io.Writer, codec Codec) error {
	return WriteSnapshot(w, img.Bytes(), codec)
}

// Restore decodes a snapshot, validates it and writes it to a new image file
// at path, which must not exist yet.
func Restore(r io.Reader, path string) (*Image, error) {
	data, err := ReadSnapshot(r)
	if err != nil {
		return nil, err
	}
	if err := verify.AllInvariants(data); err != nil {
		return nil, fmt.Errorf("image: snapshot: %w", err)
	}

	m, err := mmfile.Create(path, len(data))
	if err != nil {
		return nil, fmt.Errorf("image: restore %s: %w", path, err)
	}
	copy(m.Bytes(), data)
	err = m.Sync()
	if err = errors.Join(err, m.Close()); err != nil {
		return nil, err
	}
	return Open(path)
}
