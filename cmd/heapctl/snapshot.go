package main

import (
	"bufio"
	"cmp"
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/joshuapare/fixheap/heap/image"
	"github.com/joshuapare/fixheap/internal/writer"
)

var snapshotCodec string

func init() {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Save and restore compressed heap image snapshots",
	}

	save := newSnapshotSaveCmd()
	save.Flags().StringVar(&snapshotCodec, "codec", "", "Compression: zstd, lz4 or none (default from FIXHEAP_CODEC)")
	cmd.AddCommand(save, newSnapshotLoadCmd())
	rootCmd.AddCommand(cmd)
}

func newSnapshotSaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save <image> <snapshot>",
		Short: "Write a compressed snapshot of a heap image",
		Long: `The save command compresses the whole image, header included, into a
snapshot file.

Example:
  heapctl snapshot save app.heap app.snap --codec lz4`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotSave(args)
		},
	}
}

func newSnapshotLoadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load <snapshot> <image>",
		Short: "Restore a heap image from a snapshot",
		Long: `The load command decompresses a snapshot, validates the image it holds
and writes it to a new image file. Existing files are never overwritten.

Example:
  heapctl snapshot load app.snap restored.heap`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotLoad(args)
		},
	}
}

func runSnapshotSave(args []string) (err error) {
	imgPath, snapPath := args[0], args[1]
	codec, err := image.ParseCodec(cmp.Or(snapshotCodec, cfg.Codec))
	if err != nil {
		return err
	}

	img, err := image.Open(imgPath)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, img.Close())
	}()

	w, err := writer.Create(snapPath)
	if err != nil {
		return err
	}
	if err := image.Save(img, w, codec); err != nil {
		return errors.Join(err, w.Abort())
	}
	if err := w.Commit(); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	info, err := os.Stat(snapPath)
	if err != nil {
		return err
	}
	imageSize := len(img.Bytes())
	logger.Debug("saved snapshot", "image", imgPath, "snapshot", snapPath, "codec", codec.String())

	if jsonOut {
		return printJSON(map[string]any{
			"image":        imgPath,
			"snapshot":     snapPath,
			"codec":        codec.String(),
			"imageSize":    imageSize,
			"snapshotSize": info.Size(),
		})
	}
	printInfo("Saved %s to %s (%s, %s -> %s)\n", imgPath, snapPath, codec,
		humanize.IBytes(uint64(imageSize)), humanize.IBytes(uint64(info.Size())))
	return nil
}

func runSnapshotLoad(args []string) error {
	snapPath, imgPath := args[0], args[1]

	f, err := os.Open(snapPath)
	if err != nil {
		return err
	}
	defer f.Close()

	img, err := image.Restore(bufio.NewReader(f), imgPath)
	if err != nil {
		return err
	}
	capacity := img.Capacity()
	if err := img.Close(); err != nil {
		return err
	}

	if jsonOut {
		return printJSON(map[string]any{"snapshot": snapPath, "image": imgPath, "capacity": capacity})
	}
	printInfo("Restored %s from %s (%s heap)\n", imgPath, snapPath, humanize.IBytes(uint64(capacity)))
	return nil
}
