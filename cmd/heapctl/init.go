package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/joshuapare/fixheap/heap/image"
)

var initCapacity string

func init() {
	cmd := newInitCmd()
	cmd.Flags().StringVarP(&initCapacity, "capacity", "c", "", "Heap capacity, e.g. 4096 or 64KiB (default from FIXHEAP_CAPACITY)")
	rootCmd.AddCommand(cmd)
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init <image>",
		Short: "Create an empty heap image",
		Long: `The init command creates a new heap image holding a single free block
that spans the whole heap. The capacity must be at least 8 bytes and
divisible by 4. Existing files are never overwritten.

Example:
  heapctl init app.heap --capacity 64KiB`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(args)
		},
	}
}

func runInit(args []string) error {
	path := args[0]
	capacity, err := parseSize(initCapacity, cfg.Capacity)
	if err != nil {
		return err
	}

	img, err := image.Create(path, capacity)
	if err != nil {
		return err
	}
	if err := img.Close(); err != nil {
		return fmt.Errorf("failed to close image: %w", err)
	}
	logger.Debug("created image", "path", path, "capacity", capacity)

	if jsonOut {
		return printJSON(map[string]any{
			"path":     path,
			"capacity": capacity,
		})
	}
	printInfo("Created %s with a %s heap\n", path, humanize.IBytes(uint64(capacity)))
	return nil
}
