package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/fixheap/heap"
	"github.com/joshuapare/fixheap/heap/image"
)

var (
	allocAlign int
	allocFill  string
)

func init() {
	cmd := newAllocCmd()
	cmd.Flags().IntVarP(&allocAlign, "align", "a", 4, "Required alignment (power of two)")
	cmd.Flags().StringVar(&allocFill, "fill", "", "Text to copy into the new block")
	rootCmd.AddCommand(cmd)
}

func newAllocCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "alloc <image> <size>",
		Short: "Allocate a block in a heap image",
		Long: `The alloc command allocates size bytes in the image and prints the heap
offset of the returned memory. That offset (or any offset inside the block)
can later be passed to free.

Example:
  heapctl alloc app.heap 24
  heapctl alloc app.heap 64 --align 32 --fill "hello"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAlloc(args)
		},
	}
}

type allocResult struct {
	Offset int `json:"offset"`
	Size   int `json:"size"`
	Align  int `json:"align"`
}

func runAlloc(args []string) (err error) {
	path := args[0]
	size, err := parseSize(args[1], 0)
	if err != nil {
		return err
	}
	if len(allocFill) > size {
		return fmt.Errorf("--fill text is %d bytes, block is only %d", len(allocFill), size)
	}

	img, err := image.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, img.Close())
	}()

	a, err := img.Allocator(heap.WithLogger(logger))
	if err != nil {
		return err
	}
	p := a.Allocate(size, allocAlign)
	if p == nil {
		return fmt.Errorf("out of memory: no free block for %d bytes aligned to %d", size, allocAlign)
	}
	off, _ := a.OffsetOf(p)

	if allocFill != "" {
		copy(p, allocFill)
		if err := img.Sync(); err != nil {
			return err
		}
	}
	printVerbose("Largest free block now %d bytes\n", a.Usage().LargestFree)

	res := allocResult{Offset: off, Size: size, Align: allocAlign}
	if jsonOut {
		return printJSON(res)
	}
	printInfo("Allocated %d bytes at offset %d (0x%X)\n", res.Size, res.Offset, res.Offset)
	return nil
}
