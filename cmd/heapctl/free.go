package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/joshuapare/fixheap/heap/image"
)

func init() {
	rootCmd.AddCommand(newFreeCmd())
}

func newFreeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "free <image> <offset>",
		Short: "Free the block containing a heap offset",
		Long: `The free command releases the block whose payload contains offset.
Unlike the library's Deallocate, it reports freeing unknown memory and
double frees as errors.

Example:
  heapctl free app.heap 4
  heapctl free app.heap 0x40`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFree(args)
		},
	}
}

func runFree(args []string) (err error) {
	path := args[0]
	off, err := strconv.ParseInt(args[1], 0, 0)
	if err != nil {
		return fmt.Errorf("invalid offset %q: %w", args[1], err)
	}

	img, err := image.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, img.Close())
	}()

	r, err := img.Raw()
	if err != nil {
		return err
	}
	if err := r.FreeAt(int(off)); err != nil {
		return err
	}
	printVerbose("Coalesced with right neighbour: %t\n", r.Stats().Coalesces > 0)

	if jsonOut {
		return printJSON(map[string]any{"offset": off, "freed": true})
	}
	printInfo("Freed block containing offset %d\n", off)
	return nil
}
