package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/fixheap/heap/verify"
	"github.com/joshuapare/fixheap/internal/format"
)

func init() {
	rootCmd.AddCommand(newVerifyCmd())
}

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <image>",
		Short: "Validate a heap image",
		Long: `The verify command checks the image header (signature, version,
capacity, checksum) and that the block chain tiles the heap exactly.
It exits non-zero when the image is corrupt.

Example:
  heapctl verify app.heap`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(args)
		},
	}
}

type verifyResult struct {
	Path   string `json:"path"`
	Valid  bool   `json:"valid"`
	Blocks int    `json:"blocks,omitempty"`
	Error  string `json:"error,omitempty"`
	Offset *int   `json:"offset,omitempty"`
}

func runVerify(args []string) error {
	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	res := verifyResult{Path: path, Valid: true}
	verr := verify.AllInvariants(data)
	if verr != nil {
		res.Valid = false
		res.Error = verr.Error()
		var ve *verify.ValidationError
		if errors.As(verr, &ve) && ve.Offset >= 0 {
			off := ve.Offset
			res.Offset = &off
		}
	} else {
		res.Blocks = countBlocks(data[format.ImageHeaderSize:])
	}

	if jsonOut {
		if err := printJSON(res); err != nil {
			return err
		}
	} else if res.Valid {
		printInfo("OK: %s (%d blocks)\n", path, res.Blocks)
	}
	if verr != nil {
		return fmt.Errorf("%s: %w", path, verr)
	}
	return nil
}

// countBlocks walks a chain already known to be valid.
func countBlocks(heap []byte) int {
	n := 0
	for off := 0; off+format.HeaderSize <= len(heap); n++ {
		off += format.HeaderSize + format.ReadHeader(heap, off).Size()
	}
	return n
}
