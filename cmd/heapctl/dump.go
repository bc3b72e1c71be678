package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joshuapare/fixheap/heap/image"
	"github.com/joshuapare/fixheap/internal/format"
)

var (
	dumpPayload bool
	dumpMax     int
)

func init() {
	cmd := newDumpCmd()
	cmd.Flags().BoolVar(&dumpPayload, "payload", false, "Hex dump the payload of used blocks")
	cmd.Flags().IntVar(&dumpMax, "max", 64, "Maximum payload bytes to hex dump per block")
	rootCmd.AddCommand(cmd)
}

func newDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump <image>",
		Short: "Print the block chain of a heap image",
		Long: `The dump command walks the block chain from offset 0 and prints every
block's header offset, state, payload size and payload range.

Example:
  heapctl dump app.heap
  heapctl dump app.heap --payload --max 32
  heapctl dump app.heap --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(args)
		},
	}
}

type dumpBlock struct {
	Offset  int    `json:"offset"`
	State   string `json:"state"`
	Size    int    `json:"size"`
	Header  string `json:"header"`
	Payload string `json:"payload,omitempty"`
}

func runDump(args []string) (err error) {
	img, err := image.Open(args[0])
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
	heapBytes := img.Buffer().Bytes()

	blocks := r.Blocks()
	out := make([]dumpBlock, 0, len(blocks))
	for _, b := range blocks {
		d := dumpBlock{
			Offset: b.Offset,
			State:  b.State.String(),
			Size:   b.Size,
			Header: fmt.Sprintf("0x%08X", b.Header().Raw()),
		}
		if dumpPayload && b.State == format.Used {
			start := b.Offset + format.HeaderSize
			d.Payload = hex.EncodeToString(heapBytes[start : start+min(b.Size, dumpMax)])
		}
		out = append(out, d)
	}

	if jsonOut {
		return printJSON(out)
	}

	printInfo("%-10s  %-5s  %10s  %-24s  %s\n", "OFFSET", "STATE", "SIZE", "PAYLOAD", "HEADER")
	for _, d := range out {
		start := d.Offset + format.HeaderSize
		printInfo("0x%08X  %-5s  %10d  [0x%08X, 0x%08X)  %s\n",
			d.Offset, d.State, d.Size, start, start+d.Size, d.Header)
		if d.Payload != "" && !quiet {
			raw, _ := hex.DecodeString(d.Payload)
			fmt.Fprint(os.Stdout, hex.Dump(raw))
		}
	}
	printVerbose("%d blocks\n", len(out))
	return nil
}
