package main

import (
	"errors"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/joshuapare/fixheap/heap/image"
)

func init() {
	rootCmd.AddCommand(newStatsCmd())
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <image>",
		Short: "Show heap usage statistics",
		Long: `The stats command summarizes how the heap is carved up: block counts,
used and free bytes, header overhead, the largest free block (the biggest
request that can currently succeed) and fragmentation.

Example:
  heapctl stats app.heap
  heapctl stats app.heap --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(args)
		},
	}
}

// HeapStats is the stats command's report.
type HeapStats struct {
	Path          string  `json:"path"`
	Capacity      int     `json:"capacity"`
	Blocks        int     `json:"blocks"`
	UsedBlocks    int     `json:"usedBlocks"`
	FreeBlocks    int     `json:"freeBlocks"`
	UsedBytes     int     `json:"usedBytes"`
	FreeBytes     int     `json:"freeBytes"`
	Overhead      int     `json:"overhead"`
	LargestFree   int     `json:"largestFree"`
	Fragmentation float64 `json:"fragmentation"`
}

func runStats(args []string) (err error) {
	path := args[0]
	printVerbose("Opening heap image: %s\n", path)

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
	u := r.Usage()
	stats := HeapStats{
		Path:          path,
		Capacity:      u.Capacity,
		Blocks:        u.Blocks,
		UsedBlocks:    u.UsedBlocks,
		FreeBlocks:    u.FreeBlocks,
		UsedBytes:     u.UsedBytes,
		FreeBytes:     u.FreeBytes,
		Overhead:      u.Overhead,
		LargestFree:   u.LargestFree,
		Fragmentation: u.Fragmentation(),
	}

	if jsonOut {
		return printJSON(stats)
	}
	printStats(stats)
	return nil
}

func printStats(s HeapStats) {
	if quiet {
		return
	}
	p := message.NewPrinter(language.English)
	size := func(n int) string { return humanize.IBytes(uint64(n)) }

	p.Printf("Heap: %s\n", s.Path)
	p.Printf("  Capacity:       %s (%d bytes)\n", size(s.Capacity), s.Capacity)
	p.Printf("  Blocks:         %d (%d used, %d free)\n", s.Blocks, s.UsedBlocks, s.FreeBlocks)
	p.Printf("  Used payload:   %s\n", size(s.UsedBytes))
	p.Printf("  Free payload:   %s\n", size(s.FreeBytes))
	p.Printf("  Header bytes:   %s\n", size(s.Overhead))
	p.Printf("  Largest free:   %s (%d bytes)\n", size(s.LargestFree), s.LargestFree)
	p.Printf("  Fragmentation:  %.1f%%\n", s.Fragmentation*100)
}
