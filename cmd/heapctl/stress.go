package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/joshuapare/fixheap/heap"
)

var (
	stressCapacity string
	stressWorkers  int
	stressOps      int
	stressMaxSize  int
	stressRate     float64
	stressSeed     uint64
)

func init() {
	cmd := newStressCmd()
	cmd.Flags().StringVarP(&stressCapacity, "capacity", "c", "", "Heap capacity (default from FIXHEAP_CAPACITY)")
	cmd.Flags().IntVarP(&stressWorkers, "workers", "w", 4, "Concurrent goroutines sharing the allocator")
	cmd.Flags().IntVarP(&stressOps, "ops", "n", 10000, "Operations per worker")
	cmd.Flags().IntVar(&stressMaxSize, "max-size", 256, "Largest allocation size in bytes")
	cmd.Flags().Float64Var(&stressRate, "rate", 0, "Operations per second across all workers (0 = unlimited)")
	cmd.Flags().Uint64Var(&stressSeed, "seed", 1, "Random seed")
	rootCmd.AddCommand(cmd)
}

func newStressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stress",
		Short: "Exercise one allocator from many goroutines",
		Long: `The stress command runs workers that randomly allocate (with random
alignments), fill, check and free blocks of a shared in-memory heap. Each
worker verifies that its blocks are never overwritten by another worker.
When all workers finish, the block chain is verified.

Example:
  heapctl stress --workers 8 --ops 100000
  heapctl stress --capacity 4KiB --rate 500`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStress(cmd.Context())
		},
	}
}

// StressReport summarizes a stress run.
type StressReport struct {
	Workers       int           `json:"workers"`
	Ops           int64         `json:"ops"`
	Allocs        int64         `json:"allocs"`
	Failures      int64         `json:"failures"`
	Frees         int64         `json:"frees"`
	Elapsed       time.Duration `json:"elapsed"`
	Fragmentation float64       `json:"fragmentation"`
}

type stressCounters struct {
	ops, allocs, failures, frees atomic.Int64
}

func runStress(ctx context.Context) error {
	capacity, err := parseSize(stressCapacity, cfg.Capacity)
	if err != nil {
		return err
	}
	if stressWorkers < 1 || stressMaxSize < 1 {
		return fmt.Errorf("--workers and --max-size must be positive")
	}

	a, err := heap.New(capacity, heap.WithLogger(logger))
	if err != nil {
		return err
	}

	var limiter *rate.Limiter
	if stressRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(stressRate), stressWorkers)
	}

	var c stressCounters
	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for w := range stressWorkers {
		g.Go(func() error {
			return stressWorker(ctx, a, w, limiter, &c)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := a.Verify(); err != nil {
		return fmt.Errorf("heap corrupt after stress run: %w", err)
	}

	report := StressReport{
		Workers:       stressWorkers,
		Ops:           c.ops.Load(),
		Allocs:        c.allocs.Load(),
		Failures:      c.failures.Load(),
		Frees:         c.frees.Load(),
		Elapsed:       time.Since(start),
		Fragmentation: a.Usage().Fragmentation(),
	}
	logger.Debug("stress finished", "ops", report.Ops, "elapsed", report.Elapsed)

	if jsonOut {
		return printJSON(report)
	}
	printInfo("%d workers, %d ops in %v\n", report.Workers, report.Ops, report.Elapsed.Round(time.Millisecond))
	printInfo("  allocations: %d (%d failed)\n", report.Allocs, report.Failures)
	printInfo("  frees:       %d\n", report.Frees)
	printInfo("  chain:       OK (fragmentation %.1f%%)\n", report.Fragmentation*100)
	return nil
}

// stressWorker fills every block it owns with its own marker byte and checks
// the marker before freeing.
func stressWorker(ctx context.Context, a *heap.Allocator, id int, limiter *rate.Limiter, c *stressCounters) error {
	rng := rand.New(rand.NewPCG(stressSeed, uint64(id)))
	marker := byte(id + 1)
	var live [][]byte

	release := func(i int) error {
		p := live[i]
		for _, b := range p {
			if b != marker {
				return fmt.Errorf("worker %d: block of %d bytes overwritten", id, len(p))
			}
		}
		a.Deallocate(p, len(p))
		c.frees.Add(1)
		live[i] = live[len(live)-1]
		live = live[:len(live)-1]
		return nil
	}

	for range stressOps {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return err
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		c.ops.Add(1)

		if len(live) > 0 && rng.IntN(2) == 0 {
			if err := release(rng.IntN(len(live))); err != nil {
				return err
			}
			continue
		}

		size := 1 + rng.IntN(stressMaxSize)
		p := a.Allocate(size, 1<<rng.IntN(6))
		c.allocs.Add(1)
		if p == nil {
			c.failures.Add(1)
			continue
		}
		for i := range p {
			p[i] = marker
		}
		live = append(live, p)
	}

	for len(live) > 0 {
		if err := release(len(live) - 1); err != nil {
			return err
		}
	}
	return nil
}
