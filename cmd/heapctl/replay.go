package main

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joshuapare/fixheap/heap"
	"github.com/joshuapare/fixheap/heap/buffer"
	"github.com/joshuapare/fixheap/heap/raw"
)

func init() {
	rootCmd.AddCommand(newReplayCmd())
}

func newReplayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay <trace.yaml>",
		Short: "Replay allocation traces against an in-memory heap",
		Long: `The replay command runs allocation traces and checks their expectations.
A trace file holds one or more YAML documents, each a separate trace:

  name: fill-and-free
  capacity: 16
  ops:
    - {op: alloc, size: 4, as: a}
    - {op: alloc, size: 4, as: b}
    - {op: chain, want: [used(4), used(4)]}
    - {op: free, ref: a}
    - {op: free, ref: a, expect: double_free}

Operations:
  alloc   allocate size bytes (align defaults to 4); expect ok or fail
  free    free a labelled allocation, or a raw heap offset with "offset"
          expect ok, not_found or double_free
  chain   compare the block chain with want

The chain is verified to tile the heap after every operation.

Example:
  heapctl replay scenarios.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(args)
		},
	}
}

// Trace is one replayable allocation sequence.
type Trace struct {
	Name     string    `yaml:"name"`
	Capacity int       `yaml:"capacity"`
	Ops      []TraceOp `yaml:"ops"`
}

// TraceOp is a single step of a Trace.
type TraceOp struct {
	Op     string   `yaml:"op"`
	Size   int      `yaml:"size"`
	Align  int      `yaml:"align"`
	As     string   `yaml:"as"`
	Ref    string   `yaml:"ref"`
	Offset *int     `yaml:"offset"`
	Expect string   `yaml:"expect"`
	Want   []string `yaml:"want"`
}

// ReplayResult reports the outcome of one trace.
type ReplayResult struct {
	Name   string   `json:"name"`
	Ops    int      `json:"ops"`
	Passed bool     `json:"passed"`
	Error  string   `json:"error,omitempty"`
	Chain  []string `json:"chain"`
}

// readTraces decodes every YAML document in r.
func readTraces(r io.Reader) ([]Trace, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var traces []Trace
	for {
		var t Trace
		err := dec.Decode(&t)
		if errors.Is(err, io.EOF) {
			return traces, nil
		}
		if err != nil {
			return nil, fmt.Errorf("trace %d: %w", len(traces)+1, err)
		}
		if t.Name == "" {
			t.Name = fmt.Sprintf("trace-%d", len(traces)+1)
		}
		traces = append(traces, t)
	}
}

func runReplay(args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	traces, err := readTraces(f)
	if err != nil {
		return err
	}

	results := make([]ReplayResult, 0, len(traces))
	failed := 0
	for _, t := range traces {
		res := replayTrace(t)
		if !res.Passed {
			failed++
		}
		results = append(results, res)
	}

	if jsonOut {
		if err := printJSON(results); err != nil {
			return err
		}
	} else {
		for _, res := range results {
			if res.Passed {
				printInfo("PASS %s (%d ops)\n", res.Name, res.Ops)
				printVerbose("     %s\n", strings.Join(res.Chain, " "))
			} else {
				printInfo("FAIL %s: %s\n", res.Name, res.Error)
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d traces failed", failed, len(results))
	}
	return nil
}

// replayer drives one trace. Allocations go through the public allocator so
// alignment behaves as in library use; frees go through the raw allocator
// over the same buffer so that double frees and unknown pointers surface.
type replayer struct {
	pub    *heap.Allocator
	raw    *raw.Allocator
	labels map[string][]byte
}

func replayTrace(t Trace) ReplayResult {
	res := ReplayResult{Name: t.Name}
	capacity := t.Capacity
	if capacity == 0 {
		capacity = cfg.Capacity
	}

	rp, err := newReplayer(capacity)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	for i, op := range t.Ops {
		res.Ops = i + 1
		if err := rp.apply(op); err != nil {
			res.Error = fmt.Sprintf("op %d (%s): %v", i+1, op.Op, err)
			res.Chain = rp.chain()
			return res
		}
		if err := rp.raw.Verify(); err != nil {
			res.Error = fmt.Sprintf("op %d (%s): %v", i+1, op.Op, err)
			res.Chain = rp.chain()
			return res
		}
	}
	res.Passed = true
	res.Chain = rp.chain()
	return res
}

func newReplayer(capacity int) (*replayer, error) {
	b, err := buffer.New(capacity)
	if err != nil {
		return nil, err
	}
	r, err := raw.Open(b)
	if err != nil {
		return nil, err
	}
	pub, err := heap.Open(b, heap.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return &replayer{pub: pub, raw: r, labels: make(map[string][]byte)}, nil
}

func (rp *replayer) apply(op TraceOp) error {
	switch op.Op {
	case "alloc":
		return rp.alloc(op)
	case "free":
		return rp.free(op)
	case "chain":
		if got := rp.chain(); !slices.Equal(got, op.Want) {
			return fmt.Errorf("chain is %v, want %v", got, op.Want)
		}
		return nil
	default:
		return fmt.Errorf("unknown op %q", op.Op)
	}
}

func (rp *replayer) alloc(op TraceOp) error {
	align := op.Align
	if align == 0 {
		align = 4
	}
	p := rp.pub.Allocate(op.Size, align)

	switch want := cmp.Or(op.Expect, "ok"); {
	case want == "fail" && p != nil:
		return errors.New("allocation succeeded, want failure")
	case want == "ok" && p == nil:
		return errors.New("allocation failed, want success")
	case want != "ok" && want != "fail":
		return fmt.Errorf("alloc cannot expect %q", want)
	}
	if p == nil {
		return nil
	}

	off, _ := rp.pub.OffsetOf(p)
	if addr := rp.raw.Buffer().Base() + uintptr(off); addr%uintptr(align) != 0 {
		return fmt.Errorf("address %#x is not aligned to %d", addr, align)
	}
	if op.As != "" {
		rp.labels[op.As] = p
	}
	return nil
}

func (rp *replayer) free(op TraceOp) error {
	var err error
	switch {
	case op.Offset != nil:
		err = rp.raw.FreeAt(*op.Offset)
	case op.Ref != "":
		p, ok := rp.labels[op.Ref]
		if !ok {
			return fmt.Errorf("unknown allocation %q", op.Ref)
		}
		err = rp.raw.Free(p)
	default:
		return errors.New("free needs ref or offset")
	}

	var got string
	switch {
	case err == nil:
		got = "ok"
	case errors.Is(err, raw.ErrNotFound):
		got = "not_found"
	case errors.Is(err, raw.ErrDoubleFree):
		got = "double_free"
	default:
		return err
	}
	if want := cmp.Or(op.Expect, "ok"); got != want {
		return fmt.Errorf("free returned %s, want %s", got, want)
	}
	return nil
}

func (rp *replayer) chain() []string {
	headers := rp.raw.Headers()
	out := make([]string, len(headers))
	for i, h := range headers {
		out[i] = h.String()
	}
	return out
}
