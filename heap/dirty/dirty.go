// Package dirty provides tracking and flushing of modified pages in
// file-backed heaps.
//
// The tracker maintains a list of dirty byte ranges, coalesces them into
// page-aligned ranges, and flushes them through a Syncer (msync on Unix).
// Only pages holding rewritten block headers are touched; payload writes made
// by allocator clients are the clients' business and are persisted by a full
// flush.
package dirty

import (
	"context"
	"sort"
	"sync"
)

const (
	// defaultRangeCapacity is the pre-allocated capacity for dirty ranges.
	defaultRangeCapacity = 64

	// StandardPageSize is the typical OS page size (4KB).
	StandardPageSize = 4096
)

// Range represents a dirty byte range in backing-store coordinates.
type Range struct {
	Off int64 // Absolute offset in the backing store
	Len int64 // Length in bytes
}

// End returns the exclusive end offset of the range.
func (r Range) End() int64 { return r.Off + r.Len }

// Tracker accumulates dirty ranges and flushes them efficiently.
//
// Offsets passed to Add are heap offsets; base translates them into
// backing-store offsets (a heap image stores its chain after a small header).
type Tracker struct {
	mu       sync.Mutex
	ranges   []Range
	pageSize int64
	base     int64
}

// NewTracker creates a tracker whose heap starts at byte base of the
// backing store.
func NewTracker(base int) *Tracker {
	return &Tracker{
		ranges:   make([]Range, 0, defaultRangeCapacity),
		pageSize: StandardPageSize,
		base:     int64(base),
	}
}

// Add records a dirty range.
//
// The range will be page-aligned and coalesced with other ranges at flush time.
func (t *Tracker) Add(off, length int) {
	t.mu.Lock()
	t.ranges = append(t.ranges, Range{
		Off: t.base + int64(off),
		Len: int64(length),
	})
	t.mu.Unlock()
}

// Pending reports the number of uncoalesced ranges waiting for a flush.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.ranges)
}

// Flush coalesces all dirty ranges and writes each through s.
//
// The context is checked between ranges; when cancelled, the ranges that
// were not yet written stay queued for the next flush.
func (t *Tracker) Flush(ctx context.Context, s Syncer) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.ranges) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	limit := int64(s.Len())
	pending := t.coalesceLocked()
	for i, r := range pending {
		if err := ctx.Err(); err != nil {
			t.ranges = append(t.ranges[:0], pending[i:]...)
			return err
		}
		end := min(r.End(), limit)
		if r.Off >= end {
			continue
		}
		if err := s.SyncRange(int(r.Off), int(end-r.Off)); err != nil {
			t.ranges = append(t.ranges[:0], pending[i:]...)
			return err
		}
	}

	t.ranges = t.ranges[:0]
	return nil
}

// Reset clears all tracked ranges.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.ranges = t.ranges[:0]
	t.mu.Unlock()
}

// DebugRanges returns a copy of the raw, uncoalesced ranges.
func (t *Tracker) DebugRanges() []Range {
	t.mu.Lock()
	defer t.mu.Unlock()
	result := make([]Range, len(t.ranges))
	copy(result, t.ranges)
	return result
}

// DebugCoalescedRanges returns the page-aligned, sorted, merged ranges that
// the next Flush would write.
func (t *Tracker) DebugCoalescedRanges() []Range {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.coalesceLocked()
}

// coalesceLocked page-aligns all ranges, sorts them, and merges
// overlapping or adjacent ranges.
func (t *Tracker) coalesceLocked() []Range {
	if len(t.ranges) == 0 {
		return nil
	}

	aligned := make([]Range, len(t.ranges))
	for i, r := range t.ranges {
		start := (r.Off / t.pageSize) * t.pageSize
		end := r.End()
		if end%t.pageSize != 0 {
			end = ((end / t.pageSize) + 1) * t.pageSize
		}
		aligned[i] = Range{Off: start, Len: end - start}
	}

	sort.Slice(aligned, func(i, j int) bool {
		return aligned[i].Off < aligned[j].Off
	})

	merged := make([]Range, 0, len(aligned))
	current := aligned[0]
	for _, next := range aligned[1:] {
		if next.Off <= current.End() {
			current.Len = max(current.End(), next.End()) - current.Off
			continue
		}
		merged = append(merged, current)
		current = next
	}
	return append(merged, current)
}
