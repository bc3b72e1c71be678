package dirty

// DirtyTracker is the minimal interface for tracking modified byte ranges.
// Buffers report every header write through it; they never flush themselves.
type DirtyTracker interface {
	// Add marks a byte range as dirty.
	// off is the offset from the start of the heap, length is the number of bytes.
	Add(off, length int)
}

// Syncer persists byte ranges of a backing store, typically a memory-mapped file.
type Syncer interface {
	// SyncRange writes back bytes [off, off+n) of the backing store.
	SyncRange(off, n int) error

	// Len returns the size of the backing store in bytes.
	Len() int
}
