// Package image stores heaps in files.
//
// A heap image is a 16-byte header (signature, version, capacity, checksum)
// followed by the heap's block chain, exactly as the allocator sees it in
// memory. Images are memory-mapped read-write, so allocations made through
// Image.Allocator modify the file's pages directly. Every header rewrite is
// recorded by a dirty.Tracker and Flush msyncs only the affected pages; Sync
// writes back everything, payloads included.
//
// Snapshots are compressed copies of a whole image (zstd or lz4) for
// archiving and transfer. Restore validates a snapshot before writing it out
// as a new image.
package image
