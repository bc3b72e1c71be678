package raw

import "errors"

var (
	// ErrNotFound indicates a free of memory that no block payload contains:
	// the pointer is foreign, addresses a header, or is otherwise stale.
	ErrNotFound = errors.New("raw: allocation not found")

	// ErrDoubleFree indicates a free of a block that is already free.
	// The block is left untouched.
	ErrDoubleFree = errors.New("raw: double free detected")
)
