package index

import "errors"

// Indexing errors.
var (
	// ErrReorgDetected is returned when an incoming block's parent hash
	// does not match the stored hash of the previous height. The store is
	// left at the last committed height; recovery is the caller's concern.
	ErrReorgDetected = errors.New("reorg detected")

	// ErrInsufficientInputs is returned when a transaction's input ranges
	// are exhausted before its outputs are satisfied. This indicates a bug
	// or an inconsistent store, never a valid chain.
	ErrInsufficientInputs = errors.New("insufficient inputs for transaction outputs")

	// ErrMissingOutpoint is returned when an input references an outpoint
	// absent from both the write cache and the store.
	ErrMissingOutpoint = errors.New("outpoint not found in index")
)
