package slotpool

import "errors"

var (
	// ErrInvalidCapacity is returned by New when capacity < 1.
	ErrInvalidCapacity = errors.New("slotpool: capacity must be at least 1")

	// ErrInvalidLoadFactor is returned by New when the load factor is not a
	// positive number or yields more buckets than the index can address.
	ErrInvalidLoadFactor = errors.New("slotpool: load factor must be greater than 0")

	// ErrNilHasher is returned by New when no hash function is given.
	ErrNilHasher = errors.New("slotpool: hasher is required")
)
