package cache

// Map is a bounded, concurrent key/value store with TTL and insertion-order
// eviction. All methods are safe for concurrent use by multiple goroutines.
//
// Keys and values are byte sequences; sizes are bounded by MinKeySize,
// MaxKeySize, MinValueSize, and MaxValueSize.
type Map interface {
	// Put inserts or replaces key→value. The map takes ownership of both
	// slices until the entry is destroyed. Replacing an existing key resets
	// its TTL and makes it the newest entry for eviction purposes.
	//
	// When the table is full and force is true, the oldest entry is evicted
	// to make room; with force false, Put fails with a Full error.
	Put(key, value []byte, force bool) error

	// Get returns a fresh copy of the value stored under key. The caller
	// owns the returned slice; the map's own storage is never aliased.
	// An entry older than the TTL is removed — together with every entry
	// inserted before it — and Get reports NotFound.
	Get(key []byte) ([]byte, error)

	// Delete removes key if present and reports whether it was. The stored
	// bytes are released lazily when the slot is reclaimed.
	Delete(key []byte) (bool, error)

	// Clear destroys every resident entry and resets the map to empty.
	Clear() error

	// Invalidate destroys every resident entry and permanently disables the
	// map. All subsequent operations fail with a BadArgs error.
	Invalidate() error

	// Len returns the number of live entries.
	Len() int

	// Stats returns a snapshot of the map's counters.
	Stats() Stats
}

// Stats is a point-in-time snapshot of map activity.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions uint64
	Size      int
	Capacity  int
}

// HitRatio returns the hit ratio as a percentage (0-100).
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}
