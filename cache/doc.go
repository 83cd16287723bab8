// Package cache provides a fixed-capacity, concurrent, in-memory byte-keyed
// map with per-entry TTL and insertion-order eviction.
//
// Design
//
//   - Storage: a single slot array using open addressing with linear probing.
//     A slot is Empty, Live, or a Tombstone. Tombstones are skipped by lookup
//     but reused by insertion, so probe chains stay intact across deletions.
//     The array length is fixed for the life of the map; there is no rehash.
//
//   - Eviction order: Live slots are threaded into a doubly linked list through
//     slot indices (no heap nodes), anchored by oldest and newest. A Put that
//     replaces an existing key moves the slot to newest: replacement counts as
//     a fresh insertion. When the table is full, a forced Put always evicts
//     oldest.
//
//   - TTL: every entry carries its insertion time and expires TTL after it was
//     written. Expiration is lazy, on Get. Because inserts are totally ordered
//     and the TTL is uniform, an expired match implies every insertion-order
//     ancestor is expired too, so Get removes the whole prev-chain in one pass.
//
//   - Concurrency: a sync.RWMutex. Get takes the read lock on the fast path
//     and upgrades to the write lock only when it must expire entries. All
//     mutating operations take the write lock. Externally visible map state is
//     sequentially consistent at operation boundaries.
//
//   - Ownership: Put takes ownership of the key and value slices until the
//     entry is destroyed; Options.OnDestroy observes each destruction exactly
//     once. Get returns a fresh copy the caller owns.
//
// Basic usage
//
//	m, err := cache.New(cache.Options{Capacity: 1024})
//	if err != nil {
//	    // handle
//	}
//	_ = m.Put([]byte("a"), []byte("1"), true)
//	if v, err := m.Get([]byte("a")); err == nil {
//	    _ = v // caller-owned copy
//	}
//
// Errors are classified with IsBadArgs, IsFull, and IsNotFound; see errors.go
// for the underlying codes.
package cache
