package cache

import (
	"bytes"
	"sync"

	"github.com/milanderson/cream/internal/util"
)

// table is the open-addressed map behind the Map interface.
//
// Locking: mu guards every field below it. Get probes under the read lock and
// re-acquires the write lock only when it has to expire entries; Len and Stats
// take the read lock; all mutating operations hold the write lock for their
// full duration.
type table struct {
	mu sync.RWMutex

	slots   []slot
	size    int // live entries only
	oldest  int // least recently inserted live slot, noSlot when empty
	newest  int // most recently inserted live slot, noSlot when empty
	invalid bool

	hash      func([]byte) uint32
	onDestroy func(key, value []byte)
	ttl       int64 // nanoseconds
	clock     Clock
	metrics   Metrics

	// ---- hot counters (separate cache lines to avoid false sharing) ----
	_      util.CacheLinePad
	hits   util.PaddedAtomicInt64
	misses util.PaddedAtomicInt64
	evicts util.PaddedAtomicUint64
}

// New constructs a Map with the provided Options.
// The slot array is allocated once and never resized.
func New(opt Options) (Map, error) {
	if opt.Capacity < 1 {
		return nil, NewErrInvalidCapacity(opt.Capacity)
	}
	o := opt.withDefaults()

	t := &table{
		slots:     make([]slot, o.Capacity),
		oldest:    noSlot,
		newest:    noSlot,
		hash:      o.Hash,
		onDestroy: o.OnDestroy,
		ttl:       int64(o.TTL),
		clock:     o.Clock,
		metrics:   o.Metrics,
	}
	for i := range t.slots {
		t.slots[i].prev, t.slots[i].next = noSlot, noSlot
	}
	return t, nil
}

// ---- Map implementation ----

// Put inserts or replaces key→value, taking ownership of both slices.
func (t *table) Put(key, value []byte, force bool) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := checkValue(value); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.invalid {
		return NewErrMapInvalid("put")
	}

	n := len(t.slots)
	h := int(t.hash(key) % uint32(n))

	// Pass 1: replacement. Scan the whole probe window so a duplicate key is
	// found regardless of intervening tombstones, consistent with lookup.
	for i := 0; i < n; i++ {
		idx := (h + i) % n
		s := &t.slots[idx]
		if s.state == slotLive && bytes.Equal(s.key, key) {
			t.unlink(idx)
			t.destroySlot(s)
			t.writeEntry(idx, key, value)
			// Replacement: size unchanged, entry becomes newest.
			return nil
		}
	}

	// Pass 2: placement into the first Empty or Tombstone slot.
	for i := 0; i < n; i++ {
		idx := (h + i) % n
		s := &t.slots[idx]
		if s.state != slotLive {
			if s.holdsBytes() {
				// Lazily deleted tombstone: release its bytes now.
				t.destroySlot(s)
			}
			t.writeEntry(idx, key, value)
			t.size++
			t.metrics.Size(t.size)
			return nil
		}
	}

	// Full table, no tombstones.
	if !force {
		return NewErrMapFull(n)
	}
	victim := t.oldest
	t.unlink(victim)
	t.destroySlot(&t.slots[victim])
	t.writeEntry(victim, key, value)
	t.evicts.Add(1)
	t.metrics.Evict(EvictCapacity)
	t.metrics.Size(t.size)
	return nil
}

// Get returns a caller-owned copy of the value stored under key.
func (t *table) Get(key []byte) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}

	t.mu.RLock()
	if t.invalid {
		t.mu.RUnlock()
		return nil, NewErrMapInvalid("get")
	}

	idx := t.probe(key)
	if idx == noSlot {
		t.mu.RUnlock()
		t.misses.Add(1)
		t.metrics.Miss()
		return nil, NewErrKeyNotFound()
	}
	if !t.expired(&t.slots[idx]) {
		out := append([]byte(nil), t.slots[idx].val...)
		t.mu.RUnlock()
		t.hits.Add(1)
		t.metrics.Hit()
		return out, nil
	}
	t.mu.RUnlock()

	// Expired match: upgrade to the write lock and re-probe, since the table
	// may have changed between the two critical sections.
	t.mu.Lock()
	if t.invalid {
		t.mu.Unlock()
		return nil, NewErrMapInvalid("get")
	}
	idx = t.probe(key)
	if idx == noSlot {
		t.mu.Unlock()
		t.misses.Add(1)
		t.metrics.Miss()
		return nil, NewErrKeyNotFound()
	}
	if !t.expired(&t.slots[idx]) {
		// A concurrent Put refreshed the entry; serve it.
		out := append([]byte(nil), t.slots[idx].val...)
		t.mu.Unlock()
		t.hits.Add(1)
		t.metrics.Hit()
		return out, nil
	}
	t.expireChain(idx)
	t.mu.Unlock()
	t.misses.Add(1)
	t.metrics.Miss()
	return nil, NewErrKeyNotFound()
}

// Delete removes key if present. The slot becomes a tombstone that keeps its
// bytes until reclaimed; the destructor runs at reclaim time, exactly once.
func (t *table) Delete(key []byte) (bool, error) {
	if err := checkKey(key); err != nil {
		return false, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.invalid {
		return false, NewErrMapInvalid("delete")
	}
	idx := t.probe(key)
	if idx == noSlot {
		return false, nil
	}
	t.unlink(idx)
	t.slots[idx].state = slotTombstone
	t.size--
	t.metrics.Size(t.size)
	return true, nil
}

// Clear destroys every held entry and resets the map to empty.
func (t *table) Clear() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.invalid {
		return NewErrMapInvalid("clear")
	}
	for i := range t.slots {
		s := &t.slots[i]
		if s.holdsBytes() {
			t.destroySlot(s)
		}
		s.state = slotEmpty
		s.prev, s.next = noSlot, noSlot
		s.putTime = 0
	}
	t.oldest, t.newest = noSlot, noSlot
	t.size = 0
	t.metrics.Size(0)
	return nil
}

// Invalidate destroys every held entry and permanently disables the map.
func (t *table) Invalidate() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.invalid {
		return NewErrMapInvalid("invalidate")
	}
	for i := range t.slots {
		if t.slots[i].holdsBytes() {
			t.destroySlot(&t.slots[i])
		}
	}
	t.slots = nil
	t.oldest, t.newest = noSlot, noSlot
	t.size = 0
	t.invalid = true
	t.metrics.Size(0)
	return nil
}

// Len returns the number of live entries.
func (t *table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.size
}

// Stats returns a snapshot of the map's counters.
func (t *table) Stats() Stats {
	t.mu.RLock()
	size, capacity := t.size, len(t.slots)
	t.mu.RUnlock()
	return Stats{
		Hits:      t.hits.Load(),
		Misses:    t.misses.Load(),
		Evictions: t.evicts.Load(),
		Size:      size,
		Capacity:  capacity,
	}
}

// -------------------- internals (mu held) --------------------

// probe walks the linear probe chain for key. It returns the index of the
// Live match, or noSlot if an Empty slot terminates the chain first or the
// whole window is exhausted. Tombstones never terminate the search.
func (t *table) probe(key []byte) int {
	n := len(t.slots)
	h := int(t.hash(key) % uint32(n))
	for i := 0; i < n; i++ {
		idx := (h + i) % n
		s := &t.slots[idx]
		if s.state == slotEmpty {
			return noSlot
		}
		if s.state == slotLive && bytes.Equal(s.key, key) {
			return idx
		}
	}
	return noSlot
}

// writeEntry stores the pair into idx, stamps the insertion time, and appends
// the slot as newest.
func (t *table) writeEntry(idx int, key, value []byte) {
	s := &t.slots[idx]
	s.key = key
	s.val = value
	s.putTime = t.clock.NowUnixNano()
	s.state = slotLive
	t.linkNewest(idx)
}

// expired reports whether a live slot is older than the TTL.
func (t *table) expired(s *slot) bool {
	return t.clock.NowUnixNano()-s.putTime > t.ttl
}

// expireChain removes the slot at idx and every insertion-order ancestor
// reachable via prev. Inserts are totally ordered and the TTL is uniform, so
// everything older than an expired entry is expired too.
func (t *table) expireChain(idx int) {
	for cur := idx; cur != noSlot; {
		prev := t.slots[cur].prev
		t.unlink(cur)
		t.destroySlot(&t.slots[cur])
		t.slots[cur].state = slotTombstone
		t.size--
		t.evicts.Add(1)
		t.metrics.Evict(EvictTTL)
		cur = prev
	}
	t.metrics.Size(t.size)
}

// destroySlot invokes the destructor on the slot's held bytes and drops them.
func (t *table) destroySlot(s *slot) {
	if s.key == nil && s.val == nil {
		return
	}
	t.onDestroy(s.key, s.val)
	s.key, s.val = nil, nil
}

// ---- argument checks ----

func checkKey(key []byte) error {
	if len(key) < MinKeySize || len(key) > MaxKeySize {
		return NewErrBadKey(len(key))
	}
	return nil
}

func checkValue(value []byte) error {
	if len(value) < MinValueSize || len(value) > MaxValueSize {
		return NewErrBadValue(len(value))
	}
	return nil
}
