package cache

// slotState tracks the lifecycle of a slot in the open-addressed array.
type slotState uint8

const (
	// slotEmpty — never occupied; terminates a lookup probe.
	slotEmpty slotState = iota
	// slotLive — holds a resident entry, linked into the insertion-order list.
	slotLive
	// slotTombstone — skipped by lookup, reusable by insertion. May still hold
	// key/value bytes from a lazy Delete until the slot is reclaimed.
	slotTombstone
)

// noSlot marks an absent link in the insertion-order list.
const noSlot = -1

// slot is one cell of the table. Live slots are threaded into a doubly linked
// insertion-order list through the prev/next indices (no heap nodes).
type slot struct {
	key []byte
	val []byte

	// putTime is the UnixNano timestamp of the insertion that wrote this
	// entry; replacement resets it.
	putTime int64

	// Insertion-order links: prev is toward oldest, next toward newest.
	prev int
	next int

	state slotState
}

// holdsBytes reports whether the slot still owns entry bytes that have not
// been destroyed — live entries and lazily deleted tombstones.
func (s *slot) holdsBytes() bool { return s.key != nil }

// -------------------- insertion-order list (write lock held) --------------------

// linkNewest appends idx as the newest entry in O(1).
func (t *table) linkNewest(idx int) {
	s := &t.slots[idx]
	s.prev = t.newest
	s.next = noSlot
	if t.newest != noSlot {
		t.slots[t.newest].next = idx
	} else {
		t.oldest = idx
	}
	t.newest = idx
}

// unlink detaches idx from the list and fixes the anchors in O(1).
func (t *table) unlink(idx int) {
	s := &t.slots[idx]
	if s.prev != noSlot {
		t.slots[s.prev].next = s.next
	} else if t.oldest == idx {
		t.oldest = s.next
	}
	if s.next != noSlot {
		t.slots[s.next].prev = s.prev
	} else if t.newest == idx {
		t.newest = s.prev
	}
	s.prev, s.next = noSlot, noSlot
}
