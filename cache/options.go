package cache

import (
	"time"

	"github.com/agilira/go-timecache"

	"github.com/milanderson/cream/internal/util"
)

// Size bounds for keys and values, shared with the wire protocol.
const (
	MinKeySize   = 1
	MaxKeySize   = 64
	MinValueSize = 1
	MaxValueSize = 1024
)

// DefaultTTL is the fixed per-entry lifetime applied when Options.TTL is zero.
const DefaultTTL = 2500 * time.Millisecond

// Clock provides time in UnixNano; useful for deterministic tests.
type Clock interface{ NowUnixNano() int64 }

// systemClock is the production Clock, backed by go-timecache. Cached time is
// precise to about a millisecond, far below the TTL granularity.
type systemClock struct{}

func (systemClock) NowUnixNano() int64 { return timecache.CachedTimeNano() }

// Options configures a Map. Zero values are safe; sane defaults are applied
// in New():
//   - TTL <= 0      => DefaultTTL
//   - nil Hash      => Jenkins one-at-a-time
//   - nil Metrics   => NoopMetrics
//   - nil Clock     => cached system time
//   - nil OnDestroy => no callback
type Options struct {
	// Capacity is the fixed slot count. Must be >= 1.
	Capacity int

	// TTL is the uniform per-entry lifetime. Entries are expired lazily on
	// Get; TTL is not refreshed on read.
	TTL time.Duration

	// Hash maps a key to a bucket fingerprint; the probe starts at
	// Hash(key) mod Capacity. util.Fnv32a is an available alternative.
	Hash func(key []byte) uint32

	// OnDestroy observes every entry destruction exactly once, whether by
	// replacement, eviction, expiry, Clear, or Invalidate. Called under the
	// write lock; keep it lightweight.
	OnDestroy func(key, value []byte)

	// Metrics receives Hit/Miss/Evict/Size signals. NoopMetrics by default.
	Metrics Metrics

	// Clock allows overriding the time source (tests).
	Clock Clock
}

func (opt *Options) withDefaults() Options {
	o := *opt
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	if o.Hash == nil {
		o.Hash = util.Jenkins32
	}
	if o.Metrics == nil {
		o.Metrics = NoopMetrics{}
	}
	if o.Clock == nil {
		o.Clock = systemClock{}
	}
	if o.OnDestroy == nil {
		o.OnDestroy = func(_, _ []byte) {}
	}
	return o
}
