// Package prom exports cache and server metrics as Prometheus collectors.
package prom

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/milanderson/cream/cache"
	"github.com/milanderson/cream/protocol"
	"github.com/milanderson/cream/server"
)

// CacheAdapter implements cache.Metrics and exports Prometheus counters/gauges.
// Safe for concurrent use; all Prometheus metric types are goroutine-safe.
type CacheAdapter struct {
	hits    prometheus.Counter
	misses  prometheus.Counter
	evicts  *prometheus.CounterVec
	sizeEnt prometheus.Gauge
}

// NewCache constructs a Prometheus adapter for cache.Metrics.
//   - reg:         registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:     Prometheus namespace and subsystem
//   - constLabels: static labels applied to all metrics (may be nil)
func NewCache(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *CacheAdapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &CacheAdapter{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "hits_total",
			Help:        "Cache hits",
			ConstLabels: constLabels,
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "misses_total",
			Help:        "Cache misses",
			ConstLabels: constLabels,
		}),
		evicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "evictions_total",
				Help:        "Cache evictions by reason",
				ConstLabels: constLabels,
			},
			[]string{"reason"},
		),
		sizeEnt: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "size_entries",
			Help:        "Number of live entries",
			ConstLabels: constLabels,
		}),
	}
	reg.MustRegister(a.hits, a.misses, a.evicts, a.sizeEnt)
	return a
}

// Hit increments the hit counter.
func (a *CacheAdapter) Hit() { a.hits.Inc() }

// Miss increments the miss counter.
func (a *CacheAdapter) Miss() { a.misses.Inc() }

// Evict increments the eviction counter with a reason label.
func (a *CacheAdapter) Evict(r cache.EvictReason) {
	a.evicts.WithLabelValues(reason(r)).Inc()
}

// Size updates the live-entry gauge.
func (a *CacheAdapter) Size(entries int) {
	a.sizeEnt.Set(float64(entries))
}

// reason maps EvictReason to a stable label value.
func reason(r cache.EvictReason) string {
	switch r {
	case cache.EvictTTL:
		return "ttl"
	default:
		return "capacity"
	}
}

// ServerAdapter implements server.Metrics: per-request counters labeled by
// operation and outcome, plus a gauge of connections waiting for a worker.
type ServerAdapter struct {
	requests *prometheus.CounterVec
	queued   prometheus.Gauge
}

// NewServer constructs a Prometheus adapter for server.Metrics.
func NewServer(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *ServerAdapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &ServerAdapter{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "requests_total",
				Help:        "Requests served by operation and response code",
				ConstLabels: constLabels,
			},
			[]string{"op", "code"},
		),
		queued: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "connections_queued",
			Help:        "Connections waiting for a worker",
			ConstLabels: constLabels,
		}),
	}
	reg.MustRegister(a.requests, a.queued)
	return a
}

// Request increments the request counter with op and code labels.
func (a *ServerAdapter) Request(op protocol.RequestCode, code protocol.ResponseCode) {
	a.requests.WithLabelValues(opLabel(op), codeLabel(code)).Inc()
}

// ConnQueued bumps the queue-depth gauge.
func (a *ServerAdapter) ConnQueued() { a.queued.Inc() }

// ConnServed lowers the queue-depth gauge.
func (a *ServerAdapter) ConnServed() { a.queued.Dec() }

func opLabel(op protocol.RequestCode) string {
	switch op {
	case protocol.CmdPut:
		return "put"
	case protocol.CmdGet:
		return "get"
	case protocol.CmdEvict:
		return "evict"
	case protocol.CmdClear:
		return "clear"
	default:
		return strconv.FormatUint(uint64(op), 10)
	}
}

func codeLabel(code protocol.ResponseCode) string {
	switch code {
	case protocol.StatusOK:
		return "ok"
	case protocol.StatusNotFound:
		return "not_found"
	case protocol.StatusBadRequest:
		return "bad_request"
	case protocol.StatusUnsupported:
		return "unsupported"
	default:
		return strconv.FormatUint(uint64(code), 10)
	}
}

// Compile-time checks: ensure the adapters implement their interfaces.
var (
	_ cache.Metrics  = (*CacheAdapter)(nil)
	_ server.Metrics = (*ServerAdapter)(nil)
)
