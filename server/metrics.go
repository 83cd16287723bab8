package server

import "github.com/milanderson/cream/protocol"

// Metrics exposes server-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	// Request records one completed request with its operation and outcome.
	Request(op protocol.RequestCode, code protocol.ResponseCode)
	// ConnQueued records a connection handed to the worker queue.
	ConnQueued()
	// ConnServed records a connection picked up by a worker.
	ConnServed()
}

// NoopMetrics is a Metrics implementation that does nothing.
type NoopMetrics struct{}

// Request records a completed request. NoopMetrics ignores the call.
func (NoopMetrics) Request(protocol.RequestCode, protocol.ResponseCode) {}

// ConnQueued records an enqueued connection. NoopMetrics ignores the call.
func (NoopMetrics) ConnQueued() {}

// ConnServed records a dequeued connection. NoopMetrics ignores the call.
func (NoopMetrics) ConnServed() {}
