// Package server assembles the cache, the connection queue, and the worker
// pool into a TCP service speaking the cream wire protocol. Each accepted
// connection carries exactly one request and receives exactly one response.
package server

import (
	"errors"
	"fmt"
	"net"

	"github.com/milanderson/cream/cache"
	"github.com/milanderson/cream/queue"
)

// Options configures a Server.
type Options struct {
	// Addr is the TCP listen address, e.g. ":9001".
	Addr string

	// Workers is the number of goroutines servicing connections. Must be >= 1.
	Workers int

	// Cache is the store requests are dispatched into. Required.
	Cache cache.Map

	// Logger for accept/worker diagnostics. NoopLogger by default.
	Logger Logger

	// Metrics receives request and queue signals. NoopMetrics by default.
	Metrics Metrics
}

// Server owns the listener, the handoff queue, and the worker pool.
type Server struct {
	ln      net.Listener
	conns   *queue.Queue[net.Conn]
	cache   cache.Map
	workers int
	log     Logger
	metrics Metrics
}

// New binds the listen socket and constructs the server. A bind failure is
// fatal to the caller: there is nothing to serve.
func New(opt Options) (*Server, error) {
	if opt.Workers < 1 {
		return nil, fmt.Errorf("server: workers must be >= 1, got %d", opt.Workers)
	}
	if opt.Cache == nil {
		return nil, fmt.Errorf("server: cache is required")
	}
	if opt.Logger == nil {
		opt.Logger = NoopLogger{}
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}

	ln, err := net.Listen("tcp", opt.Addr)
	if err != nil {
		return nil, fmt.Errorf("server: listen %s: %w", opt.Addr, err)
	}
	return &Server{
		ln:      ln,
		conns:   queue.New[net.Conn](),
		cache:   opt.Cache,
		workers: opt.Workers,
		log:     opt.Logger,
		metrics: opt.Metrics,
	}, nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() net.Addr { return s.ln.Addr() }

// Serve spawns the worker pool and runs the accept loop. Accept failures are
// logged and skipped; the loop ends only when the listener is closed.
func (s *Server) Serve() error {
	for i := 0; i < s.workers; i++ {
		go s.worker(i)
	}

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.Warn("accept failed", "error", err)
			continue
		}
		if err := s.conns.Push(conn); err != nil {
			// Queue invalidated during shutdown; drop the straggler.
			_ = conn.Close()
			return nil
		}
		s.metrics.ConnQueued()
	}
}

// Close shuts the listener and releases the workers. Connections still queued
// are closed unanswered.
func (s *Server) Close() error {
	err := s.ln.Close()
	_ = s.conns.Invalidate(func(c net.Conn) { _ = c.Close() })
	return err
}
