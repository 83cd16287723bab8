package server

import (
	"errors"
	"io"
	"net"
	"syscall"

	"github.com/milanderson/cream/cache"
	"github.com/milanderson/cream/protocol"
)

// maxIORetries bounds retries of interrupted reads and writes on the client
// socket before the connection is dropped.
const maxIORetries = 10

// worker services connections until the queue is invalidated. A single
// MessageSize buffer is reused for every request and response on this worker;
// memory per worker stays bounded no matter the client.
func (s *Server) worker(id int) {
	buf := make([]byte, protocol.MessageSize)
	for {
		conn, err := s.conns.Pop()
		if err != nil {
			s.log.Debug("worker exiting", "worker", id)
			return
		}
		s.metrics.ConnServed()
		s.serveConn(conn, buf)
	}
}

// serveConn runs one request/response exchange and closes the connection.
func (s *Server) serveConn(conn net.Conn, buf []byte) {
	defer func() { _ = conn.Close() }()

	n, err := s.readRequest(conn, buf)
	if err != nil {
		s.log.Debug("read failed", "error", err)
		return
	}
	if n < protocol.RequestHeaderSize {
		// Too short to even carry a header; close without responding.
		s.log.Debug("short request", "bytes", n)
		return
	}

	req, derr := protocol.DecodeRequest(buf[:n])
	resp := s.dispatch(req, derr)
	s.metrics.Request(req.Code, resp.Code)

	// The response is encoded into the same arena the request was read into;
	// a GET hit's value is a fresh copy returned by the cache, separate from
	// buf, so overwriting buf is safe.
	total, eerr := protocol.EncodeResponse(buf, resp)
	if eerr != nil {
		s.log.Error("encode failed", "error", eerr)
		return
	}
	s.writeResponse(conn, buf[:total])
}

// dispatch executes one decoded request against the cache and shapes the
// response per the propagation policy: BadArgs→BAD_REQUEST, absent/expired→
// NOT_FOUND, unknown opcode→UNSUPPORTED, success→OK.
func (s *Server) dispatch(req protocol.Request, derr error) protocol.Response {
	if derr != nil {
		if protocol.IsUnsupported(derr) {
			return protocol.Response{Code: protocol.StatusUnsupported}
		}
		return protocol.Response{Code: protocol.StatusBadRequest}
	}

	switch req.Code {
	case protocol.CmdGet:
		val, err := s.cache.Get(req.Key)
		switch {
		case err == nil:
			return protocol.Response{Code: protocol.StatusOK, Value: val}
		case cache.IsNotFound(err):
			return protocol.Response{Code: protocol.StatusNotFound}
		default:
			return protocol.Response{Code: protocol.StatusBadRequest}
		}

	case protocol.CmdPut:
		// The request buffer is reused for the response; hand the cache its
		// own copies. Ownership transfers to the cache until destruction.
		key := append([]byte(nil), req.Key...)
		val := append([]byte(nil), req.Value...)
		if err := s.cache.Put(key, val, true); err != nil {
			return protocol.Response{Code: protocol.StatusBadRequest}
		}
		return protocol.Response{Code: protocol.StatusOK}

	case protocol.CmdEvict:
		// OK whether or not the key was present.
		if _, err := s.cache.Delete(req.Key); err != nil {
			return protocol.Response{Code: protocol.StatusBadRequest}
		}
		return protocol.Response{Code: protocol.StatusOK}

	case protocol.CmdClear:
		if err := s.cache.Clear(); err != nil {
			return protocol.Response{Code: protocol.StatusBadRequest}
		}
		return protocol.Response{Code: protocol.StatusOK}

	default:
		// DecodeRequest rejects unknown codes; kept for exhaustiveness.
		return protocol.Response{Code: protocol.StatusUnsupported}
	}
}

// readRequest reads one request with a single Read call, retrying interrupted
// calls and calls that return neither data nor an error, up to maxIORetries.
func (s *Server) readRequest(conn net.Conn, buf []byte) (int, error) {
	for attempt := 0; ; attempt++ {
		n, err := conn.Read(buf)
		if n > 0 {
			return n, nil
		}
		if err == nil && attempt < maxIORetries {
			continue
		}
		if errors.Is(err, syscall.EINTR) && attempt < maxIORetries {
			continue
		}
		return 0, err
	}
}

// writeResponse sends the encoded response, retrying interrupted writes up to
// maxIORetries. A vanished peer is dropped silently.
func (s *Server) writeResponse(conn net.Conn, out []byte) {
	sent := 0
	for attempt := 0; sent < len(out); {
		n, err := conn.Write(out[sent:])
		sent += n
		if err == nil {
			continue
		}
		if errors.Is(err, syscall.EINTR) && attempt < maxIORetries {
			attempt++
			continue
		}
		if errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, io.ErrClosedPipe) {
			// Peer is gone; nothing useful to report to it.
			return
		}
		s.log.Debug("write failed", "error", err)
		return
	}
}
