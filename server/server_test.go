package server

import (
	"encoding/binary"
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/milanderson/cream/cache"
	"github.com/milanderson/cream/protocol"
)

// fakeClock is an atomically advanced test clock: the test goroutine moves
// time forward while workers read it.
type fakeClock struct{ t atomic.Int64 }

func (f *fakeClock) NowUnixNano() int64  { return f.t.Load() }
func (f *fakeClock) add(d time.Duration) { f.t.Add(int64(d)) }

// startServer brings up a full server on an ephemeral port: capacity-4 cache,
// injected clock, single worker unless stated otherwise.
func startServer(t *testing.T, clk cache.Clock, workers int) (*Server, cache.Map) {
	t.Helper()

	store, err := cache.New(cache.Options{Capacity: 4, Clock: clk})
	require.NoError(t, err)

	srv, err := New(Options{
		Addr:    "127.0.0.1:0",
		Workers: workers,
		Cache:   store,
	})
	require.NoError(t, err)
	go func() { _ = srv.Serve() }()
	t.Cleanup(func() { _ = srv.Close() })
	return srv, store
}

// roundTrip performs one request/response exchange on a fresh connection and
// verifies the server closes the connection afterwards.
func roundTrip(t *testing.T, addr string, req protocol.Request) protocol.Response {
	t.Helper()

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	buf := make([]byte, protocol.MessageSize)
	n, err := protocol.EncodeRequest(buf, req)
	require.NoError(t, err)
	_, err = conn.Write(buf[:n])
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	n, err = conn.Read(buf)
	require.NoError(t, err)

	resp, err := protocol.DecodeResponse(buf[:n])
	require.NoError(t, err)

	// One response per connection: the next read must be EOF.
	_, err = conn.Read(buf[:1])
	require.ErrorIs(t, err, io.EOF)

	// Decouple from the shared buffer before it is reused.
	resp.Value = append([]byte(nil), resp.Value...)
	return resp
}

// S1: PUT then GET returns the stored bytes.
func TestServer_PutGet(t *testing.T) {
	t.Parallel()

	srv, _ := startServer(t, &fakeClock{}, 1)
	addr := srv.Addr().String()

	resp := roundTrip(t, addr, protocol.Request{Code: protocol.CmdPut, Key: []byte("a"), Value: []byte("1")})
	require.Equal(t, protocol.StatusOK, resp.Code)
	require.Empty(t, resp.Value)

	resp = roundTrip(t, addr, protocol.Request{Code: protocol.CmdGet, Key: []byte("a")})
	require.Equal(t, protocol.StatusOK, resp.Code)
	require.Equal(t, []byte("1"), resp.Value)
}

// S2: GET on an unknown key reports NOT_FOUND with an empty body.
func TestServer_GetMissing(t *testing.T) {
	t.Parallel()

	srv, _ := startServer(t, &fakeClock{}, 1)

	resp := roundTrip(t, srv.Addr().String(), protocol.Request{Code: protocol.CmdGet, Key: []byte("missing")})
	require.Equal(t, protocol.StatusNotFound, resp.Code)
	require.Empty(t, resp.Value)
}

// S3: the fifth PUT into a capacity-4 cache evicts the first key.
func TestServer_EvictionOrder(t *testing.T) {
	t.Parallel()

	srv, _ := startServer(t, &fakeClock{}, 1)
	addr := srv.Addr().String()

	keys := []string{"a", "b", "c", "d", "e"}
	for i, k := range keys {
		resp := roundTrip(t, addr, protocol.Request{
			Code:  protocol.CmdPut,
			Key:   []byte(k),
			Value: []byte{byte('1' + i)},
		})
		require.Equal(t, protocol.StatusOK, resp.Code)
	}

	resp := roundTrip(t, addr, protocol.Request{Code: protocol.CmdGet, Key: []byte("a")})
	require.Equal(t, protocol.StatusNotFound, resp.Code)

	resp = roundTrip(t, addr, protocol.Request{Code: protocol.CmdGet, Key: []byte("e")})
	require.Equal(t, protocol.StatusOK, resp.Code)
	require.Equal(t, []byte("5"), resp.Value)
}

// S4: an entry older than the TTL is not served and leaves the table empty.
func TestServer_TTLExpiry(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{}
	srv, store := startServer(t, clk, 1)
	addr := srv.Addr().String()

	resp := roundTrip(t, addr, protocol.Request{Code: protocol.CmdPut, Key: []byte("a"), Value: []byte("1")})
	require.Equal(t, protocol.StatusOK, resp.Code)

	clk.add(3 * time.Second)

	resp = roundTrip(t, addr, protocol.Request{Code: protocol.CmdGet, Key: []byte("a")})
	require.Equal(t, protocol.StatusNotFound, resp.Code)
	require.Equal(t, 0, store.Len())
}

// S5: EVICT removes the key and succeeds whether or not it was present.
func TestServer_Evict(t *testing.T) {
	t.Parallel()

	srv, _ := startServer(t, &fakeClock{}, 1)
	addr := srv.Addr().String()

	resp := roundTrip(t, addr, protocol.Request{Code: protocol.CmdPut, Key: []byte("a"), Value: []byte("1")})
	require.Equal(t, protocol.StatusOK, resp.Code)

	resp = roundTrip(t, addr, protocol.Request{Code: protocol.CmdEvict, Key: []byte("a")})
	require.Equal(t, protocol.StatusOK, resp.Code)

	resp = roundTrip(t, addr, protocol.Request{Code: protocol.CmdGet, Key: []byte("a")})
	require.Equal(t, protocol.StatusNotFound, resp.Code)

	resp = roundTrip(t, addr, protocol.Request{Code: protocol.CmdEvict, Key: []byte("a")})
	require.Equal(t, protocol.StatusOK, resp.Code)
}

// CLEAR empties the store over the wire.
func TestServer_Clear(t *testing.T) {
	t.Parallel()

	srv, store := startServer(t, &fakeClock{}, 1)
	addr := srv.Addr().String()

	for _, k := range []string{"a", "b"} {
		resp := roundTrip(t, addr, protocol.Request{Code: protocol.CmdPut, Key: []byte(k), Value: []byte("v")})
		require.Equal(t, protocol.StatusOK, resp.Code)
	}

	resp := roundTrip(t, addr, protocol.Request{Code: protocol.CmdClear})
	require.Equal(t, protocol.StatusOK, resp.Code)
	require.Equal(t, 0, store.Len())

	resp = roundTrip(t, addr, protocol.Request{Code: protocol.CmdGet, Key: []byte("a")})
	require.Equal(t, protocol.StatusNotFound, resp.Code)
}

// S6: an unknown request code is answered with UNSUPPORTED.
func TestServer_UnsupportedCode(t *testing.T) {
	t.Parallel()

	srv, _ := startServer(t, &fakeClock{}, 1)

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	hdr := make([]byte, protocol.RequestHeaderSize)
	binary.LittleEndian.PutUint32(hdr[0:4], 0xFF)
	_, err = conn.Write(hdr)
	require.NoError(t, err)

	buf := make([]byte, protocol.MessageSize)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	n, err := conn.Read(buf)
	require.NoError(t, err)

	resp, err := protocol.DecodeResponse(buf[:n])
	require.NoError(t, err)
	require.Equal(t, protocol.StatusUnsupported, resp.Code)
	require.Empty(t, resp.Value)
}

// A malformed header (bad key size) is answered with BAD_REQUEST.
func TestServer_BadRequest(t *testing.T) {
	t.Parallel()

	srv, _ := startServer(t, &fakeClock{}, 1)

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	hdr := make([]byte, protocol.RequestHeaderSize)
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(protocol.CmdGet))
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(cache.MaxKeySize+1))
	_, err = conn.Write(hdr)
	require.NoError(t, err)

	buf := make([]byte, protocol.MessageSize)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	n, err := conn.Read(buf)
	require.NoError(t, err)

	resp, err := protocol.DecodeResponse(buf[:n])
	require.NoError(t, err)
	require.Equal(t, protocol.StatusBadRequest, resp.Code)
}

// A request shorter than the header is closed without any response.
func TestServer_ShortRequestClosed(t *testing.T) {
	t.Parallel()

	srv, _ := startServer(t, &fakeClock{}, 1)

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte{0x01, 0x02})
	require.NoError(t, err)
	require.NoError(t, conn.(*net.TCPConn).CloseWrite())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, err = conn.Read(make([]byte, 1))
	require.ErrorIs(t, err, io.EOF)
}

// Requests from many concurrent clients against a multi-worker pool all get
// answered, and distinct keys all land in the cache.
func TestServer_ConcurrentClients(t *testing.T) {
	t.Parallel()

	srv, store := startServer(t, &fakeClock{}, 4)
	addr := srv.Addr().String()

	done := make(chan error, 4)
	for c := 0; c < 4; c++ {
		c := c
		go func() {
			defer func() { done <- nil }()
			key := []byte{byte('a' + c)}
			resp := roundTrip(t, addr, protocol.Request{Code: protocol.CmdPut, Key: key, Value: key})
			require.Equal(t, protocol.StatusOK, resp.Code)
		}()
	}
	for c := 0; c < 4; c++ {
		<-done
	}
	require.Equal(t, 4, store.Len())
}
