// Package protocol implements the length-prefixed binary request/response
// format the server speaks over TCP.
//
// A request is a fixed 12-byte header — request code, key size, value size,
// little-endian uint32 each, matching the layout of the released binary —
// followed by the key bytes and, for PUT, the value bytes. A response is an
// 8-byte header — response code, value size — followed by the body, which is
// non-empty only for a GET hit. One request and one response per connection.
package protocol

import (
	"encoding/binary"

	"github.com/agilira/go-errors"

	"github.com/milanderson/cream/cache"
)

// RequestCode identifies the operation a client asks for.
type RequestCode uint32

const (
	CmdPut   RequestCode = 0x01
	CmdGet   RequestCode = 0x02
	CmdEvict RequestCode = 0x03
	CmdClear RequestCode = 0x04
)

// ResponseCode identifies the outcome reported to the client.
type ResponseCode uint32

const (
	StatusOK          ResponseCode = 0x01
	StatusNotFound    ResponseCode = 0x02
	StatusBadRequest  ResponseCode = 0x03
	StatusUnsupported ResponseCode = 0x04
)

const (
	// RequestHeaderSize is the fixed width of a request header in bytes.
	RequestHeaderSize = 12
	// ResponseHeaderSize is the fixed width of a response header in bytes.
	ResponseHeaderSize = 8

	// MessageSize bounds a whole request or response buffer: the largest key
	// plus the largest value plus the request header.
	MessageSize = cache.MaxKeySize + cache.MaxValueSize + RequestHeaderSize
)

// Error codes raised by the codec.
const (
	ErrCodeBadRequest  errors.ErrorCode = "CREAM_BAD_REQUEST"
	ErrCodeUnsupported errors.ErrorCode = "CREAM_UNSUPPORTED"
)

// NewErrBadRequest reports a malformed request buffer.
func NewErrBadRequest(reason string) error {
	return errors.NewWithField(ErrCodeBadRequest, "malformed request", "reason", reason)
}

// NewErrUnsupported reports an unknown request code.
func NewErrUnsupported(code uint32) error {
	return errors.NewWithField(ErrCodeUnsupported, "unsupported request code", "code", code)
}

// IsBadRequest reports whether err is a malformed-request error.
func IsBadRequest(err error) bool { return errors.HasCode(err, ErrCodeBadRequest) }

// IsUnsupported reports whether err is an unknown-opcode error.
func IsUnsupported(err error) bool { return errors.HasCode(err, ErrCodeUnsupported) }

// Request is a decoded client request. Key and Value alias the buffer passed
// to DecodeRequest; callers that outlive the buffer must copy them.
type Request struct {
	Code  RequestCode
	Key   []byte
	Value []byte
}

// Response is a server reply ready for encoding.
type Response struct {
	Code  ResponseCode
	Value []byte
}

// DecodeRequest parses and validates one request from buf.
//
// The returned Request carries the parsed code even when an error is
// reported, so callers can still label the failure. Errors are classified by
// IsBadRequest and IsUnsupported; everything else about buf is untouched.
func DecodeRequest(buf []byte) (Request, error) {
	var req Request
	if len(buf) < RequestHeaderSize {
		return req, NewErrBadRequest("short header")
	}
	req.Code = RequestCode(binary.LittleEndian.Uint32(buf[0:4]))
	keySize := int(binary.LittleEndian.Uint32(buf[4:8]))
	valueSize := int(binary.LittleEndian.Uint32(buf[8:12]))

	switch req.Code {
	case CmdGet, CmdEvict:
		// value_size is ignored for key-only operations.
		if keySize < cache.MinKeySize || keySize > cache.MaxKeySize {
			return req, NewErrBadRequest("key size out of bounds")
		}
		if len(buf) < RequestHeaderSize+keySize {
			return req, NewErrBadRequest("truncated key")
		}
		req.Key = buf[RequestHeaderSize : RequestHeaderSize+keySize]
		return req, nil

	case CmdPut:
		if keySize < cache.MinKeySize || keySize > cache.MaxKeySize {
			return req, NewErrBadRequest("key size out of bounds")
		}
		if valueSize < cache.MinValueSize || valueSize > cache.MaxValueSize {
			return req, NewErrBadRequest("value size out of bounds")
		}
		if len(buf) < RequestHeaderSize+keySize+valueSize {
			return req, NewErrBadRequest("truncated payload")
		}
		req.Key = buf[RequestHeaderSize : RequestHeaderSize+keySize]
		req.Value = buf[RequestHeaderSize+keySize : RequestHeaderSize+keySize+valueSize]
		return req, nil

	case CmdClear:
		// No payload.
		return req, nil

	default:
		return req, NewErrUnsupported(uint32(req.Code))
	}
}

// EncodeRequest writes req into buf and returns the number of bytes written.
// buf must hold the header plus the key and value bytes; a MessageSize
// buffer fits any request.
func EncodeRequest(buf []byte, req Request) (int, error) {
	total := RequestHeaderSize + len(req.Key) + len(req.Value)
	if len(buf) < total {
		return 0, NewErrBadRequest("buffer too small")
	}
	binary.LittleEndian.PutUint32(buf[0:4], uint32(req.Code))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(req.Key)))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(req.Value)))
	copy(buf[RequestHeaderSize:], req.Key)
	copy(buf[RequestHeaderSize+len(req.Key):], req.Value)
	return total, nil
}

// EncodeResponse writes resp into buf and returns the number of bytes
// written: the header plus exactly len(resp.Value) body bytes.
func EncodeResponse(buf []byte, resp Response) (int, error) {
	total := ResponseHeaderSize + len(resp.Value)
	if len(resp.Value) > cache.MaxValueSize {
		return 0, NewErrBadRequest("value size out of bounds")
	}
	if len(buf) < total {
		return 0, NewErrBadRequest("buffer too small")
	}
	binary.LittleEndian.PutUint32(buf[0:4], uint32(resp.Code))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(resp.Value)))
	copy(buf[ResponseHeaderSize:], resp.Value)
	return total, nil
}

// DecodeResponse parses one response from buf. The returned value aliases buf.
func DecodeResponse(buf []byte) (Response, error) {
	var resp Response
	if len(buf) < ResponseHeaderSize {
		return resp, NewErrBadRequest("short header")
	}
	resp.Code = ResponseCode(binary.LittleEndian.Uint32(buf[0:4]))
	valueSize := int(binary.LittleEndian.Uint32(buf[4:8]))
	if valueSize > cache.MaxValueSize {
		return resp, NewErrBadRequest("value size out of bounds")
	}
	if len(buf) < ResponseHeaderSize+valueSize {
		return resp, NewErrBadRequest("truncated body")
	}
	if valueSize > 0 {
		resp.Value = buf[ResponseHeaderSize : ResponseHeaderSize+valueSize]
	}
	return resp, nil
}
