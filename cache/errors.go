package cache

import (
	"github.com/agilira/go-errors"
)

// Error codes for map operations. The wire boundary classifies errors by
// code: everything under IsBadArgs maps to BAD_REQUEST, IsNotFound to
// NOT_FOUND.
const (
	ErrCodeInvalidCapacity errors.ErrorCode = "CREAM_INVALID_CAPACITY"
	ErrCodeBadKey          errors.ErrorCode = "CREAM_BAD_KEY"
	ErrCodeBadValue        errors.ErrorCode = "CREAM_BAD_VALUE"
	ErrCodeMapInvalid      errors.ErrorCode = "CREAM_MAP_INVALID"
	ErrCodeMapFull         errors.ErrorCode = "CREAM_MAP_FULL"
	ErrCodeKeyNotFound     errors.ErrorCode = "CREAM_KEY_NOT_FOUND"
)

const (
	msgInvalidCapacity = "invalid capacity: must be at least 1"
	msgBadKey          = "key length out of bounds"
	msgBadValue        = "value length out of bounds"
	msgMapInvalid      = "map has been invalidated"
	msgMapFull         = "map is full and force was not set"
	msgKeyNotFound     = "key not found"
)

// NewErrInvalidCapacity reports a construction-time capacity error.
func NewErrInvalidCapacity(capacity int) error {
	return errors.NewWithField(ErrCodeInvalidCapacity, msgInvalidCapacity, "capacity", capacity)
}

// NewErrBadKey reports a nil, empty, or oversized key.
func NewErrBadKey(n int) error {
	return errors.NewWithContext(ErrCodeBadKey, msgBadKey, map[string]interface{}{
		"key_len":     n,
		"valid_range": "1-64",
	})
}

// NewErrBadValue reports a nil, empty, or oversized value.
func NewErrBadValue(n int) error {
	return errors.NewWithContext(ErrCodeBadValue, msgBadValue, map[string]interface{}{
		"value_len":   n,
		"valid_range": "1-1024",
	})
}

// NewErrMapInvalid reports an operation on an invalidated map.
func NewErrMapInvalid(operation string) error {
	return errors.NewWithField(ErrCodeMapInvalid, msgMapInvalid, "operation", operation)
}

// NewErrMapFull reports an unforced Put with no placement slot.
func NewErrMapFull(capacity int) error {
	return errors.NewWithField(ErrCodeMapFull, msgMapFull, "capacity", capacity)
}

// NewErrKeyNotFound reports an absent or expired key.
func NewErrKeyNotFound() error {
	return errors.NewWithContext(ErrCodeKeyNotFound, msgKeyNotFound, nil)
}

// IsBadArgs reports whether err is an argument or map-state error
// (BAD_REQUEST at the wire boundary).
func IsBadArgs(err error) bool {
	return errors.HasCode(err, ErrCodeBadKey) ||
		errors.HasCode(err, ErrCodeBadValue) ||
		errors.HasCode(err, ErrCodeMapInvalid) ||
		errors.HasCode(err, ErrCodeInvalidCapacity)
}

// IsFull reports whether err is a refused unforced insertion.
func IsFull(err error) bool { return errors.HasCode(err, ErrCodeMapFull) }

// IsNotFound reports whether err is an absent or expired key.
func IsNotFound(err error) bool { return errors.HasCode(err, ErrCodeKeyNotFound) }
