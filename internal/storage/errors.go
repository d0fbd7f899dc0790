package storage

import (
	"errors"
	"fmt"
)

const (
	CodeEndpointUnreachable = "E_ENDPOINT_UNREACHABLE"
	CodeAuthInvalid         = "E_AUTH_INVALID"
	CodeBucketNotFound      = "E_BUCKET_NOT_FOUND"
	CodeObjectNotFound      = "E_OBJECT_NOT_FOUND"
	CodePermissionDenied    = "E_PERMISSION_DENIED"
	CodeTimeout             = "E_TIMEOUT"
	CodeCopyFailed          = "E_COPY_FAILED"
	CodeWriteFailed         = "E_WRITE_FAILED"
)

var (
	// ErrNotFound matches any missing-object error.
	ErrNotFound = errors.New("object not found")

	// ErrCopyTimeout is returned when a store-side copy is still pending
	// after the configured number of status checks.
	ErrCopyTimeout = errors.New("copy did not complete before the poll limit")
)

// Error wraps store failures with retryability hints.
type Error struct {
	Code      string
	Retryable bool
	Err       error
}

func wrapError(code string, retryable bool, err error) *Error {
	return &Error{Code: code, Retryable: retryable, Err: err}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrNotFound) match object-not-found errors.
func (e *Error) Is(target error) bool {
	return target == ErrNotFound && e.Code == CodeObjectNotFound
}

// IsNotFound reports whether err means the object does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
