// Package outcome carries the error taxonomy shared by every service
// operation. Handlers and jobs branch on the Kind instead of matching
// error strings.
package outcome

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type Kind int

const (
	// KindInternal is every failure not claimed by another kind.
	KindInternal Kind = iota
	KindNotFound
	KindInvalidInput
	KindConflict
	// KindTransient marks retryable I/O (file locked, DB busy).
	KindTransient
	// KindMediaUnreadable marks media the external tool could not decode.
	// Batch operations skip the item and keep going.
	KindMediaUnreadable
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidInput:
		return "invalid_input"
	case KindConflict:
		return "conflict"
	case KindTransient:
		return "transient"
	case KindMediaUnreadable:
		return "media_unreadable"
	default:
		return "internal"
	}
}

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// WithCause attaches the underlying error and returns the same *Error.
func (e *Error) WithCause(err error) *Error {
	e.Err = err
	return e
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

func InvalidInput(format string, args ...any) *Error {
	return New(KindInvalidInput, format, args...)
}

func Conflict(format string, args ...any) *Error {
	return New(KindConflict, format, args...)
}

func Transient(format string, args ...any) *Error {
	return New(KindTransient, format, args...)
}

func MediaUnreadable(format string, args ...any) *Error {
	return New(KindMediaUnreadable, format, args...)
}

func Internal(format string, args ...any) *Error {
	return New(KindInternal, format, args...)
}

// KindOf extracts the kind from anywhere in the chain; plain errors are
// internal.
func KindOf(err error) Kind {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Kind
	}
	return KindInternal
}

func IsKind(err error, kind Kind) bool {
	var oe *Error
	return errors.As(err, &oe) && oe.Kind == kind
}

// Retry runs fn up to attempts times with doubling backoff starting at
// 100ms. Errors tagged with a non-transient kind fail immediately; plain
// errors are assumed transient. Cancellation wins over waiting.
func Retry(ctx context.Context, attempts int, fn func() error) error {
	backoff := 100 * time.Millisecond
	var err error
	for i := 0; ; i++ {
		err = fn()
		if err == nil || i+1 >= attempts {
			return err
		}
		var oe *Error
		if errors.As(err, &oe) && oe.Kind != KindTransient {
			return err
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}
