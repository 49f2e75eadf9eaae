package errors

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Kind classifies failures by how the engine must react to them.
type Kind string

const (
	// KindTransient covers network and upstream failures; the item or
	// cycle is skipped and the operation may be retried.
	KindTransient Kind = "transient"
	// KindData covers unusable records (unparseable amount, missing id);
	// the record is dropped, never retried.
	KindData Kind = "data"
	// KindFatal covers startup problems (bad config, unwritable state
	// path); the process must not enter the reconciliation loop.
	KindFatal Kind = "fatal"
)

// Error carries a kind alongside the wrapped cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transient wraps err as a transient failure.
func Transient(op string, err error) error {
	return &Error{Kind: KindTransient, Op: op, Err: err}
}

// Data wraps err as a bad-record failure.
func Data(op string, err error) error {
	return &Error{Kind: KindData, Op: op, Err: err}
}

// Fatal wraps err as a startup failure.
func Fatal(op string, err error) error {
	return &Error{Kind: KindFatal, Op: op, Err: err}
}

// KindOf returns the classified kind, defaulting to transient for
// unclassified errors so the loop keeps running.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTransient
}

// IsData reports whether err is a bad-record failure.
func IsData(err error) bool {
	return KindOf(err) == KindData
}

// ShouldRetry reports whether err is worth retrying. Data and fatal
// errors never are; transient errors and raw network failures are.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "status 5")
}
