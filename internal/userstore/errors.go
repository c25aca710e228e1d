package userstore

import (
	"errors"
	"fmt"
)

// ErrNotStarted is returned by every operation except Start/CanStart when
// the store's state is not STARTED.
var ErrNotStarted = errors.New("userstore: not started")

// ErrAlreadyStarted is returned by Start when the store is not currently
// INITIALIZED.
var ErrAlreadyStarted = errors.New("userstore: already started")

// ErrResetNotAllowed is returned by Reset outside STOPPED/FAILED.
var ErrResetNotAllowed = errors.New("userstore: reset only valid from stopped or failed state")

// ErrDecodeFailed marks a record that could not be decoded. It is never
// surfaced to callers; the poller and read path log it and skip the record.
var ErrDecodeFailed = errors.New("userstore: decode failed")

// CachePurgeFailedError is returned by Put/Delete when the write itself
// succeeded but the subsequent realm-cache purge did not. The underlying
// cause is preserved via Unwrap.
type CachePurgeFailedError struct {
	Username string
	Err      error
}

func (e *CachePurgeFailedError) Error() string {
	return fmt.Sprintf("userstore: cache purge failed for %q, clear manually: %v", e.Username, e.Err)
}

func (e *CachePurgeFailedError) Unwrap() error {
	return e.Err
}

// ListenerError wraps the first error raised by a listener during a single
// dispatch; later listener errors are attached as Suppressed rather than
// discarded.
type ListenerError struct {
	Err        error
	Suppressed []error
}

func (e *ListenerError) Error() string {
	if len(e.Suppressed) == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v (and %d more suppressed listener error(s))", e.Err, len(e.Suppressed))
}

func (e *ListenerError) Unwrap() error {
	return e.Err
}
