package coordinator

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by Coordinator methods and delivered to sinks.
var (
	ErrStopped         = errors.New("coordinator: stopped")
	ErrNotCreated      = errors.New("coordinator: backend not created")
	ErrNotAttached     = errors.New("coordinator: source not attached")
	ErrPlaybackFailure = errors.New("coordinator: renderer playback failure")
	ErrDecryption      = errors.New("coordinator: renderer decryption error")
	ErrPlayback        = errors.New("coordinator: renderer playback error")
)

// BackendError wraps a failed renderer call with the operation name.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("coordinator: backend %s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

func backendErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &BackendError{Op: op, Err: err}
}
