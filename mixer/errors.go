package mixer

import "errors"

var (
	// ErrAlreadyRunning is returned by Start when the engine is not in
	// the Stopped state.
	ErrAlreadyRunning = errors.New("mix engine already running")

	// ErrNotRunning is returned by operations that require a running
	// engine.
	ErrNotRunning = errors.New("mix engine not running")

	// ErrIntakeFull is returned by Play when the intake queue cannot
	// accept another sound before the next block.
	ErrIntakeFull = errors.New("sound intake queue full")

	// ErrUnknownSound is returned by per-instance controls when no
	// active instance matches the given ID.
	ErrUnknownSound = errors.New("no active sound with that ID")
)
