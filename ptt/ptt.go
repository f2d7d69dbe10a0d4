// Package ptt drives an external push-to-talk control from sound
// activity. While any sound is playing the control is held pressed;
// when the board goes quiet the release is delayed by a configurable
// number of blocks so back-to-back sounds do not flap the control.
package ptt

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// DefaultReleaseBlocks is the release hang time in engine blocks
// (about 300ms at the engine block rate).
const DefaultReleaseBlocks = 15

// commandCapacity bounds pending actuations. Transitions are rare, so a
// small buffer absorbs a slow control without blocking the audio thread.
const commandCapacity = 16

// ControlInput actuates the external push-to-talk control. Calls may
// block or perform I/O; the controller invokes them off the audio
// thread.
type ControlInput interface {
	Press() error
	Release() error
}

// State is the controller's press state.
type State int32

const (
	// StateIdle means the control is released and no sound is playing.
	StateIdle State = iota

	// StatePressed means the control is held because sound is playing.
	StatePressed

	// StateReleasePending means sound has stopped and the release
	// countdown is running. New activity cancels the countdown without
	// re-pressing.
	StateReleasePending
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePressed:
		return "pressed"
	case StateReleasePending:
		return "release_pending"
	default:
		return "unknown"
	}
}

type commandKind int

const (
	commandPress commandKind = iota
	commandRelease
)

// Controller runs the press/release state machine. Observe is called
// once per engine block on the audio thread and never blocks; actuation
// runs on a dedicated worker goroutine.
type Controller struct {
	control       ControlInput
	releaseBlocks int

	mu        sync.Mutex
	state     State
	countdown int
	closed    bool

	commands chan commandKind
	done     chan struct{}
}

// NewController creates a controller and starts its actuation worker.
// releaseBlocks <= 0 selects DefaultReleaseBlocks.
func NewController(control ControlInput, releaseBlocks int) *Controller {
	if releaseBlocks <= 0 {
		releaseBlocks = DefaultReleaseBlocks
	}
	c := &Controller{
		control:       control,
		releaseBlocks: releaseBlocks,
		commands:      make(chan commandKind, commandCapacity),
		done:          make(chan struct{}),
	}
	go c.worker()
	return c
}

// CurrentState returns the press state.
func (c *Controller) CurrentState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Observe advances the state machine with one block's activity flag.
// Safe to call from the audio thread: state work is a short mutex hold
// and actuation is dispatched without blocking.
func (c *Controller) Observe(active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	switch c.state {
	case StateIdle:
		if active {
			c.state = StatePressed
			c.dispatchLocked(commandPress)
		}
	case StatePressed:
		if !active {
			// The quiet block that triggers the countdown counts toward
			// it, so release happens releaseBlocks quiet blocks total
			// after the last activity.
			c.state = StateReleasePending
			c.countdown = c.releaseBlocks - 1
			if c.countdown <= 0 {
				c.state = StateIdle
				c.dispatchLocked(commandRelease)
			}
		}
	case StateReleasePending:
		if active {
			// Still pressed underneath; just cancel the countdown.
			c.state = StatePressed
			return
		}
		c.countdown--
		if c.countdown <= 0 {
			c.state = StateIdle
			c.dispatchLocked(commandRelease)
		}
	}
}

// ForceRelease releases the control immediately regardless of pending
// countdowns. Used on engine shutdown so the control is never left held.
func (c *Controller) ForceRelease() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.state == StateIdle {
		return
	}
	c.state = StateIdle
	c.countdown = 0
	c.dispatchLocked(commandRelease)
}

// Close releases the control if held and stops the worker.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.state != StateIdle {
		c.state = StateIdle
		c.dispatchLocked(commandRelease)
	}
	c.closed = true
	c.mu.Unlock()

	close(c.commands)
	<-c.done
}

// dispatchLocked queues an actuation without blocking. A full queue means
// the control is wedged; the command is dropped and logged rather than
// stalling the audio thread.
func (c *Controller) dispatchLocked(kind commandKind) {
	select {
	case c.commands <- kind:
	default:
		logrus.WithFields(logrus.Fields{
			"function": "Controller.dispatchLocked",
			"command":  kind,
			"state":    c.state.String(),
		}).Warn("PTT command queue full, actuation dropped")
	}
}

// worker applies queued actuations to the external control.
func (c *Controller) worker() {
	defer close(c.done)
	for kind := range c.commands {
		var err error
		switch kind {
		case commandPress:
			err = c.control.Press()
		case commandRelease:
			err = c.control.Release()
		}
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Controller.worker",
				"command":  kind,
				"error":    err.Error(),
			}).Error("PTT actuation failed")
		}
	}
}
