package transport

import "errors"

// ErrDeviceUnavailable is returned when an audio device cannot be
// opened or disappears while in use.
var ErrDeviceUnavailable = errors.New("audio device unavailable")

// BlockProcessor renders one stereo block per call. Implementations
// must tolerate being called from a device thread and must never panic
// outward or block.
type BlockProcessor interface {
	// ProcessBlock fills out with BlockSize interleaved stereo frames.
	ProcessBlock(out []float32)
}

// MicSink accepts mono capture blocks. Implementations must not block
// the caller.
type MicSink interface {
	PushMic(block []float32)
}

// CaptureSource reads mono blocks from a capture device. ReadBlock
// blocks until a full block is available, pacing the capture pump at
// the device rate.
type CaptureSource interface {
	// ReadBlock fills buf with BlockSize mono samples.
	ReadBlock(buf []float32) error
	Close() error
}

// RenderSink drives the block callback, either from a real output
// device or a wall-clock pacer.
type RenderSink interface {
	Start() error
	Stop() error
}
