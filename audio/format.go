package audio

import "time"

// Fixed engine format. The contract is not negotiable: every cached clip,
// every mic block and every rendered block uses these values.
const (
	// SampleRate is the engine's target sample rate in Hz.
	SampleRate = 48000

	// BlockSize is the number of frames processed per engine tick.
	BlockSize = 1024

	// OutputChannels is the rendered output channel count (stereo).
	OutputChannels = 2

	// CaptureChannels is the microphone capture channel count (mono).
	CaptureChannels = 1
)

// BlockDuration is the wall-clock duration of one block at the engine rate
// (~21.3 ms).
const BlockDuration = time.Second * BlockSize / SampleRate

// FramesFor returns the number of frames covered by d at the engine rate.
func FramesFor(d time.Duration) int {
	return int(d.Seconds() * SampleRate)
}

// DurationOf returns the wall-clock duration of frames at the engine rate.
func DurationOf(frames int) time.Duration {
	return time.Duration(float64(frames) / SampleRate * float64(time.Second))
}
