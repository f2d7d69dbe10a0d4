package audio

import (
	"math"
	"time"
)

// Soft limiter knee. Samples at or below the knee pass through unchanged;
// samples above it are compressed into the remaining headroom so the output
// never leaves [-1, 1] while louder input still maps to louder output.
const limiterKnee = 0.8

// DefaultFade is the tail fade applied to non-looping clips so playback
// never ends on a discontinuity (an audible click).
const DefaultFade = 30 * time.Millisecond

// SoftLimitSample bounds a single sample to [-1, 1] with a smooth
// compressive curve.
//
// Behavior:
//   - |x| <= 0.8: unchanged
//   - |x| > 0.8: mapped to 0.8 + 0.2*tanh((|x|-0.8)/0.2), approaching 1.0
//
// The curve is monotonic, so boosting a clip's gain above unity remains
// audible as an increase in loudness instead of collapsing into identical
// hard-clipped blocks.
func SoftLimitSample(x float32) float32 {
	ax := x
	if ax < 0 {
		ax = -ax
	}
	if ax <= limiterKnee {
		return x
	}
	headroom := float32(1.0 - limiterKnee)
	limited := limiterKnee + headroom*float32(math.Tanh(float64((ax-limiterKnee)/headroom)))
	if x < 0 {
		return -limited
	}
	return limited
}

// SoftLimit applies SoftLimitSample to every sample in place. The buffer is
// the mix accumulator owned by the block callback, so in-place operation is
// safe and allocation-free.
func SoftLimit(buf []float32) {
	for i, x := range buf {
		buf[i] = SoftLimitSample(x)
	}
}

// FadeOut applies a linear fade to the final fade duration of an
// interleaved buffer, in place. Callers must own the buffer exclusively.
// Buffers shorter than the fade are left untouched.
func FadeOut(buf []float32, channels int, fade time.Duration) {
	fadeFrames := FramesFor(fade)
	frames := len(buf) / channels
	if fadeFrames <= 0 || frames < fadeFrames {
		return
	}
	start := frames - fadeFrames
	for i := 0; i < fadeFrames; i++ {
		gain := float32(fadeFrames-1-i) / float32(fadeFrames-1)
		for ch := 0; ch < channels; ch++ {
			buf[(start+i)*channels+ch] *= gain
		}
	}
}

// MixMonoInto accumulates a mono block into both channels of an
// interleaved stereo block, scaling by gain. dst must hold 2*len(src)
// samples; existing content is preserved and summed with the source.
func MixMonoInto(dst, src []float32, gain float32) {
	for i, s := range src {
		v := s * gain
		dst[2*i] += v
		dst[2*i+1] += v
	}
}
