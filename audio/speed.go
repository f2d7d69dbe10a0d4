package audio

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// Speed factor bounds. Values outside this range are clamped rather than
// rejected; a degraded value is safer than refusing playback.
const (
	MinSpeed = 0.5
	MaxSpeed = 2.0
)

// Time-stretch synthesis parameters. One analysis frame spans ~21 ms at the
// engine rate, with 50% overlap and a small waveform-similarity search
// window to keep frame joins phase-coherent.
const (
	stretchFrame   = 1024
	stretchOverlap = stretchFrame / 2
	stretchHop     = stretchFrame - stretchOverlap
	stretchSeek    = 256
)

// ClampSpeed bounds factor to [MinSpeed, MaxSpeed], logging when the caller
// passed an out-of-range value.
func ClampSpeed(factor float64) float64 {
	if factor < MinSpeed || factor > MaxSpeed {
		clamped := math.Min(math.Max(factor, MinSpeed), MaxSpeed)
		logrus.WithFields(logrus.Fields{
			"function": "ClampSpeed",
			"factor":   factor,
			"clamped":  clamped,
		}).Warn("Speed factor out of range, clamping")
		return clamped
	}
	return factor
}

// ApplySpeed transforms a buffer to a target playback rate.
//
// With preservePitch false the buffer is resampled by 1/factor, shortening
// or lengthening duration and shifting pitch together. With preservePitch
// true a time-domain overlap-add stretch changes duration by 1/factor while
// leaving pitch unchanged. Either way the output length equals
// round(inputFrames/factor) frames, within a couple of samples.
//
// The input is never mutated; the returned buffer is exclusively owned by
// the caller.
//
// Parameters:
//   - input: Interleaved PCM samples at the engine rate
//   - channels: Number of interleaved channels (1 or 2)
//   - factor: Playback speed in [MinSpeed, MaxSpeed]; out-of-range clamps
//   - preservePitch: Select time-stretch instead of naive resampling
//
// Returns:
//   - []float32: Speed-adjusted interleaved PCM
//   - error: Validation error for empty or misaligned input
func ApplySpeed(input []float32, channels int, factor float64, preservePitch bool) ([]float32, error) {
	if channels < 1 || channels > 2 {
		return nil, fmt.Errorf("unsupported channel count: %d (must be 1 or 2)", channels)
	}
	if len(input) == 0 || len(input)%channels != 0 {
		return nil, fmt.Errorf("input samples (%d) not aligned to channel count (%d)", len(input), channels)
	}

	factor = ClampSpeed(factor)

	if factor == 1.0 {
		out := make([]float32, len(input))
		copy(out, input)
		return out, nil
	}

	inFrames := len(input) / channels

	logrus.WithFields(logrus.Fields{
		"function":       "ApplySpeed",
		"factor":         factor,
		"preserve_pitch": preservePitch,
		"channels":       channels,
		"input_frames":   inFrames,
	}).Debug("Applying playback speed adjustment")

	// Clips shorter than one analysis frame have nothing for the stretch
	// to correlate against; the naive resample is transparent at that
	// length anyway.
	if !preservePitch || inFrames < stretchFrame*2 {
		return resampleBySpeed(input, channels, inFrames, factor)
	}

	return timeStretch(input, channels, inFrames, factor), nil
}

// resampleBySpeed performs the naive speed change: read the input at factor
// times the nominal rate, so duration scales by 1/factor and pitch follows.
func resampleBySpeed(input []float32, channels, inFrames int, factor float64) ([]float32, error) {
	outFrames := int(math.Round(float64(inFrames) / factor))
	if outFrames < 1 {
		outFrames = 1
	}
	out := make([]float32, outFrames*channels)
	for frame := 0; frame < outFrames; frame++ {
		pos := float64(frame) * factor
		idx := int(pos)
		frac := float32(pos - float64(idx))
		for ch := 0; ch < channels; ch++ {
			out[frame*channels+ch] = interpolateAt(input, idx, frac, ch, channels, inFrames)
		}
	}
	return out, nil
}

// timeStretch changes duration by 1/factor while preserving pitch using a
// WSOLA-style overlap-add: Hann-windowed input frames are laid down at a
// fixed synthesis hop, with each frame's analysis position refined by a
// cross-correlation search so successive frames join in phase. The offset
// search runs on channel 0 and is applied to all channels to keep the
// stereo image intact.
func timeStretch(input []float32, channels, inFrames int, factor float64) []float32 {
	outFrames := int(math.Round(float64(inFrames) / factor))
	out := make([]float32, outFrames*channels)
	norm := make([]float32, outFrames)
	win := hannWindow(stretchFrame)

	prevPos := -1
	for outPos := 0; outPos < outFrames; outPos += stretchHop {
		nominal := int(float64(outPos) * factor)
		pos := nominal
		if prevPos >= 0 {
			pos = nominal + bestSeekOffset(input, channels, nominal, prevPos)
		}
		if pos < 0 {
			pos = 0
		}
		if pos > inFrames-1 {
			pos = inFrames - 1
		}

		overlapAddFrame(out, norm, input, win, pos, outPos, channels, inFrames, outFrames)
		prevPos = pos
	}

	// Divide out the accumulated window weight so overlapping regions keep
	// unity gain.
	for frame := 0; frame < outFrames; frame++ {
		if norm[frame] > 1e-6 {
			for ch := 0; ch < channels; ch++ {
				out[frame*channels+ch] /= norm[frame]
			}
		}
	}
	return out
}

// bestSeekOffset finds the analysis offset in [-stretchSeek, stretchSeek]
// whose input segment best continues the previously emitted frame, by
// maximizing normalized cross-correlation over the overlap region.
func bestSeekOffset(input []float32, channels, nominal, prevPos int) int {
	// The previous frame's audio continues naturally at prevPos+stretchHop.
	ref := prevPos + stretchHop

	bestOffset := 0
	bestScore := float32(math.Inf(-1))
	inFrames := len(input) / channels

	for offset := -stretchSeek; offset <= stretchSeek; offset++ {
		cand := nominal + offset
		if cand < 0 || cand+stretchOverlap >= inFrames || ref+stretchOverlap >= inFrames {
			continue
		}
		var corr, energy float32
		for i := 0; i < stretchOverlap; i += 4 {
			a := input[(ref+i)*channels]
			b := input[(cand+i)*channels]
			corr += a * b
			energy += b * b
		}
		score := corr
		if energy > 1e-9 {
			score = corr / float32(math.Sqrt(float64(energy)))
		}
		if score > bestScore {
			bestScore = score
			bestOffset = offset
		}
	}
	return bestOffset
}

// overlapAddFrame accumulates one Hann-windowed analysis frame into the
// synthesis buffer, clamping reads and writes at the buffer edges.
func overlapAddFrame(out, norm, input, win []float32, inPos, outPos, channels, inFrames, outFrames int) {
	for i := 0; i < stretchFrame; i++ {
		src := inPos + i
		dst := outPos + i
		if dst >= outFrames {
			break
		}
		w := win[i]
		norm[dst] += w
		if src >= inFrames {
			continue
		}
		for ch := 0; ch < channels; ch++ {
			out[dst*channels+ch] += input[src*channels+ch] * w
		}
	}
}

// hannWindow returns an n-point Hann window.
func hannWindow(n int) []float32 {
	win := make([]float32, n)
	for i := range win {
		win[i] = float32(0.5 * (1.0 - math.Cos(2.0*math.Pi*float64(i)/float64(n-1))))
	}
	return win
}
