package audio

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

// Resample converts interleaved float32 PCM from inputRate to outputRate
// using linear interpolation.
//
// Linear interpolation is a correctness requirement here, not an
// optimization choice: nearest-neighbor decimation introduces audible
// aliasing artifacts on resampled clips. The input buffer is never
// mutated; the result is always a newly allocated slice, even when the
// rates match.
//
// Parameters:
//   - input: Interleaved PCM samples
//   - channels: Number of interleaved channels (1 or 2)
//   - inputRate: Source sample rate in Hz
//   - outputRate: Target sample rate in Hz
//
// Returns:
//   - []float32: Resampled interleaved PCM
//   - error: Validation error for empty, misaligned or zero-rate input
func Resample(input []float32, channels, inputRate, outputRate int) ([]float32, error) {
	if err := validateResampleInput(input, channels, inputRate, outputRate); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Resample",
			"error":    err.Error(),
		}).Error("Input validation failed")
		return nil, err
	}

	if inputRate == outputRate {
		out := make([]float32, len(input))
		copy(out, input)
		return out, nil
	}

	inFrames := len(input) / channels
	outFrames := int(math.Round(float64(inFrames) * float64(outputRate) / float64(inputRate)))
	if outFrames < 1 {
		outFrames = 1
	}

	logrus.WithFields(logrus.Fields{
		"function":      "Resample",
		"input_rate":    inputRate,
		"output_rate":   outputRate,
		"channels":      channels,
		"input_frames":  inFrames,
		"output_frames": outFrames,
	}).Debug("Resampling with linear interpolation")

	out := make([]float32, outFrames*channels)
	step := float64(inputRate) / float64(outputRate)

	for frame := 0; frame < outFrames; frame++ {
		pos := float64(frame) * step
		idx := int(pos)
		frac := float32(pos - float64(idx))

		for ch := 0; ch < channels; ch++ {
			out[frame*channels+ch] = interpolateAt(input, idx, frac, ch, channels, inFrames)
		}
	}

	return out, nil
}

// validateResampleInput checks alignment and rate arguments for Resample.
func validateResampleInput(input []float32, channels, inputRate, outputRate int) error {
	if channels < 1 || channels > 2 {
		return fmt.Errorf("unsupported channel count: %d (must be 1 or 2)", channels)
	}
	if inputRate <= 0 || outputRate <= 0 {
		return fmt.Errorf("invalid sample rates: input=%d, output=%d", inputRate, outputRate)
	}
	if len(input) == 0 {
		return fmt.Errorf("empty input samples")
	}
	if len(input)%channels != 0 {
		return fmt.Errorf("input samples (%d) not aligned to channel count (%d)", len(input), channels)
	}
	return nil
}

// interpolateAt returns the linearly interpolated sample for one channel at
// fractional frame position idx+frac, clamping reads at the buffer tail.
func interpolateAt(input []float32, idx int, frac float32, ch, channels, inFrames int) float32 {
	if idx >= inFrames-1 {
		return input[(inFrames-1)*channels+ch]
	}
	s0 := input[idx*channels+ch]
	s1 := input[(idx+1)*channels+ch]
	return s0 + (s1-s0)*frac
}
