package audio

import (
	"math"
	"testing"
)

// sineClip generates an interleaved test tone of the given length.
func sineClip(frames, channels int, freq float64) []float32 {
	buf := make([]float32, frames*channels)
	for i := 0; i < frames; i++ {
		v := float32(0.5 * math.Sin(2.0*math.Pi*freq*float64(i)/SampleRate))
		for ch := 0; ch < channels; ch++ {
			buf[i*channels+ch] = v
		}
	}
	return buf
}

func TestApplySpeed_LengthInvariant(t *testing.T) {
	tests := []struct {
		name          string
		frames        int
		channels      int
		factor        float64
		preservePitch bool
	}{
		{"double speed naive mono", 48000, 1, 2.0, false},
		{"double speed stretch mono", 48000, 1, 2.0, true},
		{"half speed naive stereo", 24000, 2, 0.5, false},
		{"half speed stretch stereo", 24000, 2, 0.5, true},
		{"faster naive", 48000, 1, 1.5, false},
		{"slower stretch", 48000, 1, 0.75, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := sineClip(tt.frames, tt.channels, 440)
			out, err := ApplySpeed(input, tt.channels, tt.factor, tt.preservePitch)
			if err != nil {
				t.Fatalf("ApplySpeed() error: %v", err)
			}
			gotFrames := len(out) / tt.channels
			wantFrames := int(math.Round(float64(tt.frames) / tt.factor))
			if diff := gotFrames - wantFrames; diff < -2 || diff > 2 {
				t.Errorf("ApplySpeed() frames = %d, want %d (+-2)", gotFrames, wantFrames)
			}
		})
	}
}

func TestApplySpeed_UnityReturnsCopy(t *testing.T) {
	input := sineClip(4096, 2, 220)
	out, err := ApplySpeed(input, 2, 1.0, true)
	if err != nil {
		t.Fatalf("ApplySpeed() error: %v", err)
	}
	if len(out) != len(input) {
		t.Fatalf("ApplySpeed() length = %d, want %d", len(out), len(input))
	}
	for i := range out {
		if out[i] != input[i] {
			t.Fatalf("ApplySpeed() sample[%d] changed at unity speed", i)
		}
	}
	out[0] = 99
	if input[0] == 99 {
		t.Error("ApplySpeed() aliased the input buffer")
	}
}

func TestApplySpeed_DoesNotMutateInput(t *testing.T) {
	input := sineClip(48000, 1, 440)
	snapshot := make([]float32, len(input))
	copy(snapshot, input)

	for _, preserve := range []bool{false, true} {
		if _, err := ApplySpeed(input, 1, 1.5, preserve); err != nil {
			t.Fatalf("ApplySpeed(preserve=%v) error: %v", preserve, err)
		}
		for i := range input {
			if input[i] != snapshot[i] {
				t.Fatalf("ApplySpeed(preserve=%v) mutated input at sample %d", preserve, i)
			}
		}
	}
}

func TestApplySpeed_ClampsOutOfRange(t *testing.T) {
	input := sineClip(9600, 1, 440)

	// 4.0 clamps to MaxSpeed, so output is half length, not a quarter.
	out, err := ApplySpeed(input, 1, 4.0, false)
	if err != nil {
		t.Fatalf("ApplySpeed() error: %v", err)
	}
	wantFrames := int(math.Round(9600 / MaxSpeed))
	if diff := len(out) - wantFrames; diff < -2 || diff > 2 {
		t.Errorf("ApplySpeed() frames = %d, want %d (clamped to MaxSpeed)", len(out), wantFrames)
	}

	// 0.1 clamps to MinSpeed.
	out, err = ApplySpeed(input, 1, 0.1, false)
	if err != nil {
		t.Fatalf("ApplySpeed() error: %v", err)
	}
	wantFrames = int(math.Round(9600 / MinSpeed))
	if diff := len(out) - wantFrames; diff < -2 || diff > 2 {
		t.Errorf("ApplySpeed() frames = %d, want %d (clamped to MinSpeed)", len(out), wantFrames)
	}
}

func TestApplySpeed_StretchKeepsAmplitudeBounded(t *testing.T) {
	input := sineClip(48000, 2, 880)
	out, err := ApplySpeed(input, 2, 0.5, true)
	if err != nil {
		t.Fatalf("ApplySpeed() error: %v", err)
	}
	for i, s := range out {
		if s > 1.0 || s < -1.0 {
			t.Fatalf("ApplySpeed() stretch produced out-of-range sample %f at %d", s, i)
		}
	}
}

func TestApplySpeed_ShortClipFallsBackToResample(t *testing.T) {
	// Shorter than two analysis frames: must still honor the length
	// invariant via the resampling path.
	input := sineClip(512, 1, 440)
	out, err := ApplySpeed(input, 1, 2.0, true)
	if err != nil {
		t.Fatalf("ApplySpeed() error: %v", err)
	}
	if diff := len(out) - 256; diff < -2 || diff > 2 {
		t.Errorf("ApplySpeed() frames = %d, want 256 (+-2)", len(out))
	}
}
