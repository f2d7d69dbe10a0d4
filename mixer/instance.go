package mixer

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/romerez/LocalSoundBoard/audio"
)

// InstanceOptions describes a sound to be played.
type InstanceOptions struct {
	// Path identifies the source sound for snapshots and logging.
	Path string

	// Tag is an opaque caller label carried into snapshots, used by
	// frontends to map instances back to their buttons.
	Tag string

	// Source is the decoded clip: interleaved stereo float32 at the
	// engine rate. The instance treats it as immutable and shared.
	Source []float32

	// Volume is the linear gain applied at mix time. Negative values
	// clamp to 0 (silent).
	Volume float64

	// Speed is the playback speed factor, clamped to the supported
	// range. 1.0 plays at the original rate.
	Speed float64

	// PreservePitch selects pitch-preserving time stretch instead of
	// naive resampling when Speed differs from 1.0.
	PreservePitch bool

	// Loop repeats the sound. LoopCount is the total number of plays
	// (0 means repeat until stopped); LoopDelay is inserted between
	// repeats.
	Loop      bool
	LoopCount int
	LoopDelay time.Duration

	// ID overrides the generated instance ID. Useful when the caller
	// needs the handle before the sound is audible.
	ID string
}

// Instance is one playing occurrence of a sound. All fields after
// construction are owned by the engine and mutated only under its lock.
type Instance struct {
	id            string
	path          string
	tag           string
	source        []float32
	buf           []float32
	pos           int
	gain          float32
	speed         float64
	preservePitch bool
	paused        bool
	stopRequested bool

	loop           bool
	loopsLeft      int // plays remaining after the current one, -1 is forever
	loopDelay      int // frames of silence between repeats
	delayRemaining int
}

// Info is a point-in-time snapshot of a playing instance.
type Info struct {
	ID       string
	Path     string
	Tag      string
	Position float64 // seconds into the (speed-adjusted) buffer
	Duration float64 // effective seconds at the current speed
	Progress float64 // 0..1
	Volume   float64
	Speed    float64
	Paused   bool
	Looping  bool
}

// NewInstance prepares a sound for playback: the source is speed-adjusted
// into an exclusively-owned buffer. Non-looping buffers get a short
// fade-out tail so the clip never ends on a click.
func NewInstance(opts InstanceOptions) (*Instance, error) {
	if len(opts.Source) == 0 || len(opts.Source)%audio.OutputChannels != 0 {
		return nil, fmt.Errorf("source not aligned to stereo frames: %d samples", len(opts.Source))
	}
	volume := opts.Volume
	if volume < 0 {
		logrus.WithFields(logrus.Fields{
			"function": "NewInstance",
			"volume":   volume,
		}).Warn("Negative volume clamped to silence")
		volume = 0
	}

	speed := audio.ClampSpeed(opts.Speed)
	buf, err := prepareBuffer(opts.Source, speed, opts.PreservePitch, opts.Loop)
	if err != nil {
		return nil, err
	}

	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}

	loopsLeft := 0
	if opts.Loop {
		loopsLeft = -1
		if opts.LoopCount > 0 {
			loopsLeft = opts.LoopCount - 1
		}
	}

	return &Instance{
		id:            id,
		path:          opts.Path,
		tag:           opts.Tag,
		source:        opts.Source,
		buf:           buf,
		gain:          float32(volume),
		speed:         speed,
		preservePitch: opts.PreservePitch,
		loop:          opts.Loop,
		loopsLeft:     loopsLeft,
		loopDelay:     audio.FramesFor(opts.LoopDelay),
	}, nil
}

// prepareBuffer derives the playback buffer from the shared source:
// speed adjustment into a fresh copy, then the standard fade-out tail.
// Looping buffers keep their tail untouched so repeats join seamlessly.
func prepareBuffer(source []float32, speed float64, preservePitch bool, loop bool) ([]float32, error) {
	buf, err := audio.ApplySpeed(source, audio.OutputChannels, speed, preservePitch)
	if err != nil {
		return nil, fmt.Errorf("applying speed %v: %w", speed, err)
	}
	if !loop {
		audio.FadeOut(buf, audio.OutputChannels, audio.DefaultFade)
	}
	return buf, nil
}

// ID returns the instance's unique handle.
func (inst *Instance) ID() string { return inst.id }

// Duration returns the effective play time of one pass of the buffer.
func (inst *Instance) Duration() float64 {
	return float64(inst.frames()) / audio.SampleRate
}

func (inst *Instance) frames() int {
	return len(inst.buf) / audio.OutputChannels
}

// snapshot captures the instance state. Caller holds the engine lock.
func (inst *Instance) snapshot() Info {
	total := inst.frames()
	progress := 0.0
	if total > 0 {
		progress = float64(inst.pos) / float64(total)
	}
	return Info{
		ID:       inst.id,
		Path:     inst.path,
		Tag:      inst.tag,
		Position: float64(inst.pos) / audio.SampleRate,
		Duration: inst.Duration(),
		Progress: progress,
		Volume:   float64(inst.gain),
		Speed:    inst.speed,
		Paused:   inst.paused,
		Looping:  inst.loop,
	}
}

// mixInto accumulates one block of this instance into out and reports
// whether the instance should stay active. Caller holds the engine lock.
func (inst *Instance) mixInto(out []float32) bool {
	if inst.stopRequested {
		return false
	}
	if inst.paused {
		return true
	}

	frames := len(out) / audio.OutputChannels
	total := inst.frames()
	for f := 0; f < frames; f++ {
		if inst.delayRemaining > 0 {
			inst.delayRemaining--
			continue
		}
		if inst.pos >= total {
			if !inst.advanceLoop() {
				return false
			}
			if inst.delayRemaining > 0 {
				inst.delayRemaining--
				continue
			}
		}
		i := inst.pos * audio.OutputChannels
		out[f*audio.OutputChannels] += inst.buf[i] * inst.gain
		out[f*audio.OutputChannels+1] += inst.buf[i+1] * inst.gain
		inst.pos++
	}
	return true
}

// advanceLoop rewinds for the next repeat, or reports the instance done.
func (inst *Instance) advanceLoop() bool {
	if !inst.loop || inst.loopsLeft == 0 {
		return false
	}
	if inst.loopsLeft > 0 {
		inst.loopsLeft--
	}
	inst.pos = 0
	inst.delayRemaining = inst.loopDelay
	return true
}
