package soundboard

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/romerez/LocalSoundBoard/audio"
	"github.com/romerez/LocalSoundBoard/cache"
	"github.com/romerez/LocalSoundBoard/config"
	"github.com/romerez/LocalSoundBoard/mixer"
	"github.com/romerez/LocalSoundBoard/ptt"
	"github.com/romerez/LocalSoundBoard/transport"
)

// ErrAlreadyRunning is returned by Start on a running engine.
var ErrAlreadyRunning = errors.New("engine already running")

// PlayOptions carries per-play settings for PlaySoundWith.
type PlayOptions struct {
	// Volume is the linear gain, 1.0 being unity. It is applied as
	// given: 0 plays silently, negative values clamp to 0.
	Volume float64

	// Speed is the playback speed factor. Zero means 1.0.
	Speed float64

	// PreservePitch selects time stretch over naive resampling.
	PreservePitch bool

	// Loop repeats the sound LoopCount total times (0 = until stopped)
	// with LoopDelay of silence between repeats.
	Loop      bool
	LoopCount int
	LoopDelay time.Duration

	// Tag is an opaque label carried into PlayingSounds snapshots.
	Tag string

	// ID, when set, becomes the instance ID instead of a generated
	// one, so the caller holds the control handle before playback
	// begins.
	ID string
}

func (o PlayOptions) withDefaults() PlayOptions {
	if o.Speed == 0 {
		o.Speed = 1.0
	}
	return o
}

// Engine is the main facade. It owns the sound cache, the mix engine,
// the push-to-talk controller and the device transport, and exposes the
// control-plane API used by frontends.
//
// All methods are safe for concurrent use.
type Engine struct {
	cfg    config.Config
	sounds *cache.Cache
	mix    *mixer.Engine

	mu          sync.Mutex
	running     bool
	pttControl  ptt.ControlInput
	controller  *ptt.Controller
	sink        transport.RenderSink
	sinkCustom  bool
	monitorSink *transport.MonitorSink
	captureSrc  transport.CaptureSource
	capturePump *transport.CapturePump
}

// New creates an engine from configuration. Nothing touches audio
// devices until Start.
func New(cfg config.Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	sounds, err := cache.New(cfg.StoreDir)
	if err != nil {
		return nil, fmt.Errorf("creating sound cache: %w", err)
	}

	mix := mixer.NewEngine()
	mix.SetMicGain(cfg.MicGain)
	mix.SetMonitorEnabled(cfg.MonitorEnabled)

	logrus.WithFields(logrus.Fields{
		"function":  "New",
		"store_dir": sounds.StoreDir(),
		"headless":  cfg.Headless,
	}).Info("Soundboard engine created")

	return &Engine{
		cfg:    cfg,
		sounds: sounds,
		mix:    mix,
	}, nil
}

// SetPTTControl installs the external push-to-talk control. Must be
// called before Start; replacing the control while running is not
// supported.
func (e *Engine) SetPTTControl(control ptt.ControlInput) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return ErrAlreadyRunning
	}
	e.pttControl = control
	return nil
}

// SetCaptureSource installs the microphone source. Must be called
// before Start. Without a source the engine runs sounds-only.
func (e *Engine) SetCaptureSource(src transport.CaptureSource) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return ErrAlreadyRunning
	}
	e.captureSrc = src
	return nil
}

// SetRenderSink overrides the render sink chosen from configuration.
// Must be called before Start.
func (e *Engine) SetRenderSink(sink transport.RenderSink) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return ErrAlreadyRunning
	}
	e.sink = sink
	e.sinkCustom = sink != nil
	return nil
}

// Start brings the engine up: the mix engine starts, the render sink
// opens, capture begins and the push-to-talk controller attaches.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return ErrAlreadyRunning
	}

	if err := e.mix.Start(); err != nil {
		return err
	}

	if e.sink == nil {
		sink, err := e.defaultSink()
		if err != nil {
			_ = e.mix.Stop()
			return err
		}
		e.sink = sink
	}
	if err := e.sink.Start(); err != nil {
		e.discardSinkLocked()
		_ = e.mix.Stop()
		return fmt.Errorf("starting render sink: %w", err)
	}

	// Local monitor playback needs a device player, which only the oto
	// sink can provide; headless runs expose the channel directly.
	if e.cfg.MonitorEnabled {
		if oto, ok := e.sink.(*transport.OtoSink); ok {
			e.monitorSink = oto.MonitorSink(e.mix.Monitor())
			if err := e.monitorSink.Start(); err != nil {
				e.monitorSink = nil
				e.discardSinkLocked()
				_ = e.mix.Stop()
				return fmt.Errorf("starting monitor: %w", err)
			}
		}
	}

	if e.captureSrc != nil {
		e.capturePump = transport.NewCapturePump(e.captureSrc, e.mix)
		if err := e.capturePump.Start(); err != nil {
			e.capturePump = nil
			if e.monitorSink != nil {
				_ = e.monitorSink.Stop()
				e.monitorSink = nil
			}
			e.discardSinkLocked()
			_ = e.mix.Stop()
			return fmt.Errorf("starting capture: %w", err)
		}
	}

	if e.pttControl != nil {
		e.controller = ptt.NewController(e.pttControl, e.cfg.PTTReleaseBlocks)
		e.mix.SetActivityObserver(e.controller.Observe)
	}

	e.running = true
	logrus.WithFields(logrus.Fields{
		"function": "Engine.Start",
		"capture":  e.captureSrc != nil,
		"ptt":      e.pttControl != nil,
	}).Info("Soundboard engine started")
	return nil
}

// discardSinkLocked stops the render sink and, unless the caller
// injected it, drops it so the next Start builds a fresh one. Device
// sinks cannot restart after Stop.
func (e *Engine) discardSinkLocked() {
	_ = e.sink.Stop()
	if !e.sinkCustom {
		e.sink = nil
	}
}

func (e *Engine) defaultSink() (transport.RenderSink, error) {
	if e.cfg.Headless {
		return transport.NewTickerSink(e.mix, nil), nil
	}
	return transport.NewOtoSink(e.mix)
}

// Stop tears the engine down in reverse order. A held push-to-talk
// control is always released, even when the board was mid-sound.
// Stopping an engine that is not running is a no-op.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return nil
	}

	if e.capturePump != nil {
		if err := e.capturePump.Stop(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Engine.Stop",
				"error":    err.Error(),
			}).Warn("Capture shutdown reported an error")
		}
		e.capturePump = nil
	}
	if e.monitorSink != nil {
		if err := e.monitorSink.Stop(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Engine.Stop",
				"error":    err.Error(),
			}).Warn("Monitor shutdown reported an error")
		}
		e.monitorSink = nil
	}
	if err := e.sink.Stop(); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Engine.Stop",
			"error":    err.Error(),
		}).Warn("Render sink shutdown reported an error")
	}
	if !e.sinkCustom {
		// Device sinks cannot restart; a fresh one is built on Start.
		e.sink = nil
	}

	if e.controller != nil {
		e.mix.SetActivityObserver(nil)
		e.controller.Close()
		e.controller = nil
	}

	if err := e.mix.Stop(); err != nil {
		return err
	}

	e.running = false
	logrus.WithFields(logrus.Fields{
		"function": "Engine.Stop",
	}).Info("Soundboard engine stopped")
	return nil
}

// IsRunning reports whether the engine is started.
func (e *Engine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// PlaySound plays a cached sound. It returns the instance ID for later
// control and the effective duration in seconds at the requested speed.
func (e *Engine) PlaySound(path string, volume, speed float64, preservePitch bool) (string, float64, error) {
	return e.PlaySoundWith(path, PlayOptions{
		Volume:        volume,
		Speed:         speed,
		PreservePitch: preservePitch,
	})
}

// PlaySoundWith plays a cached sound with full per-play options.
func (e *Engine) PlaySoundWith(path string, opts PlayOptions) (string, float64, error) {
	opts = opts.withDefaults()

	clip, err := e.sounds.Get(path)
	if err != nil {
		return "", 0, err
	}

	inst, err := mixer.NewInstance(mixer.InstanceOptions{
		Path:          clip.Path,
		Tag:           opts.Tag,
		Source:        clip.Samples,
		Volume:        opts.Volume,
		Speed:         opts.Speed,
		PreservePitch: opts.PreservePitch,
		Loop:          opts.Loop,
		LoopCount:     opts.LoopCount,
		LoopDelay:     opts.LoopDelay,
		ID:            opts.ID,
	})
	if err != nil {
		return "", 0, err
	}
	if err := e.mix.Play(inst); err != nil {
		return "", 0, err
	}

	logrus.WithFields(logrus.Fields{
		"function": "Engine.PlaySoundWith",
		"path":     clip.Path,
		"sound_id": inst.ID(),
		"speed":    opts.Speed,
		"duration": inst.Duration(),
	}).Debug("Sound queued for playback")
	return inst.ID(), inst.Duration(), nil
}

// StopSound stops one playing instance by ID.
func (e *Engine) StopSound(id string) error {
	return e.mix.StopSound(id)
}

// StopAllSounds stops every playing and queued sound.
func (e *Engine) StopAllSounds() {
	e.mix.StopAllSounds()
}

// PauseSound pauses a playing instance in place.
func (e *Engine) PauseSound(id string) error {
	return e.mix.PauseSound(id)
}

// ResumeSound resumes a paused instance.
func (e *Engine) ResumeSound(id string) error {
	return e.mix.ResumeSound(id)
}

// SetSoundSpeed changes the speed of a playing instance, preserving its
// progress through the clip.
func (e *Engine) SetSoundSpeed(id string, speed float64, preservePitch bool) error {
	return e.mix.SetSoundSpeed(id, speed, preservePitch)
}

// PlayingSounds returns a snapshot of all active instances.
func (e *Engine) PlayingSounds() []mixer.Info {
	return e.mix.Playing()
}

// SetMicGain sets the microphone gain.
func (e *Engine) SetMicGain(gain float64) {
	e.mix.SetMicGain(gain)
}

// SetMicMuted mutes or unmutes the microphone path.
func (e *Engine) SetMicMuted(muted bool) {
	e.mix.SetMicMuted(muted)
}

// SetMonitorEnabled toggles the local monitor tap.
func (e *Engine) SetMonitorEnabled(enabled bool) {
	e.mix.SetMonitorEnabled(enabled)
}

// Monitor exposes the monitor tap channel.
func (e *Engine) Monitor() <-chan []float32 {
	return e.mix.Monitor()
}

// AddSource imports a sound file into the local store and caches it.
func (e *Engine) AddSource(path string) (string, error) {
	return e.sounds.AddSource(path)
}

// AddClipData saves an edited stereo buffer as a new store sound.
func (e *Engine) AddClipData(samples []float32, originalName string) (string, error) {
	return e.sounds.AddClipData(samples, originalName)
}

// Preload warms the cache for a set of sounds in the background.
func (e *Engine) Preload(paths []string) {
	e.sounds.Preload(paths)
}

// RemoveSound evicts a sound and optionally deletes its store file.
func (e *Engine) RemoveSound(path string, deleteFile bool) error {
	return e.sounds.Remove(path, deleteFile)
}

// DurationOf returns a sound's duration in seconds at normal speed.
func (e *Engine) DurationOf(path string) (float64, error) {
	return e.sounds.DurationOf(path)
}

// BlockDuration returns the engine's block length as wall-clock time.
func BlockDuration() time.Duration {
	return audio.BlockDuration
}
