package mixer

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/romerez/LocalSoundBoard/audio"
)

// State is the engine lifecycle state.
type State int32

const (
	// StateStopped means no audio is flowing and all queues are empty.
	StateStopped State = iota

	// StateStarting means resources are being prepared; blocks render
	// silence until the transition to Running completes.
	StateStarting

	// StateRunning means ProcessBlock is mixing normally.
	StateRunning

	// StateStopping means a shutdown is in progress; blocks render
	// silence while queues drain.
	StateStopping
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

const (
	// intakeCapacity bounds how many sounds can be queued between two
	// blocks. Drains fully at the top of every block, so this only
	// limits a single ~21ms burst.
	intakeCapacity = 64

	// micQueueCapacity bounds buffered capture blocks. Overflow drops
	// the oldest block so the mic path never drifts behind real time.
	micQueueCapacity = 8

	// micStaleLimit caps how many blocks the last mic block may be
	// reused when capture underruns before falling back to silence.
	micStaleLimit = 4

	// monitorCapacity bounds the monitor tap. Overflow drops the newest
	// block; the monitor is best-effort.
	monitorCapacity = 8
)

// Engine is the real-time mix engine. Control methods are safe for
// concurrent use; ProcessBlock belongs to the audio thread alone.
type Engine struct {
	state atomic.Int32

	intake   chan *Instance
	micQueue chan []float32
	micFree  sync.Pool

	mu     sync.Mutex
	active []*Instance

	// mic fallback state, touched only from ProcessBlock
	lastMic  []float32
	micStale int

	micGainBits    atomic.Uint64
	micMuted       atomic.Bool
	monitorEnabled atomic.Bool
	monitor        chan []float32

	// observer is notified once per block whether any sound is active.
	observer atomic.Pointer[func(active bool)]
}

// NewEngine creates a mix engine in the Stopped state.
func NewEngine() *Engine {
	e := &Engine{
		intake:   make(chan *Instance, intakeCapacity),
		micQueue: make(chan []float32, micQueueCapacity),
		monitor:  make(chan []float32, monitorCapacity),
	}
	e.micFree = sync.Pool{
		New: func() any { return make([]float32, audio.BlockSize) },
	}
	e.SetMicGain(1.0)
	return e
}

// Start transitions Stopped -> Starting -> Running.
func (e *Engine) Start() error {
	if !e.state.CompareAndSwap(int32(StateStopped), int32(StateStarting)) {
		return ErrAlreadyRunning
	}
	e.state.Store(int32(StateRunning))

	logrus.WithFields(logrus.Fields{
		"function":    "Engine.Start",
		"block_size":  audio.BlockSize,
		"sample_rate": audio.SampleRate,
	}).Info("Mix engine running")
	return nil
}

// Stop transitions Running -> Stopping -> Stopped, discarding queued and
// active sounds. Blocks rendered during the transition are silent.
// Stopping an engine that is not running is a no-op.
func (e *Engine) Stop() error {
	if !e.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return nil
	}

	e.drainIntake(nil)
	e.mu.Lock()
	dropped := len(e.active)
	e.active = e.active[:0]
	e.mu.Unlock()

	for {
		select {
		case buf := <-e.micQueue:
			e.micFree.Put(buf)
		default:
			e.lastMic = nil
			e.micStale = 0
			e.state.Store(int32(StateStopped))

			logrus.WithFields(logrus.Fields{
				"function": "Engine.Stop",
				"dropped":  dropped,
			}).Info("Mix engine stopped")
			return nil
		}
	}
}

// CurrentState returns the engine lifecycle state.
func (e *Engine) CurrentState() State {
	return State(e.state.Load())
}

// Play queues a prepared instance for adoption at the next block
// boundary. It never blocks the caller.
func (e *Engine) Play(inst *Instance) error {
	if e.CurrentState() != StateRunning {
		return ErrNotRunning
	}
	select {
	case e.intake <- inst:
		return nil
	default:
		logrus.WithFields(logrus.Fields{
			"function": "Engine.Play",
			"path":     inst.path,
		}).Warn("Intake queue full, sound dropped")
		return ErrIntakeFull
	}
}

// PushMic submits one mono capture block. The block is copied, so the
// caller may reuse its buffer. When the queue is full the oldest block
// is dropped to stay current.
func (e *Engine) PushMic(block []float32) {
	if e.CurrentState() != StateRunning {
		return
	}
	buf := e.micFree.Get().([]float32)
	n := copy(buf, block)
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}

	for {
		select {
		case e.micQueue <- buf:
			return
		default:
			select {
			case stale := <-e.micQueue:
				e.micFree.Put(stale)
			default:
			}
		}
	}
}

// SetMicGain sets the linear gain applied to microphone input.
func (e *Engine) SetMicGain(gain float64) {
	if gain < 0 {
		gain = 0
	}
	e.micGainBits.Store(math.Float64bits(gain))
}

// MicGain returns the current microphone gain.
func (e *Engine) MicGain() float64 {
	return math.Float64frombits(e.micGainBits.Load())
}

// SetMicMuted mutes or unmutes the microphone path. Capture keeps
// flowing so unmute is instant.
func (e *Engine) SetMicMuted(muted bool) {
	e.micMuted.Store(muted)
}

// SetMonitorEnabled toggles the local monitor tap.
func (e *Engine) SetMonitorEnabled(enabled bool) {
	e.monitorEnabled.Store(enabled)
	if !enabled {
		for {
			select {
			case <-e.monitor:
			default:
				return
			}
		}
	}
}

// Monitor returns the channel carrying mixed blocks when monitoring is
// enabled. Receivers own the delivered slices.
func (e *Engine) Monitor() <-chan []float32 {
	return e.monitor
}

// SetActivityObserver installs a callback invoked once per block with
// whether any sound is playing. The callback runs on the audio thread
// and must not block.
func (e *Engine) SetActivityObserver(fn func(active bool)) {
	if fn == nil {
		e.observer.Store(nil)
		return
	}
	e.observer.Store(&fn)
}

// ProcessBlock renders one stereo block into out. len(out) must be
// BlockSize * OutputChannels. It never panics outward and never blocks.
func (e *Engine) ProcessBlock(out []float32) {
	defer func() {
		if r := recover(); r != nil {
			zeroBlock(out)
			logrus.WithFields(logrus.Fields{
				"function": "Engine.ProcessBlock",
				"panic":    r,
			}).Error("Recovered panic in block callback, emitting silence")
		}
	}()

	if e.CurrentState() != StateRunning {
		zeroBlock(out)
		return
	}

	zeroBlock(out)

	e.mu.Lock()
	e.drainIntake(&e.active)

	kept := e.active[:0]
	for _, inst := range e.active {
		if inst.mixInto(out) {
			kept = append(kept, inst)
		} else {
			logrus.WithFields(logrus.Fields{
				"function": "Engine.ProcessBlock",
				"sound_id": inst.id,
				"path":     inst.path,
			}).Debug("Sound finished")
		}
	}
	for i := len(kept); i < len(e.active); i++ {
		e.active[i] = nil
	}
	e.active = kept
	soundsActive := len(e.active) > 0
	e.mu.Unlock()

	// The monitor carries the sound-only mix; mic audio stays out of the
	// local speakers to avoid feedback.
	e.tapMonitor(out)
	e.mixMic(out)
	audio.SoftLimit(out)

	if fn := e.observer.Load(); fn != nil {
		(*fn)(soundsActive)
	}
}

// drainIntake moves every queued instance into dst (or discards when dst
// is nil).
func (e *Engine) drainIntake(dst *[]*Instance) {
	for {
		select {
		case inst := <-e.intake:
			if dst != nil {
				*dst = append(*dst, inst)
			}
		default:
			return
		}
	}
}

// mixMic adds the freshest capture block, reusing the previous block
// for a few underrun blocks before going silent.
func (e *Engine) mixMic(out []float32) {
	if e.micMuted.Load() {
		// Keep draining so unmute resumes with fresh audio.
		select {
		case buf := <-e.micQueue:
			e.micFree.Put(buf)
		default:
		}
		return
	}

	var mic []float32
	select {
	case buf := <-e.micQueue:
		if e.lastMic != nil {
			e.micFree.Put(e.lastMic)
		}
		e.lastMic = buf
		e.micStale = 0
		mic = buf
	default:
		if e.lastMic != nil && e.micStale < micStaleLimit {
			e.micStale++
			mic = e.lastMic
		}
	}
	if mic == nil {
		return
	}
	audio.MixMonoInto(out, mic, float32(e.MicGain()))
}

// tapMonitor copies the sound-only mix to the monitor channel when
// enabled, dropping the block when the receiver lags. The copy is
// limited independently so the monitor obeys the same output bound.
func (e *Engine) tapMonitor(out []float32) {
	if !e.monitorEnabled.Load() {
		return
	}
	block := make([]float32, len(out))
	copy(block, out)
	audio.SoftLimit(block)
	select {
	case e.monitor <- block:
	default:
	}
}

// StopSound requests removal of one instance. The sound contributes no
// audio after at most one more block.
func (e *Engine) StopSound(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.drainIntake(&e.active)
	inst := e.findLocked(id)
	if inst == nil {
		return ErrUnknownSound
	}
	inst.stopRequested = true
	return nil
}

// StopAllSounds requests removal of every active and queued sound.
func (e *Engine) StopAllSounds() {
	e.mu.Lock()
	e.drainIntake(&e.active)
	count := len(e.active)
	for _, inst := range e.active {
		inst.stopRequested = true
	}
	e.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Engine.StopAllSounds",
		"count":    count,
	}).Info("All sounds stopped")
}

// PauseSound holds an instance in place; it stays active but silent.
func (e *Engine) PauseSound(id string) error {
	return e.setPaused(id, true)
}

// ResumeSound resumes a paused instance.
func (e *Engine) ResumeSound(id string) error {
	return e.setPaused(id, false)
}

func (e *Engine) setPaused(id string, paused bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.drainIntake(&e.active)
	inst := e.findLocked(id)
	if inst == nil {
		return ErrUnknownSound
	}
	inst.paused = paused
	return nil
}

// SetSoundSpeed changes the playback speed of an active instance,
// keeping its progress ratio so the sound continues from the same
// musical position. The heavy reprocessing happens off the engine lock.
func (e *Engine) SetSoundSpeed(id string, speed float64, preservePitch bool) error {
	speed = audio.ClampSpeed(speed)

	e.mu.Lock()
	e.drainIntake(&e.active)
	inst := e.findLocked(id)
	if inst == nil {
		e.mu.Unlock()
		return ErrUnknownSound
	}
	source := inst.source
	loop := inst.loop
	e.mu.Unlock()

	buf, err := prepareBuffer(source, speed, preservePitch, loop)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	inst = e.findLocked(id)
	if inst == nil {
		// Finished while we were reprocessing; nothing to reseat.
		return ErrUnknownSound
	}
	oldTotal := inst.frames()
	progress := 0.0
	if oldTotal > 0 {
		progress = float64(inst.pos) / float64(oldTotal)
	}
	inst.buf = buf
	inst.speed = speed
	inst.preservePitch = preservePitch
	inst.pos = int(math.Round(progress * float64(inst.frames())))
	return nil
}

// Playing returns a snapshot of all active instances.
func (e *Engine) Playing() []Info {
	e.mu.Lock()
	defer e.mu.Unlock()
	infos := make([]Info, 0, len(e.active))
	for _, inst := range e.active {
		if inst.stopRequested {
			continue
		}
		infos = append(infos, inst.snapshot())
	}
	return infos
}

func (e *Engine) findLocked(id string) *Instance {
	for _, inst := range e.active {
		if inst.id == id && !inst.stopRequested {
			return inst
		}
	}
	return nil
}

func zeroBlock(out []float32) {
	for i := range out {
		out[i] = 0
	}
}
