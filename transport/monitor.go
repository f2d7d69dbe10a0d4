package transport

import (
	"encoding/binary"
	"math"
	"sync"
)

// MonitorSink plays blocks from the mix engine's monitor channel on a
// second player over the same output context. When the channel is empty
// the sink renders silence, so a disabled monitor costs nothing audible.
type MonitorSink struct {
	player interface {
		Play()
		Close() error
	}
	reader *monitorReader

	mu      sync.Mutex
	started bool
}

// monitorReader adapts the monitor channel to the device pull path.
type monitorReader struct {
	blocks  <-chan []float32
	pending []byte
	unread  int
}

func (r *monitorReader) Read(p []byte) (int, error) {
	filled := 0
	for filled < len(p) {
		if r.unread == 0 {
			select {
			case block := <-r.blocks:
				if len(r.pending) < len(block)*4 {
					r.pending = make([]byte, len(block)*4)
				}
				for i, v := range block {
					binary.LittleEndian.PutUint32(r.pending[i*4:], math.Float32bits(v))
				}
				r.unread = len(block) * 4
			default:
				// Monitor off or lagging: fill the rest with silence.
				for i := filled; i < len(p); i++ {
					p[i] = 0
				}
				return len(p), nil
			}
		}
		n := copy(p[filled:], r.pending[len(r.pending)-r.unread:])
		r.unread -= n
		filled += n
	}
	return filled, nil
}

// MonitorSink creates a monitor player over this sink's device context.
// oto permits one context per process, so the monitor must share the
// main sink's.
func (s *OtoSink) MonitorSink(blocks <-chan []float32) *MonitorSink {
	reader := &monitorReader{blocks: blocks, pending: make([]byte, blockBytes)}
	return &MonitorSink{
		player: s.ctx.NewPlayer(reader),
		reader: reader,
	}
}

// Start begins monitor playback. Idempotent.
func (m *MonitorSink) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return nil
	}
	m.player.Play()
	m.started = true
	return nil
}

// Stop closes the monitor player.
func (m *MonitorSink) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return nil
	}
	m.started = false
	return m.player.Close()
}
