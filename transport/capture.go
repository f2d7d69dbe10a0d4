package transport

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/romerez/LocalSoundBoard/audio"
)

// captureRetryDelay is the backoff after a capture read error before
// trying the device again.
const captureRetryDelay = 250 * time.Millisecond

// CapturePump moves mono blocks from a capture source into a mic sink
// on its own goroutine. Read errors are logged and retried with a short
// backoff so a glitching device degrades to silence instead of killing
// the mic path.
type CapturePump struct {
	source CaptureSource
	sink   MicSink

	mu      sync.Mutex
	started bool
	stop    chan struct{}
	done    chan struct{}
}

// NewCapturePump wires a capture source to a mic sink.
func NewCapturePump(source CaptureSource, sink MicSink) *CapturePump {
	return &CapturePump{source: source, sink: sink}
}

// Start launches the capture loop. Idempotent while running.
func (p *CapturePump) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	p.started = true
	go p.run(p.stop, p.done)
	return nil
}

// Stop halts the capture loop and closes the source.
func (p *CapturePump) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return nil
	}
	close(p.stop)
	<-p.done
	p.started = false
	return p.source.Close()
}

func (p *CapturePump) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	block := make([]float32, audio.BlockSize)
	for {
		select {
		case <-stop:
			return
		default:
		}

		if err := p.source.ReadBlock(block); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "CapturePump.run",
				"error":    err.Error(),
			}).Warn("Capture read failed, retrying")
			select {
			case <-stop:
				return
			case <-time.After(captureRetryDelay):
			}
			continue
		}
		p.sink.PushMic(block)
	}
}
