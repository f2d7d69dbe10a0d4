package transport

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/romerez/LocalSoundBoard/audio"
)

// TickerSink paces the block callback from a wall-clock ticker instead
// of an output device. Rendered blocks are discarded unless a tap is
// installed. Used for headless operation and tests.
type TickerSink struct {
	proc BlockProcessor
	tap  func(block []float32)

	mu      sync.Mutex
	started bool
	stop    chan struct{}
	done    chan struct{}
}

// NewTickerSink creates a wall-clock render sink. tap may be nil; when
// set it receives each rendered block and must not retain the slice.
func NewTickerSink(proc BlockProcessor, tap func(block []float32)) *TickerSink {
	return &TickerSink{proc: proc, tap: tap}
}

// Start launches the render loop. Idempotent while running.
func (s *TickerSink) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.started = true
	go s.run(s.stop, s.done)

	logrus.WithFields(logrus.Fields{
		"function": "TickerSink.Start",
		"interval": audio.BlockDuration.String(),
	}).Debug("Headless render loop started")
	return nil
}

// Stop halts the render loop and waits for it to exit. The sink can be
// started again afterwards.
func (s *TickerSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	close(s.stop)
	<-s.done
	s.started = false
	return nil
}

func (s *TickerSink) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(audio.BlockDuration)
	defer ticker.Stop()

	block := make([]float32, audio.BlockSize*audio.OutputChannels)
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.proc.ProcessBlock(block)
			if s.tap != nil {
				s.tap(block)
			}
		}
	}
}
