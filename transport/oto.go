package transport

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/ebitengine/oto/v3"
	"github.com/sirupsen/logrus"

	"github.com/romerez/LocalSoundBoard/audio"
)

// blockBytes is the wire size of one rendered block: float32 little
// endian, interleaved stereo.
const blockBytes = audio.BlockSize * audio.OutputChannels * 4

// OtoSink renders blocks to the default output device. The device pulls
// bytes through io.Reader, so pacing comes from the hardware clock.
type OtoSink struct {
	ctx    *oto.Context
	player *oto.Player
	proc   BlockProcessor

	mu      sync.Mutex
	started bool

	// hot-path buffers owned by the device thread
	blockBuf []float32
	pending  []byte
	unread   int
}

// NewOtoSink opens the default output device at the engine format.
func NewOtoSink(proc BlockProcessor) (*OtoSink, error) {
	op := &oto.NewContextOptions{
		SampleRate:   audio.SampleRate,
		ChannelCount: audio.OutputChannels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   2 * audio.BlockDuration,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	<-ready

	s := &OtoSink{
		ctx:      ctx,
		proc:     proc,
		blockBuf: make([]float32, audio.BlockSize*audio.OutputChannels),
		pending:  make([]byte, blockBytes),
	}
	s.player = ctx.NewPlayer(s)

	logrus.WithFields(logrus.Fields{
		"function":    "NewOtoSink",
		"sample_rate": audio.SampleRate,
		"channels":    audio.OutputChannels,
	}).Info("Output device opened")
	return s, nil
}

// Read is the device pull path. It renders whole blocks and serves them
// out in whatever chunk sizes the device asks for.
func (s *OtoSink) Read(p []byte) (int, error) {
	filled := 0
	for filled < len(p) {
		if s.unread == 0 {
			s.proc.ProcessBlock(s.blockBuf)
			for i, v := range s.blockBuf {
				binary.LittleEndian.PutUint32(s.pending[i*4:], math.Float32bits(v))
			}
			s.unread = blockBytes
		}
		n := copy(p[filled:], s.pending[blockBytes-s.unread:])
		s.unread -= n
		filled += n
	}
	return filled, nil
}

// Start begins pulling audio. Idempotent.
func (s *OtoSink) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	s.player.Play()
	s.started = true
	return nil
}

// Stop closes the device player. The sink cannot be restarted.
func (s *OtoSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.started = false
	if err := s.player.Close(); err != nil {
		return fmt.Errorf("closing output device: %w", err)
	}
	return nil
}
