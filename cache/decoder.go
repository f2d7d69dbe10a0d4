package cache

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
	"github.com/pion/opus"
	"github.com/pion/opus/pkg/oggreader"
	"github.com/sirupsen/logrus"

	"github.com/romerez/LocalSoundBoard/audio"
)

// decoderStrategy is one entry in the ordered decoding chain. Strategies
// are tried in sequence; the first success wins. Every strategy returns
// interleaved stereo float32 at its source rate.
type decoderStrategy struct {
	name   string
	decode func(path string) (samples []float32, sampleRate int, err error)
}

// decoderChain is the ordered list of decoding strategies: reliable pure-Go
// decoders first, then the Opus/Ogg decoder, and the external ffmpeg
// transcoder as the broad-format fallback.
func decoderChain() []decoderStrategy {
	return []decoderStrategy{
		{name: "wav", decode: decodeWAV},
		{name: "flac", decode: decodeFLAC},
		{name: "vorbis", decode: decodeVorbis},
		{name: "mp3", decode: decodeMP3},
		{name: "opus", decode: decodeOpus},
		{name: "ffmpeg", decode: decodeFFmpeg},
	}
}

// decodeFile runs the strategy chain against a source file and returns the
// clip resampled to the engine's target format.
//
// Returns ErrDecodeFailed (wrapping the per-strategy failures) only when
// every strategy has been tried and failed.
func decodeFile(path string) ([]float32, error) {
	var attempts []string

	for _, strategy := range decoderChain() {
		samples, sampleRate, err := strategy.decode(path)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "decodeFile",
				"strategy": strategy.name,
				"path":     path,
				"error":    err.Error(),
			}).Debug("Decoder strategy failed, trying next")
			attempts = append(attempts, fmt.Sprintf("%s: %v", strategy.name, err))
			continue
		}

		logrus.WithFields(logrus.Fields{
			"function":    "decodeFile",
			"strategy":    strategy.name,
			"path":        path,
			"sample_rate": sampleRate,
			"frames":      len(samples) / audio.OutputChannels,
		}).Info("Source file decoded")

		if sampleRate == audio.SampleRate {
			return samples, nil
		}
		resampled, err := audio.Resample(samples, audio.OutputChannels, sampleRate, audio.SampleRate)
		if err != nil {
			return nil, fmt.Errorf("resampling %s: %w", path, err)
		}
		return resampled, nil
	}

	return nil, fmt.Errorf("%w: %s (%s)", ErrDecodeFailed, path, strings.Join(attempts, "; "))
}

// decodeBeepStream drains a beep streamer into interleaved stereo float32.
// Beep streamers always yield two-channel samples, with mono sources
// duplicated across both channels.
func decodeBeepStream(stream beep.Streamer, format beep.Format) ([]float32, int, error) {
	out := make([]float32, 0, 4096)
	chunk := make([][2]float64, 512)

	for {
		n, ok := stream.Stream(chunk)
		for i := 0; i < n; i++ {
			out = append(out, float32(chunk[i][0]), float32(chunk[i][1]))
		}
		if !ok {
			break
		}
	}
	if len(out) == 0 {
		return nil, 0, fmt.Errorf("stream yielded no samples")
	}
	return out, int(format.SampleRate), nil
}

func decodeWAV(path string) ([]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	stream, format, err := wav.Decode(f)
	if err != nil {
		return nil, 0, err
	}
	defer stream.Close()
	return decodeBeepStream(stream, format)
}

func decodeFLAC(path string) ([]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	stream, format, err := flac.Decode(f)
	if err != nil {
		return nil, 0, err
	}
	defer stream.Close()
	return decodeBeepStream(stream, format)
}

func decodeVorbis(path string) ([]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	stream, format, err := vorbis.Decode(f)
	if err != nil {
		return nil, 0, err
	}
	defer stream.Close()
	return decodeBeepStream(stream, format)
}

func decodeMP3(path string) ([]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	stream, format, err := mp3.Decode(f)
	if err != nil {
		return nil, 0, err
	}
	defer stream.Close()
	return decodeBeepStream(stream, format)
}

// decodeOpus decodes an Ogg-encapsulated Opus file using the pure Go
// pion/opus decoder. Decoded PCM arrives as little-endian int16; mono
// output is upmixed to stereo.
func decodeOpus(path string) ([]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	ogg, _, err := oggreader.NewWith(f)
	if err != nil {
		return nil, 0, fmt.Errorf("ogg parse: %w", err)
	}

	decoder := opus.NewDecoder()
	// 120 ms at 48kHz stereo is the largest legal Opus frame.
	frame := make([]byte, 5760*2*2)
	var out []float32
	sampleRate := audio.SampleRate

	for {
		segments, _, err := ogg.ParseNextPage()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("ogg page: %w", err)
		}
		for _, segment := range segments {
			if bytes.HasPrefix(segment, []byte("OpusHead")) || bytes.HasPrefix(segment, []byte("OpusTags")) {
				continue
			}
			bandwidth, isStereo, err := decoder.Decode(segment, frame)
			if err != nil {
				return nil, 0, fmt.Errorf("opus decode: %w", err)
			}
			sampleRate = bandwidth.SampleRate()
			out = appendOpusPCM(out, frame, isStereo)
		}
	}

	if len(out) == 0 {
		return nil, 0, fmt.Errorf("no opus audio segments")
	}
	return out, sampleRate, nil
}

// appendOpusPCM converts one decoded little-endian int16 frame to stereo
// interleaved float32 and appends it.
func appendOpusPCM(out []float32, frame []byte, isStereo bool) []float32 {
	samples := len(frame) / 2
	for i := 0; i < samples; i++ {
		v := float32(int16(binary.LittleEndian.Uint16(frame[i*2:]))) / 32768.0
		if isStereo {
			out = append(out, v)
		} else {
			out = append(out, v, v)
		}
	}
	return out
}

// decodeFFmpeg shells out to ffmpeg as the final fallback, covering every
// format the pure-Go decoders cannot (M4A, AAC, WMA, WebM and friends).
// The transcoder emits raw float32 PCM already at the engine's target
// format, so no further resampling is needed.
func decodeFFmpeg(path string) ([]float32, int, error) {
	ffmpeg, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, 0, fmt.Errorf("ffmpeg not available: %w", err)
	}

	cmd := exec.Command(ffmpeg,
		"-hide_banner", "-loglevel", "error",
		"-i", path,
		"-f", "f32le",
		"-acodec", "pcm_f32le",
		"-ac", strconv.Itoa(audio.OutputChannels),
		"-ar", strconv.Itoa(audio.SampleRate),
		"-",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, 0, fmt.Errorf("ffmpeg transcode: %v (%s)", err, strings.TrimSpace(stderr.String()))
	}

	raw := stdout.Bytes()
	if len(raw) < 4 {
		return nil, 0, fmt.Errorf("ffmpeg produced no audio")
	}

	out := make([]float32, len(raw)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out, audio.SampleRate, nil
}
