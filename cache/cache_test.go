package cache

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/romerez/LocalSoundBoard/audio"
)

// writeTestWAV writes a 16-bit PCM WAV file with a 440Hz tone so decode
// paths see realistic, non-silent data.
func writeTestWAV(t *testing.T, path string, sampleRate, channels, frames int) {
	t.Helper()

	dataSize := frames * channels * 2
	buf := make([]byte, 44+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*channels*2))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(channels*2))
	binary.LittleEndian.PutUint16(buf[34:36], 16)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))

	for i := 0; i < frames; i++ {
		sample := int16(0.5 * math.MaxInt16 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
		for ch := 0; ch < channels; ch++ {
			offset := 44 + (i*channels+ch)*2
			binary.LittleEndian.PutUint16(buf[offset:offset+2], uint16(sample))
		}
	}

	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("writing test WAV: %v", err)
	}
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(filepath.Join(t.TempDir(), "store"))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return c
}

func TestGetDecodesAndResamples(t *testing.T) {
	tests := []struct {
		name       string
		sampleRate int
		channels   int
		seconds    float64
	}{
		{"native rate stereo", 48000, 2, 0.5},
		{"native rate mono", 48000, 1, 0.25},
		{"cd rate stereo", 44100, 2, 0.5},
		{"low rate mono", 22050, 1, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestCache(t)
			path := filepath.Join(t.TempDir(), "tone.wav")
			frames := int(tt.seconds * float64(tt.sampleRate))
			writeTestWAV(t, path, tt.sampleRate, tt.channels, frames)

			clip, err := c.Get(path)
			if err != nil {
				t.Fatalf("Get() error: %v", err)
			}
			if len(clip.Samples)%audio.OutputChannels != 0 {
				t.Errorf("samples not frame-aligned: %d", len(clip.Samples))
			}

			wantFrames := int(tt.seconds * audio.SampleRate)
			if diff := clip.Frames() - wantFrames; diff < -2 || diff > 2 {
				t.Errorf("Frames() = %d, want %d (±2)", clip.Frames(), wantFrames)
			}
			if clip.Hash == "" {
				t.Error("clip hash is empty")
			}
		})
	}
}

func TestGetIdempotent(t *testing.T) {
	c := newTestCache(t)
	path := filepath.Join(t.TempDir(), "tone.wav")
	writeTestWAV(t, path, 48000, 2, 4800)

	first, err := c.Get(path)
	if err != nil {
		t.Fatalf("first Get() error: %v", err)
	}
	second, err := c.Get(path)
	if err != nil {
		t.Fatalf("second Get() error: %v", err)
	}
	if first != second {
		t.Error("repeated Get() returned a different clip instance")
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestGetCanonicalizesPaths(t *testing.T) {
	c := newTestCache(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "tone.wav")
	writeTestWAV(t, path, 48000, 1, 4800)

	byAbs, err := c.Get(path)
	if err != nil {
		t.Fatalf("Get(abs) error: %v", err)
	}
	byRel, err := c.Get(filepath.Join(dir, "..", filepath.Base(dir), "tone.wav"))
	if err != nil {
		t.Fatalf("Get(dotted) error: %v", err)
	}
	if byAbs != byRel {
		t.Error("different spellings of one path produced distinct cache entries")
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestGetMissingFile(t *testing.T) {
	c := newTestCache(t)
	if _, err := c.Get(filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Fatal("Get() on missing file succeeded")
	}
}

func TestAddSourceDedup(t *testing.T) {
	c := newTestCache(t)
	src := filepath.Join(t.TempDir(), "laugh.wav")
	writeTestWAV(t, src, 48000, 2, 4800)

	first, err := c.AddSource(src)
	if err != nil {
		t.Fatalf("first AddSource() error: %v", err)
	}
	second, err := c.AddSource(src)
	if err != nil {
		t.Fatalf("second AddSource() error: %v", err)
	}
	if first != second {
		t.Errorf("same content mapped to two store paths: %q vs %q", first, second)
	}
	if filepath.Dir(first) != c.StoreDir() {
		t.Errorf("store path %q not under store dir %q", first, c.StoreDir())
	}
	if !c.IsCached(first) {
		t.Error("added source not resident after AddSource()")
	}

	entries, err := os.ReadDir(c.StoreDir())
	if err != nil {
		t.Fatalf("reading store dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("store holds %d files, want 1", len(entries))
	}
}

func TestAddSourceMissing(t *testing.T) {
	c := newTestCache(t)
	_, err := c.AddSource(filepath.Join(t.TempDir(), "nope.wav"))
	if err == nil {
		t.Fatal("AddSource() on missing file succeeded")
	}
}

func TestRemove(t *testing.T) {
	c := newTestCache(t)
	src := filepath.Join(t.TempDir(), "boing.wav")
	writeTestWAV(t, src, 48000, 2, 4800)

	stored, err := c.AddSource(src)
	if err != nil {
		t.Fatalf("AddSource() error: %v", err)
	}

	if err := c.Remove(stored, true); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}
	if c.IsCached(stored) {
		t.Error("clip still resident after Remove()")
	}
	if _, err := os.Stat(stored); !os.IsNotExist(err) {
		t.Error("backing file still exists after Remove(deleteFile=true)")
	}
}

func TestRemoveRefusesOutsideStore(t *testing.T) {
	c := newTestCache(t)
	outside := filepath.Join(t.TempDir(), "precious.wav")
	writeTestWAV(t, outside, 48000, 2, 4800)

	if _, err := c.Get(outside); err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if err := c.Remove(outside, true); err == nil {
		t.Fatal("Remove() deleted a file outside the store")
	}
	if _, err := os.Stat(outside); err != nil {
		t.Errorf("file outside store was touched: %v", err)
	}
	// Eviction still happened even though deletion was refused.
	if c.IsCached(outside) {
		t.Error("clip still resident after refused delete")
	}
}

func TestDurationOf(t *testing.T) {
	c := newTestCache(t)
	path := filepath.Join(t.TempDir(), "two_seconds.wav")
	writeTestWAV(t, path, 44100, 2, 88200)

	seconds, err := c.DurationOf(path)
	if err != nil {
		t.Fatalf("DurationOf() error: %v", err)
	}
	if math.Abs(seconds-2.0) > 0.01 {
		t.Errorf("DurationOf() = %v, want 2.0", seconds)
	}
}

func TestAddClipDataRoundTrip(t *testing.T) {
	c := newTestCache(t)

	frames := 4800
	samples := make([]float32, frames*audio.OutputChannels)
	for i := 0; i < frames; i++ {
		v := float32(0.4 * math.Sin(2*math.Pi*220*float64(i)/audio.SampleRate))
		samples[i*2] = v
		samples[i*2+1] = v
	}

	stored, err := c.AddClipData(samples, "edited take.wav")
	if err != nil {
		t.Fatalf("AddClipData() error: %v", err)
	}
	if filepath.Dir(stored) != c.StoreDir() {
		t.Errorf("store path %q not under store dir", stored)
	}

	clip, err := c.Get(stored)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if clip.Frames() != frames {
		t.Errorf("Frames() = %d, want %d", clip.Frames(), frames)
	}

	// The file on disk must decode back to roughly the same waveform
	// after 16-bit quantization.
	c.Clear()
	reloaded, err := c.Get(stored)
	if err != nil {
		t.Fatalf("reload Get() error: %v", err)
	}
	for i := 0; i < len(samples); i += 97 {
		if diff := math.Abs(float64(reloaded.Samples[i] - samples[i])); diff > 0.01 {
			t.Fatalf("sample %d drifted by %v after round trip", i, diff)
		}
	}
}

func TestAddClipDataRejectsMisaligned(t *testing.T) {
	c := newTestCache(t)
	if _, err := c.AddClipData([]float32{0.1, 0.2, 0.3}, "bad.wav"); err == nil {
		t.Fatal("AddClipData() accepted a misaligned buffer")
	}
	if _, err := c.AddClipData(nil, "empty.wav"); err == nil {
		t.Fatal("AddClipData() accepted an empty buffer")
	}
}

func TestPreloadWarmsCache(t *testing.T) {
	c := newTestCache(t)
	dir := t.TempDir()

	paths := make([]string, 3)
	for i := range paths {
		paths[i] = filepath.Join(dir, string(rune('a'+i))+".wav")
		writeTestWAV(t, paths[i], 48000, 2, 2400)
	}

	c.Preload(append(paths, filepath.Join(dir, "missing.wav"), ""))

	deadline := time.Now().Add(5 * time.Second)
	for c.Len() < len(paths) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	for _, p := range paths {
		if !c.IsCached(p) {
			t.Errorf("%s not resident after preload", p)
		}
	}
}

func TestCopySamplesIsExclusive(t *testing.T) {
	c := newTestCache(t)
	path := filepath.Join(t.TempDir(), "tone.wav")
	writeTestWAV(t, path, 48000, 2, 2400)

	clip, err := c.Get(path)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	buf := clip.CopySamples()
	buf[0] = 99
	if clip.Samples[0] == 99 {
		t.Error("CopySamples() aliases the cached buffer")
	}
}
