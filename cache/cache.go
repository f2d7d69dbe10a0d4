package cache

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/crypto/blake2b"

	"github.com/romerez/LocalSoundBoard/audio"
)

// hashPrefixLen is the number of hex characters of the content hash used
// for stable store file naming and dedup.
const hashPrefixLen = 8

// preloadWorkers bounds the background decode pool so warming a large
// board cannot saturate the CPU next to the real-time audio path.
const preloadWorkers = 2

// Clip is a decoded, resampled sound owned by the cache.
//
// Samples are interleaved stereo float32 at the engine's target rate and
// are immutable once the clip is inserted; a refresh replaces the entry.
// Callers that need a mutable buffer must use CopySamples.
type Clip struct {
	// Path is the canonical path of the backing file.
	Path string

	// Samples holds interleaved stereo PCM at audio.SampleRate.
	Samples []float32

	// Hash is a short content hash of the backing file, used for stable
	// renaming and dedup in the store.
	Hash string
}

// Frames returns the clip length in frames.
func (c *Clip) Frames() int {
	return len(c.Samples) / audio.OutputChannels
}

// Duration returns the clip's play time at the engine rate.
func (c *Clip) Duration() time.Duration {
	return audio.DurationOf(c.Frames())
}

// Seconds returns the clip duration in seconds.
func (c *Clip) Seconds() float64 {
	return float64(c.Frames()) / audio.SampleRate
}

// CopySamples returns a new, exclusively-owned copy of the clip's buffer.
func (c *Clip) CopySamples() []float32 {
	out := make([]float32, len(c.Samples))
	copy(out, c.Samples)
	return out
}

// Cache manages the local sound store and the in-memory clip map.
//
// All methods are safe for concurrent use. Lookup on a warm cache is a
// single lock-free map read.
type Cache struct {
	storeDir string
	clips    *xsync.MapOf[string, *Clip]
}

// New creates a cache backed by storeDir, creating the directory if
// needed.
func New(storeDir string) (*Cache, error) {
	logrus.WithFields(logrus.Fields{
		"function":  "cache.New",
		"store_dir": storeDir,
	}).Info("Creating sound cache")

	if err := os.MkdirAll(storeDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	canonical, err := canonicalPath(storeDir)
	if err != nil {
		return nil, fmt.Errorf("resolving store directory: %w", err)
	}

	return &Cache{
		storeDir: canonical,
		clips:    xsync.NewMapOf[string, *Clip](),
	}, nil
}

// StoreDir returns the canonical path of the cache's backing store.
func (c *Cache) StoreDir() string {
	return c.storeDir
}

// canonicalPath resolves a path to its canonical form: absolute, cleaned
// and with symlinks resolved. Case is preserved (lookups are
// case-sensitive). Relative-to-store and absolute spellings of the same
// file therefore map to the same cache key.
func canonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// The file may not exist yet; the cleaned absolute path is still
		// a stable key.
		return abs, nil
	}
	return resolved, nil
}

// AddSource copies a source file into the backing store, decodes it,
// resamples it to the target rate and caches the result.
//
// The store name embeds a short content hash, so adding the same file
// twice (under any spelling of its path) lands on one store entry.
//
// Parameters:
//   - sourcePath: Path of the file to import
//
// Returns:
//   - string: The stable local store path
//   - error: ErrSourceNotFound, copy errors, or ErrDecodeFailed
func (c *Cache) AddSource(sourcePath string) (string, error) {
	source, err := canonicalPath(sourcePath)
	if err != nil {
		return "", fmt.Errorf("resolving source path: %w", err)
	}
	if _, err := os.Stat(source); err != nil {
		return "", fmt.Errorf("%w: %s", ErrSourceNotFound, sourcePath)
	}

	hash, err := hashFile(source)
	if err != nil {
		return "", fmt.Errorf("hashing source: %w", err)
	}

	ext := filepath.Ext(source)
	stem := strings.TrimSuffix(filepath.Base(source), ext)
	destPath := filepath.Join(c.storeDir, fmt.Sprintf("%s_%s%s", stem, hash, ext))

	if _, err := os.Stat(destPath); os.IsNotExist(err) {
		if err := copyFile(source, destPath); err != nil {
			return "", fmt.Errorf("copying into store: %w", err)
		}
	}

	logrus.WithFields(logrus.Fields{
		"function": "Cache.AddSource",
		"source":   source,
		"dest":     destPath,
		"hash":     hash,
	}).Info("Source file added to store")

	if _, err := c.Get(destPath); err != nil {
		return "", err
	}
	return destPath, nil
}

// Get returns the cached clip for path, decoding and caching it on a miss
// (cache-aside). Misses perform file I/O; never call this from the block
// callback.
func (c *Cache) Get(path string) (*Clip, error) {
	key, err := canonicalPath(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	if clip, ok := c.clips.Load(key); ok {
		return clip, nil
	}

	samples, err := decodeFile(key)
	if err != nil {
		return nil, err
	}
	hash, err := hashFile(key)
	if err != nil {
		return nil, fmt.Errorf("hashing %s: %w", key, err)
	}

	clip := &Clip{Path: key, Samples: samples, Hash: hash}
	// First insert wins, so two racing loads hand out the same buffer.
	actual, loaded := c.clips.LoadOrStore(key, clip)
	if !loaded {
		logrus.WithFields(logrus.Fields{
			"function": "Cache.Get",
			"path":     key,
			"frames":   clip.Frames(),
			"duration": clip.Duration().String(),
		}).Debug("Clip decoded and cached")
	}
	return actual, nil
}

// Preload warms the cache for a batch of paths on a bounded background
// worker pool. It returns immediately; completion is observable through
// IsCached. Paths that fail to decode are logged and skipped.
func (c *Cache) Preload(paths []string) {
	go func() {
		workers := pool.New().WithMaxGoroutines(preloadWorkers)
		for _, path := range paths {
			if path == "" {
				continue
			}
			workers.Go(func() {
				if _, err := c.Get(path); err != nil {
					logrus.WithFields(logrus.Fields{
						"function": "Cache.Preload",
						"path":     path,
						"error":    err.Error(),
					}).Warn("Failed to preload sound")
				}
			})
		}
		workers.Wait()

		logrus.WithFields(logrus.Fields{
			"function": "Cache.Preload",
			"count":    len(paths),
		}).Info("Preload batch completed")
	}()
}

// Remove evicts a clip from the cache and optionally deletes its backing
// file. Deleting is refused for files outside the store directory.
func (c *Cache) Remove(path string, deleteFile bool) error {
	key, err := canonicalPath(path)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}

	c.clips.Delete(key)

	if !deleteFile {
		return nil
	}
	if filepath.Dir(key) != c.storeDir {
		return fmt.Errorf("%w: %s", ErrOutsideStore, path)
	}
	if err := os.Remove(key); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting backing file: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Cache.Remove",
		"path":     key,
	}).Info("Sound removed from cache and store")
	return nil
}

// DurationOf returns the clip duration in seconds, loading it on a miss.
func (c *Cache) DurationOf(path string) (float64, error) {
	clip, err := c.Get(path)
	if err != nil {
		return 0, err
	}
	return clip.Seconds(), nil
}

// IsCached reports whether a clip for path is resident in memory.
func (c *Cache) IsCached(path string) bool {
	key, err := canonicalPath(path)
	if err != nil {
		return false
	}
	_, ok := c.clips.Load(key)
	return ok
}

// Clear drops all in-memory clips. Backing files remain on disk.
func (c *Cache) Clear() {
	c.clips.Clear()
}

// Len returns the number of resident clips.
func (c *Cache) Len() int {
	return c.clips.Size()
}

// AddClipData persists an edited buffer as a WAV file in the store and
// caches it directly. The buffer must be interleaved stereo at the engine
// rate (the waveform editor's save path always is).
func (c *Cache) AddClipData(samples []float32, originalName string) (string, error) {
	if len(samples) == 0 || len(samples)%audio.OutputChannels != 0 {
		return "", fmt.Errorf("clip data not aligned to stereo frames: %d samples", len(samples))
	}

	stamp := fmt.Sprintf("%d", time.Now().UnixMilli())
	if len(stamp) > hashPrefixLen {
		stamp = stamp[len(stamp)-hashPrefixLen:]
	}
	stem := strings.TrimSuffix(filepath.Base(originalName), filepath.Ext(originalName))
	destPath := filepath.Join(c.storeDir, fmt.Sprintf("%s_%s.wav", stem, stamp))

	if err := writeWAV(destPath, samples); err != nil {
		return "", fmt.Errorf("writing clip data: %w", err)
	}

	hash, err := hashFile(destPath)
	if err != nil {
		return "", fmt.Errorf("hashing clip data: %w", err)
	}

	owned := make([]float32, len(samples))
	copy(owned, samples)
	c.clips.Store(destPath, &Clip{Path: destPath, Samples: owned, Hash: hash})

	logrus.WithFields(logrus.Fields{
		"function": "Cache.AddClipData",
		"dest":     destPath,
		"frames":   len(samples) / audio.OutputChannels,
	}).Info("Edited clip saved to store")
	return destPath, nil
}

// hashFile returns the short BLAKE2b content hash of a file.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	hasher, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(hasher, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil))[:hashPrefixLen], nil
}

// copyFile copies src to dst, preserving contents only.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

// clipStreamer adapts an interleaved stereo buffer to a beep.Streamer for
// WAV encoding.
type clipStreamer struct {
	samples []float32
	pos     int
}

func (s *clipStreamer) Stream(out [][2]float64) (int, bool) {
	frames := len(s.samples) / 2
	n := 0
	for n < len(out) && s.pos < frames {
		out[n][0] = float64(s.samples[s.pos*2])
		out[n][1] = float64(s.samples[s.pos*2+1])
		s.pos++
		n++
	}
	return n, n > 0
}

func (s *clipStreamer) Err() error { return nil }

// writeWAV encodes interleaved stereo float32 at the engine rate into a
// 16-bit PCM WAV file.
func writeWAV(path string, samples []float32) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	format := beep.Format{
		SampleRate:  beep.SampleRate(audio.SampleRate),
		NumChannels: audio.OutputChannels,
		Precision:   2,
	}
	return wav.Encode(f, &clipStreamer{samples: samples}, format)
}
