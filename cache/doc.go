// Package cache owns decoded, resampled audio for known source files.
//
// The cache copies source files into a local backing store, decodes them
// through an ordered chain of decoder strategies (pure-Go decoders first,
// an external ffmpeg transcoder last), resamples everything to the engine's
// target format, and serves clips with O(1) lookup afterwards.
//
// Clips are immutable once inserted: a refresh replaces the entry, never
// mutates it. Lookups are cache-aside — a miss decodes synchronously on the
// calling goroutine — so Get must only be called from non-real-time
// contexts, never from inside the block callback. Preload warms a batch of
// paths on a background worker pool.
//
// Path identity is canonical: relative and absolute spellings of the same
// file, and symlinks to it, resolve to one cache entry.
package cache
