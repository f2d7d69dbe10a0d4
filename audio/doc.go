// Package audio provides the DSP kernels shared by the soundboard engine.
//
// This package implements the fixed audio format contract along with the
// sample-level operations the mix engine depends on:
//
//   - Resample: quality-preserving linear-interpolation sample rate conversion
//   - ApplySpeed: playback-rate adjustment, with or without pitch preservation
//   - SoftLimit: smooth compressive amplitude bounding for the mixed output
//   - FadeOut: short tail fade to avoid clicks at end of playback
//
// All operations work on interleaved float32 PCM. Functions that transform a
// buffer always return a new, exclusively-owned slice and never mutate their
// input, so cache-owned buffers can be passed in directly.
package audio
