// Package mixer implements the real-time mix engine: a fixed-format block
// callback that sums active sound instances with live microphone input,
// applies soft limiting and feeds an optional monitor tap.
//
// The engine runs a small lifecycle state machine (Stopped, Starting,
// Running, Stopping). Sounds enter through a buffered intake channel and
// are adopted into the active set at the top of a block, so control-plane
// callers never contend with the audio thread for more than a short
// mutex hold.
//
// ProcessBlock is the only method intended to run on the audio thread.
// It never blocks on channels, never allocates per block after warmup,
// and converts panics into one block of silence rather than letting them
// reach the transport.
package mixer
