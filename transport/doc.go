// Package transport connects the mix engine to audio devices. The
// engine itself never touches device APIs: a render sink pulls stereo
// blocks from a BlockProcessor and hands them to the output device,
// while a capture pump reads mono blocks from a capture source and
// pushes them into a MicSink.
//
// Two render sinks are provided: OtoSink drives a real output device
// through oto, and TickerSink paces the block callback from a wall-clock
// ticker for headless operation and tests.
package transport
