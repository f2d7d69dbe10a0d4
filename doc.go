// Package soundboard implements a local soundboard bridge engine: cached
// sound clips are mixed in real time with live microphone input and
// rendered to an output device, while an external push-to-talk control is
// held for as long as anything is playing.
//
// This package provides the main API facade that integrates all
// subsystems: the sound cache and decoder chain, speed and pitch
// processing, the real-time mix engine, the push-to-talk controller and
// the device transport.
//
// # Getting Started
//
// Create an engine from configuration and start it:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	engine, err := soundboard.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := engine.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer engine.Stop()
//
//	id, duration, err := engine.PlaySound("sounds/airhorn.wav", 1.0, 1.0, false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("playing %s for %.1fs\n", id, duration)
//
// # Core Types
//
// The package defines:
//
//   - [Engine]: Main API facade integrating all subsystems
//   - [PlayOptions]: Per-play settings (volume, speed, looping)
//
// # Audio Format
//
// The engine runs a fixed format end to end: 48000 Hz, 1024-frame
// blocks, float32 samples, mono capture and stereo render. Every decoded
// clip is resampled to this format at load time so the real-time path
// never converts.
//
// # Push-to-Talk
//
// Install a control before starting the engine:
//
//	engine.SetPTTControl(serialControl)
//
// The control is pressed when sound starts and released a short hang
// time after the board goes quiet, so overlapping sounds hold a single
// press.
package soundboard
