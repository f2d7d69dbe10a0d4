// Command soundboard is a small CLI front end for the soundboard engine:
// it can import sounds into the local store, report their durations and
// play them through the default output device.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	soundboard "github.com/romerez/LocalSoundBoard"
	"github.com/romerez/LocalSoundBoard/config"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "soundboard",
		Short: "Local soundboard engine",
		Long: "Plays cached sound clips mixed with live microphone input.\n" +
			"Configuration comes from SOUNDBOARD_* environment variables.",
		SilenceUsage: true,
	}
	root.AddCommand(newPlayCommand(), newDurationCommand(), newImportCommand())
	return root
}

func loadEngine() (*soundboard.Engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	cfg.ApplyLogging()
	return soundboard.New(cfg)
}

func newPlayCommand() *cobra.Command {
	var (
		volume        float64
		speed         float64
		preservePitch bool
	)
	cmd := &cobra.Command{
		Use:   "play <file>",
		Short: "Play a sound file to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := loadEngine()
			if err != nil {
				return err
			}
			if err := engine.Start(); err != nil {
				return err
			}
			defer func() {
				if err := engine.Stop(); err != nil {
					logrus.WithError(err).Warn("Engine shutdown failed")
				}
			}()

			id, duration, err := engine.PlaySound(args[0], volume, speed, preservePitch)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "playing %s (%.2fs)\n", id, duration)

			// Duration plus a little slack for the fade tail and the
			// device buffer to drain.
			time.Sleep(time.Duration(duration*float64(time.Second)) + 250*time.Millisecond)
			return nil
		},
	}
	cmd.Flags().Float64Var(&volume, "volume", 1.0, "linear gain")
	cmd.Flags().Float64Var(&speed, "speed", 1.0, "playback speed factor (0.5 to 2.0)")
	cmd.Flags().BoolVar(&preservePitch, "preserve-pitch", false, "keep pitch when changing speed")
	return cmd
}

func newDurationCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "duration <file>",
		Short: "Print a sound file's duration in seconds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := loadEngine()
			if err != nil {
				return err
			}
			seconds, err := engine.DurationOf(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%.3f\n", seconds)
			return nil
		},
	}
}

func newImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Copy a sound file into the local store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := loadEngine()
			if err != nil {
				return err
			}
			stored, err := engine.AddSource(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), stored)
			return nil
		},
	}
}
