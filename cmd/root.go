package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/audiopulse/cmd/config"
	"github.com/tphakala/audiopulse/cmd/devices"
	"github.com/tphakala/audiopulse/cmd/realtime"
	"github.com/tphakala/audiopulse/internal/conf"
)

// RootCommand creates and returns the root command. Settings are loaded
// into settings before any subcommand runs.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "audiopulse",
		Short:         "Real-time audio visualizer",
		Long:          "Captures audio, extracts band energies and beats, and drives visualizers at a fixed frame rate.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd); err != nil {
		// Flag binding only fails on programming errors
		panic(err)
	}

	rootCmd.AddCommand(
		realtime.Command(settings),
		devices.Command(settings),
		config.Command(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		loaded, err := conf.Load()
		if err != nil {
			return err
		}
		*settings = *loaded
		return nil
	}

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command) error {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Path to config file (default: search ./, ~/.config/audiopulse, /etc/audiopulse)")
	flags.BoolP("debug", "d", false, "Enable debug output")
	flags.String("source", "", "Capture source: malgo, soundcard, portaudio, file or synth")
	flags.String("device", "", "Capture device name, index or ID")

	bindings := map[string]string{
		"config":       "config",
		"debug":        "debug",
		"audio.source": "source",
		"audio.device": "device",
	}
	for key, name := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", name, err)
		}
	}
	return nil
}
