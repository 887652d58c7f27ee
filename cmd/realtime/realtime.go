package realtime

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tphakala/audiopulse/internal/app"
	"github.com/tphakala/audiopulse/internal/conf"
)

// Command creates a new command for real-time visualization.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "realtime",
		Short: "Visualize audio in realtime mode",
		Long:  "Capture audio and drive the configured visualizers until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd.Context(), settings)
		},
	}

	// Set up flags specific to the 'realtime' command
	if err := setupFlags(cmd); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// Run runs the pipeline until ctx is cancelled
func Run(ctx context.Context, settings *conf.Settings) error {
	logger, closeLog, err := app.SetupLogging(settings)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeLog(); err != nil {
			fmt.Fprintf(os.Stderr, "error closing log file: %v\n", err)
		}
	}()

	a, err := app.New(settings, app.WithLogger(logger))
	if err != nil {
		return err
	}
	return a.Run(ctx)
}

// setupFlags configures flags specific to the realtime command.
func setupFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	flags.String("file", "", "Audio file to replay with --source file (wav, flac, mp3, ogg)")
	flags.Bool("loop", false, "Restart the file at end of stream")
	flags.String("waveform", "", "Synth waveform: sine, silence or pulse")
	flags.Int("fps", 0, "Target frames per second")
	flags.Float64("sensitivity", 0, "Beat sensitivity, higher fires on smaller rises")
	flags.String("visualizer", "", "Visualizer: meter, log, meter+log or none")
	flags.Bool("telemetry", false, "Enable Prometheus telemetry endpoint")
	flags.String("listen", "", "Listen address and port of telemetry endpoint")

	// Bind flags to the viper settings
	bindings := map[string]string{
		"audio.file":         "file",
		"audio.loop":         "loop",
		"audio.waveform":     "waveform",
		"pipeline.targetfps": "fps",
		"beat.sensitivity":   "sensitivity",
		"visualizer.type":    "visualizer",
		"telemetry.enabled":  "telemetry",
		"telemetry.listen":   "listen",
	}
	for key, name := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", name, err)
		}
	}
	return nil
}
