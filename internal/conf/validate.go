// conf/validate.go

package conf

import (
	"fmt"
	"math/bits"
	"net"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func(*Settings) error{
		func(s *Settings) error { return validateLogSettings(&s.Main.Log) },
		func(s *Settings) error { return validateAudioSettings(&s.Audio) },
		func(s *Settings) error { return validateAnalysisSettings(&s.Analysis) },
		func(s *Settings) error { return validateBeatSettings(&s.Beat) },
		func(s *Settings) error { return validatePipelineSettings(&s.Pipeline) },
		func(s *Settings) error { return validateVisualizerSettings(&s.Visualizer) },
		func(s *Settings) error { return validateTelemetrySettings(&s.Telemetry) },
	}

	for _, validate := range validators {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateLogSettings(settings *LogConfig) error {
	if err := validateEnvLogLevel(settings.Level); err != nil {
		return fmt.Errorf("invalid log level %q", settings.Level)
	}
	if settings.Enabled && settings.Path == "" {
		return fmt.Errorf("log file is enabled but main.log.path is empty")
	}
	return nil
}

func validateAudioSettings(settings *AudioSettings) error {
	settings.Source = strings.ToLower(settings.Source)
	if err := validateEnvSource(settings.Source); err != nil {
		return fmt.Errorf("unknown audio source %q, use malgo, soundcard, portaudio, file or synth", settings.Source)
	}
	if settings.Source == "file" && settings.File == "" {
		return fmt.Errorf("audio source is file but audio.file is empty")
	}
	if settings.SampleRate < 8000 || settings.SampleRate > 192000 {
		return fmt.Errorf("audio sample rate must be between 8000 and 192000, got %d", settings.SampleRate)
	}
	if settings.Channels < 1 || settings.Channels > 8 {
		return fmt.Errorf("audio channels must be between 1 and 8, got %d", settings.Channels)
	}
	if settings.BufferFrames <= 0 {
		return fmt.Errorf("audio buffer frames must be positive, got %d", settings.BufferFrames)
	}
	if settings.Gain <= 0 {
		return fmt.Errorf("audio gain must be positive, got %g", settings.Gain)
	}
	return nil
}

func validateAnalysisSettings(settings *AnalysisSettings) error {
	if settings.WindowSize < 64 || bits.OnesCount(uint(settings.WindowSize)) != 1 {
		return fmt.Errorf("analysis window size must be a power of two of at least 64, got %d", settings.WindowSize)
	}
	b := settings.Bands
	if b.BassLow < 0 || b.BassLow >= b.MidLow || b.MidLow >= b.TrebleLow || b.TrebleLow >= b.TrebleHigh {
		return fmt.Errorf("analysis band edges must increase: %g < %g < %g < %g", b.BassLow, b.MidLow, b.TrebleLow, b.TrebleHigh)
	}
	if settings.Smoothing <= 0 || settings.Smoothing > 1 {
		return fmt.Errorf("analysis smoothing must be in (0, 1], got %g", settings.Smoothing)
	}
	if settings.ReferenceDecay <= 0 || settings.ReferenceDecay > 1 {
		return fmt.Errorf("analysis reference decay must be in (0, 1], got %g", settings.ReferenceDecay)
	}
	if settings.ReferenceFloor <= 0 {
		return fmt.Errorf("analysis reference floor must be positive, got %g", settings.ReferenceFloor)
	}
	return nil
}

func validateBeatSettings(settings *BeatSettings) error {
	if settings.Sensitivity <= 0 {
		return fmt.Errorf("beat sensitivity must be positive, got %g", settings.Sensitivity)
	}
	if settings.CooldownMs < 0 {
		return fmt.Errorf("beat cooldown must not be negative, got %d", settings.CooldownMs)
	}
	if settings.MinimumEnergy < 0 {
		return fmt.Errorf("beat minimum energy must not be negative, got %g", settings.MinimumEnergy)
	}
	if settings.History < 1 {
		return fmt.Errorf("beat history must be at least 1, got %d", settings.History)
	}
	return nil
}

func validatePipelineSettings(settings *PipelineSettings) error {
	if settings.RingCapacity < 1 {
		return fmt.Errorf("pipeline ring capacity must be at least 1, got %d", settings.RingCapacity)
	}
	if settings.TargetFPS < 1 || settings.TargetFPS > 1000 {
		return fmt.Errorf("pipeline target fps must be between 1 and 1000, got %d", settings.TargetFPS)
	}
	if settings.MaxChunksPerFrame < 1 {
		return fmt.Errorf("pipeline max chunks per frame must be at least 1, got %d", settings.MaxChunksPerFrame)
	}
	return nil
}

func validateVisualizerSettings(settings *VisualizerSettings) error {
	for name := range strings.SplitSeq(strings.ToLower(settings.Type), "+") {
		switch strings.TrimSpace(name) {
		case "meter", "log", "none":
		default:
			return fmt.Errorf("unknown visualizer %q, use meter, log, meter+log or none", name)
		}
	}
	if settings.Width < 0 {
		return fmt.Errorf("visualizer width must not be negative, got %d", settings.Width)
	}
	for _, effect := range settings.Effects {
		switch strings.ToLower(effect.Name) {
		case "beatflash", "gain", "peakhold":
		default:
			return fmt.Errorf("unknown visualizer effect %q", effect.Name)
		}
		if effect.Intensity < 0 || effect.Intensity > 1 {
			return fmt.Errorf("effect %s intensity must be within [0, 1], got %g", effect.Name, effect.Intensity)
		}
	}
	return nil
}

func validateTelemetrySettings(settings *TelemetrySettings) error {
	if settings.Sentry.Enabled && settings.Sentry.DSN == "" {
		return fmt.Errorf("sentry error reporting is enabled but no DSN is set")
	}
	if !settings.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(settings.Listen); err != nil {
		return fmt.Errorf("invalid telemetry listen address %q: %w", settings.Listen, err)
	}
	return nil
}
