// env.go - Environment variable configuration and validation for audiopulse
package conf

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "AUDIOPULSE_DEBUG", validateEnvBool},
		{"main.log.level", "AUDIOPULSE_LOG_LEVEL", validateEnvLogLevel},
		{"main.log.path", "AUDIOPULSE_LOG_PATH", nil},

		// Capture
		{"audio.source", "AUDIOPULSE_AUDIO_SOURCE", validateEnvSource},
		{"audio.device", "AUDIOPULSE_AUDIO_DEVICE", nil},
		{"audio.file", "AUDIOPULSE_AUDIO_FILE", nil},
		{"audio.samplerate", "AUDIOPULSE_AUDIO_SAMPLERATE", validateEnvPositiveInt},
		{"audio.gain", "AUDIOPULSE_AUDIO_GAIN", validateEnvPositiveFloat},

		// Analysis and pacing
		{"beat.sensitivity", "AUDIOPULSE_BEAT_SENSITIVITY", validateEnvPositiveFloat},
		{"pipeline.targetfps", "AUDIOPULSE_PIPELINE_TARGETFPS", validateEnvPositiveInt},

		// Outputs
		{"visualizer.type", "AUDIOPULSE_VISUALIZER_TYPE", nil},
		{"telemetry.enabled", "AUDIOPULSE_TELEMETRY_ENABLED", validateEnvBool},
		{"telemetry.listen", "AUDIOPULSE_TELEMETRY_LISTEN", validateEnvListen},
		{"telemetry.sentry.enabled", "AUDIOPULSE_SENTRY_ENABLED", validateEnvBool},
		{"telemetry.sentry.dsn", "AUDIOPULSE_SENTRY_DSN", nil},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars(v *viper.Viper) error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := v.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

// Environment variable validation functions

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("must be true or false")
	}
	return nil
}

func validateEnvLogLevel(value string) error {
	switch strings.ToLower(value) {
	case "trace", "debug", "info", "warn", "warning", "error":
		return nil
	}
	return fmt.Errorf("unknown log level")
}

func validateEnvSource(value string) error {
	switch strings.ToLower(value) {
	case "malgo", "soundcard", "portaudio", "file", "synth":
		return nil
	}
	return fmt.Errorf("unknown audio source")
}

func validateEnvPositiveInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("must be an integer: %w", err)
	}
	if n <= 0 {
		return fmt.Errorf("must be positive, got %d", n)
	}
	return nil
}

func validateEnvPositiveFloat(value string) error {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("must be a number: %w", err)
	}
	if f <= 0 {
		return fmt.Errorf("must be positive, got %g", f)
	}
	return nil
}

func validateEnvListen(value string) error {
	if _, _, err := net.SplitHostPort(value); err != nil {
		return fmt.Errorf("must be host:port: %w", err)
	}
	return nil
}

// configureEnvironmentVariables sets up environment variable support for Viper
func configureEnvironmentVariables(v *viper.Viper) error {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return bindEnvVars(v)
}
