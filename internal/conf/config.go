// config.go: audiopulse configuration settings and loading
package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/audiopulse/internal/errors"
)

// LogConfig defines the configuration for the rotated log file
type LogConfig struct {
	Enabled    bool   `yaml:"enabled"`    // true to also log to a file
	Path       string `yaml:"path"`       // path to the log file
	Level      string `yaml:"level"`      // trace, debug, info, warn or error
	MaxSize    int    `yaml:"maxsize"`    // megabytes before rotation
	MaxBackups int    `yaml:"maxbackups"` // rotated files to keep
	MaxAge     int    `yaml:"maxage"`     // days to keep rotated files
	Compress   bool   `yaml:"compress"`   // gzip rotated files
}

// AudioSettings selects and configures the capture source
type AudioSettings struct {
	Source       string  `yaml:"source"`       // malgo, soundcard, portaudio, file or synth
	Device       string  `yaml:"device"`       // soundcard name, ID or "default"
	File         string  `yaml:"file"`         // input file for the file source
	Loop         bool    `yaml:"loop"`         // restart the file at end of stream
	Waveform     string  `yaml:"waveform"`     // synth waveform: sine, silence or pulse
	Frequency    float64 `yaml:"frequency"`    // synth tone frequency in Hz
	SampleRate   int     `yaml:"samplerate"`   // requested sample rate in Hz
	Channels     int     `yaml:"channels"`     // requested channel count
	BufferFrames int     `yaml:"bufferframes"` // frames per device callback
	Gain         float64 `yaml:"gain"`         // linear input gain
}

// BandSettings are the frequency band edges in Hz
type BandSettings struct {
	BassLow    float64 `yaml:"basslow"`
	MidLow     float64 `yaml:"midlow"`
	TrebleLow  float64 `yaml:"treblelow"`
	TrebleHigh float64 `yaml:"treblehigh"`
}

// AnalysisSettings configures the spectral analyzer and smoothing
type AnalysisSettings struct {
	WindowSize     int          `yaml:"windowsize"`     // FFT window in samples, power of two
	Bands          BandSettings `yaml:"bands"`          // band edges
	Smoothing      float64      `yaml:"smoothing"`      // smoothing factor in (0, 1]
	ReferenceDecay float64      `yaml:"referencedecay"` // per-frame decay of the normalization reference
	ReferenceFloor float64      `yaml:"referencefloor"` // lowest normalization reference
}

// BeatSettings configures onset detection
type BeatSettings struct {
	Sensitivity   float64 `yaml:"sensitivity"`   // higher fires on smaller rises
	CooldownMs    int     `yaml:"cooldownms"`    // minimum time between beats
	MinimumEnergy float64 `yaml:"minimumenergy"` // energy floor below which no beat fires
	History       int     `yaml:"history"`       // frames of energy history
}

// PipelineSettings configures buffering and frame pacing
type PipelineSettings struct {
	RingCapacity      int `yaml:"ringcapacity"`      // chunk slots between capture and render
	TargetFPS         int `yaml:"targetfps"`         // frames per second
	MaxChunksPerFrame int `yaml:"maxchunksperframe"` // chunks drained per frame at most
}

// EffectSettings enables and tunes one visual effect
type EffectSettings struct {
	Name      string  `yaml:"name"`
	Enabled   bool    `yaml:"enabled"`
	Intensity float64 `yaml:"intensity"`
}

// VisualizerSettings selects visualizers and their effects
type VisualizerSettings struct {
	Type        string           `yaml:"type"`        // meter, log, meter+log or none
	Width       int              `yaml:"width"`       // meter width, 0 to use the terminal width
	LogInterval time.Duration    `yaml:"loginterval"` // summary interval for the log visualizer
	Effects     []EffectSettings `yaml:"effects"`     // applied in order
}

// SentrySettings configures optional error reporting
type SentrySettings struct {
	Enabled     bool   `yaml:"enabled"`     // true to report audio and system errors
	DSN         string `yaml:"dsn"`         // project DSN
	Environment string `yaml:"environment"` // environment tag on events
}

// TelemetrySettings configures the Prometheus endpoint and error reporting
type TelemetrySettings struct {
	Enabled bool           `yaml:"enabled"` // true to serve /metrics
	Listen  string         `yaml:"listen"`  // listen address
	Sentry  SentrySettings `yaml:"sentry"`
}

// Settings contains all configuration options for audiopulse
type Settings struct {
	Debug bool `yaml:"debug"` // true to enable debug logging

	Main struct {
		Name string    `yaml:"name"` // instance name, included in logs
		Log  LogConfig `yaml:"log"`
	} `yaml:"main"`

	Audio      AudioSettings      `yaml:"audio"`
	Analysis   AnalysisSettings   `yaml:"analysis"`
	Beat       BeatSettings       `yaml:"beat"`
	Pipeline   PipelineSettings   `yaml:"pipeline"`
	Visualizer VisualizerSettings `yaml:"visualizer"`
	Telemetry  TelemetrySettings  `yaml:"telemetry"`
}

// Options control where configuration is read from
type Options struct {
	// ConfigFile is an explicit config path. Empty searches the default paths.
	ConfigFile string

	// EnvFile is a dotenv file loaded into the environment before binding.
	// A missing file is not an error.
	EnvFile string
}

// settingsInstance is the current settings instance
var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads configuration using the global viper instance, so flags bound
// by the CLI take precedence over file, environment and defaults.
func Load() (*Settings, error) {
	return LoadWith(viper.GetViper(), Options{
		ConfigFile: viper.GetString("config"),
		EnvFile:    DefaultEnvFile,
	})
}

// LoadWith reads defaults, the config file and the environment into Settings
// and validates the result.
func LoadWith(v *viper.Viper, opts Options) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !os.IsNotExist(err) {
			return nil, errors.New(err).
				Component(ComponentConf).
				Category(errors.CategoryConfiguration).
				Context("env_file", opts.EnvFile).
				Build()
		}
	}

	if err := initViper(v, opts.ConfigFile); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.New(err).
			Component(ComponentConf).
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal").
			Build()
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settings, nil
}

// initViper sets defaults and environment bindings, then reads the config file
func initViper(v *viper.Viper, configFile string) error {
	setDefaultConfig(v)

	if err := configureEnvironmentVariables(v); err != nil {
		return err
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		configPaths, err := GetDefaultConfigPaths()
		if err != nil {
			return err
		}
		for _, path := range configPaths {
			v.AddConfigPath(path)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			// Defaults and environment are a complete configuration
			return nil
		}
		return errors.New(err).
			Component(ComponentConf).
			Category(errors.CategoryConfiguration).
			Context("config_file", configFile).
			Context("operation", "read_config").
			Build()
	}
	return nil
}

// GetSettings returns the most recently loaded settings
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// DumpYAML returns the settings as YAML
func DumpYAML(settings *Settings) ([]byte, error) {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("error marshaling settings to YAML: %w", err)
	}
	return data, nil
}

// SaveYAMLConfig writes settings to configPath through a temporary file and rename.
// It overwrites the existing file, not preserving comments or structure.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := DumpYAML(settings)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		// Cross-device rename, fall back to copy
		if err := moveFile(tempFileName, configPath); err != nil {
			return fmt.Errorf("error copying config file: %w", err)
		}
	}
	return nil
}
