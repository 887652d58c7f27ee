// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaultConfig sets default values for the configuration.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("main.name", AppName)
	v.SetDefault("main.log.enabled", false)
	v.SetDefault("main.log.path", "logs/audiopulse.log")
	v.SetDefault("main.log.level", "info")
	v.SetDefault("main.log.maxsize", 100)
	v.SetDefault("main.log.maxbackups", 3)
	v.SetDefault("main.log.maxage", 28)
	v.SetDefault("main.log.compress", false)

	v.SetDefault("audio.source", "malgo")
	v.SetDefault("audio.device", "default")
	v.SetDefault("audio.file", "")
	v.SetDefault("audio.loop", false)
	v.SetDefault("audio.waveform", "sine")
	v.SetDefault("audio.frequency", 440.0)
	v.SetDefault("audio.samplerate", 44100)
	v.SetDefault("audio.channels", 1)
	v.SetDefault("audio.bufferframes", 512)
	v.SetDefault("audio.gain", 1.0)

	v.SetDefault("analysis.windowsize", 2048)
	v.SetDefault("analysis.bands.basslow", 20.0)
	v.SetDefault("analysis.bands.midlow", 250.0)
	v.SetDefault("analysis.bands.treblelow", 4000.0)
	v.SetDefault("analysis.bands.treblehigh", 20000.0)
	v.SetDefault("analysis.smoothing", 0.15)
	v.SetDefault("analysis.referencedecay", 0.995)
	v.SetDefault("analysis.referencefloor", 0.005)

	v.SetDefault("beat.sensitivity", 1.0)
	v.SetDefault("beat.cooldownms", 100)
	v.SetDefault("beat.minimumenergy", 0.1)
	v.SetDefault("beat.history", 10)

	v.SetDefault("pipeline.ringcapacity", 8192)
	v.SetDefault("pipeline.targetfps", 60)
	v.SetDefault("pipeline.maxchunksperframe", 256)

	v.SetDefault("visualizer.type", "meter")
	v.SetDefault("visualizer.width", 0)
	v.SetDefault("visualizer.loginterval", 5*time.Second)
	v.SetDefault("visualizer.effects", []map[string]any{
		{"name": "beatflash", "enabled": true, "intensity": 1.0},
		{"name": "gain", "enabled": false, "intensity": 1.0},
		{"name": "peakhold", "enabled": true, "intensity": 0.02},
	})

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.listen", "127.0.0.1:9090")
	v.SetDefault("telemetry.sentry.enabled", false)
	v.SetDefault("telemetry.sentry.dsn", "")
	v.SetDefault("telemetry.sentry.environment", "production")
}
