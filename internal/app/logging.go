package app

import (
	"log/slog"
	"strings"

	"github.com/tphakala/audiopulse/internal/conf"
	"github.com/tphakala/audiopulse/internal/logging"
)

// SetupLogging applies the configured level and returns the logger for
// pipeline lifecycle events. When main.log is enabled that logger writes to
// the rotated log file; close must be called on exit.
func SetupLogging(settings *conf.Settings) (logger *slog.Logger, closeFn func() error, err error) {
	name := strings.ToLower(settings.Main.Log.Level)
	if name == "warning" {
		name = "warn"
	}
	level, err := logging.ParseLevel(name)
	if err != nil {
		return nil, nil, err
	}
	if settings.Debug && level > slog.LevelDebug {
		level = slog.LevelDebug
	}
	logging.SetLevel(level)

	if !settings.Main.Log.Enabled {
		logger = logging.ForService(ServiceName)
		if logger == nil {
			logger = slog.Default()
		}
		return logger, func() error { return nil }, nil
	}

	return logging.NewFileLogger(settings.Main.Log.Path, ServiceName, level, logging.RotationConfig{
		MaxSizeMB:  settings.Main.Log.MaxSize,
		MaxBackups: settings.Main.Log.MaxBackups,
		MaxAgeDays: settings.Main.Log.MaxAge,
		Compress:   settings.Main.Log.Compress,
	})
}
