package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu     sync.RWMutex
	logger *slog.Logger
	level  = new(slog.LevelVar)
)

const (
	LevelTrace = slog.Level(-8)
	LevelFatal = slog.Level(12)
)

// Add trace and fatal level names.
var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
	LevelFatal: "FATAL",
}

// replaceLevel renders the custom TRACE and FATAL level names.
func replaceLevel(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		lvl, ok := a.Value.Any().(slog.Level)
		if !ok {
			return a
		}
		levelLabel, exists := levelNames[lvl]
		if !exists {
			levelLabel = lvl.String()
		}
		a.Value = slog.StringValue(levelLabel)
	}
	return a
}

// SetLevel sets the minimum logging level. The level is shared
// through a slog.LevelVar so it can change while loggers are in use.
func SetLevel(l slog.Level) {
	level.Set(l)
}

// ParseLevel converts a configuration string into a slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch name {
	case "trace", "TRACE":
		return LevelTrace, nil
	case "fatal", "FATAL":
		return LevelFatal, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q: %w", name, err)
	}
	return l, nil
}

// SetOutput redirects logger output, e.g. to stderr or a test buffer. Human
// output uses the text handler, otherwise records are JSON.
func SetOutput(w io.Writer, human bool) {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevel,
	}

	var handler slog.Handler
	if human {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	mu.Lock()
	logger = slog.New(handler)
	mu.Unlock()

	slog.SetDefault(logger)
}

// ForService creates a new logger instance with the 'service' attribute added.
// Returns nil if SetOutput has not been called.
func ForService(serviceName string) *slog.Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l == nil {
		return nil
	}
	return l.With("service", serviceName)
}

// Trace logs msg on l at the custom Trace level. Arguments are not evaluated
// into a record unless the level is enabled.
func Trace(l *slog.Logger, msg string, args ...any) {
	if l == nil {
		l = slog.Default()
	}
	ctx := context.Background()
	if !l.Enabled(ctx, LevelTrace) {
		return
	}
	l.Log(ctx, LevelTrace, msg, args...)
}

// RotationConfig holds lumberjack rotation limits for file loggers.
type RotationConfig struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// NewFileLogger creates a slog.Logger writing JSON logs to filePath with
// lumberjack rotation. It returns the logger and a function closing the writer.
func NewFileLogger(filePath, serviceName string, lvl slog.Leveler, rotation RotationConfig) (*slog.Logger, func() error, error) {
	// lumberjack doesn't create directories
	logDir := filepath.Dir(filePath)
	if logDir != "." {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
		}
	}

	maxSizeMB := 100
	maxBackups := 3
	maxAge := 28
	if rotation.MaxSizeMB > 0 {
		maxSizeMB = rotation.MaxSizeMB
	}
	if rotation.MaxBackups > 0 {
		maxBackups = rotation.MaxBackups
	}
	if rotation.MaxAgeDays > 0 {
		maxAge = rotation.MaxAgeDays
	}

	logWriter := &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAge,
		Compress:   rotation.Compress,
	}

	fileHandler := slog.NewJSONHandler(logWriter, &slog.HandlerOptions{
		Level:       lvl,
		ReplaceAttr: replaceLevel,
	})

	logger := slog.New(fileHandler).With("service", serviceName)

	return logger, logWriter.Close, nil
}
