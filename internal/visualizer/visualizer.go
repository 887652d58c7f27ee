// Package visualizer consumes per-frame audio parameters. Visualizers are
// selected by name from configuration and may be combined.
package visualizer

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/tphakala/audiopulse/internal/analysis"
	"github.com/tphakala/audiopulse/internal/errors"
)

// ComponentVisualizer identifies visualizer errors
const ComponentVisualizer = "visualizer"

// Visualizer receives one parameter set per frame on the render goroutine
type Visualizer interface {
	Update(params analysis.AudioParameters)
}

// Renderer is implemented by visualizers that draw after each update
type Renderer interface {
	Render() error
}

// Config selects and tunes visualizers
type Config struct {
	// Type is "meter", "log", "meter+log" or "none"
	Type        string
	Width       int
	LogInterval time.Duration
	Effects     []EffectConfig
}

// Multi fans parameters out to several visualizers
type Multi []Visualizer

// Update forwards params to every visualizer in order
func (m Multi) Update(params analysis.AudioParameters) {
	for _, v := range m {
		v.Update(params)
	}
}

// Render renders every member that draws and joins their errors
func (m Multi) Render() error {
	var errs []error
	for _, v := range m {
		if r, ok := v.(Renderer); ok {
			if err := r.Render(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Close closes every member that holds resources
func (m Multi) Close() error {
	var errs []error
	for _, v := range m {
		if c, ok := v.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Discard ignores all parameters
type Discard struct{}

func (Discard) Update(analysis.AudioParameters) {}

// New builds the visualizer named by cfg.Type. Meters draw to out; log
// summaries go to logger.
func New(cfg Config, out io.Writer, logger *slog.Logger) (Visualizer, error) {
	chain, err := BuildEffectChain(cfg.Effects)
	if err != nil {
		return nil, err
	}

	var opts []MeterOption
	if cfg.Width > 0 {
		opts = append(opts, WithWidth(cfg.Width))
	}

	var members Multi
	for _, name := range strings.Split(strings.ToLower(cfg.Type), "+") {
		switch strings.TrimSpace(name) {
		case "meter", "":
			members = append(members, NewMeter(out, chain, opts...))
		case "log":
			members = append(members, NewLog(logger, cfg.LogInterval))
		case "none":
			members = append(members, Discard{})
		default:
			return nil, errors.New(nil).
				Component(ComponentVisualizer).
				Category(errors.CategoryConfiguration).
				Context("visualizer_type", cfg.Type).
				Context("error", fmt.Sprintf("unknown visualizer: %s", name)).
				Build()
		}
	}

	if len(members) == 1 {
		return members[0], nil
	}
	return members, nil
}
