package visualizer

import (
	"bytes"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/tphakala/audiopulse/internal/analysis"
)

const (
	defaultMeterWidth = 80
	minBarWidth       = 4
	maxBarWidth       = 40

	// per bar: 4 char label, space, brackets, trailing space
	barOverhead = 8
)

var barLabels = [barCount]string{"BASS", "MID ", "TREB", "AMP "}

// MeterOption configures a Meter
type MeterOption func(*Meter)

// WithWidth fixes the meter width instead of querying the terminal
func WithWidth(width int) MeterOption {
	return func(m *Meter) {
		m.width = width
	}
}

// Meter draws band, amplitude and beat feedback as a single line of bars
type Meter struct {
	out      io.Writer
	chain    *EffectChain
	width    int
	terminal bool

	frame Frame
	line  bytes.Buffer
}

// NewMeter creates a meter writing to out. When out is a terminal the line is
// redrawn in place and sized to the terminal width.
func NewMeter(out io.Writer, chain *EffectChain, opts ...MeterOption) *Meter {
	m := &Meter{out: out, chain: chain}

	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		m.terminal = true
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			m.width = w
		}
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.width <= 0 {
		m.width = defaultMeterWidth
	}
	return m
}

// Update computes the frame to draw
func (m *Meter) Update(params analysis.AudioParameters) {
	m.frame = m.chain.Apply(params)
}

// Frame returns the most recent frame
func (m *Meter) Frame() Frame {
	return m.frame
}

// Render writes the current frame
func (m *Meter) Render() error {
	m.line.Reset()
	if m.terminal {
		m.line.WriteByte('\r')
	}
	m.line.WriteString(formatFrame(m.frame, m.barWidth()))
	if m.terminal {
		m.line.WriteString("\x1b[K")
	} else {
		m.line.WriteByte('\n')
	}
	_, err := m.out.Write(m.line.Bytes())
	return err
}

// Close moves the cursor past the meter line
func (m *Meter) Close() error {
	if !m.terminal {
		return nil
	}
	_, err := io.WriteString(m.out, "\n")
	return err
}

func (m *Meter) barWidth() int {
	w := (m.width - barCount*barOverhead - 2) / barCount
	return min(max(w, minBarWidth), maxBarWidth)
}

// formatFrame renders one meter line: four labelled bars and a beat marker
func formatFrame(frame Frame, width int) string {
	var sb strings.Builder
	for i, level := range frame.Bars {
		sb.WriteString(barLabels[i])
		sb.WriteString(" [")
		sb.WriteString(bar(level, frame.Peaks[i], width))
		sb.WriteString("] ")
	}
	if frame.Beat || frame.Flash >= 0.5 {
		sb.WriteString("*")
	} else {
		sb.WriteString(" ")
	}
	return sb.String()
}

// bar fills level*width cells with '#' and marks the peak cell with '|'
func bar(level, peak float64, width int) string {
	filled := int(level*float64(width) + 0.5)
	peakCell := -1
	if peak > 0 {
		peakCell = min(int(peak*float64(width)+0.5), width) - 1
	}

	cells := make([]byte, width)
	for i := range cells {
		switch {
		case i < filled:
			cells[i] = '#'
		case i == peakCell:
			cells[i] = '|'
		default:
			cells[i] = '.'
		}
	}
	return string(cells)
}
