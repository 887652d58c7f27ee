// Package sources provides audio source implementations
package sources

import (
	"fmt"
	"strings"

	"github.com/tphakala/audiopulse/internal/audiocore"
	"github.com/tphakala/audiopulse/internal/audiocore/sources/file"
	"github.com/tphakala/audiopulse/internal/audiocore/sources/malgo"
	"github.com/tphakala/audiopulse/internal/audiocore/sources/portaudio"
	"github.com/tphakala/audiopulse/internal/audiocore/sources/synth"
	"github.com/tphakala/audiopulse/internal/errors"
)

// Source backends
const (
	BackendMalgo     = "malgo"
	BackendSoundcard = "soundcard"
	BackendPortAudio = "portaudio"
	BackendFile      = "file"
	BackendSynth     = "synth"
)

// Config selects and configures a capture source
type Config struct {
	Backend string

	// Device is the soundcard name or ID for malgo and portaudio
	Device string

	// File and Loop configure file replay
	File string
	Loop bool

	// Waveform and Frequency configure the synth backend
	Waveform  string
	Frequency float64

	SampleRate   int
	Channels     int
	BufferFrames int
	Gain         float64
}

// Create creates a capture device for the configured backend
func Create(config Config) (audiocore.CaptureDevice, error) {
	switch strings.ToLower(config.Backend) {
	case BackendMalgo, BackendSoundcard, "":
		return malgo.NewDevice(malgo.Config{
			DeviceName:   config.Device,
			SampleRate:   config.SampleRate,
			Channels:     config.Channels,
			BufferFrames: config.BufferFrames,
			Gain:         config.Gain,
		}), nil

	case BackendPortAudio:
		return portaudio.NewDevice(portaudio.Config{
			DeviceName:   config.Device,
			SampleRate:   config.SampleRate,
			Channels:     config.Channels,
			BufferFrames: config.BufferFrames,
			Gain:         config.Gain,
		}), nil

	case BackendFile:
		if config.File == "" {
			return nil, errors.New(nil).
				Component(audiocore.ComponentAudioCore).
				Category(errors.CategoryConfiguration).
				Context("source_type", config.Backend).
				Context("error", "file source requires a file path").
				Build()
		}
		if !file.Supported(config.File) {
			return nil, errors.New(nil).
				Component(audiocore.ComponentAudioCore).
				Category(errors.CategoryValidation).
				Context("resource", "audio_format").
				Context("path", config.File).
				Context("error", "unsupported audio file type").
				Build()
		}
		return file.New(file.Config{
			Path:         config.File,
			Loop:         config.Loop,
			BufferFrames: config.BufferFrames,
			Gain:         config.Gain,
		}), nil

	case BackendSynth:
		return synth.New(synth.Config{
			Waveform:     config.Waveform,
			Frequency:    config.Frequency,
			SampleRate:   config.SampleRate,
			Channels:     config.Channels,
			BufferFrames: config.BufferFrames,
		}), nil

	default:
		return nil, errors.New(nil).
			Component(audiocore.ComponentAudioCore).
			Category(errors.CategoryConfiguration).
			Context("source_type", config.Backend).
			Context("error", fmt.Sprintf("unknown source type: %s", config.Backend)).
			Build()
	}
}

// ListDevices returns the capture devices of a soundcard backend
func ListDevices(backend string) ([]audiocore.DeviceInfo, error) {
	switch strings.ToLower(backend) {
	case BackendMalgo, BackendSoundcard, "":
		return malgo.EnumerateDevices()
	case BackendPortAudio:
		return portaudio.EnumerateDevices()
	default:
		return nil, errors.New(nil).
			Component(audiocore.ComponentAudioCore).
			Category(errors.CategoryConfiguration).
			Context("source_type", backend).
			Context("error", "backend has no capture devices to list").
			Build()
	}
}
