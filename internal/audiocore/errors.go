package audiocore

import (
	"github.com/tphakala/audiopulse/internal/errors"
)

// Component identifier for audiocore errors
const ComponentAudioCore = "audiocore"

// Error categories specific to audiocore
var (
	// ErrDeviceUnavailable is returned when a capture device cannot be opened
	ErrDeviceUnavailable = errors.New(nil).
		Component(ComponentAudioCore).
		Category(errors.CategoryAudioSource).
		Context("resource", "capture_device").
		Context("error", "capture device unavailable").
		Build()

	// ErrDeviceNotFound is returned when a named capture device does not exist
	ErrDeviceNotFound = errors.New(nil).
		Component(ComponentAudioCore).
		Category(errors.CategoryNotFound).
		Context("resource", "capture_device").
		Context("error", "capture device not found").
		Build()

	// ErrDeviceNotActive is returned when operations require a started device
	ErrDeviceNotActive = errors.New(nil).
		Component(ComponentAudioCore).
		Category(errors.CategoryState).
		Context("resource", "capture_device").
		Context("error", "capture device not active").
		Build()

	// ErrDeviceAlreadyActive is returned when Start is called twice
	ErrDeviceAlreadyActive = errors.New(nil).
		Component(ComponentAudioCore).
		Category(errors.CategoryConflict).
		Context("resource", "capture_device").
		Context("error", "capture device already active").
		Build()

	// ErrInvalidAudioFormat is returned when a stream format is not supported
	ErrInvalidAudioFormat = errors.New(nil).
		Component(ComponentAudioCore).
		Category(errors.CategoryValidation).
		Context("resource", "audio_format").
		Context("error", "invalid audio format").
		Build()
)
