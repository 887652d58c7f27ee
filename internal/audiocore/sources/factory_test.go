package sources

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/audiopulse/internal/audiocore"
	"github.com/tphakala/audiopulse/internal/audiocore/sources/file"
	"github.com/tphakala/audiopulse/internal/audiocore/sources/malgo"
	"github.com/tphakala/audiopulse/internal/audiocore/sources/portaudio"
	"github.com/tphakala/audiopulse/internal/audiocore/sources/synth"
	"github.com/tphakala/audiopulse/internal/errors"
)

func TestCreate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		config Config
		check  func(t *testing.T, dev audiocore.CaptureDevice)
	}{
		{
			name:   "soundcard alias",
			config: Config{Backend: "soundcard", SampleRate: 48000},
			check: func(t *testing.T, dev audiocore.CaptureDevice) {
				t.Helper()
				assert.IsType(t, &malgo.Device{}, dev)
				assert.Equal(t, 48000, dev.Config().SampleRate)
			},
		},
		{
			name:   "portaudio",
			config: Config{Backend: "PortAudio"},
			check: func(t *testing.T, dev audiocore.CaptureDevice) {
				t.Helper()
				assert.IsType(t, &portaudio.Device{}, dev)
			},
		},
		{
			name:   "file",
			config: Config{Backend: "file", File: "/tmp/track.ogg", Loop: true},
			check: func(t *testing.T, dev audiocore.CaptureDevice) {
				t.Helper()
				assert.IsType(t, &file.Source{}, dev)
			},
		},
		{
			name:   "synth",
			config: Config{Backend: "synth", Channels: 2, BufferFrames: 256},
			check: func(t *testing.T, dev audiocore.CaptureDevice) {
				t.Helper()
				assert.IsType(t, &synth.Source{}, dev)
				assert.Equal(t, 2, dev.Config().Channels)
				assert.Equal(t, 256, dev.Config().BufferFrames)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dev, err := Create(tt.config)
			require.NoError(t, err)
			tt.check(t, dev)
		})
	}
}

func TestCreate_Errors(t *testing.T) {
	t.Parallel()

	_, err := Create(Config{Backend: "rtsp"})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))

	_, err = Create(Config{Backend: "file"})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))

	_, err = Create(Config{Backend: "file", File: "song.aiff"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, audiocore.ErrInvalidAudioFormat))
}

func TestListDevices_NonSoundcardBackend(t *testing.T) {
	t.Parallel()

	_, err := ListDevices("synth")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}
