package portaudio

import (
	"testing"

	"github.com/gordonklaus/portaudio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/audiopulse/internal/audiocore"
	"github.com/tphakala/audiopulse/internal/errors"
)

func testDevices() []*portaudio.DeviceInfo {
	return []*portaudio.DeviceInfo{
		{Index: 0, Name: "HDMI Output", MaxOutputChannels: 2},
		{Index: 1, Name: "Built-in Microphone", MaxInputChannels: 1},
		{Index: 2, Name: "USB Audio CODEC", MaxInputChannels: 2},
	}
}

func TestSelectInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		defaultName string
		device      string
		wantIndex   int
	}{
		{"default by name", "USB Audio CODEC", "default", 2},
		{"empty falls back to first input", "", "", 1},
		{"exact", "", "Built-in Microphone", 1},
		{"index", "", "2", 2},
		{"partial", "", "CODEC", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dev, err := selectInput(testDevices(), tt.defaultName, tt.device)
			require.NoError(t, err)
			assert.Equal(t, tt.wantIndex, dev.Index)
		})
	}
}

func TestSelectInput_OutputOnlyDevicesAreSkipped(t *testing.T) {
	t.Parallel()

	_, err := selectInput(testDevices(), "", "HDMI")
	require.Error(t, err)
	assert.True(t, errors.Is(err, audiocore.ErrDeviceNotFound))
}

func TestDevice_CallbackStagesCopies(t *testing.T) {
	t.Parallel()

	d := NewDevice(Config{SampleRate: 1000, Channels: 1, StagingChunks: 2, Gain: 2})

	in := []float32{0.1, 0.2, 0.7}
	d.onAudio(in)
	in[0] = 0.9 // PortAudio reuses the buffer

	c, ok := d.TryRead()
	require.True(t, ok)
	assert.InDeltaSlice(t, []float32{0.2, 0.4, 1}, c.Samples, 1e-6)
	assert.Equal(t, 1000, c.SampleRate)

	_, ok = d.TryRead()
	assert.False(t, ok)
}

func TestDevice_StagingEvictsOldest(t *testing.T) {
	t.Parallel()

	d := NewDevice(Config{StagingChunks: 2})
	for i := range 5 {
		d.onAudio([]float32{float32(i) / 10})
	}

	assert.Equal(t, uint64(3), d.Dropped())
	c, ok := d.TryRead()
	require.True(t, ok)
	assert.InDelta(t, 0.3, c.Samples[0], 1e-6)
}

func TestDevice_StopWithoutStart(t *testing.T) {
	t.Parallel()

	d := NewDevice(Config{})
	require.NoError(t, d.Stop())
	assert.False(t, d.IsActive())
	assert.Equal(t, audiocore.DefaultSampleRate, d.Config().SampleRate)
}
