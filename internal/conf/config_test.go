package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// writeConfig writes content to a config.yaml in a fresh temp dir.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// loadDefaults returns validated settings with only defaults applied.
func loadDefaults(t *testing.T) *Settings {
	t.Helper()
	settings, err := LoadWith(viper.New(), Options{ConfigFile: writeConfig(t, "debug: false\n")})
	require.NoError(t, err)
	return settings
}

func TestLoadWith_Defaults(t *testing.T) {
	t.Parallel()

	s := loadDefaults(t)

	assert.Equal(t, AppName, s.Main.Name)
	assert.Equal(t, "info", s.Main.Log.Level)
	assert.Equal(t, "malgo", s.Audio.Source)
	assert.Equal(t, 44100, s.Audio.SampleRate)
	assert.Equal(t, 1, s.Audio.Channels)
	assert.Equal(t, 512, s.Audio.BufferFrames)
	assert.Equal(t, 2048, s.Analysis.WindowSize)
	assert.InDelta(t, 250.0, s.Analysis.Bands.MidLow, 1e-9)
	assert.InDelta(t, 0.995, s.Analysis.ReferenceDecay, 1e-9)
	assert.Equal(t, 100, s.Beat.CooldownMs)
	assert.Equal(t, 8192, s.Pipeline.RingCapacity)
	assert.Equal(t, 60, s.Pipeline.TargetFPS)
	assert.Equal(t, "meter", s.Visualizer.Type)
	assert.Equal(t, 5*time.Second, s.Visualizer.LogInterval)
	require.Len(t, s.Visualizer.Effects, 3)
	assert.Equal(t, "beatflash", s.Visualizer.Effects[0].Name)
	assert.False(t, s.Visualizer.Effects[1].Enabled)
	assert.False(t, s.Telemetry.Enabled)
	assert.False(t, s.Telemetry.Sentry.Enabled)
	assert.Equal(t, "production", s.Telemetry.Sentry.Environment)
}

func TestLoadWith_FileOverridesDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
audio:
  source: file
  file: /music/track.wav
  loop: true
pipeline:
  targetfps: 30
visualizer:
  type: log
  loginterval: 2s
  effects:
    - name: gain
      enabled: true
      intensity: 2
`)
	s, err := LoadWith(viper.New(), Options{ConfigFile: path})
	require.NoError(t, err)

	assert.Equal(t, "file", s.Audio.Source)
	assert.Equal(t, "/music/track.wav", s.Audio.File)
	assert.True(t, s.Audio.Loop)
	assert.Equal(t, 30, s.Pipeline.TargetFPS)
	assert.Equal(t, 512, s.Audio.BufferFrames, "unset keys keep defaults")
	assert.Equal(t, "log", s.Visualizer.Type)
	assert.Equal(t, 2*time.Second, s.Visualizer.LogInterval)
	require.Len(t, s.Visualizer.Effects, 1)
	assert.Equal(t, EffectSettings{Name: "gain", Enabled: true, Intensity: 2}, s.Visualizer.Effects[0])
}

func TestLoadWith_Errors(t *testing.T) {
	t.Parallel()

	t.Run("explicit file missing", func(t *testing.T) {
		t.Parallel()
		_, err := LoadWith(viper.New(), Options{ConfigFile: filepath.Join(t.TempDir(), "none.yaml")})
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		t.Parallel()
		_, err := LoadWith(viper.New(), Options{ConfigFile: writeConfig(t, "audio: [unterminated\n")})
		assert.Error(t, err)
	})

	t.Run("invalid values", func(t *testing.T) {
		t.Parallel()
		_, err := LoadWith(viper.New(), Options{ConfigFile: writeConfig(t, "analysis:\n  windowsize: 1000\n")})
		require.Error(t, err)

		var ve ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Len(t, ve.Errors, 1)
		assert.Contains(t, ve.Errors[0], "power of two")
	})
}

func TestGetSettings_ReturnsLastLoaded(t *testing.T) {
	// Not parallel: other loads would replace the stored instance
	s := loadDefaults(t)
	assert.Same(t, s, GetSettings())
}

func TestDumpYAML(t *testing.T) {
	t.Parallel()

	s := loadDefaults(t)
	data, err := DumpYAML(s)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Contains(t, decoded, "audio")
	assert.Contains(t, decoded, "visualizer")
	audio, ok := decoded["audio"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "malgo", audio["source"])
}

func TestSaveYAMLConfig_RoundTrip(t *testing.T) {
	t.Parallel()

	s := loadDefaults(t)
	s.Audio.Source = "synth"
	s.Audio.Waveform = "pulse"
	s.Beat.Sensitivity = 1.75
	s.Visualizer.LogInterval = 750 * time.Millisecond

	path := filepath.Join(t.TempDir(), "nested", ConfigFileName)
	require.NoError(t, SaveYAMLConfig(path, s))

	loaded, err := LoadWith(viper.New(), Options{ConfigFile: path})
	require.NoError(t, err)
	assert.Equal(t, *s, *loaded)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary file must be removed")
}

func TestGetDefaultConfigPaths(t *testing.T) {
	t.Parallel()

	paths, err := GetDefaultConfigPaths()
	require.NoError(t, err)
	require.NotEmpty(t, paths)
	assert.Equal(t, ".", paths[0])
	for _, p := range paths[1:] {
		assert.Equal(t, AppName, filepath.Base(p))
	}
}

func TestMoveFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "src.yaml")
	dst := filepath.Join(dir, "dst.yaml")
	require.NoError(t, os.WriteFile(src, []byte("debug: true\n"), 0o600))

	require.NoError(t, moveFile(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "debug: true\n", string(data))
	assert.NoFileExists(t, src)
}
