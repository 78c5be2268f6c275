package config

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper(t *testing.T, yaml string) *viper.Viper {
	t.Helper()

	fs := afero.NewMemMapFs()
	v := viper.New()
	v.SetFs(fs)
	SetDefaultsOn(v)

	if yaml != "" {
		require.NoError(t, afero.WriteFile(fs, "/etc/arbiter/config.yaml", []byte(yaml), 0644))
		v.SetConfigFile("/etc/arbiter/config.yaml")
		require.NoError(t, v.ReadInConfig())
	}
	return v
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 30.0, cfg.Tick.RateHz)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Console)
	assert.Equal(t, 10, cfg.Logging.MaxSizeMB)
	assert.Equal(t, 3, cfg.Logging.MaxBackups)
	assert.Equal(t, 320, cfg.Camera.Width)
	assert.Equal(t, 240, cfg.Camera.Height)
	assert.Equal(t, 60.0, cfg.Camera.HorizontalFOVDeg)
	assert.Equal(t, 45.0, cfg.Camera.VerticalFOVDeg)
	assert.Equal(t, "play", cfg.Sim.Scenario)
	assert.Empty(t, cfg.Validate(), "defaults must validate")
}

func TestDurations(t *testing.T) {
	assert.Equal(t, 40*time.Millisecond, TickConfig{RateHz: 25}.Period())
	assert.Equal(t, time.Duration(0), TickConfig{}.Period())
	assert.Equal(t, 1500*time.Millisecond, SimConfig{ScriptDurationMs: 1500}.ScriptDuration())
	assert.Equal(t, 400*time.Millisecond, SimConfig{WalkStopDelayMs: 400}.WalkStopDelay())
	assert.Equal(t, 100*time.Millisecond, MonitorConfig{RefreshMs: 100}.Refresh())
}

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(newViper(t, ""))
	require.NoError(t, err)

	assert.Equal(t, Default().Tick, cfg.Tick)
	assert.Equal(t, Default().Camera, cfg.Camera)
	assert.NotNil(t, cfg.Params)
}

func TestLoadFrom_File(t *testing.T) {
	cfg, err := LoadFrom(newViper(t, `
tick:
  rate_hz: 50
camera:
  width: 640
  height: 480
trace:
  include: ["lookAt*"]
params:
  head:
    look_around:
      top_angle: 15
`))
	require.NoError(t, err)

	assert.Equal(t, 50.0, cfg.Tick.RateHz)
	assert.Equal(t, 20*time.Millisecond, cfg.Tick.Period())
	assert.Equal(t, 640, cfg.Camera.Width)
	assert.Equal(t, []string{"lookAt*"}, cfg.Trace.Include)
	assert.Equal(t, 60.0, cfg.Camera.HorizontalFOVDeg, "unset keys keep defaults")
	assert.Contains(t, cfg.Params, "head")
}

func TestLoadFrom_Invalid(t *testing.T) {
	_, err := LoadFrom(newViper(t, `
tick:
  rate_hz: 0
sim:
  scenario: soccer
`))
	require.Error(t, err)

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Len(t, verrs, 2)
	assert.Contains(t, err.Error(), "tick.rate_hz")
	assert.Contains(t, err.Error(), "sim.scenario")
}

func TestConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	assert.Equal(t, "/xdg/arbiter", ConfigDir())
	assert.Equal(t, "/xdg/arbiter/config.yaml", ConfigFile())
}
