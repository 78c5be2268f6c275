package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/Iron-Ham/arbiter/internal/logging"
)

// Config holds all arbiter process configuration.
type Config struct {
	Tick    TickConfig     `mapstructure:"tick"`
	Tree    TreeConfig     `mapstructure:"tree"`
	Logging LoggingConfig  `mapstructure:"logging"`
	Camera  CameraConfig   `mapstructure:"camera"`
	Trace   TraceConfig    `mapstructure:"trace"`
	Sim     SimConfig      `mapstructure:"sim"`
	Monitor MonitorConfig  `mapstructure:"monitor"`
	Params  map[string]any `mapstructure:"params"`
}

// TickConfig controls the control-loop cadence.
type TickConfig struct {
	// RateHz is the number of Evaluate calls per second (default: 30)
	RateHz float64 `mapstructure:"rate_hz"`
	// MaxTicks stops the run after this many ticks; 0 runs until interrupted
	MaxTicks int `mapstructure:"max_ticks"`
}

// Period returns the time between ticks.
func (c TickConfig) Period() time.Duration {
	if c.RateHz <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / c.RateHz)
}

// TreeConfig selects the behavior tree document.
type TreeConfig struct {
	// File is a YAML tree document. Empty uses the built-in play-mode tree.
	File string `mapstructure:"file"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// Console enables the human-readable stderr sink (default: true)
	Console bool `mapstructure:"console"`
	// Dir holds arbiter.log. Empty disables the JSON file sink.
	Dir string `mapstructure:"dir"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups"`
}

// CameraConfig describes the head camera used by the visual servo leaves.
type CameraConfig struct {
	Width            int     `mapstructure:"width"`
	Height           int     `mapstructure:"height"`
	HorizontalFOVDeg float64 `mapstructure:"horizontal_fov_deg"`
	VerticalFOVDeg   float64 `mapstructure:"vertical_fov_deg"`
}

// TraceConfig controls the tick trace recorder.
type TraceConfig struct {
	// Capacity is the number of ticks kept in memory (default: 512)
	Capacity int `mapstructure:"capacity"`
	// Include keeps only behaviors whose id matches one of these globs
	Include []string `mapstructure:"include"`
	// Exclude drops behaviors whose id matches one of these globs
	Exclude []string `mapstructure:"exclude"`
	// File receives a YAML dump of the trace when the run ends
	File string `mapstructure:"file"`
}

// SimConfig controls the simulated actuation modules and sensor scenario.
type SimConfig struct {
	// Scenario is the scripted sensor sequence: "play" or "idle" (default: "play")
	Scenario string `mapstructure:"scenario"`
	// ScriptDurationMs is how long a simulated motion script runs (default: 1500)
	ScriptDurationMs int `mapstructure:"script_duration_ms"`
	// WalkStopDelayMs is how long the simulated walker takes to come to rest (default: 400)
	WalkStopDelayMs int `mapstructure:"walk_stop_delay_ms"`
}

// ScriptDuration returns ScriptDurationMs as a time.Duration.
func (c SimConfig) ScriptDuration() time.Duration {
	return time.Duration(c.ScriptDurationMs) * time.Millisecond
}

// WalkStopDelay returns WalkStopDelayMs as a time.Duration.
func (c SimConfig) WalkStopDelay() time.Duration {
	return time.Duration(c.WalkStopDelayMs) * time.Millisecond
}

// MonitorConfig controls the live terminal monitor.
type MonitorConfig struct {
	// RefreshMs is the redraw interval (default: 100)
	RefreshMs int `mapstructure:"refresh_ms"`
	// HistoryLines is the number of transitions kept on screen (default: 12)
	HistoryLines int `mapstructure:"history_lines"`
}

// Refresh returns RefreshMs as a time.Duration.
func (c MonitorConfig) Refresh() time.Duration {
	return time.Duration(c.RefreshMs) * time.Millisecond
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Tick: TickConfig{
			RateHz:   30,
			MaxTicks: 0,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Console:    true,
			MaxSizeMB:  logging.DefaultRotationConfig().MaxSizeMB,
			MaxBackups: logging.DefaultRotationConfig().MaxBackups,
		},
		Camera: CameraConfig{
			Width:            320,
			Height:           240,
			HorizontalFOVDeg: 60,
			VerticalFOVDeg:   45,
		},
		Trace: TraceConfig{
			Capacity: 512,
			Include:  []string{},
			Exclude:  []string{},
		},
		Sim: SimConfig{
			Scenario:         "play",
			ScriptDurationMs: 1500,
			WalkStopDelayMs:  400,
		},
		Monitor: MonitorConfig{
			RefreshMs:    100,
			HistoryLines: 12,
		},
		Params: map[string]any{},
	}
}

// SetDefaults registers default values with the global viper instance.
func SetDefaults() {
	SetDefaultsOn(viper.GetViper())
}

// SetDefaultsOn registers default values with v.
func SetDefaultsOn(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("tick.rate_hz", defaults.Tick.RateHz)
	v.SetDefault("tick.max_ticks", defaults.Tick.MaxTicks)

	v.SetDefault("tree.file", defaults.Tree.File)

	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.console", defaults.Logging.Console)
	v.SetDefault("logging.dir", defaults.Logging.Dir)
	v.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)

	v.SetDefault("camera.width", defaults.Camera.Width)
	v.SetDefault("camera.height", defaults.Camera.Height)
	v.SetDefault("camera.horizontal_fov_deg", defaults.Camera.HorizontalFOVDeg)
	v.SetDefault("camera.vertical_fov_deg", defaults.Camera.VerticalFOVDeg)

	v.SetDefault("trace.capacity", defaults.Trace.Capacity)
	v.SetDefault("trace.include", defaults.Trace.Include)
	v.SetDefault("trace.exclude", defaults.Trace.Exclude)
	v.SetDefault("trace.file", defaults.Trace.File)

	v.SetDefault("sim.scenario", defaults.Sim.Scenario)
	v.SetDefault("sim.script_duration_ms", defaults.Sim.ScriptDurationMs)
	v.SetDefault("sim.walk_stop_delay_ms", defaults.Sim.WalkStopDelayMs)

	v.SetDefault("monitor.refresh_ms", defaults.Monitor.RefreshMs)
	v.SetDefault("monitor.history_lines", defaults.Monitor.HistoryLines)
}

// Load reads the configuration from the global viper instance and validates it.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads the configuration from v into a Config struct and validates it.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.Params == nil {
		cfg.Params = map[string]any{}
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration, falling back to defaults if it
// cannot be loaded.
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "arbiter")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".arbiter"
	}
	return filepath.Join(home, ".config", "arbiter")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// ValidScenarios returns the names accepted by sim.scenario.
func ValidScenarios() []string {
	return []string{"play", "idle"}
}
