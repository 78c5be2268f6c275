package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/arbiter/internal/config"
	"github.com/Iron-Ham/arbiter/internal/errors"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View arbiter configuration",
	Long: `View arbiter configuration.

Without arguments, displays the effective configuration: defaults, the
config file and ARBITER_* environment variables merged.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at $XDG_CONFIG_HOME/arbiter/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

var configInitForce bool

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)

	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing config file")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	if _, err := config.Load(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if used := viper.ConfigFileUsed(); used != "" {
		_, _ = fmt.Fprintf(out, "# Config file: %s\n", used)
	} else {
		_, _ = fmt.Fprintln(out, "# Config file: (none - using defaults)")
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(viper.AllSettings()); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}

// defaultConfigFile is written by config init.
const defaultConfigFile = `# Arbiter Configuration

# Control loop
tick:
  # Evaluate calls per second
  rate_hz: 30
  # Stop after this many ticks; 0 runs until interrupted
  max_ticks: 0

# Behavior tree document; empty uses the built-in play tree
tree:
  file: ""

logging:
  # debug, info, warn or error
  level: info
  # Human-readable log lines on stderr
  console: true
  # Directory for the JSON log file (arbiter.log); empty disables it
  dir: ""
  max_size_mb: 10
  max_backups: 3

# Head camera used by the visual servo behaviors
camera:
  width: 320
  height: 240
  horizontal_fov_deg: 60
  vertical_fov_deg: 45

# Tick trace recorder
trace:
  # Ticks kept in memory
  capacity: 512
  # Glob patterns over behavior ids, e.g. ["look*"]
  include: []
  exclude: []
  # YAML dump written when a run ends; empty disables it
  file: ""

# Simulated robot
sim:
  # play or idle
  scenario: play
  script_duration_ms: 1500
  walk_stop_delay_ms: 400

# Live monitor (arbiter run --monitor)
monitor:
  refresh_ms: 100
  history_lines: 12

# Behavior parameters, read when the tree is built. Unset names use the
# built-in defaults; see 'arbiter params'.
params: {}
#  look_around:
#    side_angle: 100
#    horizontal_duration: 3
#  look_at_ball:
#    gain: 0.85
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configFile := config.ConfigFile()

	exists, err := afero.Exists(appFs, configFile)
	if err != nil {
		return fmt.Errorf("failed to check config file: %w", err)
	}
	if exists && !configInitForce {
		return fmt.Errorf("%w; use --force to overwrite it", errors.NewAlreadyExistsError("config file", configFile))
	}

	if err := appFs.MkdirAll(filepath.Dir(configFile), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := afero.WriteFile(appFs, configFile, []byte(defaultConfigFile), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created config file at %s\n", configFile)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if used := viper.ConfigFileUsed(); used != "" {
		_, _ = fmt.Fprintf(out, "Active config: %s\n", used)
	} else {
		_, _ = fmt.Fprintf(out, "Default path: %s (not created)\n", config.ConfigFile())
	}

	_, _ = fmt.Fprintln(out, "\nSearch paths:")
	_, _ = fmt.Fprintf(out, "  1. %s\n", config.ConfigFile())
	_, _ = fmt.Fprintln(out, "  2. ./config.yaml (current directory)")
	_, _ = fmt.Fprintln(out, "\nEnvironment variables: ARBITER_* (e.g., ARBITER_TICK_RATE_HZ)")
	return nil
}
