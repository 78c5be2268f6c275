// Package cmd implements the arbiter command line.
package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/arbiter/internal/config"
	"github.com/Iron-Ham/arbiter/internal/errors"
	"github.com/Iron-Ham/arbiter/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "arbiter",
	Short: "Behavior arbitration runtime for a legged robot",
	Long: `Arbiter evaluates a behavior tree of state machines and leaf behaviors
once per control tick and drives the robot's head, walking engine and motion
scripts from the active leaves.

Trees are described in YAML. Without --tree the built-in play-mode tree is
used, driven by a simulated robot and a scripted sensor scenario.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and reports any error on stderr.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		_, _ = fmt.Fprintln(rootCmd.ErrOrStderr(), formatError(err))
	}
	return err
}

// formatError renders err for the terminal. Errors built for users are
// printed as they are; anything else gets a pointer to the debug log.
func formatError(err error) string {
	if errors.IsUserFacing(err) {
		return "Error: " + err.Error()
	}
	return fmt.Sprintf("Error: %v\n(rerun with --log-level debug for details)", err)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $XDG_CONFIG_HOME/arbiter/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "override logging.level (debug/info/warn/error)")
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()
	viper.SetFs(appFs)
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("ARBITER")
	// e.g., ARBITER_TICK_RATE_HZ for tick.rate_hz
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

// newLogger creates the process logger from cfg. Console output goes to stderr.
func newLogger(cfg *config.Config, stderr io.Writer) (*logging.Logger, error) {
	opts := logging.Options{
		Dir:   cfg.Logging.Dir,
		Level: cfg.Logging.Level,
		Rotation: logging.RotationConfig{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
		},
	}
	if cfg.Logging.Console {
		opts.Console = stderr
	}
	return logging.NewLogger(opts)
}

// appFs is the filesystem used for config, tree documents and traces.
var appFs afero.Fs = afero.NewOsFs()
