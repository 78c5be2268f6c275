package cmd

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/arbiter/internal/config"
	"github.com/Iron-Ham/arbiter/internal/logging"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View run logs",
	Long: `View and filter the JSON log written to logging.dir.

Examples:
  # Show the last 50 entries
  arbiter logs

  # Warnings and errors from one run
  arbiter logs --run 3f2a... --level warn

  # Everything one behavior logged in the last ten minutes
  arbiter logs --behavior lookAtBall --since 10m -n 0`,
	RunE: runLogs,
}

var (
	logsDir      string
	logsTail     int
	logsLevel    string
	logsSince    string
	logsRun      string
	logsBehavior string
	logsGrep     string
)

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().StringVar(&logsDir, "dir", "", "log directory (default: logging.dir)")
	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 50, "Number of entries to show (0 for all)")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "Filter by minimum level (debug/info/warn/error)")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show logs since duration ago (e.g., 1h, 30m)")
	logsCmd.Flags().StringVar(&logsRun, "run", "", "Filter by run id")
	logsCmd.Flags().StringVar(&logsBehavior, "behavior", "", "Filter by behavior id")
	logsCmd.Flags().StringVar(&logsGrep, "grep", "", "Filter by message substring")
}

// logsFilter builds the filter selected by the flags, relative to now.
func logsFilter(now time.Time) (logging.LogFilter, error) {
	filter := logging.LogFilter{
		Level:           logsLevel,
		RunID:           logsRun,
		Behavior:        logsBehavior,
		MessageContains: logsGrep,
	}
	if logsLevel != "" && !slices.Contains(config.ValidLogLevels(), strings.ToLower(logsLevel)) {
		return filter, fmt.Errorf("invalid level %q: must be one of %s", logsLevel, strings.Join(config.ValidLogLevels(), ", "))
	}
	if logsSince != "" {
		d, err := time.ParseDuration(logsSince)
		if err != nil {
			return filter, fmt.Errorf("invalid --since duration %q: %w", logsSince, err)
		}
		filter.Since = now.Add(-d)
	}
	return filter, nil
}

func runLogs(cmd *cobra.Command, args []string) error {
	dir := logsDir
	if dir == "" {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		dir = cfg.Logging.Dir
	}
	if dir == "" {
		return fmt.Errorf("no log directory: set logging.dir or pass --dir")
	}

	filter, err := logsFilter(time.Now())
	if err != nil {
		return err
	}

	entries, err := logging.ReadLogs(dir)
	if err != nil {
		return fmt.Errorf("failed to read logs: %w", err)
	}
	entries = logging.FilterLogs(entries, filter)
	if logsTail > 0 && len(entries) > logsTail {
		entries = entries[len(entries)-logsTail:]
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(out, "No matching log entries")
		return nil
	}
	for _, e := range entries {
		_, _ = fmt.Fprintln(out, logging.FormatEntry(e))
	}
	return nil
}
