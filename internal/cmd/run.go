package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/Iron-Ham/arbiter/internal/config"
	"github.com/Iron-Ham/arbiter/internal/driver"
	"github.com/Iron-Ham/arbiter/internal/event"
	"github.com/Iron-Ham/arbiter/internal/logging"
	"github.com/Iron-Ham/arbiter/internal/trace"
	"github.com/Iron-Ham/arbiter/internal/tui"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the behavior tree against the simulated robot",
	Long: `Run evaluates the behavior tree once per tick until interrupted or until
--ticks ticks have run.

Sensor snapshots come from a scripted scenario (sim.scenario) and actuation
commands go to simulated modules. With --monitor a live view of the active
leaves, FSM states and recent transitions is shown when stdout is a terminal.

Examples:
  # Run the built-in play tree for ten seconds at 30 Hz
  arbiter run --ticks 300

  # Run a custom tree with the live monitor
  arbiter run --tree my-tree.yaml --monitor

  # Keep a YAML trace of the last ticks
  arbiter run --ticks 600 --trace-file run-trace.yaml`,
	RunE: runRun,
}

var (
	runTree      string
	runTicks     int
	runRate      float64
	runScenario  string
	runMonitor   bool
	runTraceFile string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runTree, "tree", "t", "", "tree document (default: built-in play tree)")
	runCmd.Flags().IntVarP(&runTicks, "ticks", "n", 0, "stop after this many ticks (0 runs until interrupted)")
	runCmd.Flags().Float64Var(&runRate, "rate", 0, "ticks per second (default: tick.rate_hz)")
	runCmd.Flags().StringVar(&runScenario, "scenario", "", "sensor scenario: play or idle (default: sim.scenario)")
	runCmd.Flags().BoolVarP(&runMonitor, "monitor", "m", false, "show the live monitor")
	runCmd.Flags().StringVar(&runTraceFile, "trace-file", "", "write the tick trace as YAML when the run ends")
}

// applyRunFlags overrides cfg with the flags set on cmd.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("tree") {
		cfg.Tree.File = runTree
	}
	if flags.Changed("ticks") {
		cfg.Tick.MaxTicks = runTicks
	}
	if flags.Changed("rate") {
		cfg.Tick.RateHz = runRate
	}
	if flags.Changed("scenario") {
		cfg.Sim.Scenario = runScenario
	}
	if flags.Changed("trace-file") {
		cfg.Trace.File = runTraceFile
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return config.ValidationErrors(errs)
	}
	return nil
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := applyRunFlags(cmd, cfg); err != nil {
		return err
	}

	monitor := runMonitor && isTerminal(cmd.OutOrStdout())
	if monitor {
		// The monitor owns the screen.
		cfg.Logging.Console = false
	}
	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Close() }()
	if runMonitor && !monitor {
		logger.Warn("stdout is not a terminal, monitor disabled")
	}

	bus := event.NewBus()
	watchConfig(logger, bus)

	sys, err := assemble(cfg, assembleOptions{
		fs:     appFs,
		v:      viper.GetViper(),
		logger: logger,
		bus:    bus,
	})
	if err != nil {
		return err
	}

	recorder, err := trace.New(cfg.Trace.Capacity, cfg.Trace.Include, cfg.Trace.Exclude)
	if err != nil {
		return err
	}
	recorder.Attach(bus)
	defer recorder.Detach()

	d := driver.New(sys.tree, sys.scenario, sys.store,
		driver.WithLogger(logger),
		driver.WithBus(bus),
		driver.WithPeriod(cfg.Tick.Period()),
		driver.WithMaxTicks(uint64(cfg.Tick.MaxTicks)))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if monitor {
		err = runWithMonitor(ctx, d, sys, bus, cfg.Monitor)
	} else {
		err = d.Run(ctx)
	}

	if cfg.Trace.File != "" {
		if dumpErr := recorder.DumpFile(appFs, cfg.Trace.File); dumpErr != nil {
			logger.Error("failed to write trace", "path", cfg.Trace.File, "error", dumpErr)
		} else {
			logger.Info("trace written", "path", cfg.Trace.File, "ticks", recorder.Len())
		}
	}
	if err != nil {
		return err
	}

	printSummary(cmd.OutOrStdout(), d, sys, recorder)
	return nil
}

// runWithMonitor runs the driver in the background while the monitor owns
// the terminal. Quitting the monitor stops the run.
func runWithMonitor(ctx context.Context, d *driver.Driver, sys *system, bus *event.Bus, cfg config.MonitorConfig) error {
	feed := tui.NewFeed(cfg.HistoryLines)
	feed.Attach(bus)
	defer feed.Detach()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	app := tui.New(feed,
		tui.WithRefresh(cfg.Refresh()),
		tui.WithHead(func() (float64, float64) {
			st := sys.modules.Head.State()
			return st.Pan, st.Tilt
		}))
	uiErr := app.Run(ctx)
	cancel()
	if err := <-done; err != nil {
		return err
	}
	return uiErr
}

// watchConfig reports config file changes. Changes apply on the next run.
func watchConfig(logger *logging.Logger, bus *event.Bus) {
	if viper.ConfigFileUsed() == "" {
		return
	}
	viper.OnConfigChange(func(e fsnotify.Event) {
		logger.Info("config file changed, restart to apply", "path", e.Name, "op", e.Op.String())
		bus.Publish(event.NewConfigChangedEvent(e.Name))
	})
	viper.WatchConfig()
}

func printSummary(w io.Writer, d *driver.Driver, sys *system, recorder *trace.Recorder) {
	_, _ = fmt.Fprintf(w, "run %s: %d ticks", d.RunID(), d.Ticks())
	if n := d.SensorFailures(); n > 0 {
		_, _ = fmt.Fprintf(w, " (%d on stale sensor data)", n)
	}
	_, _ = fmt.Fprintln(w)

	last := sys.tree.LastTrace()
	if len(last.FSMStates) > 0 {
		ids := make([]string, 0, len(last.FSMStates))
		for id := range last.FSMStates {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		for _, id := range ids {
			_, _ = fmt.Fprintf(w, "  %s: %s\n", id, last.FSMStates[id])
		}
	}
	if len(last.Leaves) > 0 {
		_, _ = fmt.Fprintf(w, "  leaves: %s\n", strings.Join(last.Leaves, ", "))
	}

	transitions := 0
	for _, rec := range recorder.Records() {
		transitions += len(rec.Transitions)
	}
	_, _ = fmt.Fprintf(w, "  transitions in last %d ticks: %d\n", recorder.Len(), transitions)
	if played := sys.modules.Scripts.Played(); len(played) > 0 {
		_, _ = fmt.Fprintf(w, "  scripts: %s\n", strings.Join(played, ", "))
	}
}
