package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/arbiter/internal/config"
	"github.com/Iron-Ham/arbiter/internal/errors"
	"github.com/Iron-Ham/arbiter/internal/treespec"
)

// resetFlags restores every flag of c and its subcommands to its default.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// setup isolates a test from the user's config and filesystem.
func setup(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	prev := appFs
	appFs = fs
	t.Cleanup(func() {
		appFs = prev
		viper.Reset()
		resetFlags(rootCmd)
	})
	t.Setenv("XDG_CONFIG_HOME", "/cfg")
	viper.Reset()
	resetFlags(rootCmd)
	return fs
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	assert.Equal(t, "arbiter", rootCmd.Use)

	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"run", "tree", "config", "params", "logs"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
}

func TestRun_Ticks(t *testing.T) {
	setup(t)

	out, err := execute(t, "run", "--ticks", "15", "--rate", "500", "--scenario", "idle")
	require.NoError(t, err)

	assert.Contains(t, out, ": 15 ticks")
	assert.Contains(t, out, "win: startUp")
	assert.Contains(t, out, "leaves: standUp")
	assert.Contains(t, out, "scripts: stand_up")
}

func TestRun_TraceFile(t *testing.T) {
	fs := setup(t)

	_, err := execute(t, "run", "-n", "5", "--rate", "500", "--trace-file", "/runs/trace.yaml")
	require.NoError(t, err)

	data, err := afero.ReadFile(fs, "/runs/trace.yaml")
	require.NoError(t, err)
	assert.Contains(t, string(data), "recorded: 5")
	assert.Contains(t, string(data), "ticks:")
}

func TestRun_CustomTree(t *testing.T) {
	fs := setup(t)
	doc := `root: scan
behaviors:
  - id: scan
    kind: look_around
    params:
      side_angle: 45
`
	require.NoError(t, afero.WriteFile(fs, "/trees/scan.yaml", []byte(doc), 0o644))

	out, err := execute(t, "run", "--tree", "/trees/scan.yaml", "--ticks", "3", "--rate", "500")
	require.NoError(t, err)
	assert.Contains(t, out, "leaves: scan")
}

func TestRun_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"rate", []string{"run", "--rate", "-1"}, "tick.rate_hz"},
		{"scenario", []string{"run", "--scenario", "chaos", "-n", "1"}, "sim.scenario"},
		{"missing tree", []string{"run", "--tree", "/nope.yaml", "-n", "1"}, "nope.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setup(t)
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFormatError(t *testing.T) {
	userErr := fmt.Errorf("loading tree: %w", errors.NewNotFoundError("tree file", "/nope.yaml"))
	assert.Equal(t, "Error: loading tree: tree file '/nope.yaml' not found", formatError(userErr))

	internalErr := fmt.Errorf("write trace: disk full")
	got := formatError(internalErr)
	assert.True(t, strings.HasPrefix(got, "Error: write trace: disk full\n"))
	assert.Contains(t, got, "--log-level debug")
}

func TestExecute_ReportsError(t *testing.T) {
	setup(t)
	var errOut bytes.Buffer
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs([]string{"tree", "dot", "nope"})

	require.Error(t, Execute())
	assert.Equal(t, "Error: fsm 'nope' not found: behavior not found\n", errOut.String())
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, isTerminal(&bytes.Buffer{}))
}

func TestTreeShow(t *testing.T) {
	setup(t)

	out, err := execute(t, "tree", "show")
	require.NoError(t, err)
	for _, want := range []string{
		"root: win",
		"searchBall",
		"look_around",
		"FSM win",
		"startUp [start] → standUp",
		"startUp → ready (stood)",
		"* → pausing (pause)",
		"FSM searchBall",
	} {
		assert.Contains(t, out, want)
	}
}

func TestTreeDot(t *testing.T) {
	setup(t)

	out, err := execute(t, "tree", "dot", "searchBall")
	require.NoError(t, err)
	assert.Contains(t, out, `digraph "searchBall" {`)
	assert.NotContains(t, out, `digraph "win"`)

	out, err = execute(t, "tree", "dot")
	require.NoError(t, err)
	assert.Contains(t, out, `digraph "win" {`)
	assert.Contains(t, out, `digraph "searchBall" {`)

	_, err = execute(t, "tree", "dot", "nope")
	assert.Error(t, err)
}

func TestTreeExport(t *testing.T) {
	setup(t)

	out, err := execute(t, "tree", "export")
	require.NoError(t, err)

	doc, err := treespec.Parse([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, treespec.Default().Root, doc.Root)
	assert.Len(t, doc.Behaviors, len(treespec.Default().Behaviors))
}

func TestTreeKinds(t *testing.T) {
	setup(t)

	out, err := execute(t, "tree", "kinds")
	require.NoError(t, err)
	assert.Contains(t, out, "look_at_goal\n")
	assert.Contains(t, out, "fsm\n")
	assert.Contains(t, out, "head_home")
}

func TestConfigInit(t *testing.T) {
	fs := setup(t)
	path := filepath.Join("/cfg", "arbiter", "config.yaml")

	out, err := execute(t, "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, path)

	_, err = execute(t, "config", "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
	var exists *errors.AlreadyExistsError
	require.ErrorAs(t, err, &exists)
	assert.Equal(t, path, exists.ResourceID)
	assert.Equal(t, "Error: "+err.Error(), formatError(err))

	_, err = execute(t, "config", "init", "--force")
	require.NoError(t, err)

	// The generated file loads to the defaults.
	v := viper.New()
	v.SetFs(fs)
	v.SetConfigFile(path)
	config.SetDefaultsOn(v)
	require.NoError(t, v.ReadInConfig())
	cfg, err := config.LoadFrom(v)
	require.NoError(t, err)

	def := config.Default()
	assert.Equal(t, def.Tick, cfg.Tick)
	assert.Equal(t, def.Logging, cfg.Logging)
	assert.Equal(t, def.Camera, cfg.Camera)
	assert.Equal(t, def.Sim, cfg.Sim)
	assert.Equal(t, def.Monitor, cfg.Monitor)
	assert.Equal(t, def.Trace.Capacity, cfg.Trace.Capacity)
}

func TestConfigShowAndPath(t *testing.T) {
	fs := setup(t)
	require.NoError(t, afero.WriteFile(fs, "/etc/arbiter.yaml", []byte("tick:\n  rate_hz: 50\n"), 0o644))

	out, err := execute(t, "config", "show", "--config", "/etc/arbiter.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "# Config file: /etc/arbiter.yaml")
	assert.Contains(t, out, "rate_hz: 50")
	assert.Contains(t, out, "scenario: play")

	out, err = execute(t, "config", "path", "--config", "/etc/arbiter.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "Active config: /etc/arbiter.yaml")
	assert.Contains(t, out, "ARBITER_")
}

func TestConfigShow_Invalid(t *testing.T) {
	fs := setup(t)
	require.NoError(t, afero.WriteFile(fs, "/etc/arbiter.yaml", []byte("tick:\n  rate_hz: 0\n"), 0o644))

	_, err := execute(t, "config", "--config", "/etc/arbiter.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tick.rate_hz")
}

func TestParams(t *testing.T) {
	fs := setup(t)
	cfg := "params:\n  look_at_ball:\n    gain: 0.5\n"
	require.NoError(t, afero.WriteFile(fs, "/etc/arbiter.yaml", []byte(cfg), 0o644))

	out, err := execute(t, "params", "--config", "/etc/arbiter.yaml")
	require.NoError(t, err)
	assert.Regexp(t, `look_at_ball\.gain\s+0\.5\s+config`, out)
	assert.Regexp(t, `look_around\.side_angle\s+100\s+default`, out)

	out, err = execute(t, "params", "--config", "/etc/arbiter.yaml", "--yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "name: look_at_goal.max_offset")
}

func TestLogs(t *testing.T) {
	setup(t)
	dir := t.TempDir()
	lines := `{"time":"2026-01-02T10:00:00Z","level":"INFO","msg":"run started","run_id":"r1"}
{"time":"2026-01-02T10:00:01Z","level":"WARN","msg":"motion script start rejected, retrying next tick","run_id":"r1","behavior":"standUp","tick":3}
{"time":"2026-01-02T10:00:02Z","level":"INFO","msg":"run stopped","run_id":"r2"}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "arbiter.log"), []byte(lines), 0o644))

	out, err := execute(t, "logs", "--dir", dir, "--level", "warn")
	require.NoError(t, err)
	assert.Contains(t, out, "motion script start rejected")
	assert.Contains(t, out, "behavior=standUp")
	assert.NotContains(t, out, "run started")

	out, err = execute(t, "logs", "--dir", dir, "--run", "r2")
	require.NoError(t, err)
	assert.Contains(t, out, "run stopped")
	assert.NotContains(t, out, "run started")

	out, err = execute(t, "logs", "--dir", dir, "-n", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "run stopped")
	assert.NotContains(t, out, "rejected")

	out, err = execute(t, "logs", "--dir", dir, "--grep", "nothing like this")
	require.NoError(t, err)
	assert.Contains(t, out, "No matching log entries")

	_, err = execute(t, "logs", "--dir", dir, "--level", "loud")
	assert.Error(t, err)
	_, err = execute(t, "logs", "--dir", dir, "--since", "yesterday")
	assert.Error(t, err)
}
