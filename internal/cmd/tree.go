package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/arbiter/internal/behavior"
	"github.com/Iron-Ham/arbiter/internal/config"
	"github.com/Iron-Ham/arbiter/internal/errors"
	"github.com/Iron-Ham/arbiter/internal/fsm"
	"github.com/Iron-Ham/arbiter/internal/treespec"
)

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Inspect behavior tree documents",
	Long: `Inspect behavior tree documents.

Every subcommand builds the tree first, so a document that prints here
will also run. Without --tree the built-in play tree is used.`,
}

var treeShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the behaviors, states and transitions of a tree",
	RunE:  runTreeShow,
}

var treeDotCmd = &cobra.Command{
	Use:   "dot [fsm-id]",
	Short: "Print Graphviz DOT for the tree's state machines",
	Long: `Print Graphviz DOT for every state machine of the tree, or only the
one named. Render with: arbiter tree dot win | dot -Tsvg > win.svg`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTreeDot,
}

var treeExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print the tree document as YAML",
	Long:  `Print the tree document as YAML. Use it to start a custom tree from the built-in one.`,
	RunE:  runTreeExport,
}

var treeKindsCmd = &cobra.Command{
	Use:   "kinds",
	Short: "List the behavior kinds a tree document may use",
	RunE:  runTreeKinds,
}

var treeFile string

func init() {
	rootCmd.AddCommand(treeCmd)
	treeCmd.AddCommand(treeShowCmd)
	treeCmd.AddCommand(treeDotCmd)
	treeCmd.AddCommand(treeExportCmd)
	treeCmd.AddCommand(treeKindsCmd)

	treeCmd.PersistentFlags().StringVarP(&treeFile, "tree", "t", "", "tree document (default: built-in play tree)")
}

// buildForInspection assembles the tree in file without running it.
func buildForInspection(file string) (*system, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return assemble(cfg, assembleOptions{
		fs:       appFs,
		v:        viper.GetViper(),
		treeFile: file,
	})
}

func runTreeShow(cmd *cobra.Command, args []string) error {
	sys, err := buildForInspection(treeFile)
	if err != nil {
		return err
	}
	printTree(cmd.OutOrStdout(), sys)
	return nil
}

func printTree(w io.Writer, sys *system) {
	_, _ = fmt.Fprintf(w, "root: %s\n\n", sys.doc.Root)

	_, _ = fmt.Fprintln(w, "BEHAVIORS")
	_, _ = fmt.Fprintln(w, strings.Repeat("─", 50))
	for _, id := range sys.tree.IDs() {
		b, err := sys.tree.GetBehavior(id)
		if err != nil {
			continue
		}
		_, _ = fmt.Fprintf(w, "  %-16s %s\n", id, behavior.KindOf(b))
	}

	for _, m := range sys.machines() {
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintf(w, "FSM %s\n", m.ID())
		_, _ = fmt.Fprintln(w, strings.Repeat("─", 50))
		for _, s := range m.States() {
			var flags []string
			if s.IsStart() {
				flags = append(flags, "start")
			}
			if s.Final {
				flags = append(flags, "final")
			}
			line := "  " + s.Name
			if len(flags) > 0 {
				line += " [" + strings.Join(flags, ", ") + "]"
			}
			if len(s.Children) > 0 {
				line += " → " + strings.Join(behavior.IDs(s.Children), ", ")
			}
			_, _ = fmt.Fprintln(w, line)
			for _, t := range s.Transitions() {
				_, _ = fmt.Fprintf(w, "      %s → %s%s\n", s.Name, m.State(t.To).Name, transitionName(t))
			}
		}
		for _, t := range m.Wildcards() {
			_, _ = fmt.Fprintf(w, "  * → %s%s\n", m.State(t.To).Name, transitionName(t))
		}
	}
}

func transitionName(t *fsm.Transition) string {
	if t.Name == "" {
		return ""
	}
	return " (" + t.Name + ")"
}

func runTreeDot(cmd *cobra.Command, args []string) error {
	sys, err := buildForInspection(treeFile)
	if err != nil {
		return err
	}
	machines := sys.machines()
	if len(args) == 1 {
		var found *fsm.FSM
		for _, m := range machines {
			if m.ID() == args[0] {
				found = m
			}
		}
		if found == nil {
			return errors.NewNotFoundError("fsm", args[0]).WithCause(errors.ErrBehaviorNotFound)
		}
		machines = []*fsm.FSM{found}
	}
	for _, m := range machines {
		_, _ = fmt.Fprint(cmd.OutOrStdout(), m.Dot())
	}
	return nil
}

func runTreeExport(cmd *cobra.Command, args []string) error {
	sys, err := buildForInspection(treeFile)
	if err != nil {
		return err
	}
	return sys.doc.Encode(cmd.OutOrStdout())
}

func runTreeKinds(cmd *cobra.Command, args []string) error {
	b := treespec.NewBuilder(treespec.Deps{})
	for _, k := range b.Kinds() {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), k)
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\ncommands for do: and on_enter: %s\n", strings.Join(treespec.Commands(), ", "))
	return nil
}
