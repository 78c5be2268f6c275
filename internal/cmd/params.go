package cmd

import (
	"fmt"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var paramsCmd = &cobra.Command{
	Use:   "params",
	Short: "List the behavior parameters a tree reads",
	Long: `Build the tree and list every parameter its behaviors resolved, with
the value used and whether it came from the params section of the config
or from the built-in default.

Examples:
  arbiter params
  arbiter params --tree my-tree.yaml --yaml`,
	RunE: runParams,
}

var (
	paramsTree string
	paramsYAML bool
)

func init() {
	rootCmd.AddCommand(paramsCmd)

	paramsCmd.Flags().StringVarP(&paramsTree, "tree", "t", "", "tree document (default: built-in play tree)")
	paramsCmd.Flags().BoolVar(&paramsYAML, "yaml", false, "print as YAML")
}

func runParams(cmd *cobra.Command, args []string) error {
	sys, err := buildForInspection(paramsTree)
	if err != nil {
		return err
	}

	lookups := sys.params.Lookups()
	out := cmd.OutOrStdout()
	if paramsYAML {
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(lookups); err != nil {
			return fmt.Errorf("failed to encode params: %w", err)
		}
		return enc.Close()
	}

	if len(lookups) == 0 {
		_, _ = fmt.Fprintln(out, "No parameters resolved")
		return nil
	}
	for _, l := range lookups {
		source := "config"
		if l.Defaulted {
			source = "default"
		}
		_, _ = fmt.Fprintf(out, "%-40s %-10s %s\n", l.Name, cast.ToString(l.Value), source)
	}
	return nil
}
