package fsm

import (
	"fmt"
	"strings"

	"github.com/Iron-Ham/arbiter/internal/behavior"
)

// Dot renders the machine as a Graphviz digraph. The start state is drawn
// bold, final states with a double border and the current state filled.
// Wildcard transitions come from a point node labelled "*".
func (m *FSM) Dot() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "digraph %q {\n", m.ID())
	sb.WriteString("  rankdir=LR;\n")
	sb.WriteString("  node [shape=box, style=rounded];\n")

	for _, s := range m.states {
		attrs := []string{fmt.Sprintf("label=%q", stateLabel(s))}
		styles := []string{"rounded"}
		if s.start {
			styles = append(styles, "bold")
		}
		if s.id == m.cur {
			styles = append(styles, "filled")
		}
		attrs = append(attrs, fmt.Sprintf("style=%q", strings.Join(styles, ",")))
		if s.Final {
			attrs = append(attrs, "peripheries=2")
		}
		fmt.Fprintf(&sb, "  %s [%s];\n", nodeID(s.id), strings.Join(attrs, ", "))
	}

	if len(m.wildcards) > 0 {
		sb.WriteString("  any [shape=point, xlabel=\"*\"];\n")
	}

	for _, t := range m.wildcards {
		if !m.valid(t.To) {
			continue
		}
		fmt.Fprintf(&sb, "  any -> %s%s;\n", nodeID(t.To), edgeLabel(t, true))
	}
	for _, s := range m.states {
		for _, t := range s.transitions {
			if !m.valid(t.To) {
				continue
			}
			fmt.Fprintf(&sb, "  %s -> %s%s;\n", nodeID(s.id), nodeID(t.To), edgeLabel(t, false))
		}
	}

	sb.WriteString("}\n")
	return sb.String()
}

func nodeID(id StateID) string {
	return fmt.Sprintf("s%d", id)
}

func stateLabel(s *State) string {
	if len(s.Children) == 0 {
		return s.Name
	}
	return s.Name + "\n" + strings.Join(behavior.IDs(s.Children), ", ")
}

func edgeLabel(t *Transition, wildcard bool) string {
	var attrs []string
	if t.Name != "" {
		attrs = append(attrs, fmt.Sprintf("label=%q", t.Name))
	}
	if wildcard {
		attrs = append(attrs, "style=dashed")
	}
	if len(attrs) == 0 {
		return ""
	}
	return " [" + strings.Join(attrs, ", ") + "]"
}
