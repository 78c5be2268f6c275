// Package treespec builds behavior trees from YAML documents.
//
// A document lists behaviors by id and kind. Leaf kinds take their tuning
// from a params map, falling back to the process-wide parameters. FSM
// behaviors declare states whose children are other behaviors of the same
// document, and transitions whose conditions are expr-lang expressions:
//
//	root: win
//	behaviors:
//	  - id: standUp
//	    kind: action
//	    script: stand_up
//	  - id: win
//	    kind: fsm
//	    states:
//	      - {name: startUp, start: true, children: [standUp]}
//	      - {name: ready}
//	    transitions:
//	      - {from: startUp, to: ready, when: "terminated()"}
package treespec

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/arbiter/internal/errors"
)

// WildcardState is the transition origin that matches every state.
const WildcardState = "*"

//go:embed play.yaml
var defaultDocument []byte

// Document is a declarative behavior tree.
type Document struct {
	Root      string         `yaml:"root"`
	Behaviors []BehaviorSpec `yaml:"behaviors"`
}

// BehaviorSpec declares one behavior.
type BehaviorSpec struct {
	ID     string         `yaml:"id"`
	Kind   string         `yaml:"kind"`
	Script string         `yaml:"script,omitempty"`
	Params map[string]any `yaml:"params,omitempty"`

	States      []StateSpec      `yaml:"states,omitempty"`
	Transitions []TransitionSpec `yaml:"transitions,omitempty"`
}

// StateSpec declares an FSM state.
type StateSpec struct {
	Name     string   `yaml:"name"`
	Start    bool     `yaml:"start,omitempty"`
	Final    bool     `yaml:"final,omitempty"`
	Children []string `yaml:"children,omitempty,flow"`
	OnEnter  []string `yaml:"on_enter,omitempty,flow"`
}

// TransitionSpec declares an FSM transition. From may be WildcardState.
type TransitionSpec struct {
	Name string   `yaml:"name,omitempty"`
	From string   `yaml:"from"`
	To   string   `yaml:"to"`
	When string   `yaml:"when"`
	Do   []string `yaml:"do,omitempty,flow"`
}

// Parse decodes and validates a document.
func Parse(data []byte) (*Document, error) {
	return decode(bytes.NewReader(data))
}

// Load reads a document from path on fs.
func Load(fs afero.Fs, path string) (*Document, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open tree document: %w", err)
	}
	defer func() { _ = f.Close() }()

	doc, err := decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "tree document %s", path)
	}
	return doc, nil
}

// Default returns the embedded play-mode tree.
func Default() *Document {
	doc, err := Parse(defaultDocument)
	if err != nil {
		panic(fmt.Sprintf("embedded tree document is invalid: %v", err))
	}
	return doc
}

func decode(r io.Reader) (*Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.NewValidationError("empty tree document")
		}
		return nil, errors.NewValidationError("malformed tree document").WithCause(err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Encode renders the document as YAML.
func (d *Document) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("failed to encode tree document: %w", err)
	}
	return enc.Close()
}

// Validate checks the document's structure. Kinds, children and
// expressions are checked when the tree is built.
func (d *Document) Validate() error {
	if d.Root == "" {
		return errors.NewTreeError("document names no root", errors.ErrNoRoot)
	}

	seen := make(map[string]bool, len(d.Behaviors))
	for i, b := range d.Behaviors {
		switch {
		case b.ID == "":
			return errors.NewValidationError("behavior id is required").
				WithField(fmt.Sprintf("behaviors[%d].id", i))
		case b.Kind == "":
			return errors.NewValidationError("behavior kind is required").
				WithField(fmt.Sprintf("behaviors[%d].kind", i))
		case seen[b.ID]:
			return errors.NewTreeError("cannot declare behavior", errors.ErrDuplicateBehavior).WithBehaviorID(b.ID)
		}
		seen[b.ID] = true
	}

	if !seen[d.Root] {
		return errors.NewTreeError("root is not declared",
			errors.NewNotFoundError("behavior", d.Root).WithCause(errors.ErrBehaviorNotFound))
	}
	return nil
}
