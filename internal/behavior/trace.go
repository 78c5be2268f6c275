package behavior

import "time"

// Trace records what happened during one Evaluate call.
type Trace struct {
	Tick      uint64            `yaml:"tick"`
	Ran       []string          `yaml:"ran"`
	Leaves    []string          `yaml:"leaves"`
	FSMStates map[string]string `yaml:"fsm_states,omitempty"`
	Faults    []Fault           `yaml:"faults,omitempty"`
	Resets    []string          `yaml:"resets,omitempty"`
	Duration  time.Duration     `yaml:"duration"`
}

// Fault is a behavior failure isolated by the tree.
type Fault struct {
	BehaviorID string `yaml:"behavior"`
	Error      string `yaml:"error"`
	Panicked   bool   `yaml:"panicked,omitempty"`
}

// Active reports whether id was among the leaves of this tick.
func (t Trace) Active(id string) bool {
	for _, l := range t.Leaves {
		if l == id {
			return true
		}
	}
	return false
}
