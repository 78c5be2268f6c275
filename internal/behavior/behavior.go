// Package behavior defines the Behavior contract and the Tree that evaluates
// a hierarchy of behaviors once per control tick.
//
// A behavior either delegates, by returning child behaviors from RunPolicy,
// or acts, by issuing actuation commands and returning no children. The tree
// expands the root recursively each tick and reports the behaviors that
// returned no children as the active leaves.
package behavior

// Behavior is a unit of robot decision making.
type Behavior interface {
	// ID returns the behavior's unique id within its tree.
	ID() string
	// IsAvailable reports whether a parent may select this behavior.
	// It is not consulted to stop a behavior that is already running.
	IsAvailable() bool
	// HasTerminated reports progress in [0, 1]; exactly 1.0 means done.
	HasTerminated() float64
	// RunPolicy runs one tick of the behavior and returns the children to
	// run this tick. An empty result marks the behavior as a leaf.
	RunPolicy() ([]Behavior, error)
}

// Resetter is implemented by behaviors with per-selection state. The tree
// calls Reset on a behavior that ran during the previous tick but was not
// selected during the current one.
type Resetter interface {
	Reset()
}

// Validator is implemented by behaviors that can check their own
// construction. AddBehavior refuses behaviors that fail validation.
type Validator interface {
	Validate() error
}

// StateReporter is implemented by composite behaviors with a named current
// state. The state is recorded in each tick's Trace.
type StateReporter interface {
	CurrentStateName() string
}

// Kinded is implemented by behaviors that report a type name for
// diagnostics, such as "fsm" or "look_around".
type Kinded interface {
	Kind() string
}

// Base supplies the ID and the default IsAvailable and HasTerminated.
// Embed it in concrete behaviors.
type Base struct {
	id string
}

// NewBase returns a Base with the given id.
func NewBase(id string) Base {
	return Base{id: id}
}

// ID implements Behavior.
func (b Base) ID() string { return b.id }

// IsAvailable implements Behavior. Behaviors are available unless they say otherwise.
func (Base) IsAvailable() bool { return true }

// HasTerminated implements Behavior. Behaviors without a notion of
// progress report themselves as done.
func (Base) HasTerminated() float64 { return 1.0 }

// Terminated reports whether b has finished, i.e. HasTerminated is exactly 1.0.
func Terminated(b Behavior) bool {
	return b.HasTerminated() == 1.0
}

// AllTerminated reports whether every behavior in bs has finished.
// It is true for an empty list.
func AllTerminated(bs []Behavior) bool {
	for _, b := range bs {
		if !Terminated(b) {
			return false
		}
	}
	return true
}

// KindOf returns b's Kind, or "behavior" if it does not report one.
func KindOf(b Behavior) string {
	if k, ok := b.(Kinded); ok {
		return k.Kind()
	}
	return "behavior"
}

// IDs returns the ids of bs in order.
func IDs(bs []Behavior) []string {
	ids := make([]string, len(bs))
	for i, b := range bs {
		ids[i] = b.ID()
	}
	return ids
}
