package behavior

import (
	"log/slog"
	"sync"
	"time"

	"github.com/Iron-Ham/arbiter/internal/errors"
	"github.com/Iron-Ham/arbiter/internal/event"
	"github.com/Iron-Ham/arbiter/internal/logging"
)

// DefaultMaxDepth bounds the nesting of RunPolicy expansion within one tick.
const DefaultMaxDepth = 64

// Tree owns a set of behaviors keyed by id and evaluates them from a single
// root once per tick.
//
// Evaluate must be called from one goroutine. LastTrace may be called
// concurrently with Evaluate.
type Tree struct {
	behaviors map[string]Behavior
	order     []string
	root      string

	logger   *logging.Logger
	bus      *event.Bus
	maxDepth int
	now      func() time.Time

	tick    uint64
	lastRan []Behavior

	mu   sync.RWMutex
	last Trace
}

// Option configures a Tree.
type Option func(*Tree)

// WithLogger sets the tree's logger.
func WithLogger(l *logging.Logger) Option {
	return func(t *Tree) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithBus publishes tree events on b.
func WithBus(b *event.Bus) Option {
	return func(t *Tree) { t.bus = b }
}

// WithMaxDepth overrides DefaultMaxDepth.
func WithMaxDepth(depth int) Option {
	return func(t *Tree) {
		if depth > 0 {
			t.maxDepth = depth
		}
	}
}

// WithClock sets the clock used to time evaluations.
func WithClock(now func() time.Time) Option {
	return func(t *Tree) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTree creates an empty tree.
func NewTree(opts ...Option) *Tree {
	t := &Tree{
		behaviors: make(map[string]Behavior),
		logger:    logging.NopLogger(),
		maxDepth:  DefaultMaxDepth,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// AddBehavior registers b. If isRoot is set, b becomes the behavior
// Evaluate starts from; a tree has exactly one root.
func (t *Tree) AddBehavior(b Behavior, isRoot bool) error {
	if b == nil {
		return errors.NewTreeError("cannot add behavior", errors.ErrInvalidInput)
	}
	id := b.ID()
	if id == "" {
		return errors.NewTreeError("behavior id must not be empty", errors.ErrInvalidInput)
	}
	if _, exists := t.behaviors[id]; exists {
		return errors.NewTreeError("cannot add behavior", errors.ErrDuplicateBehavior).WithBehaviorID(id)
	}
	if isRoot && t.root != "" {
		return errors.NewTreeError("cannot add root", errors.ErrRootAlreadySet).WithBehaviorID(id)
	}
	if v, ok := b.(Validator); ok {
		if err := v.Validate(); err != nil {
			return errors.NewTreeError("behavior failed validation", err).WithBehaviorID(id)
		}
	}

	t.behaviors[id] = b
	t.order = append(t.order, id)
	if isRoot {
		t.root = id
	}

	t.logger.Debug("behavior added", "behavior", id, "kind", KindOf(b), "root", isRoot)
	return nil
}

// GetBehavior returns the behavior registered under id.
func (t *Tree) GetBehavior(id string) (Behavior, error) {
	b, ok := t.behaviors[id]
	if !ok {
		return nil, errors.NewNotFoundError("behavior", id).WithCause(errors.ErrBehaviorNotFound)
	}
	return b, nil
}

// Root returns the root behavior, or an error if none has been set.
func (t *Tree) Root() (Behavior, error) {
	if t.root == "" {
		return nil, errors.NewTreeError("no root", errors.ErrNoRoot)
	}
	return t.behaviors[t.root], nil
}

// IDs returns the registered behavior ids in registration order.
func (t *Tree) IDs() []string {
	return append([]string(nil), t.order...)
}

// Len returns the number of registered behaviors.
func (t *Tree) Len() int {
	return len(t.behaviors)
}

// Tick returns the number of completed Evaluate calls.
func (t *Tree) Tick() uint64 {
	return t.tick
}

// LastTrace returns the trace of the most recent Evaluate call.
func (t *Tree) LastTrace() Trace {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last
}

// evaluation is the bookkeeping for one Evaluate call.
type evaluation struct {
	tick   uint64
	logger *logging.Logger
	ran    []Behavior
	ranSet map[string]bool
	leaves []Behavior
	states map[string]string
	faults []Fault
}

// Evaluate runs one tick: it expands the root recursively through
// RunPolicy and returns the behaviors that returned no children, in
// traversal order and without duplicates.
//
// A behavior whose RunPolicy fails or panics is logged, published as a
// BehaviorFaultEvent and contributes nothing this tick; the rest of the tree
// still runs. Behaviors that ran last tick but not this one are reset.
func (t *Tree) Evaluate() []Behavior {
	start := t.now()
	t.tick++

	ev := &evaluation{
		tick:   t.tick,
		logger: t.logger.WithTick(t.tick),
		ranSet: make(map[string]bool),
		states: make(map[string]string),
	}

	root, ok := t.behaviors[t.root]
	if !ok {
		ev.logger.Error("evaluate called on tree without root")
		t.finish(ev, nil, start)
		return nil
	}

	t.expand(ev, root, 0)
	resets := t.resetDeselected(ev)
	t.lastRan = ev.ran

	t.finish(ev, resets, start)
	return ev.leaves
}

func (t *Tree) expand(ev *evaluation, b Behavior, depth int) {
	id := b.ID()
	if ev.ranSet[id] {
		return
	}
	if depth >= t.maxDepth {
		t.fault(ev, id, errors.NewBehaviorError("expansion too deep", errors.ErrExpansionTooDeep).
			WithBehaviorID(id).WithTick(ev.tick), false)
		return
	}

	ev.ranSet[id] = true
	ev.ran = append(ev.ran, b)

	children, panicked, err := runPolicy(b)
	if sr, ok := b.(StateReporter); ok {
		ev.states[id] = sr.CurrentStateName()
	}
	if err != nil {
		fe := errors.NewBehaviorError("run policy failed", err).WithBehaviorID(id).WithTick(ev.tick)
		if panicked {
			fe = fe.WithSeverity(errors.SeverityCritical)
		}
		t.fault(ev, id, fe, panicked)
		return
	}

	if len(children) == 0 {
		ev.leaves = append(ev.leaves, b)
		return
	}
	for _, child := range children {
		if child == nil {
			continue
		}
		t.expand(ev, child, depth+1)
	}
}

// runPolicy calls b.RunPolicy, converting a panic into an error.
func runPolicy(b Behavior) (children []Behavior, panicked bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			children = nil
			err = errors.FromPanic(r)
			panicked = true
		}
	}()
	children, err = b.RunPolicy()
	return children, false, err
}

func (t *Tree) fault(ev *evaluation, id string, err error, panicked bool) {
	ev.logger.WithBehavior(id).Log(faultLevel(err), "behavior fault",
		"error", err.Error(), "severity", errors.GetSeverity(err).String(), "panicked", panicked)
	ev.faults = append(ev.faults, Fault{BehaviorID: id, Error: err.Error(), Panicked: panicked})
	t.bus.Publish(event.NewBehaviorFaultEvent(ev.tick, id, err, panicked))
}

// faultLevel maps the severity carried by err to a log level.
func faultLevel(err error) slog.Level {
	switch errors.GetSeverity(err) {
	case errors.SeverityDebug:
		return slog.LevelDebug
	case errors.SeverityInfo:
		return slog.LevelInfo
	case errors.SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// resetDeselected resets behaviors that ran during the previous tick but
// not during this one, and returns their ids.
func (t *Tree) resetDeselected(ev *evaluation) []string {
	var resets []string
	for _, b := range t.lastRan {
		id := b.ID()
		if ev.ranSet[id] {
			continue
		}
		r, ok := b.(Resetter)
		if !ok {
			continue
		}
		func() {
			defer func() {
				if p := recover(); p != nil {
					t.fault(ev, id, errors.NewBehaviorError("reset failed", errors.FromPanic(p)).
						WithBehaviorID(id).WithTick(ev.tick).WithSeverity(errors.SeverityCritical), true)
				}
			}()
			r.Reset()
		}()
		resets = append(resets, id)
		ev.logger.WithBehavior(id).Debug("behavior deselected, reset")
		t.bus.Publish(event.NewBehaviorResetEvent(ev.tick, id))
	}
	return resets
}

func (t *Tree) finish(ev *evaluation, resets []string, start time.Time) {
	trace := Trace{
		Tick:      ev.tick,
		Ran:       IDs(ev.ran),
		Leaves:    IDs(ev.leaves),
		FSMStates: ev.states,
		Faults:    ev.faults,
		Resets:    resets,
		Duration:  t.now().Sub(start),
	}

	t.mu.Lock()
	t.last = trace
	t.mu.Unlock()

	ev.logger.Debug("tick evaluated", "leaves", trace.Leaves, "ran", len(trace.Ran), "faults", len(trace.Faults))
	t.bus.Publish(event.NewTickEvaluatedEvent(
		trace.Tick, trace.Ran, trace.Leaves, trace.FSMStates, len(trace.Faults), trace.Duration))
}
