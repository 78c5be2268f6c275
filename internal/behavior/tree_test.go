package behavior

import (
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/arbiter/internal/errors"
	"github.com/Iron-Ham/arbiter/internal/event"
	"github.com/Iron-Ham/arbiter/internal/logging"
	"github.com/Iron-Ham/arbiter/internal/testutil"
)

// stub is a configurable behavior for tree tests.
type stub struct {
	Base
	children   []Behavior
	err        error
	panicValue any
	terminated float64
	calls      int
	resets     int
	state      string
	invalid    error
}

func newStub(id string, children ...Behavior) *stub {
	return &stub{Base: NewBase(id), children: children}
}

func (s *stub) HasTerminated() float64 { return s.terminated }

func (s *stub) RunPolicy() ([]Behavior, error) {
	s.calls++
	if s.panicValue != nil {
		panic(s.panicValue)
	}
	return s.children, s.err
}

func (s *stub) Reset() { s.resets++ }

func (s *stub) CurrentStateName() string { return s.state }

func (s *stub) Validate() error { return s.invalid }

// plain has no optional capabilities.
type plain struct{ Base }

func (plain) RunPolicy() ([]Behavior, error) { return nil, nil }

func TestBase(t *testing.T) {
	b := plain{NewBase("p")}
	assert.Equal(t, "p", b.ID())
	assert.True(t, b.IsAvailable())
	assert.Equal(t, 1.0, b.HasTerminated())
	assert.Equal(t, "behavior", KindOf(b))
}

func TestTerminated(t *testing.T) {
	done := &stub{Base: NewBase("a"), terminated: 1.0}
	almost := &stub{Base: NewBase("b"), terminated: 0.999}

	assert.True(t, Terminated(done))
	assert.False(t, Terminated(almost))
	assert.True(t, AllTerminated(nil))
	assert.True(t, AllTerminated([]Behavior{done}))
	assert.False(t, AllTerminated([]Behavior{done, almost}))
}

func TestAddBehavior(t *testing.T) {
	tree := NewTree()
	require.NoError(t, tree.AddBehavior(newStub("root"), true))
	require.NoError(t, tree.AddBehavior(newStub("child"), false))

	t.Run("duplicate id", func(t *testing.T) {
		err := tree.AddBehavior(newStub("child"), false)
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrDuplicateBehavior)
	})

	t.Run("second root", func(t *testing.T) {
		err := tree.AddBehavior(newStub("other"), true)
		assert.ErrorIs(t, err, errors.ErrRootAlreadySet)
	})

	t.Run("empty id", func(t *testing.T) {
		assert.ErrorIs(t, tree.AddBehavior(newStub(""), false), errors.ErrInvalidInput)
	})

	t.Run("nil", func(t *testing.T) {
		assert.ErrorIs(t, tree.AddBehavior(nil, false), errors.ErrInvalidInput)
	})

	t.Run("validation", func(t *testing.T) {
		bad := newStub("bad")
		bad.invalid = errors.ErrNoStartState
		err := tree.AddBehavior(bad, false)
		assert.ErrorIs(t, err, errors.ErrNoStartState)
		_, getErr := tree.GetBehavior("bad")
		assert.Error(t, getErr, "invalid behavior is not registered")
	})

	assert.Equal(t, []string{"root", "child"}, tree.IDs())
	assert.Equal(t, 2, tree.Len())
}

func TestGetBehavior(t *testing.T) {
	tree := NewTree()
	s := newStub("x")
	require.NoError(t, tree.AddBehavior(s, false))

	got, err := tree.GetBehavior("x")
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = tree.GetBehavior("missing")
	assert.ErrorIs(t, err, errors.ErrBehaviorNotFound)
	assert.True(t, errors.IsSemanticError(err))

	_, err = tree.Root()
	assert.ErrorIs(t, err, errors.ErrNoRoot)
}

func TestEvaluate_SingleLeafRoot(t *testing.T) {
	tree := NewTree()
	root := newStub("root")
	require.NoError(t, tree.AddBehavior(root, true))

	for i := 1; i <= 5; i++ {
		leaves := tree.Evaluate()
		require.Len(t, leaves, 1)
		assert.Same(t, root, leaves[0])
		assert.Equal(t, uint64(i), tree.Tick())
	}
}

func TestEvaluate_NoRoot(t *testing.T) {
	tree := NewTree()
	assert.Nil(t, tree.Evaluate())
	assert.Equal(t, uint64(1), tree.LastTrace().Tick)
}

func TestEvaluate_Expansion(t *testing.T) {
	gaze := newStub("gaze")
	walk := newStub("walk")
	shared := newStub("shared")
	left := newStub("left", gaze, shared)
	right := newStub("right", shared, walk)
	root := newStub("root", left, right)
	root.state = "playing"

	tree := NewTree()
	for _, b := range []*stub{root, left, right, gaze, walk, shared} {
		require.NoError(t, tree.AddBehavior(b, b == root))
	}

	leaves := tree.Evaluate()

	assert.Equal(t, []string{"gaze", "shared", "walk"}, IDs(leaves))
	assert.Equal(t, 1, shared.calls, "a behavior runs at most once per tick")

	trace := tree.LastTrace()
	assert.Equal(t, []string{"root", "left", "gaze", "shared", "right", "walk"}, trace.Ran)
	assert.Equal(t, "playing", trace.FSMStates["root"])
	assert.True(t, trace.Active("walk"))
	assert.False(t, trace.Active("left"))
}

func TestEvaluate_FaultIsolation(t *testing.T) {
	erroring := newStub("erroring", newStub("neverRun"))
	erroring.err = fmt.Errorf("camera offline")
	panicking := newStub("panicking")
	panicking.panicValue = "index out of range"
	sibling := newStub("sibling")
	root := newStub("root", erroring, panicking, sibling)

	bus := event.NewBus()
	var faults []event.BehaviorFaultEvent
	bus.Subscribe(event.TypeBehaviorFault, func(e event.Event) {
		faults = append(faults, e.(event.BehaviorFaultEvent))
	})

	tree := NewTree(WithBus(bus))
	require.NoError(t, tree.AddBehavior(root, true))

	leaves := tree.Evaluate()

	assert.Equal(t, []string{"sibling"}, IDs(leaves))
	require.Len(t, faults, 2)
	assert.Equal(t, "erroring", faults[0].BehaviorID)
	assert.False(t, faults[0].Panicked)
	assert.Equal(t, "panicking", faults[1].BehaviorID)
	assert.True(t, faults[1].Panicked)
	assert.ErrorIs(t, faults[1].Err, errors.ErrBehaviorPanicked)

	trace := tree.LastTrace()
	require.Len(t, trace.Faults, 2)
	assert.Contains(t, trace.Faults[0].Error, "camera offline")
	assert.NotContains(t, trace.Ran, "neverRun")
}

func TestEvaluate_FaultLogLevel(t *testing.T) {
	busy := newStub("busy")
	busy.err = errors.NewActuationError("player busy", errors.ErrActuationRejected)
	broken := newStub("broken")
	broken.err = fmt.Errorf("camera offline")
	crashing := newStub("crashing")
	crashing.panicValue = "nil map"
	root := newStub("root", busy, broken, crashing)

	logs := testutil.NewLogCapture()
	tree := NewTree(WithLogger(logging.FromHandler(logs)))
	require.NoError(t, tree.AddBehavior(root, true))
	tree.Evaluate()

	faults := make(map[string]testutil.LogRecord)
	for _, r := range logs.Records() {
		if r.Message == "behavior fault" {
			faults[r.Attrs["behavior"].(string)] = r
		}
	}
	require.Len(t, faults, 3)

	tests := []struct {
		id       string
		level    slog.Level
		severity string
	}{
		{"busy", slog.LevelWarn, "warning"},
		{"broken", slog.LevelError, "error"},
		{"crashing", slog.LevelError, "critical"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			r := faults[tt.id]
			assert.Equal(t, tt.level, r.Level)
			assert.Equal(t, tt.severity, r.Attrs["severity"])
		})
	}
}

func TestEvaluate_MaxDepth(t *testing.T) {
	var chain Behavior = newStub("d3")
	for _, id := range []string{"d2", "d1", "d0"} {
		chain = newStub(id, chain)
	}

	tree := NewTree(WithMaxDepth(3))
	require.NoError(t, tree.AddBehavior(chain, true))

	leaves := tree.Evaluate()

	assert.Empty(t, leaves)
	trace := tree.LastTrace()
	assert.Equal(t, []string{"d0", "d1", "d2"}, trace.Ran)
	require.Len(t, trace.Faults, 1)
	assert.Equal(t, "d3", trace.Faults[0].BehaviorID)
}

func TestEvaluate_ResetsDeselected(t *testing.T) {
	a := newStub("a")
	b := newStub("b")
	root := newStub("root", a)

	bus := event.NewBus()
	var resets []string
	bus.Subscribe(event.TypeBehaviorReset, func(e event.Event) {
		resets = append(resets, e.(event.BehaviorResetEvent).BehaviorID)
	})

	tree := NewTree(WithBus(bus))
	require.NoError(t, tree.AddBehavior(root, true))

	tree.Evaluate()
	root.children = []Behavior{b}
	tree.Evaluate()
	tree.Evaluate()

	assert.Equal(t, 1, a.resets, "deselected behavior is reset exactly once")
	assert.Equal(t, 0, b.resets)
	assert.Equal(t, 0, root.resets)
	assert.Equal(t, []string{"a"}, resets)

	root.children = []Behavior{a}
	tree.Evaluate()
	assert.Equal(t, 1, b.resets)
	assert.Equal(t, []string{"b"}, tree.LastTrace().Resets)
}

func TestEvaluate_PublishesTick(t *testing.T) {
	bus := event.NewBus()
	var ticks []event.TickEvaluatedEvent
	bus.Subscribe(event.TypeTickEvaluated, func(e event.Event) {
		ticks = append(ticks, e.(event.TickEvaluatedEvent))
	})

	tree := NewTree(WithBus(bus))
	require.NoError(t, tree.AddBehavior(newStub("root", newStub("leaf")), true))

	tree.Evaluate()
	tree.Evaluate()

	require.Len(t, ticks, 2)
	assert.Equal(t, uint64(2), ticks[1].Tick)
	assert.Equal(t, []string{"leaf"}, ticks[1].Leaves)
	assert.Equal(t, []string{"root", "leaf"}, ticks[1].Ran)
}
