package trace

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/arbiter/internal/behavior"
	"github.com/Iron-Ham/arbiter/internal/event"
)

type idle struct{ behavior.Base }

func (idle) RunPolicy() ([]behavior.Behavior, error) { return nil, nil }

func tick(bus *event.Bus, n uint64, ran, leaves []string, states map[string]string) {
	bus.Publish(event.NewTickEvaluatedEvent(n, ran, leaves, states, 0, 0))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(0, nil, nil)
	assert.Error(t, err)

	_, err = New(4, []string{"[a-"}, nil)
	assert.Error(t, err)
}

func TestRecorder_AttachesEventsToTick(t *testing.T) {
	bus := event.NewBus()
	r, err := New(8, nil, nil)
	require.NoError(t, err)
	r.Attach(bus)

	bus.Publish(event.NewTransitionFiredEvent("win", "ready", "set", "mode", false))
	bus.Publish(event.NewBehaviorFaultEvent(1, "lookAtBall", fmt.Errorf("no camera"), false))
	bus.Publish(event.NewBehaviorResetEvent(1, "lookAround"))
	bus.Publish(event.NewWalkTruncatedEvent("loop", "a", 20))
	tick(bus, 1, []string{"win", "stopWalking"}, []string{"stopWalking"}, map[string]string{"win": "set"})
	tick(bus, 2, []string{"win"}, []string{"win"}, nil)

	recs := r.Records()
	require.Len(t, recs, 2)

	first := recs[0]
	assert.Equal(t, uint64(1), first.Tick)
	assert.Equal(t, []Transition{{FSM: "win", From: "ready", To: "set", Name: "mode"}}, first.Transitions)
	assert.Equal(t, []Fault{{Behavior: "lookAtBall", Error: "no camera"}}, first.Faults)
	assert.Equal(t, []string{"lookAround"}, first.Resets)
	assert.Equal(t, []string{"loop"}, first.Truncated)
	assert.Equal(t, map[string]string{"win": "set"}, first.States)

	assert.Empty(t, recs[1].Transitions, "pending events belong to one tick only")

	r.Detach()
	tick(bus, 3, nil, nil, nil)
	assert.Equal(t, 2, r.Len())
}

func TestRecorder_Ring(t *testing.T) {
	bus := event.NewBus()
	r, err := New(3, nil, nil)
	require.NoError(t, err)
	r.Attach(bus)

	for i := uint64(1); i <= 5; i++ {
		tick(bus, i, nil, nil, nil)
	}

	var ticks []uint64
	for _, rec := range r.Records() {
		ticks = append(ticks, rec.Tick)
	}
	assert.Equal(t, []uint64{3, 4, 5}, ticks)
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, uint64(5), r.Total())

	last := r.Last(2)
	require.Len(t, last, 2)
	assert.Equal(t, uint64(4), last[0].Tick)
	assert.Len(t, r.Last(10), 3)
}

func TestRecorder_Filters(t *testing.T) {
	r, err := New(4, []string{"look*", "win"}, []string{"lookAround"})
	require.NoError(t, err)

	tests := []struct {
		id   string
		keep bool
	}{
		{"lookAtBall", true},
		{"lookAround", false},
		{"win", true},
		{"stopWalking", false},
		{"look.nested", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.keep, r.Keep(tt.id), tt.id)
	}

	bus := event.NewBus()
	r.Attach(bus)
	bus.Publish(event.NewTransitionFiredEvent("searchBall", "looking", "tracking", "found", false))
	tick(bus, 1,
		[]string{"win", "searchBall", "lookAtBall"},
		[]string{"lookAtBall"},
		map[string]string{"win": "playing", "searchBall": "tracking"})

	rec := r.Records()[0]
	assert.Equal(t, []string{"win", "lookAtBall"}, rec.Ran)
	assert.Equal(t, map[string]string{"win": "playing"}, rec.States)
	assert.Empty(t, rec.Transitions)
}

func TestRecorder_FromTree(t *testing.T) {
	bus := event.NewBus()
	r, err := New(4, nil, nil)
	require.NoError(t, err)
	r.Attach(bus)

	tree := behavior.NewTree(behavior.WithBus(bus))
	require.NoError(t, tree.AddBehavior(idle{behavior.NewBase("solo")}, true))
	tree.Evaluate()

	recs := r.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, []string{"solo"}, recs[0].Leaves)
}

func TestRecorder_DumpFile(t *testing.T) {
	bus := event.NewBus()
	r, err := New(4, nil, nil)
	require.NoError(t, err)
	r.Attach(bus)
	tick(bus, 1, []string{"a"}, []string{"a"}, nil)
	tick(bus, 2, []string{"a"}, []string{"a"}, nil)

	fs := afero.NewMemMapFs()
	require.NoError(t, r.DumpFile(fs, "/runs/trace.yaml"))

	data, err := afero.ReadFile(fs, "/runs/trace.yaml")
	require.NoError(t, err)

	var got struct {
		Recorded uint64 `yaml:"recorded"`
		Ticks    []struct {
			Tick   uint64   `yaml:"tick"`
			Leaves []string `yaml:"leaves"`
		} `yaml:"ticks"`
	}
	require.NoError(t, yaml.NewDecoder(bytes.NewReader(data)).Decode(&got))
	assert.Equal(t, uint64(2), got.Recorded)
	require.Len(t, got.Ticks, 2)
	assert.Equal(t, []string{"a"}, got.Ticks[1].Leaves)
}
