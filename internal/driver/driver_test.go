package driver

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/arbiter/internal/behavior"
	"github.com/Iron-Ham/arbiter/internal/errors"
	"github.com/Iron-Ham/arbiter/internal/event"
	"github.com/Iron-Ham/arbiter/internal/sensor"
)

// ballWatcher is a leaf that records the ball it sees each tick.
type ballWatcher struct {
	behavior.Base
	frames sensor.FrameReader
	mu     sync.Mutex
	seen   []bool
}

func (p *ballWatcher) RunPolicy() ([]behavior.Behavior, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, p.frames.Frame().BallVisible())
	return nil, nil
}

func (p *ballWatcher) runs() []bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]bool(nil), p.seen...)
}

// ballEvery shows the ball on even ticks and fails on the ticks in fail.
type ballEvery struct {
	fail map[uint64]bool
}

func (s ballEvery) Read(tick uint64) (sensor.Snapshot, error) {
	if s.fail[tick] {
		return sensor.Snapshot{}, fmt.Errorf("camera timeout")
	}
	var snap sensor.Snapshot
	if tick%2 == 0 {
		snap.Frame.Ball = &sensor.Point{X: 1, Y: 1}
	}
	return snap, nil
}

func setup(t *testing.T, src sensor.Source, opts ...Option) (*Driver, *ballWatcher, *sensor.Store) {
	t.Helper()
	store := sensor.NewStore()
	p := &ballWatcher{Base: behavior.NewBase("watcher"), frames: store}
	tree := behavior.NewTree()
	require.NoError(t, tree.AddBehavior(p, true))
	return New(tree, src, store, opts...), p, store
}

func TestStep(t *testing.T) {
	d, p, store := setup(t, ballEvery{fail: map[uint64]bool{3: true}})

	for range 2 {
		leaves, err := d.Step()
		require.NoError(t, err)
		assert.Equal(t, []string{"watcher"}, behavior.IDs(leaves))
	}
	_, tick := store.Latest()
	assert.Equal(t, uint64(2), tick)

	// A failed read still ticks, on the previous snapshot.
	_, err := d.Step()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tick 3")
	_, tick = store.Latest()
	assert.Equal(t, uint64(2), tick)

	assert.Equal(t, []bool{false, true, true}, p.runs())
	assert.Equal(t, uint64(3), d.Ticks())
	assert.Equal(t, uint64(1), d.SensorFailures())
}

func TestRun_MaxTicks(t *testing.T) {
	bus := event.NewBus()
	var mu sync.Mutex
	var events []event.Event
	bus.Subscribe(event.Wildcard, func(e event.Event) {
		mu.Lock()
		defer mu.Unlock()
		if e.EventType() == event.TypeRunStarted || e.EventType() == event.TypeRunStopped {
			events = append(events, e)
		}
	})

	d, p, _ := setup(t, ballEvery{}, WithBus(bus), WithPeriod(time.Millisecond), WithMaxTicks(5), WithRunID("run-1"))
	assert.Equal(t, "run-1", d.RunID())
	assert.Equal(t, time.Millisecond, d.Period())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Run(ctx))

	assert.Len(t, p.runs(), 5)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 2)
	started := events[0].(event.RunStartedEvent)
	assert.Equal(t, "watcher", started.Root)
	assert.Equal(t, "run-1", started.RunID)
	stopped := events[1].(event.RunStoppedEvent)
	assert.Equal(t, uint64(5), stopped.Ticks)
	assert.Equal(t, ReasonMaxTicks, stopped.Reason)
}

func TestRun_Cancelled(t *testing.T) {
	bus := event.NewBus()
	reasons := make(chan string, 1)
	bus.Subscribe(event.TypeRunStopped, func(e event.Event) {
		reasons <- e.(event.RunStoppedEvent).Reason
	})

	d, p, _ := setup(t, ballEvery{}, WithBus(bus), WithPeriod(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for len(p.runs()) < 3 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	require.NoError(t, d.Run(ctx))
	assert.GreaterOrEqual(t, len(p.runs()), 3)
	assert.Equal(t, ReasonCancelled, <-reasons)
}

func TestRun_NoRoot(t *testing.T) {
	d := New(behavior.NewTree(), ballEvery{}, sensor.NewStore())
	assert.ErrorIs(t, d.Run(context.Background()), errors.ErrNoRoot)
}

func TestNew_GeneratesRunID(t *testing.T) {
	a := New(behavior.NewTree(), ballEvery{}, sensor.NewStore())
	b := New(behavior.NewTree(), ballEvery{}, sensor.NewStore())
	assert.NotEmpty(t, a.RunID())
	assert.NotEqual(t, a.RunID(), b.RunID())
	assert.Equal(t, DefaultPeriod, a.Period())
}
