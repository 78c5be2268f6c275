package tui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/arbiter/internal/event"
)

func publishTick(bus *event.Bus, tick uint64, leaves []string, states map[string]string) {
	bus.Publish(event.NewTickEvaluatedEvent(tick, leaves, leaves, states, 0, time.Millisecond))
}

func TestFeed(t *testing.T) {
	bus := event.NewBus()
	feed := NewFeed(2)
	feed.Attach(bus)

	bus.Publish(event.NewRunStartedEvent("0123456789abcdef", "win", time.Second/30))
	bus.Publish(event.NewTransitionFiredEvent("win", "", "startUp", "", false))
	publishTick(bus, 1, []string{"standUp"}, map[string]string{"win": "startUp"})
	bus.Publish(event.NewTransitionFiredEvent("win", "startUp", "ready", "terminated()", false))
	bus.Publish(event.NewTransitionFiredEvent("win", "ready", "pausing", "pause", true))
	bus.Publish(event.NewBehaviorResetEvent(2, "standUp"))
	bus.Publish(event.NewActuationRejectedEvent("sitDown", "scripts", "sit_down"))
	publishTick(bus, 2, []string{"stopWalking", "sitDown"}, map[string]string{"win": "pausing"})

	snap := feed.Snapshot()
	assert.Equal(t, "win", snap.Root)
	assert.Equal(t, uint64(2), snap.Tick)
	assert.Equal(t, []string{"stopWalking", "sitDown"}, snap.Leaves)
	assert.Equal(t, "pausing", snap.States["win"])
	assert.Equal(t, uint64(1), snap.Resets)
	assert.Equal(t, uint64(1), snap.Rejections)

	require.Len(t, snap.Transitions, 2, "history is bounded")
	assert.Equal(t, TransitionLine{Tick: 2, FSM: "win", From: "startUp", To: "ready", Name: "terminated()"}, snap.Transitions[0])
	assert.True(t, snap.Transitions[1].Wildcard)

	// Snapshots are copies.
	snap.Leaves[0] = "mutated"
	assert.Equal(t, "stopWalking", feed.Snapshot().Leaves[0])

	bus.Publish(event.NewRunStoppedEvent("0123456789abcdef", 2, "cancelled"))
	assert.True(t, feed.Snapshot().Stopped)

	feed.Detach()
	publishTick(bus, 3, nil, nil)
	assert.Equal(t, uint64(2), feed.Snapshot().Tick)
}

func TestModel_View(t *testing.T) {
	bus := event.NewBus()
	feed := NewFeed(5)
	feed.Attach(bus)

	m := NewModel(feed, WithHead(func() (float64, float64) { return -45, 20 }), WithRefresh(time.Millisecond))
	require.NotNil(t, m.Init())

	bus.Publish(event.NewRunStartedEvent("0123456789abcdef", "win", time.Second/30))
	bus.Publish(event.NewTransitionFiredEvent("searchBall", "looking", "tracking", "found", false))
	publishTick(bus, 7, []string{"lookAtBall"}, map[string]string{"win": "playing", "searchBall": "tracking"})

	updated, cmd := m.Update(tickMsg(time.Now()))
	require.NotNil(t, cmd, "refresh reschedules itself")
	m = updated.(Model)

	view := m.View()
	for _, want := range []string{"win", "run 01234567", "lookAtBall", "searchBall:", "tracking", "looking → tracking", "found", "-45.0", "tick 7"} {
		assert.Contains(t, view, want)
	}
}

func TestModel_Freeze(t *testing.T) {
	bus := event.NewBus()
	feed := NewFeed(5)
	feed.Attach(bus)
	m := NewModel(feed)

	publishTick(bus, 1, []string{"a"}, nil)
	updated, _ := m.Update(tickMsg(time.Now()))
	m = updated.(Model)

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("f")})
	m = updated.(Model)
	publishTick(bus, 2, []string{"b"}, nil)
	updated, _ = m.Update(tickMsg(time.Now()))
	m = updated.(Model)

	assert.Contains(t, m.View(), "frozen")
	assert.Contains(t, m.View(), "tick 1")
}

func TestModel_Quit(t *testing.T) {
	m := NewModel(NewFeed(1))
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, updated.(Model).View())
}

func TestModel_WindowSize(t *testing.T) {
	m := NewModel(NewFeed(1))
	updated, cmd := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.Nil(t, cmd)
	m = updated.(Model)
	assert.Equal(t, 120, m.width)
	assert.Contains(t, m.View(), "none")
}

func TestFit(t *testing.T) {
	assert.Equal(t, "short", fit("short", 10))
	assert.Equal(t, "unbounded line", fit("unbounded line", 0))
	assert.Equal(t, "search...", fit("searchBall looking", 9))
}
