package tui

import (
	"maps"
	"sync"
	"time"

	"github.com/Iron-Ham/arbiter/internal/event"
)

// TransitionLine is one FSM switch shown in the history panel.
type TransitionLine struct {
	Tick     uint64
	FSM      string
	From     string
	To       string
	Name     string
	Wildcard bool
}

// Snapshot is the state the monitor renders.
type Snapshot struct {
	RunID       string
	Root        string
	Period      time.Duration
	Tick        uint64
	Duration    time.Duration
	Leaves      []string
	States      map[string]string
	Transitions []TransitionLine // oldest first
	Faults      uint64
	Resets      uint64
	Rejections  uint64
	Stopped     bool
	Reason      string
}

// Feed collects bus events into a Snapshot. Handlers run on the publisher's
// goroutine, so the feed only copies data and never blocks the control loop.
type Feed struct {
	mu      sync.Mutex
	history int
	snap    Snapshot
	bus     *event.Bus
	subIDs  []string
}

// NewFeed creates a feed that keeps the last history transitions.
func NewFeed(history int) *Feed {
	if history <= 0 {
		history = 12
	}
	return &Feed{history: history}
}

// Attach subscribes the feed to bus.
func (f *Feed) Attach(bus *event.Bus) {
	f.Detach()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bus = bus
	for _, t := range []string{
		event.TypeRunStarted,
		event.TypeRunStopped,
		event.TypeTickEvaluated,
		event.TypeTransitionFired,
		event.TypeBehaviorReset,
		event.TypeActuationRejected,
	} {
		f.subIDs = append(f.subIDs, bus.Subscribe(t, f.handle))
	}
}

// Detach unsubscribes the feed.
func (f *Feed) Detach() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bus == nil {
		return
	}
	for _, id := range f.subIDs {
		f.bus.Unsubscribe(id)
	}
	f.bus, f.subIDs = nil, nil
}

func (f *Feed) handle(e event.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch ev := e.(type) {
	case event.RunStartedEvent:
		f.snap = Snapshot{RunID: ev.RunID, Root: ev.Root, Period: ev.Period}
	case event.RunStoppedEvent:
		f.snap.Stopped = true
		f.snap.Reason = ev.Reason
	case event.TickEvaluatedEvent:
		f.snap.Tick = ev.Tick
		f.snap.Duration = ev.Duration
		f.snap.Leaves = append(f.snap.Leaves[:0], ev.Leaves...)
		f.snap.States = maps.Clone(ev.FSMStates)
		f.snap.Faults += uint64(ev.Faults)
	case event.TransitionFiredEvent:
		// Transitions are published while the next tick is being evaluated.
		f.snap.Transitions = append(f.snap.Transitions, TransitionLine{
			Tick:     f.snap.Tick + 1,
			FSM:      ev.FSM,
			From:     ev.From,
			To:       ev.To,
			Name:     ev.Transition,
			Wildcard: ev.Wildcard,
		})
		if over := len(f.snap.Transitions) - f.history; over > 0 {
			f.snap.Transitions = f.snap.Transitions[over:]
		}
	case event.BehaviorResetEvent:
		f.snap.Resets++
	case event.ActuationRejectedEvent:
		f.snap.Rejections++
	}
}

// Snapshot returns a copy of the current state.
func (f *Feed) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.snap
	s.Leaves = append([]string(nil), f.snap.Leaves...)
	s.States = maps.Clone(f.snap.States)
	s.Transitions = append([]TransitionLine(nil), f.snap.Transitions...)
	return s
}
