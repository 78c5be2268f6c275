// Package fsm implements a finite state machine behavior.
//
// Each state names the child behaviors to run while the machine is in it.
// On every tick the machine first enters its start state if it has no
// current state, then repeatedly fires the first transition whose condition
// holds, so that a chain of transitions can complete within a single tick.
// The walk is bounded by MaxTransitionWalk switches.
package fsm

import (
	"fmt"
	"time"

	"github.com/Iron-Ham/arbiter/internal/behavior"
	"github.com/Iron-Ham/arbiter/internal/errors"
	"github.com/Iron-Ham/arbiter/internal/event"
	"github.com/Iron-Ham/arbiter/internal/logging"
)

// MaxTransitionWalk is the maximum number of state switches per tick.
const MaxTransitionWalk = 20

// StateID identifies a state within one FSM.
type StateID int

// NoState is the StateID of an FSM that has not entered any state.
const NoState StateID = -1

// State is a node of the machine.
type State struct {
	Name     string
	Children []behavior.Behavior
	Final    bool
	// OnEnter runs each time the state is entered, after EnteredAt is set.
	OnEnter func()
	// EnteredAt is when the state was last entered.
	EnteredAt time.Time

	id          StateID
	start       bool
	transitions []*Transition
}

// ID returns the state's id within its FSM.
func (s *State) ID() StateID { return s.id }

// IsStart reports whether this is the FSM's start state.
func (s *State) IsStart() bool { return s.start }

// Transitions returns the state's outgoing transitions in declaration order.
func (s *State) Transitions() []*Transition {
	return append([]*Transition(nil), s.transitions...)
}

// Transition is an edge between two states.
type Transition struct {
	Name      string
	Condition func() bool
	// OnFire runs when the transition fires, before the switch.
	OnFire func()
	From   StateID // NoState for wildcard transitions
	To     StateID

	fsm *FSM
}

// When sets the condition.
func (t *Transition) When(cond func() bool) *Transition {
	t.Condition = cond
	return t
}

// WhenTerminated fires once every child of the origin state has terminated.
// On a wildcard transition it watches the current state's children.
func (t *Transition) WhenTerminated() *Transition {
	m, from := t.fsm, t.From
	t.Condition = func() bool {
		id := from
		if id == NoState {
			id = m.cur
		}
		if id == NoState {
			return false
		}
		return behavior.AllTerminated(m.states[id].Children)
	}
	if t.Name == "" {
		t.Name = "terminated"
	}
	return t
}

// Named sets the diagnostic name.
func (t *Transition) Named(name string) *Transition {
	t.Name = name
	return t
}

// Do sets the OnFire callback.
func (t *Transition) Do(fn func()) *Transition {
	t.OnFire = fn
	return t
}

// Wildcard reports whether the transition applies from every state.
func (t *Transition) Wildcard() bool { return t.From == NoState }

// FSM is a behavior that runs the children of its current state.
type FSM struct {
	behavior.Base

	states    []*State
	wildcards []*Transition
	orphans   []*Transition // transitions from unknown states, reported by Validate
	start     StateID
	cur       StateID
	starts    int

	logger   *logging.Logger
	bus      *event.Bus
	now      func() time.Time
	tickHook func()
}

// Option configures an FSM.
type Option func(*FSM)

// WithLogger sets the FSM's logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *FSM) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithBus publishes transition events on b.
func WithBus(b *event.Bus) Option {
	return func(m *FSM) { m.bus = b }
}

// WithClock sets the clock used for state entry times.
func WithClock(now func() time.Time) Option {
	return func(m *FSM) {
		if now != nil {
			m.now = now
		}
	}
}

// WithTickHook registers fn to run once at the start of every RunPolicy,
// before any condition is checked. Condition environments use it to sample
// inputs such as button edges exactly once per tick.
func WithTickHook(fn func()) Option {
	return func(m *FSM) { m.tickHook = fn }
}

// New creates an empty FSM.
func New(id string, opts ...Option) *FSM {
	m := &FSM{
		Base:   behavior.NewBase(id),
		start:  NoState,
		cur:    NoState,
		logger: logging.NopLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.WithBehavior(id)
	return m
}

// StateOption configures a state created by NewState.
type StateOption func(*State)

// Start marks the state as the FSM's start state.
func Start() StateOption {
	return func(s *State) { s.start = true }
}

// Final marks the state as final: the FSM reports itself terminated while in it.
func Final() StateOption {
	return func(s *State) { s.Final = true }
}

// OnEnter sets the state's entry callback.
func OnEnter(fn func()) StateOption {
	return func(s *State) { s.OnEnter = fn }
}

// NewState adds a state and returns its id.
func (m *FSM) NewState(name string, children []behavior.Behavior, opts ...StateOption) StateID {
	s := &State{
		Name:     name,
		Children: children,
		id:       StateID(len(m.states)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.start {
		m.start = s.id
		m.starts++
	}
	m.states = append(m.states, s)
	return s.id
}

// Transition adds a transition from one state to another. Transitions out of
// a state are checked in the order they were added.
func (m *FSM) Transition(from, to StateID) *Transition {
	t := &Transition{From: from, To: to, fsm: m}
	if m.valid(from) {
		m.states[from].transitions = append(m.states[from].transitions, t)
	} else {
		m.orphans = append(m.orphans, t)
	}
	return t
}

// AddWildcard adds a transition that is checked from every state, before
// the current state's own transitions. It never fires while the machine is
// already in its target state.
func (m *FSM) AddWildcard(to StateID) *Transition {
	t := &Transition{From: NoState, To: to, fsm: m}
	m.wildcards = append(m.wildcards, t)
	return t
}

// After returns a condition that holds once the machine has been in its
// current state for at least d.
func (m *FSM) After(d time.Duration) func() bool {
	return func() bool { return m.TimeInState() >= d }
}

func (m *FSM) valid(id StateID) bool {
	return id >= 0 && int(id) < len(m.states)
}

// State returns the state with the given id, or nil.
func (m *FSM) State(id StateID) *State {
	if !m.valid(id) {
		return nil
	}
	return m.states[id]
}

// States returns all states in declaration order.
func (m *FSM) States() []*State {
	return append([]*State(nil), m.states...)
}

// Wildcards returns the wildcard transitions in declaration order.
func (m *FSM) Wildcards() []*Transition {
	return append([]*Transition(nil), m.wildcards...)
}

// Kind implements behavior.Kinded.
func (m *FSM) Kind() string { return "fsm" }

// Validate implements behavior.Validator.
func (m *FSM) Validate() error {
	switch {
	case m.starts == 0:
		return errors.NewFSMError("invalid state machine", errors.ErrNoStartState).WithFSM(m.ID())
	case m.starts > 1:
		return errors.NewFSMError("invalid state machine", errors.ErrMultipleStartStates).WithFSM(m.ID())
	}

	if len(m.orphans) > 0 {
		return errors.NewFSMError(fmt.Sprintf("transition from state %d", m.orphans[0].From), errors.ErrUnknownState).
			WithFSM(m.ID())
	}

	check := func(t *Transition, origin string) error {
		if !m.valid(t.To) {
			return errors.NewFSMError(fmt.Sprintf("transition to state %d", t.To), errors.ErrUnknownState).
				WithFSM(m.ID()).WithState(origin)
		}
		if t.Condition == nil {
			return errors.NewFSMError("transition to "+m.states[t.To].Name, errors.ErrNoCondition).
				WithFSM(m.ID()).WithState(origin)
		}
		return nil
	}

	for _, t := range m.wildcards {
		if err := check(t, "*"); err != nil {
			return err
		}
	}
	for _, s := range m.states {
		for _, t := range s.transitions {
			if err := check(t, s.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

// HasTerminated implements behavior.Behavior: 1.0 while in a final state.
func (m *FSM) HasTerminated() float64 {
	if m.cur != NoState && m.states[m.cur].Final {
		return 1.0
	}
	return 0.0
}

// CurrentState returns the current state, or nil before the first tick.
func (m *FSM) CurrentState() *State {
	return m.State(m.cur)
}

// CurrentStateName implements behavior.StateReporter.
func (m *FSM) CurrentStateName() string {
	if s := m.CurrentState(); s != nil {
		return s.Name
	}
	return ""
}

// TimeInState returns how long the machine has been in its current state.
func (m *FSM) TimeInState() time.Duration {
	s := m.CurrentState()
	if s == nil {
		return 0
	}
	return m.now().Sub(s.EnteredAt)
}

// SecondsInState returns TimeInState in seconds.
func (m *FSM) SecondsInState() float64 {
	return m.TimeInState().Seconds()
}

// Reset implements behavior.Resetter. The next tick re-enters the start state.
func (m *FSM) Reset() {
	if m.cur != NoState {
		m.logger.Debug("state machine reset", "state", m.states[m.cur].Name)
	}
	m.cur = NoState
}

// RunPolicy implements behavior.Behavior. It selects the start state if
// needed, walks the transitions and returns the available children of the
// state reached.
func (m *FSM) RunPolicy() ([]behavior.Behavior, error) {
	if m.tickHook != nil {
		m.tickHook()
	}

	if m.cur == NoState {
		if !m.valid(m.start) {
			return nil, errors.NewFSMError("cannot run", errors.ErrNoStartState).WithFSM(m.ID())
		}
		m.enter(m.start, nil)
	}

	switches := 0
	for {
		t := m.firing()
		if t == nil {
			break
		}
		if switches >= MaxTransitionWalk {
			state := m.states[m.cur].Name
			m.logger.Error("transition walk exceeded maximum number of switches",
				"state", state, "switches", switches)
			m.bus.Publish(event.NewWalkTruncatedEvent(m.ID(), state, switches))
			break
		}
		m.fire(t)
		switches++
	}

	children := m.states[m.cur].Children
	out := make([]behavior.Behavior, 0, len(children))
	for _, c := range children {
		if c.IsAvailable() {
			out = append(out, c)
		}
	}
	return out, nil
}

// firing returns the first transition whose condition holds: wildcards
// first, then the current state's transitions.
func (m *FSM) firing() *Transition {
	for _, t := range m.wildcards {
		if t.To == m.cur || !m.valid(t.To) {
			continue
		}
		if m.check(t) {
			return t
		}
	}
	for _, t := range m.states[m.cur].transitions {
		if m.valid(t.To) && m.check(t) {
			return t
		}
	}
	return nil
}

// check evaluates t's condition. A missing or panicking condition does not fire.
func (m *FSM) check(t *Transition) (ok bool) {
	if t.Condition == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("transition condition panicked",
				"from", m.states[m.cur].Name, "to", m.states[t.To].Name, "panic", fmt.Sprint(r))
			ok = false
		}
	}()
	return t.Condition()
}

func (m *FSM) fire(t *Transition) {
	from := m.states[m.cur]
	m.logger.Info("transitioning",
		"from", from.Name,
		"to", m.states[t.To].Name,
		"transition", t.Name,
		"after_ms", m.TimeInState().Milliseconds())
	m.guard("transition callback", t.OnFire)
	m.enter(t.To, t)
}

// enter switches to id and runs its entry callback.
func (m *FSM) enter(id StateID, via *Transition) {
	from := ""
	if m.cur != NoState {
		from = m.states[m.cur].Name
	}

	s := m.states[id]
	m.cur = id
	s.EnteredAt = m.now()
	m.guard("entry callback", s.OnEnter)

	name, wildcard := "start", false
	if via != nil {
		name, wildcard = via.Name, via.Wildcard()
	}
	m.bus.Publish(event.NewTransitionFiredEvent(m.ID(), from, s.Name, name, wildcard))
}

// guard runs fn, logging and swallowing a panic.
func (m *FSM) guard(what string, fn func()) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error(what+" panicked", "state", m.CurrentStateName(), "panic", fmt.Sprint(r))
		}
	}()
	fn()
}
