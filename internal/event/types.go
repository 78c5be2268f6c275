package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "tick.evaluated", "fsm.transition").
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers.
const (
	TypeTickEvaluated     = "tick.evaluated"
	TypeBehaviorFault     = "behavior.fault"
	TypeBehaviorReset     = "behavior.reset"
	TypeTransitionFired   = "fsm.transition"
	TypeWalkTruncated     = "fsm.walk_truncated"
	TypeActuationRejected = "actuation.rejected"
	TypeParamDefaulted    = "param.defaulted"
	TypeConfigChanged     = "config.changed"
	TypeRunStarted        = "run.started"
	TypeRunStopped        = "run.stopped"
)

// baseEvent provides common fields for all events.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Tree Events
// -----------------------------------------------------------------------------

// TickEvaluatedEvent is emitted once per Evaluate call.
type TickEvaluatedEvent struct {
	baseEvent
	Tick      uint64
	Ran       []string          // behavior ids in the order RunPolicy was called
	Leaves    []string          // active leaf ids
	FSMStates map[string]string // fsm id -> current state name
	Faults    int               // behaviors that errored or panicked
	Duration  time.Duration
}

// NewTickEvaluatedEvent creates a TickEvaluatedEvent.
func NewTickEvaluatedEvent(tick uint64, ran, leaves []string, states map[string]string, faults int, d time.Duration) TickEvaluatedEvent {
	return TickEvaluatedEvent{
		baseEvent: newBaseEvent(TypeTickEvaluated),
		Tick:      tick,
		Ran:       ran,
		Leaves:    leaves,
		FSMStates: states,
		Faults:    faults,
		Duration:  d,
	}
}

// BehaviorFaultEvent is emitted when a behavior's RunPolicy returns an error
// or panics. The behavior contributes nothing to that tick.
type BehaviorFaultEvent struct {
	baseEvent
	Tick       uint64
	BehaviorID string
	Err        error
	Panicked   bool
}

// NewBehaviorFaultEvent creates a BehaviorFaultEvent.
func NewBehaviorFaultEvent(tick uint64, behaviorID string, err error, panicked bool) BehaviorFaultEvent {
	return BehaviorFaultEvent{
		baseEvent:  newBaseEvent(TypeBehaviorFault),
		Tick:       tick,
		BehaviorID: behaviorID,
		Err:        err,
		Panicked:   panicked,
	}
}

// BehaviorResetEvent is emitted when a behavior that ran on the previous
// tick was not selected on this one and has been reset.
type BehaviorResetEvent struct {
	baseEvent
	Tick       uint64
	BehaviorID string
}

// NewBehaviorResetEvent creates a BehaviorResetEvent.
func NewBehaviorResetEvent(tick uint64, behaviorID string) BehaviorResetEvent {
	return BehaviorResetEvent{
		baseEvent:  newBaseEvent(TypeBehaviorReset),
		Tick:       tick,
		BehaviorID: behaviorID,
	}
}

// -----------------------------------------------------------------------------
// FSM Events
// -----------------------------------------------------------------------------

// TransitionFiredEvent is emitted for every state switch of an FSM.
type TransitionFiredEvent struct {
	baseEvent
	FSM        string
	From       string // empty when entering the start state
	To         string
	Transition string // diagnostic name, may be empty
	Wildcard   bool
}

// NewTransitionFiredEvent creates a TransitionFiredEvent.
func NewTransitionFiredEvent(fsm, from, to, transition string, wildcard bool) TransitionFiredEvent {
	return TransitionFiredEvent{
		baseEvent:  newBaseEvent(TypeTransitionFired),
		FSM:        fsm,
		From:       from,
		To:         to,
		Transition: transition,
		Wildcard:   wildcard,
	}
}

// WalkTruncatedEvent is emitted when an FSM hits its per-tick switch limit.
type WalkTruncatedEvent struct {
	baseEvent
	FSM      string
	State    string // state the walk stopped in
	Switches int
}

// NewWalkTruncatedEvent creates a WalkTruncatedEvent.
func NewWalkTruncatedEvent(fsm, state string, switches int) WalkTruncatedEvent {
	return WalkTruncatedEvent{
		baseEvent: newBaseEvent(TypeWalkTruncated),
		FSM:       fsm,
		State:     state,
		Switches:  switches,
	}
}

// -----------------------------------------------------------------------------
// Actuation and Parameter Events
// -----------------------------------------------------------------------------

// ActuationRejectedEvent is emitted when an actuation module declines a request.
type ActuationRejectedEvent struct {
	baseEvent
	BehaviorID string
	Module     string
	Command    string
}

// NewActuationRejectedEvent creates an ActuationRejectedEvent.
func NewActuationRejectedEvent(behaviorID, module, command string) ActuationRejectedEvent {
	return ActuationRejectedEvent{
		baseEvent:  newBaseEvent(TypeActuationRejected),
		BehaviorID: behaviorID,
		Module:     module,
		Command:    command,
	}
}

// ParamDefaultedEvent is emitted the first time a parameter name is
// resolved without a configured value.
type ParamDefaultedEvent struct {
	baseEvent
	Name    string
	Default any
}

// NewParamDefaultedEvent creates a ParamDefaultedEvent.
func NewParamDefaultedEvent(name string, def any) ParamDefaultedEvent {
	return ParamDefaultedEvent{
		baseEvent: newBaseEvent(TypeParamDefaulted),
		Name:      name,
		Default:   def,
	}
}

// -----------------------------------------------------------------------------
// Process Events
// -----------------------------------------------------------------------------

// ConfigChangedEvent is emitted when the watched config file changes on disk.
type ConfigChangedEvent struct {
	baseEvent
	Path string
}

// NewConfigChangedEvent creates a ConfigChangedEvent.
func NewConfigChangedEvent(path string) ConfigChangedEvent {
	return ConfigChangedEvent{
		baseEvent: newBaseEvent(TypeConfigChanged),
		Path:      path,
	}
}

// RunStartedEvent is emitted when the driver begins ticking.
type RunStartedEvent struct {
	baseEvent
	RunID  string
	Root   string
	Period time.Duration
}

// NewRunStartedEvent creates a RunStartedEvent.
func NewRunStartedEvent(runID, root string, period time.Duration) RunStartedEvent {
	return RunStartedEvent{
		baseEvent: newBaseEvent(TypeRunStarted),
		RunID:     runID,
		Root:      root,
		Period:    period,
	}
}

// RunStoppedEvent is emitted when the driver stops ticking.
type RunStoppedEvent struct {
	baseEvent
	RunID  string
	Ticks  uint64
	Reason string // "max_ticks", "cancelled" or "error"
}

// NewRunStoppedEvent creates a RunStoppedEvent.
func NewRunStoppedEvent(runID string, ticks uint64, reason string) RunStoppedEvent {
	return RunStoppedEvent{
		baseEvent: newBaseEvent(TypeRunStopped),
		RunID:     runID,
		Ticks:     ticks,
		Reason:    reason,
	}
}
