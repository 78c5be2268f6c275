// Package event provides a pub-sub event bus for decoupled communication
// between the behavior tree and its observers.
//
// The tree, state machines and leaf behaviors publish what happened during a
// tick; the trace recorder, the live monitor and the CLI subscribe without
// either side depending on the other.
//
// # Event Categories
//
// Tree:
//   - [TickEvaluatedEvent]: one per Evaluate call
//   - [BehaviorFaultEvent]: a behavior errored or panicked
//   - [BehaviorResetEvent]: a deselected behavior was reset
//
// State machines:
//   - [TransitionFiredEvent]: a state switch
//   - [WalkTruncatedEvent]: the per-tick switch limit was reached
//
// Actuation and parameters:
//   - [ActuationRejectedEvent]: a module declined a start request
//   - [ParamDefaultedEvent]: a parameter fell back to its default
//
// Process:
//   - [ConfigChangedEvent], [RunStartedEvent], [RunStoppedEvent]
//
// # Thread Safety
//
// [Bus] is safe for concurrent use. Handlers are called synchronously on the
// publishing goroutine; a panicking handler is logged and does not prevent
// delivery to the others.
//
// # Basic Usage
//
//	bus := event.NewBus(event.WithLogger(logger))
//
//	bus.Subscribe(event.TypeTransitionFired, func(e event.Event) {
//	    fired := e.(event.TransitionFiredEvent)
//	    fmt.Printf("%s: %s -> %s\n", fired.FSM, fired.From, fired.To)
//	})
//
//	id := bus.SubscribeAll(recorder.Handle)
//	defer bus.Unsubscribe(id)
package event
