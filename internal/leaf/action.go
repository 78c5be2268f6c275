package leaf

import (
	"github.com/Iron-Ham/arbiter/internal/actuator"
	"github.com/Iron-Ham/arbiter/internal/behavior"
	"github.com/Iron-Ham/arbiter/internal/errors"
	"github.com/Iron-Ham/arbiter/internal/event"
)

// Action plays one motion script to completion.
//
// The script is requested on the first tick the action runs. If the player
// refuses, the request is repeated on the following ticks until it is
// accepted, unless the player reports the refusal as permanent: then the
// action faults once and stops asking until it is reset. Once the player
// stops running the action reports itself terminated and stays terminated
// until it is reset.
type Action struct {
	behavior.Base
	common

	script  string
	player  actuator.ScriptPlayer
	started bool
	done    bool
	failed  bool
}

// NewAction creates an action that plays script on player.
func NewAction(id, script string, player actuator.ScriptPlayer, opts ...Option) *Action {
	return &Action{
		Base:   behavior.NewBase(id),
		common: newCommon(id, opts),
		script: script,
		player: player,
	}
}

// Script returns the name of the script the action plays.
func (a *Action) Script() string { return a.script }

// Started reports whether the player accepted the script.
func (a *Action) Started() bool { return a.started }

// Kind implements behavior.Kinded.
func (a *Action) Kind() string { return "action" }

// Validate implements behavior.Validator.
func (a *Action) Validate() error {
	if a.script == "" {
		return errors.NewValidationError("script name is required").WithField("script")
	}
	if a.player == nil {
		return errors.NewValidationError("script player is required").WithField("player")
	}
	return nil
}

// HasTerminated implements behavior.Behavior.
func (a *Action) HasTerminated() float64 {
	if a.done {
		return 1.0
	}
	if !a.started || a.player.IsRunning() {
		return 0.0
	}
	a.done = true
	a.logger.Debug("motion script completed", "script", a.script)
	return 1.0
}

// RunPolicy implements behavior.Behavior.
func (a *Action) RunPolicy() ([]behavior.Behavior, error) {
	if a.started || a.failed {
		return nil, nil
	}
	if a.player.Start(a.script) {
		a.started = true
		a.logger.Debug("started motion script", "script", a.script)
		return nil, nil
	}

	err := a.refusal()
	a.bus.Publish(event.NewActuationRejectedEvent(a.ID(), "scripts", a.script))
	if !errors.IsRetryable(err) {
		a.failed = true
		return nil, err
	}
	a.logger.Warn("motion script start rejected, retrying next tick", "error", err)
	return nil, nil
}

func (a *Action) refusal() error {
	if r, ok := a.player.(actuator.Refuser); ok {
		if err := r.LastRefusal(); err != nil {
			return err
		}
	}
	return errors.NewActuationError("start request denied", errors.ErrActuationRejected).
		WithModule("scripts").
		WithCommand(a.script)
}

// Reset implements behavior.Resetter. The next selection plays the script again.
func (a *Action) Reset() {
	a.started = false
	a.done = false
	a.failed = false
}
