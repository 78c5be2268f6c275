package leaf

import (
	"github.com/Iron-Ham/arbiter/internal/actuator"
	"github.com/Iron-Ham/arbiter/internal/behavior"
	"github.com/Iron-Ham/arbiter/internal/errors"
)

// StopWalking asks the walker to come to rest and terminates once it has.
type StopWalking struct {
	behavior.Base
	common

	walker actuator.Walker
}

// NewStopWalking creates a StopWalking leaf.
func NewStopWalking(id string, walker actuator.Walker, opts ...Option) *StopWalking {
	return &StopWalking{
		Base:   behavior.NewBase(id),
		common: newCommon(id, opts),
		walker: walker,
	}
}

// Kind implements behavior.Kinded.
func (s *StopWalking) Kind() string { return "stop_walking" }

// Validate implements behavior.Validator.
func (s *StopWalking) Validate() error {
	if s.walker == nil {
		return errors.NewValidationError("walker is required").WithField("walker")
	}
	return nil
}

// HasTerminated implements behavior.Behavior.
func (s *StopWalking) HasTerminated() float64 {
	if s.walker.IsRunning() {
		return 0.0
	}
	return 1.0
}

// RunPolicy implements behavior.Behavior.
func (s *StopWalking) RunPolicy() ([]behavior.Behavior, error) {
	s.walker.SetMoveDir(actuator.Vec2{})
	s.walker.SetTurnAngle(0)
	return nil, nil
}
