package treespec

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/Iron-Ham/arbiter/internal/actuator"
	"github.com/Iron-Ham/arbiter/internal/behavior"
	"github.com/Iron-Ham/arbiter/internal/errors"
	"github.com/Iron-Ham/arbiter/internal/fsm"
	"github.com/Iron-Ham/arbiter/internal/sensor"
)

// conditionEnv is what the transition expressions of one FSM can see. It
// owns that FSM's button edge detectors, which are sampled once per tick by
// the FSM's tick hook.
type conditionEnv struct {
	b       *Builder
	machine *fsm.FSM
	start   sensor.Edge
	mode    sensor.Edge
	vars    map[string]any
}

func newConditionEnv(b *Builder) *conditionEnv {
	e := &conditionEnv{b: b}
	e.vars = map[string]any{
		// terminated reports whether every child of the current state is done.
		"terminated": func() bool {
			s := e.machine.CurrentState()
			return s != nil && behavior.AllTerminated(s.Children)
		},
		"state":          func() string { return e.machine.CurrentStateName() },
		"secondsInState": func() float64 { return e.machine.SecondsInState() },
		// The pressed functions consume the edge they report.
		"startPressed": func() bool { return e.start.Take() },
		"modePressed":  func() bool { return e.mode.Take() },
		"startHeld":    func() bool { return e.hardware().StartButton },
		"modeHeld":     func() bool { return e.hardware().ModeButton },
		"ballVisible":  func() bool { return e.frame().BallVisible() },
		"goalVisible":  func() bool { return len(e.frame().GoalPosts) == 2 },
		"walking": func() bool {
			w := e.b.deps.Modules.Walker
			return w != nil && w.IsRunning()
		},
		"scriptRunning": func() bool {
			s := e.b.deps.Modules.Scripts
			return s != nil && s.IsRunning()
		},
		"done": func(id string) bool {
			bh, ok := e.b.built[id]
			return ok && behavior.Terminated(bh)
		},
	}
	return e
}

func (e *conditionEnv) hardware() sensor.Hardware {
	if e.b.deps.Hardware == nil {
		return sensor.Hardware{}
	}
	return e.b.deps.Hardware.Hardware()
}

func (e *conditionEnv) frame() sensor.CameraFrame {
	if e.b.deps.Frames == nil {
		return sensor.CameraFrame{}
	}
	return e.b.deps.Frames.Frame()
}

// sample updates the button edges from the latest hardware snapshot.
func (e *conditionEnv) sample() {
	hw := e.hardware()
	e.start.Update(hw.StartButton)
	e.mode.Update(hw.ModeButton)
}

// compile turns a boolean expression into a transition condition. An
// expression that fails at run time does not fire.
func (e *conditionEnv) compile(src string) (func() bool, error) {
	prog, err := expr.Compile(src, expr.Env(e.vars), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("%w %q: %w", errors.ErrBadExpression, src, err)
	}
	return func() bool { return e.run(src, prog) }, nil
}

func (e *conditionEnv) run(src string, prog *vm.Program) bool {
	out, err := expr.Run(prog, e.vars)
	if err != nil {
		e.b.deps.Logger.Warn("condition evaluation failed",
			"fsm", e.machine.ID(),
			"expr", src,
			"error", err)
		return false
	}
	ok, _ := out.(bool)
	return ok
}

// commands resolves state entry and transition commands into one callback.
func (b *Builder) commands(names []string) (func(), error) {
	mods := b.deps.Modules
	fns := make([]func(), 0, len(names))
	for _, name := range names {
		switch name {
		case "head_home", "init_tracking":
			if mods.Head == nil {
				return nil, errors.NewValidationError("head module is required").WithField("command").WithValue(name)
			}
			if name == "head_home" {
				fns = append(fns, mods.Head.MoveToHome)
			} else {
				fns = append(fns, mods.Head.InitTracking)
			}
		case "stop_walking":
			if mods.Walker == nil {
				return nil, errors.NewValidationError("walker is required").WithField("command").WithValue(name)
			}
			w := mods.Walker
			fns = append(fns, func() {
				w.SetMoveDir(actuator.Vec2{})
				w.SetTurnAngle(0)
			})
		default:
			return nil, errors.NewValidationError("unknown command").WithField("command").WithValue(name)
		}
	}
	return func() {
		for _, fn := range fns {
			fn()
		}
	}, nil
}

// Commands lists the names accepted by on_enter and do.
func Commands() []string {
	return []string{"head_home", "init_tracking", "stop_walking"}
}
