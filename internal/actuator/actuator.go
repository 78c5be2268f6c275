// Package actuator declares the external actuation modules that leaf
// behaviors command: the motion script player, the head and the walker.
//
// The modules run asynchronously from the tick loop. Every method here must
// return promptly; a command only records the request and the module carries
// it out on its own schedule.
package actuator

import "math"

// Vec2 is a planar vector, used for walk direction.
type Vec2 struct {
	X float64 `yaml:"x" mapstructure:"x"`
	Y float64 `yaml:"y" mapstructure:"y"`
}

// Norm returns the Euclidean length of v.
func (v Vec2) Norm() float64 {
	return math.Hypot(v.X, v.Y)
}

// IsZero reports whether v is the zero vector.
func (v Vec2) IsZero() bool {
	return v.X == 0 && v.Y == 0
}

// ScriptPlayer plays named one-shot motion scripts such as "stand up".
type ScriptPlayer interface {
	// Start requests that the named script be played. It returns false if
	// the request was not accepted, for example because a script is
	// already running.
	Start(name string) bool
	// IsRunning reports whether a script is currently playing.
	IsRunning() bool
}

// Refuser is implemented by script players that can say why their most
// recent Start returned false.
type Refuser interface {
	// LastRefusal returns the reason for the last refused Start, or nil if
	// the last Start was accepted.
	LastRefusal() error
}

// Head moves the robot's head. Angles are in degrees.
type Head interface {
	// MoveToHome moves the head to its rest position.
	MoveToHome()
	// MoveToDegs moves the head to an absolute pan and tilt.
	MoveToDegs(pan, tilt float64)
	// MoveTracking nudges the head by a relative pan and tilt offset.
	MoveTracking(panOffset, tiltOffset float64)
	// InitTracking resets any accumulated tracking state.
	InitTracking()
}

// Walker is the locomotion module.
type Walker interface {
	// SetMoveDir sets the requested walking direction and speed.
	SetMoveDir(dir Vec2)
	// SetTurnAngle sets the requested turn rate.
	SetTurnAngle(angle float64)
	// IsRunning reports whether the walker is still moving.
	IsRunning() bool
}

// Modules bundles the actuation modules handed to behavior constructors.
type Modules struct {
	Scripts ScriptPlayer
	Head    Head
	Walker  Walker
}
