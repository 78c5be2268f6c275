// Package sensor holds the per-tick observations the behaviors read: what
// the camera sees and the state of the robot's buttons.
package sensor

import (
	"sync"
	"time"
)

// Point is an image position in pixels.
type Point struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// CameraFrame is the perception output for one camera image.
type CameraFrame struct {
	// Ball is nil when no ball is visible.
	Ball *Point `yaml:"ball,omitempty"`
	// GoalPosts holds the visible goal posts, at most two.
	GoalPosts []Point `yaml:"goal_posts,omitempty"`
}

// BallVisible reports whether the frame contains a ball observation.
func (f CameraFrame) BallVisible() bool {
	return f.Ball != nil
}

// Hardware is the state of the physical buttons.
type Hardware struct {
	StartButton bool `yaml:"start_button"`
	ModeButton  bool `yaml:"mode_button"`
}

// Snapshot is everything observed for one tick.
type Snapshot struct {
	Time     time.Time   `yaml:"time"`
	Frame    CameraFrame `yaml:"frame"`
	Hardware Hardware    `yaml:"hardware"`
}

// CameraGeometry describes the camera image and its field of view in degrees.
type CameraGeometry struct {
	Width         int
	Height        int
	HorizontalFOV float64
	VerticalFOV   float64
}

// Centre returns the image centre in pixels.
func (g CameraGeometry) Centre() Point {
	return Point{X: float64(g.Width) / 2, Y: float64(g.Height) / 2}
}

// DegreesPerPixel returns the angular size of one pixel on each axis.
func (g CameraGeometry) DegreesPerPixel() (x, y float64) {
	if g.Width > 0 {
		x = g.HorizontalFOV / float64(g.Width)
	}
	if g.Height > 0 {
		y = g.VerticalFOV / float64(g.Height)
	}
	return x, y
}

// Source produces a Snapshot for each tick.
type Source interface {
	Read(tick uint64) (Snapshot, error)
}

// FrameReader gives access to the latest camera frame.
type FrameReader interface {
	Frame() CameraFrame
}

// HardwareReader gives access to the latest button state.
type HardwareReader interface {
	Hardware() Hardware
}

// Store holds the latest Snapshot. The driver writes it once per tick before
// evaluating the tree; behaviors and the monitor read it. It is safe for
// concurrent use.
type Store struct {
	mu   sync.RWMutex
	snap Snapshot
	tick uint64
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{}
}

// Update replaces the stored snapshot.
func (s *Store) Update(tick uint64, snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick = tick
	s.snap = snap
}

// Latest returns the stored snapshot and the tick it was recorded for.
func (s *Store) Latest() (Snapshot, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap, s.tick
}

// Frame implements FrameReader.
func (s *Store) Frame() CameraFrame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Frame
}

// Hardware implements HardwareReader.
func (s *Store) Hardware() Hardware {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Hardware
}

// Edge detects rising edges of a boolean level, such as a button going
// from released to pressed. The zero value treats the level as previously
// low.
type Edge struct {
	prev  bool
	fired bool
}

// Update samples level and reports whether it rose since the last sample.
// The result is also available from Fired until the next Update.
func (e *Edge) Update(level bool) bool {
	e.fired = level && !e.prev
	e.prev = level
	return e.fired
}

// Fired reports the result of the most recent Update.
func (e *Edge) Fired() bool {
	return e.fired
}

// Take reports a pending edge and clears it, so that only the first
// caller in a tick observes it.
func (e *Edge) Take() bool {
	fired := e.fired
	e.fired = false
	return fired
}

// Reset forgets the previous level and any pending edge.
func (e *Edge) Reset() {
	e.prev = false
	e.fired = false
}
