package leaf

import (
	"math"

	"github.com/Iron-Ham/arbiter/internal/actuator"
	"github.com/Iron-Ham/arbiter/internal/behavior"
	"github.com/Iron-Ham/arbiter/internal/errors"
	"github.com/Iron-Ham/arbiter/internal/sensor"
)

// TrackConfig tunes the visual servo. Offsets are in degrees.
type TrackConfig struct {
	Gain      float64 `mapstructure:"gain" yaml:"gain"`
	MinOffset float64 `mapstructure:"min_offset" yaml:"min_offset"`
	MaxOffset float64 `mapstructure:"max_offset" yaml:"max_offset"`
}

// DefaultTrackConfig returns the servo tuning used when none is configured.
func DefaultTrackConfig() TrackConfig {
	return TrackConfig{
		Gain:      0.85,
		MinOffset: 0,
		MaxOffset: 20,
	}
}

// Offset converts a target pixel into a clamped head offset.
func (c TrackConfig) Offset(geom sensor.CameraGeometry, px sensor.Point) actuator.Vec2 {
	centre := geom.Centre()
	dppX, dppY := geom.DegreesPerPixel()
	return actuator.Vec2{
		X: clamp((px.X-centre.X)*dppX*c.Gain, -c.MaxOffset, c.MaxOffset),
		Y: clamp((px.Y-centre.Y)*dppY*c.Gain, -c.MaxOffset, c.MaxOffset),
	}
}

// tracker is the servo shared by LookAtBall and LookAtGoal.
type tracker struct {
	behavior.Base
	common

	kind   string
	cfg    TrackConfig
	geom   sensor.CameraGeometry
	head   actuator.Head
	frames sensor.FrameReader
	target func(sensor.CameraFrame) (sensor.Point, bool)
}

// Kind implements behavior.Kinded.
func (t *tracker) Kind() string { return t.kind }

// Config returns the servo tuning.
func (t *tracker) Config() TrackConfig { return t.cfg }

// Validate implements behavior.Validator.
func (t *tracker) Validate() error {
	switch {
	case t.head == nil:
		return errors.NewValidationError("head module is required").WithField("head")
	case t.frames == nil:
		return errors.NewValidationError("frame reader is required").WithField("frames")
	case t.geom.Width <= 0 || t.geom.Height <= 0:
		return errors.NewValidationError("camera size must be positive").
			WithField("camera").WithValue(t.geom)
	case t.cfg.MaxOffset < 0 || math.IsNaN(t.cfg.MaxOffset):
		return errors.NewValidationError("must not be negative").
			WithField("max_offset").WithValue(t.cfg.MaxOffset)
	}
	return nil
}

// HasTerminated implements behavior.Behavior. Tracking never finishes by itself.
func (t *tracker) HasTerminated() float64 { return 0.0 }

// RunPolicy implements behavior.Behavior.
func (t *tracker) RunPolicy() ([]behavior.Behavior, error) {
	px, ok := t.target(t.frames.Frame())
	if !ok {
		return nil, nil
	}

	offset := t.cfg.Offset(t.geom, px)
	if offset.Norm() < t.cfg.MinOffset {
		// Close enough: hold still and drop any accumulated tracking state.
		t.head.InitTracking()
		return nil, nil
	}
	t.head.MoveTracking(offset.X, offset.Y)
	return nil, nil
}

// Reset implements behavior.Resetter.
func (t *tracker) Reset() {
	t.head.InitTracking()
}

// LookAtBall keeps the ball centred in the camera image.
type LookAtBall struct {
	tracker
}

// NewLookAtBall creates a ball tracker.
func NewLookAtBall(id string, cfg TrackConfig, geom sensor.CameraGeometry, head actuator.Head,
	frames sensor.FrameReader, opts ...Option) *LookAtBall {
	return &LookAtBall{tracker{
		Base:   behavior.NewBase(id),
		common: newCommon(id, opts),
		kind:   "look_at_ball",
		cfg:    cfg,
		geom:   geom,
		head:   head,
		frames: frames,
		target: ballTarget,
	}}
}

// LookAtGoal keeps the midpoint between both goal posts centred. It only
// acts on frames in which exactly two posts are observed.
type LookAtGoal struct {
	tracker
}

// NewLookAtGoal creates a goal tracker.
func NewLookAtGoal(id string, cfg TrackConfig, geom sensor.CameraGeometry, head actuator.Head,
	frames sensor.FrameReader, opts ...Option) *LookAtGoal {
	return &LookAtGoal{tracker{
		Base:   behavior.NewBase(id),
		common: newCommon(id, opts),
		kind:   "look_at_goal",
		cfg:    cfg,
		geom:   geom,
		head:   head,
		frames: frames,
		target: goalTarget,
	}}
}

func ballTarget(f sensor.CameraFrame) (sensor.Point, bool) {
	if f.Ball == nil {
		return sensor.Point{}, false
	}
	return *f.Ball, true
}

func goalTarget(f sensor.CameraFrame) (sensor.Point, bool) {
	if len(f.GoalPosts) != 2 {
		return sensor.Point{}, false
	}
	a, b := f.GoalPosts[0], f.GoalPosts[1]
	return sensor.Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}, true
}
