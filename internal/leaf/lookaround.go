package leaf

import (
	"math"
	"time"

	"github.com/Iron-Ham/arbiter/internal/actuator"
	"github.com/Iron-Ham/arbiter/internal/behavior"
	"github.com/Iron-Ham/arbiter/internal/errors"
)

// resyncGap is the pause between ticks after which LookAround treats its
// next run as a fresh start.
const resyncGap = time.Second

// LookAroundConfig shapes the scan. Angles are in degrees, durations in
// seconds.
type LookAroundConfig struct {
	TopAngle           float64 `mapstructure:"top_angle" yaml:"top_angle"`
	BottomAngle        float64 `mapstructure:"bottom_angle" yaml:"bottom_angle"`
	SideAngle          float64 `mapstructure:"side_angle" yaml:"side_angle"`
	HorizontalDuration float64 `mapstructure:"horizontal_duration" yaml:"horizontal_duration"`
	VerticalDuration   float64 `mapstructure:"vertical_duration" yaml:"vertical_duration"`
}

// DefaultLookAroundConfig returns a wide scan that takes eight seconds.
func DefaultLookAroundConfig() LookAroundConfig {
	return LookAroundConfig{
		TopAngle:           20,
		BottomAngle:        -15,
		SideAngle:          100,
		HorizontalDuration: 3,
		VerticalDuration:   1,
	}
}

// Period returns the length of one full scan in seconds.
func (c LookAroundConfig) Period() float64 {
	return 2 * (c.HorizontalDuration + c.VerticalDuration)
}

// Pose returns the head angles at the given phase, in seconds, of the scan.
// The scan sweeps the top edge from -side to +side, descends at +side,
// sweeps the bottom edge back to -side and ascends at -side.
func (c LookAroundConfig) Pose(phase float64) (pan, tilt float64) {
	period := c.Period()
	phase = math.Mod(phase, period)
	if phase < 0 {
		phase += period
	}

	h, v := c.HorizontalDuration, c.VerticalDuration
	switch {
	case phase < h:
		return lerp(phase/h, -c.SideAngle, c.SideAngle), c.TopAngle
	case phase < h+v:
		return c.SideAngle, lerp((phase-h)/v, c.TopAngle, c.BottomAngle)
	case phase < 2*h+v:
		return lerp((phase-h-v)/h, c.SideAngle, -c.SideAngle), c.BottomAngle
	default:
		return -c.SideAngle, lerp((phase-2*h-v)/v, c.BottomAngle, c.TopAngle)
	}
}

// LookAround sweeps the head around a box to search for objects. It never
// terminates.
type LookAround struct {
	behavior.Base
	common

	cfg   LookAroundConfig
	head  actuator.Head
	start time.Time
	last  time.Time
}

// NewLookAround creates a scan driving head.
func NewLookAround(id string, cfg LookAroundConfig, head actuator.Head, opts ...Option) *LookAround {
	return &LookAround{
		Base:   behavior.NewBase(id),
		common: newCommon(id, opts),
		cfg:    cfg,
		head:   head,
	}
}

// Config returns the scan shape.
func (l *LookAround) Config() LookAroundConfig { return l.cfg }

// Kind implements behavior.Kinded.
func (l *LookAround) Kind() string { return "look_around" }

// Validate implements behavior.Validator.
func (l *LookAround) Validate() error {
	if l.head == nil {
		return errors.NewValidationError("head module is required").WithField("head")
	}
	if l.cfg.HorizontalDuration <= 0 {
		return errors.NewValidationError("must be positive").
			WithField("horizontal_duration").WithValue(l.cfg.HorizontalDuration)
	}
	if l.cfg.VerticalDuration <= 0 {
		return errors.NewValidationError("must be positive").
			WithField("vertical_duration").WithValue(l.cfg.VerticalDuration)
	}
	return nil
}

// HasTerminated implements behavior.Behavior.
func (l *LookAround) HasTerminated() float64 { return 0.0 }

// RunPolicy implements behavior.Behavior.
func (l *LookAround) RunPolicy() ([]behavior.Behavior, error) {
	now := l.now()
	if l.last.IsZero() || now.Sub(l.last) > resyncGap {
		// Start a quarter of the way along the top sweep so the head pans
		// through the top of the box first.
		l.start = now.Add(-seconds(l.cfg.HorizontalDuration / 4))
		l.logger.Debug("restarting scan")
	}
	l.last = now

	pan, tilt := l.cfg.Pose(now.Sub(l.start).Seconds())
	l.head.MoveToDegs(pan, tilt)
	return nil, nil
}

// Reset implements behavior.Resetter.
func (l *LookAround) Reset() {
	l.last = time.Time{}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
