package sim

import (
	"math"
	"time"

	"github.com/Iron-Ham/arbiter/internal/errors"
	"github.com/Iron-Ham/arbiter/internal/sensor"
)

// Scenario names.
const (
	ScenarioPlay = "play"
	ScenarioIdle = "idle"
)

// span applies a change to the snapshots of ticks in [from, until).
// until == 0 means forever.
type span struct {
	from, until uint64
	apply       func(snap *sensor.Snapshot, tick uint64)
}

func (s span) covers(tick uint64) bool {
	return tick >= s.from && (s.until == 0 || tick < s.until)
}

// Scenario is a sensor.Source that replays a fixed timeline of button
// presses and camera observations, indexed by tick.
type Scenario struct {
	name  string
	geom  sensor.CameraGeometry
	now   func() time.Time
	spans []span
}

// NewScenario returns the named built-in scenario.
func NewScenario(name string, geom sensor.CameraGeometry, now func() time.Time) (*Scenario, error) {
	if now == nil {
		now = time.Now
	}
	s := &Scenario{name: name, geom: geom, now: now}
	switch name {
	case ScenarioIdle:
	case ScenarioPlay:
		s.spans = s.playTimeline()
	default:
		return nil, errors.NewValidationError("unknown scenario").WithField("sim.scenario").WithValue(name)
	}
	return s, nil
}

// Name returns the scenario name.
func (s *Scenario) Name() string { return s.name }

// Read implements sensor.Source.
func (s *Scenario) Read(tick uint64) (sensor.Snapshot, error) {
	snap := sensor.Snapshot{Time: s.now()}
	for _, sp := range s.spans {
		if sp.covers(tick) {
			sp.apply(&snap, tick)
		}
	}
	return snap, nil
}

// playTimeline walks the play-mode tree through a match: two mode presses
// take it from ready to playing, the ball wanders through view, then the
// start button pauses and resumes play.
func (s *Scenario) playTimeline() []span {
	press := func(from uint64, mode bool) span {
		return span{from: from, until: from + 3, apply: func(snap *sensor.Snapshot, _ uint64) {
			if mode {
				snap.Hardware.ModeButton = true
			} else {
				snap.Hardware.StartButton = true
			}
		}}
	}
	return []span{
		{from: 0, until: 130, apply: s.goalPosts},
		press(70, true),
		press(100, true),
		{from: 130, until: 300, apply: s.ball},
		press(320, false),
		press(420, false),
		{from: 480, apply: s.ball},
	}
}

func (s *Scenario) goalPosts(snap *sensor.Snapshot, _ uint64) {
	c := s.geom.Centre()
	snap.Frame.GoalPosts = []sensor.Point{
		{X: c.X - float64(s.geom.Width)/5, Y: c.Y - float64(s.geom.Height)/8},
		{X: c.X + float64(s.geom.Width)/6, Y: c.Y - float64(s.geom.Height)/8},
	}
}

// ball traces a slow Lissajous curve across the image, dropping out of view
// for a few ticks every 90.
func (s *Scenario) ball(snap *sensor.Snapshot, tick uint64) {
	if tick%90 >= 84 {
		return
	}
	c := s.geom.Centre()
	t := float64(tick) / 30
	snap.Frame.Ball = &sensor.Point{
		X: c.X + 0.4*float64(s.geom.Width)*math.Sin(0.7*t),
		Y: c.Y + 0.3*float64(s.geom.Height)*math.Sin(1.1*t+0.5),
	}
}
