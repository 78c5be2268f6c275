package sim

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/arbiter/internal/actuator"
	"github.com/Iron-Ham/arbiter/internal/errors"
	"github.com/Iron-Ham/arbiter/internal/logging"
	"github.com/Iron-Ham/arbiter/internal/sensor"
	"github.com/Iron-Ham/arbiter/internal/testutil"
)

var geom = sensor.CameraGeometry{Width: 320, Height: 240, HorizontalFOV: 60, VerticalFOV: 45}

func TestHead(t *testing.T) {
	h := NewHead()
	h.MoveToDegs(30, 10)
	assert.Equal(t, 30.0, h.State().Pan)

	h.MoveTracking(5, 2)
	st := h.State()
	assert.Equal(t, 35.0, st.Pan)
	assert.Equal(t, 8.0, st.Tilt)
	assert.Equal(t, 1, st.TrackingSteps)
	assert.Equal(t, "track", st.LastAction)

	h.InitTracking()
	assert.Equal(t, 0, h.State().TrackingSteps)

	h.MoveToDegs(500, -500)
	st = h.State()
	assert.Equal(t, MaxPan, st.Pan)
	assert.Equal(t, MinTilt, st.Tilt)

	h.MoveToHome()
	st = h.State()
	assert.Zero(t, st.Pan)
	assert.Equal(t, uint64(5), st.Commands)
}

func TestWalker(t *testing.T) {
	clock := testutil.NewClock(time.Unix(0, 0))
	w := NewWalker(400*time.Millisecond, clock.Now)
	assert.False(t, w.IsRunning())

	w.SetMoveDir(actuator.Vec2{X: 1})
	assert.True(t, w.IsRunning())

	w.SetMoveDir(actuator.Vec2{})
	w.SetTurnAngle(0)
	clock.Advance(300 * time.Millisecond)
	w.SetMoveDir(actuator.Vec2{}) // repeated stop requests do not restart the delay
	assert.True(t, w.IsRunning(), "still settling")

	clock.Advance(100 * time.Millisecond)
	assert.False(t, w.IsRunning())

	dir, turn := w.Request()
	assert.True(t, dir.IsZero())
	assert.Zero(t, turn)
}

func TestScriptPlayer(t *testing.T) {
	clock := testutil.NewClock(time.Unix(0, 0))
	capture := testutil.NewLogCapture()
	p := NewScriptPlayer(time.Second, clock.Now,
		WithScripts("stand_up", "sit_down"),
		WithPlayerLogger(logging.FromHandler(capture)))

	var _ actuator.Refuser = p

	require.True(t, p.Start("stand_up"))
	assert.NoError(t, p.LastRefusal())
	assert.True(t, p.IsRunning())
	assert.Equal(t, "stand_up", p.Current())
	assert.False(t, p.Start("sit_down"), "busy")
	assert.ErrorIs(t, p.LastRefusal(), errors.ErrActuationRejected)
	assert.True(t, errors.IsRetryable(p.LastRefusal()))

	clock.Advance(time.Second)
	assert.False(t, p.IsRunning())
	assert.Empty(t, p.Current())

	assert.False(t, p.Start("moonwalk"))
	assert.Contains(t, capture.Messages(slog.LevelWarn), "script rejected")
	assert.ErrorIs(t, p.LastRefusal(), errors.ErrUnknownScript)
	assert.False(t, errors.IsRetryable(p.LastRefusal()))

	require.True(t, p.Start("sit_down"))
	assert.NoError(t, p.LastRefusal())
	assert.Equal(t, []string{"stand_up", "sit_down"}, p.Played())
}

func TestNewModules(t *testing.T) {
	m := NewModules(time.Second, time.Second, nil, nil)
	mods := m.Actuators()
	assert.Same(t, m.Head, mods.Head)
	assert.Same(t, m.Walker, mods.Walker)
	assert.Same(t, m.Scripts, mods.Scripts)
}

func TestScenario(t *testing.T) {
	_, err := NewScenario("bogus", geom, nil)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	idle, err := NewScenario(ScenarioIdle, geom, nil)
	require.NoError(t, err)
	for _, tick := range []uint64{0, 71, 140, 321} {
		snap, err := idle.Read(tick)
		require.NoError(t, err)
		assert.Equal(t, sensor.Hardware{}, snap.Hardware)
		assert.False(t, snap.Frame.BallVisible())
	}

	play, err := NewScenario(ScenarioPlay, geom, nil)
	require.NoError(t, err)
	assert.Equal(t, "play", play.Name())

	snap, _ := play.Read(10)
	assert.Len(t, snap.Frame.GoalPosts, 2)
	assert.False(t, snap.Frame.BallVisible())

	snap, _ = play.Read(71)
	assert.True(t, snap.Hardware.ModeButton)
	snap, _ = play.Read(73)
	assert.False(t, snap.Hardware.ModeButton)

	snap, _ = play.Read(140)
	require.True(t, snap.Frame.BallVisible())
	assert.InDelta(t, 160, snap.Frame.Ball.X, 0.4*320)

	snap, _ = play.Read(321)
	assert.True(t, snap.Hardware.StartButton)

	snap, _ = play.Read(175) // 175 % 90 = 85
	assert.False(t, snap.Frame.BallVisible(), "ball drops out of view")
}
