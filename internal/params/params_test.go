package params

import (
	"log/slog"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/arbiter/internal/event"
	"github.com/Iron-Ham/arbiter/internal/logging"
	"github.com/Iron-Ham/arbiter/internal/testutil"
)

func newViper() *viper.Viper {
	v := viper.New()
	v.Set("params.look_around.top_angle", 15)
	v.Set("params.look_around.side_angle", "42.5")
	v.Set("params.look_at_ball.gain", "not a number")
	v.Set("params.action.name", "stand up")
	v.Set("params.debug", "true")
	return v
}

func TestResolver_Types(t *testing.T) {
	r := NewResolver(newViper())

	assert.Equal(t, 15, r.Int("look_around.top_angle", 0))
	assert.Equal(t, 15.0, r.Float("look_around.top_angle", 0))
	assert.Equal(t, 42.5, r.Float("look_around.side_angle", 0))
	assert.Equal(t, "stand up", r.String("action.name", ""))
	assert.True(t, r.Bool("debug", false))
}

func TestResolver_Defaults(t *testing.T) {
	capture := testutil.NewLogCapture()
	bus := event.NewBus()
	var published []event.ParamDefaultedEvent
	bus.Subscribe(event.TypeParamDefaulted, func(e event.Event) {
		published = append(published, e.(event.ParamDefaultedEvent))
	})

	r := NewResolver(newViper(), WithLogger(logging.FromHandler(capture)), WithBus(bus))

	for i := 0; i < 3; i++ {
		assert.Equal(t, 2.0, r.Float("look_around.horiz_duration", 2.0))
	}

	require.Len(t, published, 1, "defaulting is reported once per name")
	assert.Equal(t, "look_around.horiz_duration", published[0].Name)
	assert.Equal(t, 2.0, published[0].Default)

	debug := capture.Messages(slog.LevelDebug)
	assert.Equal(t, []string{"parameter not configured, using default"}, debug)
	assert.Equal(t, []string{"look_around.horiz_duration"}, r.Defaulted())
}

func TestResolver_WrongTypeFallsBack(t *testing.T) {
	capture := testutil.NewLogCapture()
	r := NewResolver(newViper(), WithLogger(logging.FromHandler(capture)))

	assert.Equal(t, 0.85, r.Float("look_at_ball.gain", 0.85))
	assert.Contains(t, capture.Messages(slog.LevelWarn), "parameter has wrong type, using default")
	assert.Contains(t, r.Defaulted(), "look_at_ball.gain")
}

func TestResolver_NilViper(t *testing.T) {
	r := NewResolver(nil)
	assert.Equal(t, "x", r.String("anything", "x"))
	assert.Equal(t, 3, r.Int("n", 3))
}

func TestResolver_Lookups(t *testing.T) {
	r := NewResolver(newViper())
	r.Int("look_around.top_angle", 0)
	r.Int("zzz", 9)

	lookups := r.Lookups()
	require.Len(t, lookups, 2)
	assert.Equal(t, Lookup{Name: "look_around.top_angle", Value: 15, Defaulted: false}, lookups[0])
	assert.Equal(t, Lookup{Name: "zzz", Value: 9, Defaulted: true}, lookups[1])
}

func TestScope(t *testing.T) {
	r := NewResolver(newViper())
	s := r.Scoped("look_around.")

	assert.Equal(t, 15.0, s.Float("top_angle", 0))
	assert.Equal(t, -10.0, s.Float("bottom_angle", -10))
	assert.Equal(t, "", s.String("missing", ""))
	assert.False(t, s.Bool("missing_flag", false))
	assert.Equal(t, 1, s.Int("missing_int", 1))
}

func TestWithPrefix(t *testing.T) {
	v := viper.New()
	v.Set("gain", 0.5)
	r := NewResolver(v, WithPrefix(""))
	assert.Equal(t, 0.5, r.Float("gain", 0))
}
