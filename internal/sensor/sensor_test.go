package sensor

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCameraGeometry(t *testing.T) {
	g := CameraGeometry{Width: 320, Height: 240, HorizontalFOV: 60, VerticalFOV: 45}

	assert.Equal(t, Point{X: 160, Y: 120}, g.Centre())
	x, y := g.DegreesPerPixel()
	assert.InDelta(t, 0.1875, x, 1e-12)
	assert.InDelta(t, 0.1875, y, 1e-12)

	x, y = CameraGeometry{}.DegreesPerPixel()
	assert.Zero(t, x)
	assert.Zero(t, y)
}

func TestCameraFrame_BallVisible(t *testing.T) {
	assert.False(t, CameraFrame{}.BallVisible())
	assert.True(t, CameraFrame{Ball: &Point{X: 1}}.BallVisible())
}

func TestStore(t *testing.T) {
	s := NewStore()
	assert.Nil(t, s.Frame().Ball)

	s.Update(7, Snapshot{
		Frame:    CameraFrame{Ball: &Point{X: 10, Y: 20}},
		Hardware: Hardware{StartButton: true},
	})

	snap, tick := s.Latest()
	assert.Equal(t, uint64(7), tick)
	assert.Equal(t, 10.0, snap.Frame.Ball.X)
	assert.True(t, s.Hardware().StartButton)
	assert.Equal(t, 20.0, s.Frame().Ball.Y)
}

func TestStore_Concurrent(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Update(uint64(j), Snapshot{Hardware: Hardware{ModeButton: j%2 == 0}})
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = s.Hardware()
				_, _ = s.Latest()
			}
		}()
	}
	wg.Wait()
}

func TestEdge(t *testing.T) {
	var e Edge
	levels := []bool{false, true, true, false, true, false}
	want := []bool{false, true, false, false, true, false}

	for i, level := range levels {
		assert.Equal(t, want[i], e.Update(level), "sample %d", i)
		assert.Equal(t, want[i], e.Fired(), "sample %d", i)
	}

	e.Update(true)
	e.Reset()
	assert.False(t, e.Fired())
	assert.True(t, e.Update(true), "held button fires after reset")
}

func TestEdge_Take(t *testing.T) {
	var e Edge
	e.Update(true)
	assert.True(t, e.Take())
	assert.False(t, e.Take(), "an edge is taken once")
	assert.False(t, e.Fired())

	e.Update(true)
	assert.False(t, e.Take(), "holding the button is not a new edge")
}
