package leaf

import (
	"github.com/Iron-Ham/arbiter/internal/actuator"
	"github.com/Iron-Ham/arbiter/internal/sensor"
)

type fakePlayer struct {
	accept  bool
	running bool
	starts  []string
	refusal error
}

func (p *fakePlayer) LastRefusal() error { return p.refusal }

func (p *fakePlayer) Start(name string) bool {
	p.starts = append(p.starts, name)
	if !p.accept {
		return false
	}
	p.running = true
	return true
}

func (p *fakePlayer) IsRunning() bool { return p.running }

type headCall struct {
	op        string
	pan, tilt float64
}

type fakeHead struct {
	calls []headCall
}

func (h *fakeHead) MoveToHome() { h.calls = append(h.calls, headCall{op: "home"}) }

func (h *fakeHead) MoveToDegs(pan, tilt float64) {
	h.calls = append(h.calls, headCall{op: "degs", pan: pan, tilt: tilt})
}

func (h *fakeHead) MoveTracking(pan, tilt float64) {
	h.calls = append(h.calls, headCall{op: "track", pan: pan, tilt: tilt})
}

func (h *fakeHead) InitTracking() { h.calls = append(h.calls, headCall{op: "init"}) }

func (h *fakeHead) last() headCall {
	if len(h.calls) == 0 {
		return headCall{}
	}
	return h.calls[len(h.calls)-1]
}

type fakeWalker struct {
	dir     actuator.Vec2
	turn    float64
	running bool
	sets    int
}

func (w *fakeWalker) SetMoveDir(dir actuator.Vec2) {
	w.dir = dir
	w.sets++
}

func (w *fakeWalker) SetTurnAngle(angle float64) { w.turn = angle }

func (w *fakeWalker) IsRunning() bool { return w.running }

type staticFrames struct {
	frame sensor.CameraFrame
}

func (s *staticFrames) Frame() sensor.CameraFrame { return s.frame }
