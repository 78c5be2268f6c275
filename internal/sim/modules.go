// Package sim provides in-process stand-ins for the actuation modules and a
// scripted sensor source, so that a tree can run without hardware.
//
// The modules keep the contract of the real ones: commands return at once
// and take effect over time, measured on an injectable clock.
package sim

import (
	"sync"
	"time"

	"github.com/Iron-Ham/arbiter/internal/actuator"
	"github.com/Iron-Ham/arbiter/internal/errors"
	"github.com/Iron-Ham/arbiter/internal/logging"
)

// Head limits, in degrees.
const (
	MaxPan  = 135.0
	MaxTilt = 60.0
	MinTilt = -30.0
)

// Head is a simulated head that moves instantly.
type Head struct {
	mu         sync.Mutex
	pan, tilt  float64
	tracking   int
	commands   uint64
	lastAction string
}

// NewHead creates a head at its home position.
func NewHead() *Head { return &Head{lastAction: "home"} }

// MoveToHome implements actuator.Head.
func (h *Head) MoveToHome() {
	h.set("home", 0, 0)
}

// MoveToDegs implements actuator.Head.
func (h *Head) MoveToDegs(pan, tilt float64) {
	h.set("move", pan, tilt)
}

// MoveTracking implements actuator.Head.
func (h *Head) MoveTracking(panOffset, tiltOffset float64) {
	h.mu.Lock()
	pan, tilt := h.pan+panOffset, h.tilt-tiltOffset
	h.tracking++
	h.mu.Unlock()
	h.set("track", pan, tilt)
}

// InitTracking implements actuator.Head.
func (h *Head) InitTracking() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tracking = 0
	h.commands++
	h.lastAction = "init"
}

func (h *Head) set(action string, pan, tilt float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pan = clamp(pan, -MaxPan, MaxPan)
	h.tilt = clamp(tilt, MinTilt, MaxTilt)
	h.commands++
	h.lastAction = action
}

// HeadState is a snapshot of the simulated head.
type HeadState struct {
	Pan, Tilt float64
	// TrackingSteps counts MoveTracking calls since the last InitTracking.
	TrackingSteps int
	Commands      uint64
	LastAction    string
}

// State returns the head's current pose and counters.
func (h *Head) State() HeadState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return HeadState{
		Pan:           h.pan,
		Tilt:          h.tilt,
		TrackingSteps: h.tracking,
		Commands:      h.commands,
		LastAction:    h.lastAction,
	}
}

// Walker is a simulated walk engine. It keeps running for a stop delay after
// the last non-zero request, as a gait settles.
type Walker struct {
	mu        sync.Mutex
	now       func() time.Time
	stopDelay time.Duration
	dir       actuator.Vec2
	turn      float64
	stoppedAt time.Time
	moving    bool
}

// NewWalker creates a stationary walker.
func NewWalker(stopDelay time.Duration, now func() time.Time) *Walker {
	if now == nil {
		now = time.Now
	}
	return &Walker{now: now, stopDelay: stopDelay}
}

// SetMoveDir implements actuator.Walker.
func (w *Walker) SetMoveDir(dir actuator.Vec2) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dir = dir
	w.update()
}

// SetTurnAngle implements actuator.Walker.
func (w *Walker) SetTurnAngle(angle float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.turn = angle
	w.update()
}

// update records when a stop was first requested. Callers hold w.mu.
func (w *Walker) update() {
	requested := !w.dir.IsZero() || w.turn != 0
	switch {
	case requested:
		w.moving = true
		w.stoppedAt = time.Time{}
	case w.moving && w.stoppedAt.IsZero():
		w.stoppedAt = w.now()
	}
}

// IsRunning implements actuator.Walker.
func (w *Walker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.moving {
		return false
	}
	if w.stoppedAt.IsZero() {
		return true
	}
	if w.now().Sub(w.stoppedAt) >= w.stopDelay {
		w.moving = false
		return false
	}
	return true
}

// Request returns the last requested direction and turn.
func (w *Walker) Request() (actuator.Vec2, float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dir, w.turn
}

// ScriptPlayer plays each script for a fixed duration and refuses new
// scripts while one is playing.
type ScriptPlayer struct {
	mu       sync.Mutex
	now      func() time.Time
	duration time.Duration
	known    map[string]bool
	logger   *logging.Logger

	current string
	endsAt  time.Time
	played  []string
	refusal error
}

// PlayerOption configures a ScriptPlayer.
type PlayerOption func(*ScriptPlayer)

// WithScripts restricts the player to the named scripts.
func WithScripts(names ...string) PlayerOption {
	return func(p *ScriptPlayer) {
		p.known = make(map[string]bool, len(names))
		for _, n := range names {
			p.known[n] = true
		}
	}
}

// WithPlayerLogger sets the player's logger.
func WithPlayerLogger(l *logging.Logger) PlayerOption {
	return func(p *ScriptPlayer) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewScriptPlayer creates an idle player.
func NewScriptPlayer(duration time.Duration, now func() time.Time, opts ...PlayerOption) *ScriptPlayer {
	if now == nil {
		now = time.Now
	}
	p := &ScriptPlayer{now: now, duration: duration, logger: logging.NopLogger()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start implements actuator.ScriptPlayer.
func (p *ScriptPlayer) Start(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.known != nil && !p.known[name] {
		p.refusal = errors.NewActuationError("cannot play", errors.ErrUnknownScript).
			WithModule("scripts").WithCommand(name).WithRetryable(false)
		p.logger.Warn("script rejected", "error", p.refusal)
		return false
	}
	if p.runningLocked() {
		p.refusal = errors.NewActuationError("busy playing "+p.current, errors.ErrActuationRejected).
			WithModule("scripts").WithCommand(name)
		return false
	}
	p.refusal = nil
	p.current = name
	p.endsAt = p.now().Add(p.duration)
	p.played = append(p.played, name)
	return true
}

// LastRefusal implements actuator.Refuser.
func (p *ScriptPlayer) LastRefusal() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refusal
}

// IsRunning implements actuator.ScriptPlayer.
func (p *ScriptPlayer) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runningLocked()
}

func (p *ScriptPlayer) runningLocked() bool {
	return p.current != "" && p.now().Before(p.endsAt)
}

// Current returns the playing script, or "".
func (p *ScriptPlayer) Current() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.runningLocked() {
		return ""
	}
	return p.current
}

// Played returns every script accepted so far, in order.
func (p *ScriptPlayer) Played() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.played...)
}

// Modules bundles a simulated head, walker and script player.
type Modules struct {
	Head    *Head
	Walker  *Walker
	Scripts *ScriptPlayer
}

// NewModules creates simulated modules sharing one clock.
func NewModules(scriptDuration, walkStopDelay time.Duration, now func() time.Time, logger *logging.Logger) *Modules {
	return &Modules{
		Head:    NewHead(),
		Walker:  NewWalker(walkStopDelay, now),
		Scripts: NewScriptPlayer(scriptDuration, now, WithPlayerLogger(logger)),
	}
}

// Actuators returns the modules behind the actuator interfaces.
func (m *Modules) Actuators() actuator.Modules {
	return actuator.Modules{
		Scripts: m.Scripts,
		Head:    m.Head,
		Walker:  m.Walker,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
