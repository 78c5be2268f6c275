// Package leaf provides the behaviors that act instead of delegating: they
// return no children from RunPolicy and issue commands to the actuation
// modules.
//
// Leaves never block. Each tick they record a request on a module and
// return; the module carries it out asynchronously and the leaf observes its
// progress on later ticks.
package leaf

import (
	"time"

	"github.com/Iron-Ham/arbiter/internal/event"
	"github.com/Iron-Ham/arbiter/internal/logging"
)

// Option configures a leaf behavior.
type Option func(*common)

// common holds the collaborators shared by every leaf.
type common struct {
	logger *logging.Logger
	bus    *event.Bus
	now    func() time.Time
}

func newCommon(id string, opts []Option) common {
	c := common{
		logger: logging.NopLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&c)
	}
	c.logger = c.logger.WithBehavior(id)
	return c
}

// WithLogger sets the leaf's logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *common) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithBus publishes the leaf's events on b.
func WithBus(b *event.Bus) Option {
	return func(c *common) { c.bus = b }
}

// WithClock sets the clock used by time-driven leaves.
func WithClock(now func() time.Time) Option {
	return func(c *common) {
		if now != nil {
			c.now = now
		}
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

func lerp(alpha, from, to float64) float64 {
	return (1-alpha)*from + alpha*to
}
