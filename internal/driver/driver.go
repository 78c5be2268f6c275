// Package driver runs the control loop: once per tick it reads a sensor
// snapshot into the shared store and evaluates the behavior tree.
//
// Run schedules ticks with a go-behaviortree Ticker. Evaluation happens on
// the ticker's goroutine only, so behaviors are never run concurrently.
package driver

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	bt "github.com/joeycumines/go-behaviortree"

	"github.com/Iron-Ham/arbiter/internal/behavior"
	"github.com/Iron-Ham/arbiter/internal/errors"
	"github.com/Iron-Ham/arbiter/internal/event"
	"github.com/Iron-Ham/arbiter/internal/logging"
	"github.com/Iron-Ham/arbiter/internal/sensor"
)

// Stop reasons reported in RunStoppedEvent.
const (
	ReasonMaxTicks  = "max_ticks"
	ReasonCancelled = "cancelled"
	ReasonError     = "error"
)

// DefaultPeriod is the tick period used when none is configured.
const DefaultPeriod = time.Second / 30

// Driver feeds a tree with sensor snapshots.
type Driver struct {
	tree     *behavior.Tree
	source   sensor.Source
	store    *sensor.Store
	logger   *logging.Logger
	bus      *event.Bus
	period   time.Duration
	maxTicks uint64
	runID    string

	ticks       atomic.Uint64
	sensorFails atomic.Uint64
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the driver's logger.
func WithLogger(l *logging.Logger) Option {
	return func(d *Driver) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithBus publishes run events on b.
func WithBus(b *event.Bus) Option {
	return func(d *Driver) { d.bus = b }
}

// WithPeriod sets the tick period.
func WithPeriod(p time.Duration) Option {
	return func(d *Driver) {
		if p > 0 {
			d.period = p
		}
	}
}

// WithMaxTicks stops Run after n ticks. Zero runs until cancelled.
func WithMaxTicks(n uint64) Option {
	return func(d *Driver) { d.maxTicks = n }
}

// WithRunID overrides the generated run id.
func WithRunID(id string) Option {
	return func(d *Driver) {
		if id != "" {
			d.runID = id
		}
	}
}

// New creates a driver for tree. Snapshots read from source are written to
// store, which the tree's behaviors read from.
func New(tree *behavior.Tree, source sensor.Source, store *sensor.Store, opts ...Option) *Driver {
	d := &Driver{
		tree:   tree,
		source: source,
		store:  store,
		logger: logging.NopLogger(),
		period: DefaultPeriod,
		runID:  uuid.NewString(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.WithRun(d.runID)
	return d
}

// RunID returns the id attached to this driver's logs and events.
func (d *Driver) RunID() string { return d.runID }

// Period returns the tick period.
func (d *Driver) Period() time.Duration { return d.period }

// Ticks returns the number of ticks run so far.
func (d *Driver) Ticks() uint64 { return d.ticks.Load() }

// SensorFailures returns how many ticks ran on a stale snapshot.
func (d *Driver) SensorFailures() uint64 { return d.sensorFails.Load() }

// Step runs one tick. If the source fails the tick still runs on the
// previous snapshot, and the read error is returned with the leaves.
func (d *Driver) Step() ([]behavior.Behavior, error) {
	tick := d.tree.Tick() + 1

	snap, readErr := d.source.Read(tick)
	if readErr != nil {
		d.sensorFails.Add(1)
		readErr = errors.Wrapf(readErr, "failed to read sensors for tick %d", tick)
	} else {
		d.store.Update(tick, snap)
	}

	leaves := d.tree.Evaluate()
	d.ticks.Add(1)
	return leaves, readErr
}

// Node adapts Step to a go-behaviortree node. The node reports Failure once
// the tick limit is reached and Running otherwise.
func (d *Driver) Node() bt.Node {
	return bt.New(func([]bt.Node) (bt.Status, error) {
		if _, err := d.Step(); err != nil {
			d.logger.Warn("running tick on stale sensor data", "error", err)
		}
		if d.maxTicks > 0 && d.ticks.Load() >= d.maxTicks {
			return bt.Failure, nil
		}
		return bt.Running, nil
	})
}

// Run ticks the tree every period until ctx is cancelled or the tick limit
// is reached. Cancellation is not an error.
func (d *Driver) Run(ctx context.Context) error {
	root, err := d.tree.Root()
	if err != nil {
		return err
	}

	d.logger.Info("run started",
		"root", root.ID(),
		"period_ms", d.period.Milliseconds(),
		"max_ticks", d.maxTicks)
	d.bus.Publish(event.NewRunStartedEvent(d.runID, root.ID(), d.period))

	ticker := bt.NewTickerStopOnFailure(ctx, d.period, d.Node())
	select {
	case <-ticker.Done():
	case <-ctx.Done():
		ticker.Stop()
		<-ticker.Done()
	}

	err = ticker.Err()
	reason := ReasonMaxTicks
	switch {
	case ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		reason, err = ReasonCancelled, nil
	case err != nil:
		reason = ReasonError
	}

	ticks := d.ticks.Load()
	if err != nil {
		d.logger.Error("run failed", "ticks", ticks, "error", err)
	} else {
		d.logger.Info("run stopped", "ticks", ticks, "reason", reason)
	}
	d.bus.Publish(event.NewRunStoppedEvent(d.runID, ticks, reason))
	return err
}
