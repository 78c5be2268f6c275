// Package trace keeps a bounded history of evaluated ticks.
//
// A Recorder subscribes to the event bus. Transitions, faults and resets
// published during a tick are collected and attached to that tick's record
// when the tree publishes its TickEvaluatedEvent. Behavior ids can be
// filtered with glob patterns.
package trace

import (
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/gobwas/glob"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/arbiter/internal/event"
)

// Transition is one FSM state switch.
type Transition struct {
	FSM      string `yaml:"fsm"`
	From     string `yaml:"from,omitempty"`
	To       string `yaml:"to"`
	Name     string `yaml:"name,omitempty"`
	Wildcard bool   `yaml:"wildcard,omitempty"`
}

// Fault is a behavior that errored or panicked.
type Fault struct {
	Behavior string `yaml:"behavior"`
	Error    string `yaml:"error"`
	Panicked bool   `yaml:"panicked,omitempty"`
}

// Record is the history of one tick.
type Record struct {
	Tick        uint64            `yaml:"tick"`
	Time        time.Time         `yaml:"time"`
	Duration    time.Duration     `yaml:"duration"`
	Ran         []string          `yaml:"ran,omitempty,flow"`
	Leaves      []string          `yaml:"leaves,omitempty,flow"`
	States      map[string]string `yaml:"states,omitempty"`
	Transitions []Transition      `yaml:"transitions,omitempty"`
	Faults      []Fault           `yaml:"faults,omitempty"`
	Resets      []string          `yaml:"resets,omitempty,flow"`
	Truncated   []string          `yaml:"truncated,omitempty,flow"`
}

// Recorder is a ring buffer of tick records. It is safe for concurrent use.
type Recorder struct {
	mu       sync.Mutex
	records  []Record
	next     int
	full     bool
	total    uint64
	pending  Record
	include  []glob.Glob
	exclude  []glob.Glob
	bus      *event.Bus
	subIDs   []string
	capacity int
}

// New creates a recorder holding the last capacity ticks. An id is kept if
// it matches any include pattern (or there are none) and no exclude pattern.
// Patterns use '.' as separator, so "look*" does not cross a dot.
func New(capacity int, include, exclude []string) (*Recorder, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("trace capacity must be positive, got %d", capacity)
	}
	r := &Recorder{
		records:  make([]Record, capacity),
		capacity: capacity,
	}
	var err error
	if r.include, err = compile(include); err != nil {
		return nil, err
	}
	if r.exclude, err = compile(exclude); err != nil {
		return nil, err
	}
	return r, nil
}

func compile(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '.')
		if err != nil {
			return nil, fmt.Errorf("invalid trace pattern %q: %w", p, err)
		}
		out = append(out, g)
	}
	return out, nil
}

// Keep reports whether id passes the recorder's filters.
func (r *Recorder) Keep(id string) bool {
	if len(r.include) > 0 {
		matched := false
		for _, g := range r.include {
			if g.Match(id) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	for _, g := range r.exclude {
		if g.Match(id) {
			return false
		}
	}
	return true
}

func (r *Recorder) filter(ids []string) []string {
	var out []string
	for _, id := range ids {
		if r.Keep(id) {
			out = append(out, id)
		}
	}
	return out
}

// Attach subscribes the recorder to bus. Attaching again moves it to the new bus.
func (r *Recorder) Attach(bus *event.Bus) {
	r.Detach()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bus = bus
	r.subIDs = []string{
		bus.Subscribe(event.TypeTransitionFired, r.handle),
		bus.Subscribe(event.TypeBehaviorFault, r.handle),
		bus.Subscribe(event.TypeBehaviorReset, r.handle),
		bus.Subscribe(event.TypeWalkTruncated, r.handle),
		bus.Subscribe(event.TypeTickEvaluated, r.handle),
	}
}

// Detach unsubscribes the recorder.
func (r *Recorder) Detach() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bus == nil {
		return
	}
	for _, id := range r.subIDs {
		r.bus.Unsubscribe(id)
	}
	r.bus, r.subIDs = nil, nil
}

func (r *Recorder) handle(e event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev := e.(type) {
	case event.TransitionFiredEvent:
		if r.Keep(ev.FSM) {
			r.pending.Transitions = append(r.pending.Transitions, Transition{
				FSM: ev.FSM, From: ev.From, To: ev.To, Name: ev.Transition, Wildcard: ev.Wildcard,
			})
		}
	case event.BehaviorFaultEvent:
		if r.Keep(ev.BehaviorID) {
			msg := ""
			if ev.Err != nil {
				msg = ev.Err.Error()
			}
			r.pending.Faults = append(r.pending.Faults, Fault{Behavior: ev.BehaviorID, Error: msg, Panicked: ev.Panicked})
		}
	case event.BehaviorResetEvent:
		if r.Keep(ev.BehaviorID) {
			r.pending.Resets = append(r.pending.Resets, ev.BehaviorID)
		}
	case event.WalkTruncatedEvent:
		if r.Keep(ev.FSM) {
			r.pending.Truncated = append(r.pending.Truncated, ev.FSM)
		}
	case event.TickEvaluatedEvent:
		rec := r.pending
		r.pending = Record{}
		rec.Tick = ev.Tick
		rec.Time = ev.Timestamp()
		rec.Duration = ev.Duration
		rec.Ran = r.filter(ev.Ran)
		rec.Leaves = r.filter(ev.Leaves)
		for id, state := range ev.FSMStates {
			if r.Keep(id) {
				if rec.States == nil {
					rec.States = make(map[string]string)
				}
				rec.States[id] = state
			}
		}
		r.push(rec)
	}
}

// push appends rec, overwriting the oldest record when full. Callers hold r.mu.
func (r *Recorder) push(rec Record) {
	r.records[r.next] = rec
	r.next = (r.next + 1) % r.capacity
	if r.next == 0 {
		r.full = true
	}
	r.total++
}

// Records returns the retained records, oldest first.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		return append([]Record(nil), r.records[:r.next]...)
	}
	out := make([]Record, 0, r.capacity)
	out = append(out, r.records[r.next:]...)
	return append(out, r.records[:r.next]...)
}

// Last returns up to n of the most recent records, oldest first.
func (r *Recorder) Last(n int) []Record {
	recs := r.Records()
	if n >= 0 && len(recs) > n {
		recs = recs[len(recs)-n:]
	}
	return recs
}

// Len returns the number of retained records.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return r.capacity
	}
	return r.next
}

// Total returns the number of ticks recorded, including evicted ones.
func (r *Recorder) Total() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

// dump is the YAML layout written by WriteYAML.
type dump struct {
	Recorded uint64   `yaml:"recorded"`
	Retained int      `yaml:"retained"`
	Ticks    []Record `yaml:"ticks"`
}

// WriteYAML writes the retained records as a YAML document.
func (r *Recorder) WriteYAML(w io.Writer) error {
	recs := r.Records()
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(dump{Recorded: r.Total(), Retained: len(recs), Ticks: recs}); err != nil {
		return fmt.Errorf("failed to encode trace: %w", err)
	}
	return enc.Close()
}

// DumpFile writes the retained records to path on fs, creating parent
// directories as needed.
func (r *Recorder) DumpFile(fs afero.Fs, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create trace directory: %w", err)
		}
	}
	f, err := fs.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create trace file: %w", err)
	}
	if err := r.WriteYAML(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
