// Package params resolves named behavior parameters such as
// "look_around.top_angle" against the process configuration.
//
// A parameter that is not configured resolves to the caller's default. The
// first time that happens for a given name it is logged at debug level and
// published as a ParamDefaultedEvent; later lookups of the same name are
// silent.
package params

import (
	"sort"
	"strings"
	"sync"

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/arbiter/internal/event"
	"github.com/Iron-Ham/arbiter/internal/logging"
)

// DefaultPrefix is the config section holding behavior parameters.
const DefaultPrefix = "params"

// Lookup records how a parameter was resolved.
type Lookup struct {
	Name      string `yaml:"name"`
	Value     any    `yaml:"value"`
	Defaulted bool   `yaml:"defaulted"`
}

// Resolver looks parameters up in a viper instance. It is safe for
// concurrent use.
type Resolver struct {
	v      *viper.Viper
	prefix string
	logger *logging.Logger
	bus    *event.Bus

	mu      sync.Mutex
	lookups map[string]Lookup
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used for defaulting diagnostics.
func WithLogger(l *logging.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithBus publishes ParamDefaultedEvent on b.
func WithBus(b *event.Bus) Option {
	return func(r *Resolver) { r.bus = b }
}

// WithPrefix changes the config section parameters are read from.
// An empty prefix reads from the top level.
func WithPrefix(prefix string) Option {
	return func(r *Resolver) { r.prefix = prefix }
}

// NewResolver creates a Resolver over v. A nil v resolves every name to its default.
func NewResolver(v *viper.Viper, opts ...Option) *Resolver {
	r := &Resolver{
		v:       v,
		prefix:  DefaultPrefix,
		logger:  logging.NopLogger(),
		lookups: make(map[string]Lookup),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) key(name string) string {
	if r.prefix == "" {
		return name
	}
	return r.prefix + "." + name
}

// raw returns the configured value for name, or ok=false.
func (r *Resolver) raw(name string) (any, bool) {
	if r.v == nil {
		return nil, false
	}
	k := r.key(name)
	if !r.v.IsSet(k) {
		return nil, false
	}
	return r.v.Get(k), true
}

// resolve converts the configured value with conv, falling back to def when
// the name is missing or the value does not convert.
func resolve[T any](r *Resolver, name string, def T, conv func(any) (T, error)) T {
	raw, ok := r.raw(name)
	if ok {
		val, err := conv(raw)
		if err == nil {
			r.record(name, val, false)
			return val
		}
		r.logger.Warn("parameter has wrong type, using default",
			"param", name, "value", raw, "default", def, "error", err.Error())
	}
	r.record(name, def, true)
	return def
}

func (r *Resolver) record(name string, val any, defaulted bool) {
	r.mu.Lock()
	prev, seen := r.lookups[name]
	r.lookups[name] = Lookup{Name: name, Value: val, Defaulted: defaulted}
	r.mu.Unlock()

	if defaulted && (!seen || !prev.Defaulted) {
		r.logger.Debug("parameter not configured, using default", "param", name, "default", val)
		r.bus.Publish(event.NewParamDefaultedEvent(name, val))
	}
}

// String resolves a string parameter.
func (r *Resolver) String(name, def string) string {
	return resolve(r, name, def, cast.ToStringE)
}

// Int resolves an integer parameter.
func (r *Resolver) Int(name string, def int) int {
	return resolve(r, name, def, cast.ToIntE)
}

// Float resolves a floating-point parameter.
func (r *Resolver) Float(name string, def float64) float64 {
	return resolve(r, name, def, cast.ToFloat64E)
}

// Bool resolves a boolean parameter.
func (r *Resolver) Bool(name string, def bool) bool {
	return resolve(r, name, def, cast.ToBoolE)
}

// Lookups returns every parameter resolved so far, sorted by name.
func (r *Resolver) Lookups() []Lookup {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Lookup, 0, len(r.lookups))
	for _, l := range r.lookups {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Defaulted returns the names that resolved to their defaults, sorted.
func (r *Resolver) Defaulted() []string {
	var names []string
	for _, l := range r.Lookups() {
		if l.Defaulted {
			names = append(names, l.Name)
		}
	}
	return names
}

// Scoped returns a view of r that prefixes every name with scope and a dot.
func (r *Resolver) Scoped(scope string) *Scope {
	return &Scope{r: r, scope: strings.TrimSuffix(scope, ".")}
}

// Scope resolves names relative to a parameter group such as "look_around".
type Scope struct {
	r     *Resolver
	scope string
}

func (s *Scope) name(n string) string {
	if s.scope == "" {
		return n
	}
	return s.scope + "." + n
}

// String resolves scope.name as a string.
func (s *Scope) String(name, def string) string { return s.r.String(s.name(name), def) }

// Int resolves scope.name as an int.
func (s *Scope) Int(name string, def int) int { return s.r.Int(s.name(name), def) }

// Float resolves scope.name as a float64.
func (s *Scope) Float(name string, def float64) float64 { return s.r.Float(s.name(name), def) }

// Bool resolves scope.name as a bool.
func (s *Scope) Bool(name string, def bool) bool { return s.r.Bool(s.name(name), def) }
