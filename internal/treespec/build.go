package treespec

import (
	"fmt"
	"sort"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/arbiter/internal/actuator"
	"github.com/Iron-Ham/arbiter/internal/behavior"
	"github.com/Iron-Ham/arbiter/internal/errors"
	"github.com/Iron-Ham/arbiter/internal/event"
	"github.com/Iron-Ham/arbiter/internal/fsm"
	"github.com/Iron-Ham/arbiter/internal/leaf"
	"github.com/Iron-Ham/arbiter/internal/logging"
	"github.com/Iron-Ham/arbiter/internal/params"
	"github.com/Iron-Ham/arbiter/internal/sensor"
)

// Deps are the collaborators handed to every constructed behavior.
type Deps struct {
	Modules  actuator.Modules
	Frames   sensor.FrameReader
	Hardware sensor.HardwareReader
	Camera   sensor.CameraGeometry
	Params   *params.Resolver
	Logger   *logging.Logger
	Bus      *event.Bus
	Clock    func() time.Time
	// MaxDepth bounds tree expansion; zero keeps the tree's default.
	MaxDepth int
}

// Constructor creates the behavior declared by spec.
type Constructor func(b *Builder, spec BehaviorSpec) (behavior.Behavior, error)

// Builder turns documents into trees. A Builder builds one tree.
type Builder struct {
	deps     Deps
	kinds    map[string]Constructor
	specs    map[string]BehaviorSpec
	built    map[string]behavior.Behavior
	building map[string]bool
}

// NewBuilder creates a builder with the standard kinds registered.
func NewBuilder(deps Deps) *Builder {
	if deps.Logger == nil {
		deps.Logger = logging.NopLogger()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Params == nil {
		deps.Params = params.NewResolver(viper.New(), params.WithLogger(deps.Logger), params.WithBus(deps.Bus))
	}

	b := &Builder{
		deps:     deps,
		kinds:    make(map[string]Constructor),
		specs:    make(map[string]BehaviorSpec),
		built:    make(map[string]behavior.Behavior),
		building: make(map[string]bool),
	}
	b.Register("action", buildAction)
	b.Register("look_around", buildLookAround)
	b.Register("look_at_ball", buildLookAtBall)
	b.Register("look_at_goal", buildLookAtGoal)
	b.Register("stop_walking", buildStopWalking)
	b.Register("fsm", buildFSM)
	return b
}

// Register adds or replaces the constructor for kind.
func (b *Builder) Register(kind string, c Constructor) {
	b.kinds[kind] = c
}

// Kinds returns the registered kinds, sorted.
func (b *Builder) Kinds() []string {
	kinds := make([]string, 0, len(b.kinds))
	for k := range b.kinds {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Deps returns the builder's collaborators.
func (b *Builder) Deps() Deps { return b.deps }

// Build constructs every behavior of doc and registers them, in document
// order, with a new tree.
func (b *Builder) Build(doc *Document) (*behavior.Tree, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	for _, s := range doc.Behaviors {
		b.specs[s.ID] = s
	}
	for _, s := range doc.Behaviors {
		if _, err := b.Behavior(s.ID); err != nil {
			return nil, err
		}
	}

	opts := []behavior.Option{
		behavior.WithLogger(b.deps.Logger),
		behavior.WithBus(b.deps.Bus),
		behavior.WithClock(b.deps.Clock),
	}
	if b.deps.MaxDepth > 0 {
		opts = append(opts, behavior.WithMaxDepth(b.deps.MaxDepth))
	}
	tree := behavior.NewTree(opts...)
	for _, s := range doc.Behaviors {
		if err := tree.AddBehavior(b.built[s.ID], s.ID == doc.Root); err != nil {
			return nil, err
		}
	}

	b.deps.Logger.Info("behavior tree built",
		"root", doc.Root,
		"behaviors", len(doc.Behaviors))
	return tree, nil
}

// Behavior returns the behavior declared as id, constructing it on first
// use. Constructors call it to resolve children.
func (b *Builder) Behavior(id string) (behavior.Behavior, error) {
	if bh, ok := b.built[id]; ok {
		return bh, nil
	}
	spec, ok := b.specs[id]
	if !ok {
		return nil, errors.NewNotFoundError("behavior", id).WithCause(errors.ErrBehaviorNotFound)
	}
	if b.building[id] {
		return nil, errors.NewTreeError("behavior is its own descendant", errors.ErrInvalidInput).WithBehaviorID(id)
	}
	ctor, ok := b.kinds[spec.Kind]
	if !ok {
		return nil, errors.NewTreeError(fmt.Sprintf("kind %q", spec.Kind), errors.ErrUnknownKind).WithBehaviorID(id)
	}

	b.building[id] = true
	defer delete(b.building, id)

	bh, err := ctor(b, spec)
	if err != nil {
		return nil, errors.NewTreeError("cannot build behavior", err).WithBehaviorID(id)
	}
	b.built[id] = bh
	return bh, nil
}

func (b *Builder) leafOptions() []leaf.Option {
	return []leaf.Option{
		leaf.WithLogger(b.deps.Logger),
		leaf.WithBus(b.deps.Bus),
		leaf.WithClock(b.deps.Clock),
	}
}

// decodeParams overlays a behavior's params onto out. Unknown keys are errors.
func decodeParams(in map[string]any, out any) error {
	if len(in) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(in); err != nil {
		return errors.NewValidationError("invalid params").WithField("params").WithCause(err)
	}
	return nil
}

func buildAction(b *Builder, spec BehaviorSpec) (behavior.Behavior, error) {
	var cfg struct {
		Script string `mapstructure:"script"`
	}
	cfg.Script = spec.Script
	if err := decodeParams(spec.Params, &cfg); err != nil {
		return nil, err
	}
	return leaf.NewAction(spec.ID, cfg.Script, b.deps.Modules.Scripts, b.leafOptions()...), nil
}

func buildLookAround(b *Builder, spec BehaviorSpec) (behavior.Behavior, error) {
	def := leaf.DefaultLookAroundConfig()
	p := b.deps.Params.Scoped("look_around")
	cfg := leaf.LookAroundConfig{
		TopAngle:           p.Float("top_angle", def.TopAngle),
		BottomAngle:        p.Float("bottom_angle", def.BottomAngle),
		SideAngle:          p.Float("side_angle", def.SideAngle),
		HorizontalDuration: p.Float("horizontal_duration", def.HorizontalDuration),
		VerticalDuration:   p.Float("vertical_duration", def.VerticalDuration),
	}
	if err := decodeParams(spec.Params, &cfg); err != nil {
		return nil, err
	}
	return leaf.NewLookAround(spec.ID, cfg, b.deps.Modules.Head, b.leafOptions()...), nil
}

func (b *Builder) trackConfig(scope string, overrides map[string]any) (leaf.TrackConfig, error) {
	def := leaf.DefaultTrackConfig()
	p := b.deps.Params.Scoped(scope)
	cfg := leaf.TrackConfig{
		Gain:      p.Float("gain", def.Gain),
		MinOffset: p.Float("min_offset", def.MinOffset),
		MaxOffset: p.Float("max_offset", def.MaxOffset),
	}
	err := decodeParams(overrides, &cfg)
	return cfg, err
}

func buildLookAtBall(b *Builder, spec BehaviorSpec) (behavior.Behavior, error) {
	cfg, err := b.trackConfig("look_at_ball", spec.Params)
	if err != nil {
		return nil, err
	}
	return leaf.NewLookAtBall(spec.ID, cfg, b.deps.Camera, b.deps.Modules.Head, b.deps.Frames, b.leafOptions()...), nil
}

func buildLookAtGoal(b *Builder, spec BehaviorSpec) (behavior.Behavior, error) {
	cfg, err := b.trackConfig("look_at_goal", spec.Params)
	if err != nil {
		return nil, err
	}
	return leaf.NewLookAtGoal(spec.ID, cfg, b.deps.Camera, b.deps.Modules.Head, b.deps.Frames, b.leafOptions()...), nil
}

func buildStopWalking(b *Builder, spec BehaviorSpec) (behavior.Behavior, error) {
	if err := decodeParams(spec.Params, &struct{}{}); err != nil {
		return nil, err
	}
	return leaf.NewStopWalking(spec.ID, b.deps.Modules.Walker, b.leafOptions()...), nil
}

func buildFSM(b *Builder, spec BehaviorSpec) (behavior.Behavior, error) {
	env := newConditionEnv(b)
	m := fsm.New(spec.ID,
		fsm.WithLogger(b.deps.Logger),
		fsm.WithBus(b.deps.Bus),
		fsm.WithClock(b.deps.Clock),
		fsm.WithTickHook(env.sample))
	env.machine = m

	ids := make(map[string]fsm.StateID, len(spec.States))
	for _, st := range spec.States {
		if _, dup := ids[st.Name]; dup || st.Name == "" || st.Name == WildcardState {
			return nil, errors.NewFSMError("invalid or duplicate state name", errors.ErrInvalidInput).
				WithFSM(spec.ID).WithState(st.Name)
		}

		children := make([]behavior.Behavior, 0, len(st.Children))
		for _, id := range st.Children {
			child, err := b.Behavior(id)
			if err != nil {
				return nil, errors.NewFSMError("cannot resolve child", err).WithFSM(spec.ID).WithState(st.Name)
			}
			children = append(children, child)
		}

		var opts []fsm.StateOption
		if st.Start {
			opts = append(opts, fsm.Start())
		}
		if st.Final {
			opts = append(opts, fsm.Final())
		}
		if len(st.OnEnter) > 0 {
			fn, err := b.commands(st.OnEnter)
			if err != nil {
				return nil, errors.NewFSMError("invalid on_enter", err).WithFSM(spec.ID).WithState(st.Name)
			}
			opts = append(opts, fsm.OnEnter(fn))
		}
		ids[st.Name] = m.NewState(st.Name, children, opts...)
	}

	for i, tr := range spec.Transitions {
		to, ok := ids[tr.To]
		if !ok {
			return nil, errors.NewFSMError(fmt.Sprintf("transition %d targets %q", i, tr.To), errors.ErrUnknownState).
				WithFSM(spec.ID).WithState(tr.From)
		}

		var t *fsm.Transition
		if tr.From == WildcardState {
			t = m.AddWildcard(to)
		} else {
			from, ok := ids[tr.From]
			if !ok {
				return nil, errors.NewFSMError(fmt.Sprintf("transition %d leaves %q", i, tr.From), errors.ErrUnknownState).
					WithFSM(spec.ID)
			}
			t = m.Transition(from, to)
		}

		t.Named(tr.Name)
		if tr.Name == "" {
			t.Named(tr.When)
		}
		if tr.When != "" {
			cond, err := env.compile(tr.When)
			if err != nil {
				return nil, errors.NewFSMError(fmt.Sprintf("transition %d", i), err).WithFSM(spec.ID).WithState(tr.From)
			}
			t.When(cond)
		}
		if len(tr.Do) > 0 {
			fn, err := b.commands(tr.Do)
			if err != nil {
				return nil, errors.NewFSMError(fmt.Sprintf("transition %d", i), err).WithFSM(spec.ID).WithState(tr.From)
			}
			t.Do(fn)
		}
	}
	return m, nil
}
