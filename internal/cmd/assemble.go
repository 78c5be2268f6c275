package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/arbiter/internal/behavior"
	"github.com/Iron-Ham/arbiter/internal/config"
	"github.com/Iron-Ham/arbiter/internal/event"
	"github.com/Iron-Ham/arbiter/internal/fsm"
	"github.com/Iron-Ham/arbiter/internal/logging"
	"github.com/Iron-Ham/arbiter/internal/params"
	"github.com/Iron-Ham/arbiter/internal/sensor"
	"github.com/Iron-Ham/arbiter/internal/sim"
	"github.com/Iron-Ham/arbiter/internal/treespec"
)

// system is a built tree wired to the simulated robot.
type system struct {
	doc      *treespec.Document
	tree     *behavior.Tree
	builder  *treespec.Builder
	modules  *sim.Modules
	store    *sensor.Store
	scenario *sim.Scenario
	params   *params.Resolver
}

// assembleOptions selects where the tree document comes from.
type assembleOptions struct {
	fs       afero.Fs
	v        *viper.Viper
	treeFile string
	logger   *logging.Logger
	bus      *event.Bus
	clock    func() time.Time
}

// loadDocument reads treeFile from fs, or returns the built-in play tree.
func loadDocument(fs afero.Fs, treeFile string) (*treespec.Document, error) {
	if treeFile == "" {
		return treespec.Default(), nil
	}
	return treespec.Load(fs, treeFile)
}

// assemble builds the tree described by cfg against simulated modules.
func assemble(cfg *config.Config, opts assembleOptions) (*system, error) {
	if opts.logger == nil {
		opts.logger = logging.NopLogger()
	}
	if opts.clock == nil {
		opts.clock = time.Now
	}
	if opts.fs == nil {
		opts.fs = appFs
	}

	treeFile := opts.treeFile
	if treeFile == "" {
		treeFile = cfg.Tree.File
	}
	doc, err := loadDocument(opts.fs, treeFile)
	if err != nil {
		return nil, err
	}

	geom := sensor.CameraGeometry{
		Width:         cfg.Camera.Width,
		Height:        cfg.Camera.Height,
		HorizontalFOV: cfg.Camera.HorizontalFOVDeg,
		VerticalFOV:   cfg.Camera.VerticalFOVDeg,
	}
	scenario, err := sim.NewScenario(cfg.Sim.Scenario, geom, opts.clock)
	if err != nil {
		return nil, err
	}

	modules := sim.NewModules(cfg.Sim.ScriptDuration(), cfg.Sim.WalkStopDelay(), opts.clock, opts.logger)
	store := sensor.NewStore()
	resolver := params.NewResolver(opts.v, params.WithLogger(opts.logger), params.WithBus(opts.bus))

	builder := treespec.NewBuilder(treespec.Deps{
		Modules:  modules.Actuators(),
		Frames:   store,
		Hardware: store,
		Camera:   geom,
		Params:   resolver,
		Logger:   opts.logger,
		Bus:      opts.bus,
		Clock:    opts.clock,
	})
	tree, err := builder.Build(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to build tree: %w", err)
	}

	return &system{
		doc:      doc,
		tree:     tree,
		builder:  builder,
		modules:  modules,
		store:    store,
		scenario: scenario,
		params:   resolver,
	}, nil
}

// machines returns the tree's FSMs in registration order.
func (s *system) machines() []*fsm.FSM {
	var out []*fsm.FSM
	for _, id := range s.tree.IDs() {
		b, err := s.tree.GetBehavior(id)
		if err != nil {
			continue
		}
		if m, ok := b.(*fsm.FSM); ok {
			out = append(out, m)
		}
	}
	return out
}
