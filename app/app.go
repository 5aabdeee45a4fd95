// Package app assembles a world, its scheduler and an asset server from configuration
// and drives the frame loop. Features arrive as plugins.
package app

import (
	"context"
	"io/fs"
	"os"
	"reflect"

	"github.com/plus3/kiln/asset"
	"github.com/plus3/kiln/config"
	"github.com/plus3/kiln/ecs"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// Plugin adds components, resources, assets and systems to an App.
type Plugin interface {
	Build(a *App) error
}

// PluginFunc adapts a function to Plugin
type PluginFunc func(a *App) error

func (f PluginFunc) Build(a *App) error { return f(a) }

// App owns the world and everything that runs it.
type App struct {
	cfg       config.Config
	logger    zerolog.Logger
	registry  *ecs.ComponentRegistry
	world     *ecs.World
	scheduler *ecs.Scheduler
	assets    *asset.Server
	plugins   map[reflect.Type]bool
}

// Option configures an App
type Option func(*options)

type options struct {
	logger    *zerolog.Logger
	assetRoot fs.FS
}

// WithLogger replaces the logger built from the configuration.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = &logger
	}
}

// WithAssetFS reads assets from root instead of the configured directory.
func WithAssetFS(root fs.FS) Option {
	return func(o *options) {
		o.assetRoot = root
	}
}

// New creates an App. The asset server is a world resource and its pump runs first in
// every Update.
func New(cfg config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := zerolog.Nop()
	if o.logger != nil {
		logger = *o.logger
	} else {
		built, err := NewLogger(cfg.Log, os.Stderr)
		if err != nil {
			return nil, err
		}
		logger = built
	}
	if o.assetRoot == nil {
		o.assetRoot = os.DirFS(cfg.AssetRoot)
	}

	registry := ecs.NewComponentRegistry()
	world := ecs.NewWorld(registry)
	a := &App{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		world:    world,
		scheduler: ecs.NewScheduler(world,
			ecs.WithFixedTimestep(cfg.FixedTimestep),
			ecs.WithMaxFixedSteps(cfg.MaxFixedSteps),
		),
		assets: asset.NewServer(o.assetRoot,
			asset.WithWorkers(cfg.AssetWorkers),
			asset.WithLogger(logger.With().Str("component", "assets").Logger()),
		),
		plugins: make(map[reflect.Type]bool),
	}
	world.InsertResource(a.assets)
	if err := a.scheduler.Register(ecs.Update, ecs.Named("asset.PumpSystem", asset.PumpSystem)); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *App) Config() config.Config { return a.cfg }
func (a *App) Logger() zerolog.Logger { return a.logger }
func (a *App) Registry() *ecs.ComponentRegistry { return a.registry }
func (a *App) World() *ecs.World { return a.world }
func (a *App) Scheduler() *ecs.Scheduler { return a.scheduler }
func (a *App) Assets() *asset.Server { return a.assets }

// AddPlugin builds p. A plugin type is built once; adding it again does nothing.
func (a *App) AddPlugin(p Plugin) error {
	t := reflect.TypeOf(p)
	if a.plugins[t] {
		return nil
	}
	a.plugins[t] = true

	if err := p.Build(a); err != nil {
		return eris.Wrapf(err, "build plugin %s", t)
	}
	a.logger.Debug().Str("plugin", t.String()).Msg("plugin built")
	return nil
}

// InsertResource stores value as a world resource
func (a *App) InsertResource(value any) {
	a.world.InsertResource(value)
}

// AddSystems appends systems to stage in run order.
func (a *App) AddSystems(stage ecs.Stage, systems ...any) error {
	return a.scheduler.Register(stage, systems...)
}

// AddParallelSystems adds systems to stage as one access-checked parallel group.
func (a *App) AddParallelSystems(stage ecs.Stage, systems ...any) error {
	return a.scheduler.RegisterParallel(stage, systems...)
}

// RegisterComponent makes T spawnable
func RegisterComponent[T any](a *App) ecs.ComponentId {
	return ecs.RegisterComponent[T](a.registry)
}

// RegisterComponentLifecycle registers T with hooks run when T is added or removed.
func RegisterComponentLifecycle[T any](a *App, hooks ecs.ComponentHooks) {
	ecs.SetComponentHooks[T](a.registry, hooks)
}

// RegisterEvent creates the channel for E
func RegisterEvent[E any](a *App) *ecs.Events[E] {
	return ecs.RegisterEvent[E](a.world)
}

// RegisterAsset makes A loadable through loader and schedules its handle tracking in
// Update, after the pump.
func RegisterAsset[A any](a *App, loader asset.Loader[A]) (*asset.Store[A], error) {
	store := asset.Register(a.world, a.assets, loader)
	name := "asset.TrackSystem[" + reflect.TypeFor[A]().String() + "]"
	if err := a.scheduler.Register(ecs.Update, ecs.Named(name, asset.TrackSystem[A])); err != nil {
		return nil, err
	}
	return store, nil
}

// Frame runs one frame of dt seconds: startup on the first call, then the update and
// render stages.
func (a *App) Frame(dt float64) error {
	return a.scheduler.Once(dt)
}

// Run drives frames at the configured interval until ctx is cancelled or a system
// fails, then closes the asset server.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	a.logger.Info().
		Int("entities", a.world.EntityCount()).
		Dur("frame_interval", a.cfg.FrameInterval).
		Float64("fixed_timestep", a.cfg.FixedTimestep).
		Msg("starting frame loop")

	if err := a.scheduler.RunStartup(); err != nil {
		a.logger.Error().Err(err).Msg("startup failed")
		return err
	}
	if err := a.scheduler.Run(ctx, a.cfg.FrameInterval); err != nil {
		a.logger.Error().Err(err).Uint64("frame", ecs.GetResource[ecs.Time](a.world).Frame).Msg("frame failed")
		return err
	}

	a.logger.Info().Msg("frame loop stopped")
	return nil
}

// Close stops the asset loaders
func (a *App) Close() {
	a.assets.Close()
}
