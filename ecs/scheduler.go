package ecs

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"
)

// Stage is an ordered group of systems. Each frame runs the fixed stages zero or more
// times, then Update, LateUpdate, Render and LateRender. Startup runs once before the
// first frame.
type Stage uint8

const (
	Startup Stage = iota
	FixedUpdate
	LateFixedUpdate
	Update
	LateUpdate
	Render
	LateRender
	stageCount
)

var stageNames = [stageCount]string{
	"Startup", "FixedUpdate", "LateFixedUpdate", "Update", "LateUpdate", "Render", "LateRender",
}

func (s Stage) String() string {
	if s >= stageCount {
		return "Stage(?)"
	}
	return stageNames[s]
}

// Stages returns every stage in execution order
func Stages() []Stage {
	stages := make([]Stage, stageCount)
	for i := range stages {
		stages[i] = Stage(i)
	}
	return stages
}

// Time is the clock resource maintained by the scheduler.
type Time struct {
	// Delta is the duration of the current frame in seconds.
	Delta   float64
	Elapsed float64
	// FixedDelta is the fixed timestep; fixed stages see it as their DeltaTime.
	FixedDelta   float64
	FixedElapsed float64
	Frame        uint64
}

// SchedulerStats provides statistics about scheduler execution.
type SchedulerStats struct {
	SystemCount     int
	TotalExecutions int64
	Systems         []SystemStats
}

// SystemStats provides execution statistics for a single system.
type SystemStats struct {
	Name           string
	Stage          Stage
	ExecutionCount int64
	MinDuration    time.Duration
	MaxDuration    time.Duration
	AvgDuration    time.Duration
	LastDuration   time.Duration
	TotalDuration  time.Duration
}

type systemStatsInternal struct {
	executionCount int64
	minDuration    time.Duration
	maxDuration    time.Duration
	totalDuration  time.Duration
	lastDuration   time.Duration
}

func (s *systemStatsInternal) record(duration time.Duration) {
	s.executionCount++
	s.lastDuration = duration
	s.totalDuration += duration

	if duration < s.minDuration {
		s.minDuration = duration
	}
	if duration > s.maxDuration {
		s.maxDuration = duration
	}
}

type systemRunner struct {
	name     string
	stage    Stage
	system   System
	access   *Access
	appliers []paramApplier
	frame    *UpdateFrame
	stats    systemStatsInternal
}

func (r *systemRunner) apply(w *World) {
	for _, applier := range r.appliers {
		applier.applyParam(w)
	}
	r.frame.Commands.Apply(w)
}

type systemGroup struct {
	parallel bool
	runners  []*systemRunner
}

// Scheduler manages and executes systems stage by stage.
type Scheduler struct {
	world   *World
	stages  [stageCount][]*systemGroup
	runners []*systemRunner

	fixedTimestep float64
	maxFixedSteps int
	accumulator   float64
	lastDelta     float64
	startupDone   bool
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithFixedTimestep sets the fixed stage timestep in seconds. A non-positive value
// disables the fixed stages.
func WithFixedTimestep(seconds float64) SchedulerOption {
	return func(s *Scheduler) {
		s.fixedTimestep = seconds
	}
}

// WithMaxFixedSteps caps the number of fixed steps run per frame; the remaining
// accumulated time is dropped. Zero means unlimited.
func WithMaxFixedSteps(n int) SchedulerOption {
	return func(s *Scheduler) {
		s.maxFixedSteps = n
	}
}

// NewScheduler creates a new scheduler for the given world and inserts the Time resource.
func NewScheduler(world *World, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		world:         world,
		fixedTimestep: 1.0 / 60.0,
	}
	for _, opt := range opts {
		opt(s)
	}
	InitResource[Time](world).FixedDelta = s.fixedTimestep
	return s
}

// World returns the world the scheduler drives
func (s *Scheduler) World() *World {
	return s.world
}

// Register adds systems to stage; they run one after another in the given order,
// each followed by the application of its commands. A system is a System
// implementation or a function accepted by SystemFunc.
func (s *Scheduler) Register(stage Stage, systems ...any) error {
	runners, err := s.newRunners(stage, systems)
	if err != nil {
		return err
	}
	for _, runner := range runners {
		s.stages[stage] = append(s.stages[stage], &systemGroup{runners: []*systemRunner{runner}})
	}
	s.runners = append(s.runners, runners...)
	return nil
}

// RegisterParallel adds systems to stage as one group that runs concurrently. Their
// commands are applied after the whole group, in the given order. It returns an
// *AccessConflictError if any two systems could alias a write.
func (s *Scheduler) RegisterParallel(stage Stage, systems ...any) error {
	runners, err := s.newRunners(stage, systems)
	if err != nil {
		return err
	}
	for i, a := range runners {
		for _, b := range runners[i+1:] {
			if !a.access.Compatible(b.access) {
				return s.world.conflictError(a.name, b.name, a.access, b.access)
			}
		}
	}
	s.stages[stage] = append(s.stages[stage], &systemGroup{parallel: true, runners: runners})
	s.runners = append(s.runners, runners...)
	return nil
}

func (s *Scheduler) newRunners(stage Stage, systems []any) ([]*systemRunner, error) {
	if stage >= stageCount {
		return nil, eris.Errorf("unknown stage %d", stage)
	}
	runners := make([]*systemRunner, 0, len(systems))
	for _, system := range systems {
		runner, err := s.newRunner(stage, asSystem(system))
		if err != nil {
			return nil, err
		}
		runners = append(runners, runner)
	}
	return runners, nil
}

func (s *Scheduler) newRunner(stage Stage, system System) (*systemRunner, error) {
	name := systemName(system)
	cell := newWorldCell(s.world, name)
	params, err := initSystem(system, cell)
	if err != nil {
		return nil, err
	}

	runner := &systemRunner{
		name:   name,
		stage:  stage,
		system: system,
		access: cell.access,
		frame: &UpdateFrame{
			Stage:    stage,
			Commands: NewCommands(s.world),
			World:    s.world,
		},
		stats: systemStatsInternal{minDuration: time.Duration(1<<63 - 1)},
	}
	for _, param := range params {
		if applier, ok := param.(paramApplier); ok {
			runner.appliers = append(runner.appliers, applier)
		}
	}
	return runner, nil
}

func (s *Scheduler) execute(runner *systemRunner, dt float64) error {
	runner.frame.DeltaTime = dt
	runner.frame.Tick = s.world.tick

	start := time.Now()
	err := runSystem(runner.system, runner.frame)
	runner.stats.record(time.Since(start))
	if err != nil {
		return eris.Wrapf(err, "system %s", runner.name)
	}
	return nil
}

func (s *Scheduler) runStage(stage Stage, dt float64) error {
	for _, group := range s.stages[stage] {
		if !group.parallel || len(group.runners) == 1 {
			for _, runner := range group.runners {
				if err := s.execute(runner, dt); err != nil {
					return err
				}
				runner.apply(s.world)
			}
			continue
		}

		var g errgroup.Group
		for _, runner := range group.runners {
			g.Go(func() error {
				return s.execute(runner, dt)
			})
		}
		err := g.Wait()
		for _, runner := range group.runners {
			runner.apply(s.world)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// RunStartup runs the Startup stage if it has not run yet.
func (s *Scheduler) RunStartup() error {
	if s.startupDone {
		return nil
	}
	s.startupDone = true
	return s.runStage(Startup, 0)
}

// Update runs startup (once), the fixed stages as many times as the accumulated time
// allows, then Update and LateUpdate, and finally flushes event channels.
func (s *Scheduler) Update(dt float64) error {
	if err := s.RunStartup(); err != nil {
		return err
	}

	clock := InitResource[Time](s.world)
	clock.Delta = dt
	clock.Elapsed += dt
	clock.FixedDelta = s.fixedTimestep
	s.lastDelta = dt

	if s.fixedTimestep > 0 {
		s.accumulator += dt
		steps := 0
		for s.accumulator >= s.fixedTimestep {
			if s.maxFixedSteps > 0 && steps >= s.maxFixedSteps {
				s.accumulator = 0
				break
			}
			if err := s.runStage(FixedUpdate, s.fixedTimestep); err != nil {
				return err
			}
			if err := s.runStage(LateFixedUpdate, s.fixedTimestep); err != nil {
				return err
			}
			s.accumulator -= s.fixedTimestep
			clock.FixedElapsed += s.fixedTimestep
			steps++
		}
	}

	if err := s.runStage(Update, dt); err != nil {
		return err
	}
	if err := s.runStage(LateUpdate, dt); err != nil {
		return err
	}
	FlushEvents(s.world)
	return nil
}

// Render runs Render and LateRender, then advances the world tick.
func (s *Scheduler) Render() error {
	if err := s.runStage(Render, s.lastDelta); err != nil {
		return err
	}
	if err := s.runStage(LateRender, s.lastDelta); err != nil {
		return err
	}
	InitResource[Time](s.world).Frame++
	s.world.Tick()
	return nil
}

// Once executes one whole frame with the given delta time.
func (s *Scheduler) Once(dt float64) error {
	if err := s.Update(dt); err != nil {
		return err
	}
	return s.Render()
}

// Run executes frames at the given interval until the context is cancelled or a
// system fails.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastTime := time.Now()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			dt := now.Sub(lastTime).Seconds()
			lastTime = now
			if err := s.Once(dt); err != nil {
				return err
			}
		}
	}
}

// SystemNames returns the names of the systems registered in stage, in run order
func (s *Scheduler) SystemNames(stage Stage) []string {
	var names []string
	for _, group := range s.stages[stage] {
		for _, runner := range group.runners {
			names = append(names, runner.name)
		}
	}
	return names
}

// GetStats returns statistics about system execution.
func (s *Scheduler) GetStats() *SchedulerStats {
	stats := &SchedulerStats{
		SystemCount: len(s.runners),
		Systems:     make([]SystemStats, len(s.runners)),
	}

	var totalExecs int64
	for i, runner := range s.runners {
		internal := &runner.stats
		avgDuration := time.Duration(0)
		if internal.executionCount > 0 {
			avgDuration = internal.totalDuration / time.Duration(internal.executionCount)
		}

		stats.Systems[i] = SystemStats{
			Name:           runner.name,
			Stage:          runner.stage,
			ExecutionCount: internal.executionCount,
			MinDuration:    internal.minDuration,
			MaxDuration:    internal.maxDuration,
			AvgDuration:    avgDuration,
			LastDuration:   internal.lastDuration,
			TotalDuration:  internal.totalDuration,
		}
		totalExecs += internal.executionCount
	}

	stats.TotalExecutions = totalExecs
	return stats
}
