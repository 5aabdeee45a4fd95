// Command ecs-stress populates a world with moving, spinning, expiring and animated
// entities, runs frames for a fixed duration and prints a timing and memory report.
package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"runtime"
	"time"

	"github.com/pkg/profile"
	"github.com/plus3/kiln/anim"
	"github.com/plus3/kiln/app"
	"github.com/plus3/kiln/config"
	"github.com/rotisserie/eris"
	"github.com/spf13/pflag"
)

type options struct {
	duration       time.Duration
	entities       int
	animated       float64
	seed           uint64
	profileMode    string
	gcPauseMetrics bool
	configFile     string
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, eris.ToString(err, true))
		os.Exit(1)
	}
}

func run(args []string) error {
	var opts options
	flags := pflag.NewFlagSet("ecs-stress", pflag.ContinueOnError)
	flags.DurationVar(&opts.duration, "duration", 10*time.Second, "total duration the test runs for")
	flags.IntVar(&opts.entities, "entities", 10000, "initial number of entities")
	flags.Float64Var(&opts.animated, "animated", 0.1, "fraction of entities driven by an animation player")
	flags.Uint64Var(&opts.seed, "seed", 1, "random seed")
	flags.StringVar(&opts.profileMode, "profile", "", "write a cpu, mem or trace profile to the working directory")
	flags.BoolVar(&opts.gcPauseMetrics, "gc-pause-metrics", false, "include GC pause metrics in the report")
	flags.StringVar(&opts.configFile, "config", "", "optional config file")

	loader := config.NewLoader()
	if err := loader.BindFlags(flags); err != nil {
		return err
	}
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return eris.Wrap(err, "parse flags")
	}
	stop, err := startProfile(opts.profileMode)
	if err != nil {
		return err
	}
	if stop != nil {
		defer stop()
	}

	cfg, err := loader.Load(opts.configFile)
	if err != nil {
		return err
	}
	logger, err := app.NewLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}

	a, err := app.New(cfg, app.WithLogger(logger))
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.AddPlugin(anim.Plugin{}); err != nil {
		return err
	}
	rng := rand.New(rand.NewPCG(opts.seed, opts.seed^0x9e3779b97f4a7c15))
	if err := a.AddPlugin(&stressPlugin{rng: rng, entities: opts.entities, animated: opts.animated}); err != nil {
		return err
	}
	if err := a.Scheduler().RunStartup(); err != nil {
		return err
	}
	logger.Info().Int("entities", a.World().EntityCount()).Int("archetypes", len(a.World().Archetypes())).
		Msg("population complete")

	report := &Report{
		Duration:       opts.duration,
		Entities:       opts.entities,
		Animated:       opts.animated,
		GCPauseMetrics: opts.gcPauseMetrics,
	}
	runtime.ReadMemStats(&report.MemStatsStart)

	logger.Info().Dur("duration", opts.duration).Msg("running simulation")
	ctx, cancel := context.WithTimeout(context.Background(), opts.duration)
	defer cancel()

	startTime := time.Now()
	lastFrameTime := startTime
	for ctx.Err() == nil {
		deltaTime := time.Since(lastFrameTime)
		lastFrameTime = time.Now()

		frameStart := time.Now()
		if err := a.Frame(deltaTime.Seconds()); err != nil {
			return err
		}
		report.UpdateTime.Samples = append(report.UpdateTime.Samples, time.Since(frameStart))
		report.TotalUpdates++
	}

	report.TotalTime = time.Since(startTime)
	report.UpdateTime.Finalize()
	report.World = a.World().CollectStats()
	report.Systems = a.Scheduler().GetStats().Systems
	runtime.ReadMemStats(&report.MemStatsEnd)

	logger.Info().Int64("frames", report.TotalUpdates).Msg("simulation finished")
	return report.Generate(os.Stdout)
}

// startProfile starts the profiler for mode and returns its stop function, or nil when
// mode is empty.
func startProfile(mode string) (func(), error) {
	var p interface{ Stop() }
	switch mode {
	case "":
		return nil, nil
	case "cpu":
		p = profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook)
	case "mem":
		p = profile.Start(profile.MemProfileAllocs, profile.ProfilePath("."), profile.NoShutdownHook)
	case "trace":
		p = profile.Start(profile.TraceProfile, profile.ProfilePath("."), profile.NoShutdownHook)
	default:
		return nil, eris.Errorf("unknown profile mode %q", mode)
	}
	return p.Stop, nil
}
