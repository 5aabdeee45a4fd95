package main

import (
	"bytes"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/plus3/kiln/anim"
	"github.com/plus3/kiln/app"
	"github.com/plus3/kiln/config"
	"github.com/plus3/kiln/ecs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsFinalize(t *testing.T) {
	s := Stats{Samples: []time.Duration{3 * time.Millisecond, time.Millisecond, 2 * time.Millisecond}}
	s.Finalize()
	assert.Equal(t, time.Millisecond, s.Min)
	assert.Equal(t, 3*time.Millisecond, s.Max)
	assert.Equal(t, 2*time.Millisecond, s.Avg)

	var empty Stats
	empty.Finalize()
	assert.Zero(t, empty.Avg)
}

func TestStressWorldChurns(t *testing.T) {
	a, err := app.New(config.Default())
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.AddPlugin(anim.Plugin{}))
	rng := rand.New(rand.NewPCG(7, 7))
	require.NoError(t, a.AddPlugin(&stressPlugin{rng: rng, entities: 200, animated: 0.25}))
	require.NoError(t, a.Scheduler().RunStartup())
	assert.Equal(t, 200, a.World().EntityCount())

	for range 120 {
		require.NoError(t, a.Frame(0.1))
	}

	s := ecs.GetResource[spawner](a.World())
	assert.Positive(t, s.despawned, "every lifetime is at most five seconds")
	assert.Equal(t, s.spawned-s.despawned, a.World().EntityCount())
	a.World().CheckInvariants()

	report := &Report{
		Entities: 200,
		World:    a.World().CollectStats(),
		Systems:  a.Scheduler().GetStats().Systems,
	}
	var out bytes.Buffer
	require.NoError(t, report.Generate(&out))
	assert.Contains(t, out.String(), "Live Entities:** 200")
	assert.Contains(t, out.String(), "## Slowest Systems")
}

func TestUnknownProfileModeFailsRun(t *testing.T) {
	stop, err := startProfile("")
	require.NoError(t, err)
	assert.Nil(t, stop)

	err = run([]string{"--profile", "heap", "--duration", "1ms", "--entities", "1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown profile mode "heap"`)
}
