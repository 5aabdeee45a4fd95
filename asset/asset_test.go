package asset_test

import (
	"context"
	"errors"
	"io/fs"
	"runtime"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"

	"github.com/plus3/kiln/asset"
	"github.com/plus3/kiln/ecs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Mesh struct {
	Vertices int `json:"vertices"`
}

type Material struct {
	Shader  string `json:"shader"`
	Texture *asset.Handle[Texture]
}

type Texture struct {
	Data []byte
}

var testFiles = fstest.MapFS{
	"meshes/cube.json":      {Data: []byte(`{"vertices": 8}`)},
	"meshes/quad.json":      {Data: []byte(`{"vertices": 4}`)},
	"meshes/broken.json":    {Data: []byte(`{"vertices": `)},
	"materials/stone.mat":   {Data: []byte("lit")},
	"materials/stone.png":   {Data: []byte{1, 2, 3}},
	"textures/fallback.png": {Data: []byte{9}},
}

type fixture struct {
	world  *ecs.World
	server *asset.Server
	meshes *asset.Store[Mesh]
	loads  atomic.Int32
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		world:  ecs.NewWorld(ecs.NewComponentRegistry()),
		server: asset.NewServer(testFiles, asset.WithWorkers(2)),
	}
	t.Cleanup(f.server.Close)
	f.world.InsertResource(f.server)

	decode := asset.JSONLoader[Mesh]()
	f.meshes = asset.Register(f.world, f.server, func(ctx context.Context, lc *asset.LoadContext) (Mesh, error) {
		f.loads.Add(1)
		return decode(ctx, lc)
	})
	return f
}

// pumpUntil pumps the server until h reaches want
func (f *fixture) pumpUntil(t *testing.T, h asset.UntypedHandle, want asset.LoadState) {
	t.Helper()
	require.Eventually(t, func() bool {
		f.server.Pump()
		return f.server.LoadState(h) == want
	}, 2*time.Second, time.Millisecond, "waiting for %s to become %s", h.Path(), want)
}

func (f *fixture) track() []asset.Id {
	return f.meshes.Track(nil)
}

func TestPathNormalization(t *testing.T) {
	tests := []struct {
		in   string
		want asset.Path
	}{
		{"meshes/cube.json", "meshes/cube.json"},
		{"/meshes/cube.json", "meshes/cube.json"},
		{"./meshes//cube.json", "meshes/cube.json"},
		{`meshes\cube.json`, "meshes/cube.json"},
		{"meshes/../meshes/cube.json", "meshes/cube.json"},
		{"../../escape.json", "escape.json"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, asset.NewPath(tt.in))
			assert.Equal(t, asset.IdOf(tt.want), asset.IdOf(asset.NewPath(tt.in)))
		})
	}
}

func TestPathResolve(t *testing.T) {
	base := asset.NewPath("materials/stone.mat")
	assert.Equal(t, asset.Path("materials/stone.png"), base.Resolve("./stone.png"))
	assert.Equal(t, asset.Path("textures/a.png"), base.Resolve("../textures/a.png"))
	assert.Equal(t, asset.Path("textures/a.png"), base.Resolve("textures/a.png"))
	assert.Equal(t, ".mat", base.Ext())
}

func TestLoadSharesOneTaskAndReleasesOnLastDrop(t *testing.T) {
	f := newFixture(t)

	first := asset.Load[Mesh](f.server, "meshes/cube.json")
	second := asset.Load[Mesh](f.server, "./meshes/cube.json")
	assert.Equal(t, first.Id(), second.Id())
	assert.Equal(t, asset.Loading, f.server.LoadState(first))

	f.pumpUntil(t, first, asset.Loaded)
	assert.Equal(t, int32(1), f.loads.Load())
	require.NotNil(t, f.meshes.Get(first))
	assert.Equal(t, 8, f.meshes.Get(second).Vertices)
	assert.Equal(t, 0, f.server.InFlight())

	f.track()
	assert.Equal(t, 2, f.meshes.LiveCount(first.Id()))

	first.Drop()
	assert.Empty(t, f.track())
	assert.True(t, f.meshes.Contains(second.Id()))

	second.Drop()
	assert.Equal(t, []asset.Id{second.Id()}, f.track())
	assert.False(t, f.meshes.Contains(second.Id()))
	assert.Equal(t, asset.NotLoaded, f.server.LoadState(second))
}

func TestReleasedAssetLoadsAgain(t *testing.T) {
	f := newFixture(t)
	h := asset.Load[Mesh](f.server, "meshes/quad.json")
	f.pumpUntil(t, h, asset.Loaded)

	h.Drop()
	require.Len(t, f.meshes.Track(nil), 1)

	// Without the server's forget hook the task stays known and nothing reloads.
	again := asset.Load[Mesh](f.server, "meshes/quad.json")
	f.server.Pump()
	assert.Equal(t, int32(1), f.loads.Load())
	again.Drop()
	f.track()
}

func TestTrackSystemForgetsReleasedLoads(t *testing.T) {
	f := newFixture(t)
	scheduler := ecs.NewScheduler(f.world)
	require.NoError(t, scheduler.Register(ecs.Update, asset.PumpSystem, asset.TrackSystem[Mesh]))

	h := asset.Load[Mesh](f.server, "meshes/quad.json")
	require.Eventually(t, func() bool {
		assert.NoError(t, scheduler.Once(1.0/60))
		return f.meshes.Contains(h.Id())
	}, 2*time.Second, time.Millisecond)

	h.Drop()
	require.NoError(t, scheduler.Once(1.0/60))
	assert.False(t, f.meshes.Contains(h.Id()))
	assert.Equal(t, asset.NotLoaded, f.server.LoadState(h))

	again := asset.Load[Mesh](f.server, "meshes/quad.json")
	require.Eventually(t, func() bool {
		assert.NoError(t, scheduler.Once(1.0/60))
		return f.meshes.Contains(again.Id())
	}, 2*time.Second, time.Millisecond)
	assert.Equal(t, int32(2), f.loads.Load())
}

func TestCloneKeepsAssetAlive(t *testing.T) {
	f := newFixture(t)
	h := asset.Load[Mesh](f.server, "meshes/cube.json")
	f.pumpUntil(t, h, asset.Loaded)

	clones := []*asset.Handle[Mesh]{h.Clone(), h.Clone()}
	clone := clones[0].Clone()
	clones = append(clones, clone)

	h.Drop()
	h.Drop()
	assert.True(t, h.Dropped())
	for _, c := range clones[:2] {
		c.Drop()
	}
	assert.Empty(t, f.track())
	assert.Equal(t, 1, f.meshes.LiveCount(h.Id()))

	clone.Drop()
	assert.Equal(t, []asset.Id{h.Id()}, f.track())
	assert.Empty(t, f.track(), "an asset is released exactly once")
}

func TestDropAndReloadInSameBatchKeepsAsset(t *testing.T) {
	f := newFixture(t)
	h := asset.Load[Mesh](f.server, "meshes/cube.json")
	f.pumpUntil(t, h, asset.Loaded)
	f.track()

	h.Drop()
	again := asset.Load[Mesh](f.server, "meshes/cube.json")
	assert.Empty(t, f.track())
	assert.NotNil(t, f.meshes.Get(again))
	again.Drop()
}

func TestCollectedHandleIsDropped(t *testing.T) {
	f := newFixture(t)
	id := func() asset.Id {
		h := asset.Load[Mesh](f.server, "meshes/quad.json")
		return h.Id()
	}()

	require.Eventually(t, func() bool {
		runtime.GC()
		f.server.Pump()
		for _, released := range f.track() {
			if released == id {
				return true
			}
		}
		return false
	}, 2*time.Second, 5*time.Millisecond)
}

func TestFailedLoad(t *testing.T) {
	f := newFixture(t)

	broken := asset.Load[Mesh](f.server, "meshes/broken.json")
	f.pumpUntil(t, broken, asset.Failed)
	var loadErr *asset.LoadError
	require.ErrorAs(t, f.server.LoadError(broken), &loadErr)
	assert.Equal(t, asset.Path("meshes/broken.json"), loadErr.Path)
	assert.Nil(t, f.meshes.Get(broken))

	missing := asset.Load[Mesh](f.server, "meshes/missing.json")
	f.pumpUntil(t, missing, asset.Failed)
	assert.ErrorIs(t, f.server.LoadError(missing), fs.ErrNotExist)

	retry := asset.Load[Mesh](f.server, "meshes/broken.json")
	assert.Equal(t, asset.Loading, f.server.LoadState(retry), "loading a failed asset retries")
	assert.Nil(t, f.server.LoadError(retry))
	f.pumpUntil(t, retry, asset.Failed)
}

func TestLoadUnregisteredType(t *testing.T) {
	f := newFixture(t)
	h := asset.Load[Texture](f.server, "textures/fallback.png")
	assert.Equal(t, asset.Failed, f.server.LoadState(h))
	assert.ErrorIs(t, f.server.LoadError(h), asset.ErrUnknownType)
	h.Drop()
}

func TestLoadAfterClose(t *testing.T) {
	f := newFixture(t)
	f.server.Close()
	h := asset.Load[Mesh](f.server, "meshes/cube.json")
	assert.ErrorIs(t, f.server.LoadError(h), asset.ErrServerClosed)
}

func TestCompletionOfForgottenLoadIsDiscarded(t *testing.T) {
	world := ecs.NewWorld(ecs.NewComponentRegistry())
	server := asset.NewServer(testFiles, asset.WithWorkers(1))
	defer server.Close()

	release := make(chan struct{})
	meshes := asset.Register(world, server, func(ctx context.Context, lc *asset.LoadContext) (Mesh, error) {
		<-release
		return Mesh{Vertices: 3}, nil
	})
	world.InsertResource(server)
	scheduler := ecs.NewScheduler(world)
	require.NoError(t, scheduler.Register(ecs.Update, asset.TrackSystem[Mesh]))

	h := asset.Load[Mesh](server, "meshes/cube.json")
	h.Drop()
	require.NoError(t, scheduler.Once(0))
	assert.Equal(t, asset.NotLoaded, server.LoadState(h))

	// the single worker finishes loads in order, so once quad is in the stale cube
	// completion has been pumped as well
	quad := asset.Load[Mesh](server, "meshes/quad.json")
	close(release)
	require.Eventually(t, func() bool {
		server.Pump()
		return meshes.Contains(quad.Id())
	}, 2*time.Second, time.Millisecond)
	assert.False(t, meshes.Contains(h.Id()), "no asset appears for a handle nobody holds")
}

func TestLoadDependency(t *testing.T) {
	f := newFixture(t)
	textures := asset.Register(f.world, f.server, func(_ context.Context, lc *asset.LoadContext) (Texture, error) {
		data, err := lc.Read()
		return Texture{Data: data}, err
	})
	materials := asset.Register(f.world, f.server, func(_ context.Context, lc *asset.LoadContext) (Material, error) {
		data, err := lc.Read()
		if err != nil {
			return Material{}, err
		}
		return Material{Shader: string(data), Texture: asset.LoadDependency[Texture](lc, "./stone.png")}, nil
	})

	h := asset.Load[Material](f.server, "materials/stone.mat")
	f.pumpUntil(t, h, asset.Loaded)
	material := materials.Get(h)
	require.NotNil(t, material)
	assert.Equal(t, "lit", material.Shader)
	assert.Equal(t, asset.Path("materials/stone.png"), material.Texture.Path())

	f.pumpUntil(t, material.Texture, asset.Loaded)
	assert.Equal(t, []byte{1, 2, 3}, textures.Get(material.Texture).Data)
}

func TestStoreAdd(t *testing.T) {
	store := asset.NewStore[Mesh]()
	a := store.Add(Mesh{Vertices: 3})
	b := store.Add(Mesh{Vertices: 4})
	assert.NotEqual(t, a.Id(), b.Id())
	assert.Equal(t, asset.Path(""), a.Path())
	assert.Equal(t, 2, store.Len())

	assert.Equal(t, uint64(1), store.Version(a.Id()))
	store.GetMut(a).Vertices = 6
	assert.Equal(t, uint64(2), store.Version(a.Id()))
	assert.Equal(t, 6, store.Get(a).Vertices)

	a.Drop()
	store.Track(nil)
	assert.Equal(t, 1, store.Len())
	assert.Nil(t, store.Get(a))

	ids := 0
	for range store.Ids() {
		ids++
	}
	assert.Equal(t, 1, ids)
	b.Drop()
}

func TestLoadErrorUnwraps(t *testing.T) {
	cause := errors.New("boom")
	err := &asset.LoadError{Path: "a.json", Err: cause}
	assert.ErrorIs(t, err, cause)
}
