package main

import (
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/plus3/kiln/anim"
	"github.com/plus3/kiln/app"
	"github.com/plus3/kiln/asset"
	"github.com/plus3/kiln/ecs"
	"github.com/plus3/kiln/transform"
	"github.com/rotisserie/eris"
)

type Velocity struct {
	Linear mgl32.Vec3
}

type Spin struct {
	Axis mgl32.Vec3
	Rate float32
}

type Lifetime struct {
	Remaining float64
}

var bobTarget = anim.TargetIdFromName("bob")

// spawner creates entities with a random mix of components and replaces the ones that
// expire, so archetype membership keeps churning.
type spawner struct {
	rng       *rand.Rand
	initial   int
	animated  float64
	graph     *asset.Handle[anim.Graph]
	spawned   int
	despawned int
}

// entitySink is either the world or a command buffer
type entitySink struct {
	spawn  func(components ...any) ecs.EntityId
	insert func(e ecs.EntityId, component any)
}

func (s *spawner) spawnOne(sink entitySink) {
	s.spawned++
	pos := transform.FromTranslation(mgl32.Vec3{s.rng.Float32() * 100, s.rng.Float32() * 100, 0})
	life := Lifetime{Remaining: 1 + s.rng.Float64()*4}

	if s.graph != nil && s.rng.Float64() < s.animated {
		e := sink.spawn(pos, life, anim.NewAnimationPlayer(s.graph.Clone()))
		sink.insert(e, anim.AnimationTarget{Id: bobTarget, Player: e})
		return
	}

	components := []any{pos, life}
	if s.rng.IntN(2) == 0 {
		components = append(components, Velocity{Linear: mgl32.Vec3{s.rng.Float32() - 0.5, s.rng.Float32() - 0.5, 0}.Mul(10)})
	}
	if s.rng.IntN(3) == 0 {
		components = append(components, Spin{Axis: mgl32.Vec3{0, 0, 1}, Rate: s.rng.Float32() * 6})
	}
	sink.spawn(components...)
}

type stressPlugin struct {
	rng      *rand.Rand
	entities int
	animated float64
}

func (p *stressPlugin) Build(a *app.App) error {
	app.RegisterComponent[Velocity](a)
	app.RegisterComponent[Spin](a)
	app.RegisterComponent[Lifetime](a)

	a.InsertResource(&spawner{rng: p.rng, initial: p.entities, animated: p.animated})

	if err := a.AddSystems(ecs.Startup, populateSystem); err != nil {
		return err
	}
	if err := a.AddSystems(ecs.FixedUpdate, moveSystem, spinSystem); err != nil {
		return err
	}
	return a.AddSystems(ecs.Update, expireSystem)
}

// bobGraph builds a one clip graph moving bobTarget up and down once a second.
func bobGraph(clips *asset.Store[anim.Clip], graphs *asset.Store[anim.Graph]) (*asset.Handle[anim.Graph], error) {
	clip := clips.Add(anim.Clip{Curves: map[anim.TargetId][]anim.Channel{
		bobTarget: {{
			Property: anim.Translation,
			Times:    []float32{0, 0.5, 1},
			Vec3s:    []mgl32.Vec3{{0, 0, 0}, {0, 1, 0}, {0, 0, 0}},
		}},
	}})
	g, err := anim.NewGraph([]anim.Node{&anim.RootNode{}, anim.NewClipNode(clip)}, [][]anim.NodeIndex{{1}}, 0)
	if err != nil {
		return nil, eris.Wrap(err, "build bob graph")
	}
	return graphs.Add(g), nil
}

func populateSystem(w *ecs.WorldMut) error {
	s := ecs.GetResourceMut[spawner](w.World)
	clips := ecs.GetResourceMut[asset.Store[anim.Clip]](w.World)
	graphs := ecs.GetResourceMut[asset.Store[anim.Graph]](w.World)
	if clips != nil && graphs != nil {
		graph, err := bobGraph(clips, graphs)
		if err != nil {
			return err
		}
		s.graph = graph
	}

	sink := entitySink{
		spawn:  w.Spawn,
		insert: func(e ecs.EntityId, component any) { w.Insert(e, component) },
	}
	for range s.initial {
		s.spawnOne(sink)
	}
	return nil
}

func moveSystem(frame *ecs.UpdateFrame, movers *ecs.Query[struct {
	Transform ecs.Mut[transform.Transform]
	Velocity  *Velocity
}]) {
	dt := float32(frame.DeltaTime)
	for m := range movers.Values() {
		t := m.Transform.Get()
		t.Translation = t.Translation.Add(m.Velocity.Linear.Mul(dt))
	}
}

func spinSystem(frame *ecs.UpdateFrame, spinners *ecs.Query[struct {
	Transform ecs.Mut[transform.Transform]
	Spin      *Spin
}]) {
	dt := float32(frame.DeltaTime)
	for s := range spinners.Values() {
		t := s.Transform.Get()
		t.Rotation = mgl32.QuatRotate(s.Spin.Rate*dt, s.Spin.Axis).Mul(t.Rotation).Normalize()
	}
}

func expireSystem(frame *ecs.UpdateFrame, lives *ecs.Query[struct {
	Entity ecs.EntityId
	Life   ecs.Mut[Lifetime]
}], spawns *ecs.ResMut[spawner]) {
	s := spawns.Get()
	sink := entitySink{spawn: frame.Commands.Spawn, insert: frame.Commands.Insert}

	for item := range lives.Values() {
		life := item.Life.Get()
		life.Remaining -= frame.DeltaTime
		if life.Remaining > 0 {
			continue
		}
		frame.Commands.Despawn(item.Entity)
		s.despawned++
		s.spawnOne(sink)
	}
}
