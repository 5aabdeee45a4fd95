package ecs_test

import (
	"reflect"
	"testing"

	"github.com/plus3/kiln/ecs"
)

func BenchmarkSpawn(b *testing.B) {
	world := newTestWorld()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		world.Spawn(Position{X: 1.0, Y: 2.0}, Velocity{DX: 0.5, DY: 0.5})
	}
}

func BenchmarkSpawnWithMultipleComponents(b *testing.B) {
	world := newTestWorld()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		world.Spawn(
			Position{X: 1.0, Y: 2.0},
			Velocity{DX: 0.5, DY: 0.5},
			Health{Current: 100, Max: 100},
			Name{Value: "Entity"},
		)
	}
}

func BenchmarkDespawn(b *testing.B) {
	world := newTestWorld()

	ids := make([]ecs.EntityId, b.N)
	for i := 0; i < b.N; i++ {
		ids[i] = world.Spawn(Position{X: 1.0, Y: 2.0}, Velocity{DX: 0.5, DY: 0.5})
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		world.Despawn(ids[i])
	}
}

func BenchmarkGetComponent(b *testing.B) {
	world := newTestWorld()
	id := world.Spawn(Position{X: 1.0, Y: 2.0}, Velocity{DX: 0.5, DY: 0.5})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = ecs.GetComponent[Position](world, id)
	}
}

func BenchmarkInsertComponent(b *testing.B) {
	world := newTestWorld()

	ids := make([]ecs.EntityId, b.N)
	for i := 0; i < b.N; i++ {
		ids[i] = world.Spawn(Position{X: 1.0, Y: 2.0})
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		world.Insert(ids[i], Velocity{DX: 0.5, DY: 0.5})
	}
}

func BenchmarkRemoveComponent(b *testing.B) {
	world := newTestWorld()

	ids := make([]ecs.EntityId, b.N)
	for i := 0; i < b.N; i++ {
		ids[i] = world.Spawn(Position{X: 1.0, Y: 2.0}, Velocity{DX: 0.5, DY: 0.5})
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		world.Remove(ids[i], reflect.TypeOf(Velocity{}))
	}
}

func BenchmarkQueryGet(b *testing.B) {
	world := newTestWorld()

	type PosVel struct {
		*Position
		*Velocity
	}

	query := ecs.NewQuery[PosVel](world)
	id := world.Spawn(Position{X: 1.0, Y: 2.0}, Velocity{DX: 0.5, DY: 0.5})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = query.Get(id)
	}
}

func BenchmarkQueryIter(b *testing.B) {
	world := newTestWorld()

	type PosVel struct {
		*Position
		*Velocity
	}

	for i := 0; i < 1000; i++ {
		world.Spawn(Position{X: float32(i), Y: float32(i)}, Velocity{DX: 0.5, DY: 0.5})
	}

	query := ecs.NewQuery[PosVel](world)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, pv := range query.Iter() {
			_ = pv
		}
	}
}

func BenchmarkQueryIterLarge(b *testing.B) {
	world := newTestWorld()

	type PosVel struct {
		Pos ecs.Mut[Position]
		Vel *Velocity
	}

	for i := 0; i < 10000; i++ {
		world.Spawn(Position{X: float32(i), Y: float32(i)}, Velocity{DX: 0.5, DY: 0.5})
	}

	query := ecs.NewQuery[PosVel](world)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, pv := range query.Iter() {
			pv.Pos.Get().X += pv.Vel.DX
		}
	}
}

func BenchmarkQueryChangedFilter(b *testing.B) {
	world := newTestWorld()

	type dirty struct {
		Pos *Position
		_   ecs.Changed[Position]
	}

	for i := 0; i < 10000; i++ {
		e := world.Spawn(Position{X: float32(i)})
		if i%10 == 0 {
			ecs.GetComponentMut[Position](world, e)
		}
	}

	query := ecs.NewQuery[dirty](world)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for pv := range query.Values() {
			_ = pv
		}
	}
}

func BenchmarkMixedOperations(b *testing.B) {
	world := newTestWorld()

	type PosVel struct {
		*Position
		*Velocity
	}

	query := ecs.NewQuery[PosVel](world)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		id := world.Spawn(Position{X: 1.0, Y: 2.0}, Velocity{DX: 0.5, DY: 0.5})
		_ = ecs.GetComponent[Position](world, id)
		world.Insert(id, Health{Current: 100, Max: 100})
		_, _ = query.Get(id)
		world.Despawn(id)
	}
}

type benchMovementSystem struct {
	Entities ecs.Query[struct {
		Pos ecs.Mut[Position]
		Vel *Velocity
	}]
}

func (s *benchMovementSystem) Execute(frame *ecs.UpdateFrame) {
	for item := range s.Entities.Values() {
		pos := item.Pos.Get()
		pos.X += item.Vel.DX * float32(frame.DeltaTime)
		pos.Y += item.Vel.DY * float32(frame.DeltaTime)
	}
}

type benchHealthSystem struct {
	Entities ecs.Query[struct {
		Health ecs.Mut[Health]
	}]
}

func (s *benchHealthSystem) Execute(frame *ecs.UpdateFrame) {
	for item := range s.Entities.Values() {
		if hp := item.Health.Peek(); hp.Current < hp.Max {
			item.Health.Get().Current++
		}
	}
}

func BenchmarkSchedulerOnce(b *testing.B) {
	world := newTestWorld()

	for i := 0; i < 1000; i++ {
		world.Spawn(Position{X: float32(i), Y: float32(i)}, Velocity{DX: 0.5, DY: 0.5})
	}

	scheduler := ecs.NewScheduler(world)
	if err := scheduler.Register(ecs.Update, &benchMovementSystem{}); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = scheduler.Once(0.016)
	}
}

func BenchmarkSchedulerParallelSystems(b *testing.B) {
	world := newTestWorld()

	for i := 0; i < 1000; i++ {
		world.Spawn(Position{X: float32(i), Y: float32(i)}, Velocity{DX: 0.5, DY: 0.5}, Health{Current: 50, Max: 100})
	}

	scheduler := ecs.NewScheduler(world)
	if err := scheduler.RegisterParallel(ecs.Update, &benchMovementSystem{}, &benchHealthSystem{}); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = scheduler.Once(0.016)
	}
}
