package ecs_test

import (
	"reflect"
	"testing"

	"github.com/plus3/kiln/ecs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResources(t *testing.T) {
	world := newTestWorld()
	assert.False(t, ecs.HasResource[Gravity](world))
	assert.Nil(t, ecs.GetResource[Gravity](world))

	world.InsertResource(Gravity{Y: -9.8})
	gravity := ecs.GetResource[Gravity](world)
	require.NotNil(t, gravity)
	assert.Equal(t, float32(-9.8), gravity.Y)

	t.Run("overwrite keeps the allocation", func(t *testing.T) {
		world.Tick()
		world.InsertResource(Gravity{Y: -1})
		assert.Same(t, gravity, ecs.GetResource[Gravity](world))
		assert.Equal(t, float32(-1), gravity.Y)

		added, changed, ok := ecs.ResourceTicks[Gravity](world)
		require.True(t, ok)
		assert.Equal(t, ecs.Tick(1), added)
		assert.Equal(t, world.CurrentTick(), changed)
	})

	t.Run("pointers are stored as-is", func(t *testing.T) {
		counter := &Counter{Value: 7}
		world.InsertResource(counter)
		assert.Same(t, counter, ecs.GetResource[Counter](world))
	})

	t.Run("remove returns the last value", func(t *testing.T) {
		value, ok := ecs.RemoveResource[Gravity](world)
		require.True(t, ok)
		assert.Equal(t, float32(-1), value.Y)
		assert.False(t, ecs.HasResource[Gravity](world))

		_, ok = ecs.RemoveResource[Gravity](world)
		assert.False(t, ok)
	})
}

func TestInitResourceKeepsExisting(t *testing.T) {
	world := newTestWorld()
	ecs.InsertResourceValue(world, Counter{Value: 3})

	assert.Equal(t, 3, ecs.InitResource[Counter](world).Value)
	assert.Equal(t, Gravity{}, *ecs.InitResource[Gravity](world))
	assert.True(t, ecs.HasResource[Gravity](world))
}

func TestGetResourceMutMarksChanged(t *testing.T) {
	world := newTestWorld()
	ecs.InsertResourceValue(world, Counter{})
	world.Tick()

	_, changed, _ := ecs.ResourceTicks[Counter](world)
	assert.NotEqual(t, world.CurrentTick(), changed)

	ecs.GetResourceMut[Counter](world).Value++
	_, changed, _ = ecs.ResourceTicks[Counter](world)
	assert.Equal(t, world.CurrentTick(), changed)
}

func TestWorldResourcesIterator(t *testing.T) {
	world := newTestWorld()
	world.InsertResource(Gravity{})
	world.InsertResource(Counter{})
	ecs.RemoveResource[Gravity](world)

	var types []reflect.Type
	for typ, value := range world.Resources() {
		types = append(types, typ)
		assert.Equal(t, reflect.PointerTo(typ), reflect.TypeOf(value))
	}
	assert.Equal(t, []reflect.Type{reflect.TypeFor[Counter]()}, types)
}
