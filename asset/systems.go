package asset

import (
	"reflect"

	"github.com/plus3/kiln/ecs"
)

// PumpSystem moves finished loads into their stores. It takes the whole world because
// a pump may write any registered store.
func PumpSystem(w *ecs.WorldMut) {
	server := ecs.GetResource[Server](w.World)
	if server == nil {
		return
	}
	server.Pump()
}

// TrackSystem applies handle lifetime events for assets of type A, removing every asset
// whose last handle was dropped.
func TrackSystem[A any](store *ecs.ResMut[Store[A]], server *ecs.Res[Server]) {
	s := store.Peek()
	if s == nil {
		return
	}
	srv := server.Get()
	typ := reflect.TypeFor[A]()

	released := s.Track(func(id Id) {
		if srv != nil {
			srv.forget(typ, id)
		}
	})
	if len(released) > 0 {
		store.Get()
	}
}
