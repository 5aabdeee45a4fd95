package anim

import (
	"github.com/plus3/kiln/app"
	"github.com/plus3/kiln/ecs"
	"github.com/plus3/kiln/transform"
)

// Plugin registers the animation components, the clip and graph asset types with their
// JSON loaders, and the systems that advance players and pose their targets in Update.
type Plugin struct{}

func (Plugin) Build(a *app.App) error {
	transform.Register(a.Registry())
	app.RegisterComponent[AnimationTarget](a)
	app.RegisterComponentLifecycle[AnimationPlayer](a, ecs.ComponentHooks{
		OnRemove: func(w *ecs.World, e ecs.EntityId) {
			if p := ecs.GetComponent[AnimationPlayer](w, e); p != nil && p.Graph != nil {
				p.Graph.Drop()
			}
		},
	})

	if _, err := app.RegisterAsset[Clip](a, LoadClip); err != nil {
		return err
	}
	if _, err := app.RegisterAsset[Graph](a, LoadGraph); err != nil {
		return err
	}
	return a.AddSystems(ecs.Update, AdvancePlayersSystem, ApplyAnimationSystem)
}
