package anim

import (
	"github.com/plus3/kiln/asset"
	"github.com/plus3/kiln/ecs"
	"github.com/plus3/kiln/transform"
)

type playerItem struct {
	Player ecs.Mut[AnimationPlayer]
}

type playerRef struct {
	Player *AnimationPlayer
}

type targetItem struct {
	Target    *AnimationTarget
	Transform ecs.Mut[transform.Transform]
}

// AdvancePlayersSystem moves every unpaused player forward by the frame time.
func AdvancePlayersSystem(
	frame *ecs.UpdateFrame,
	players *ecs.Query[playerItem],
	clips *ecs.Res[asset.Store[Clip]],
	graphs *ecs.Res[asset.Store[Graph]],
	evaluator *ecs.Local[Evaluator],
) {
	e := evaluator.Get()
	e.bind(clips.Get(), graphs.Get())

	dt := float32(frame.DeltaTime)
	for item := range players.Values() {
		if item.Player.Peek().Paused {
			continue
		}
		e.Advance(item.Player.Get(), dt)
	}
}

// ApplyAnimationSystem samples each target's player and writes the result to the
// target's Transform. Targets whose player is gone or not yet loaded are left alone.
func ApplyAnimationSystem(
	targets *ecs.Query[targetItem],
	players *ecs.Query[playerRef],
	clips *ecs.Res[asset.Store[Clip]],
	graphs *ecs.Res[asset.Store[Graph]],
	evaluator *ecs.Local[Evaluator],
) {
	e := evaluator.Get()
	e.bind(clips.Get(), graphs.Get())

	for item := range targets.Values() {
		player, ok := players.Get(item.Target.Player)
		if !ok {
			continue
		}
		current := *item.Transform.Peek()
		if sampled := e.Sample(player.Player, item.Target.Id, current); sampled != current {
			item.Transform.Set(sampled)
		}
	}
}
