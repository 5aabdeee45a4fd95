// Package anim samples animation clips through a graph of clip, blend and state machine
// nodes and writes the result to the Transform of every animation target.
package anim

import (
	"github.com/google/uuid"
	"github.com/plus3/kiln/ecs"
)

// TargetId names a bone or node animated by a clip. It is stable across scenes so a
// clip authored against a skeleton finds the same bones in every instance.
type TargetId uuid.UUID

var targetNamespace = uuid.MustParse("6f1c3a52-58d4-4c1e-9a5e-0d6b8a1f2c77")

// TargetIdFromName derives the id of a named bone.
func TargetIdFromName(name string) TargetId {
	return TargetId(uuid.NewSHA1(targetNamespace, []byte(name)))
}

func (id TargetId) String() string {
	return uuid.UUID(id).String()
}

// MarshalText encodes the id in its canonical uuid form
func (id TargetId) MarshalText() ([]byte, error) {
	return uuid.UUID(id).MarshalText()
}

// UnmarshalText accepts a uuid or, for anything that does not parse as one, the bone
// name the id is derived from.
func (id *TargetId) UnmarshalText(data []byte) error {
	parsed, err := uuid.ParseBytes(data)
	if err != nil {
		*id = TargetIdFromName(string(data))
		return nil
	}
	*id = TargetId(parsed)
	return nil
}

// AnimationTarget marks an entity whose Transform is driven by the AnimationPlayer on
// Player.
type AnimationTarget struct {
	Id     TargetId
	Player ecs.EntityId
}
