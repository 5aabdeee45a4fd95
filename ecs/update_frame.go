package ecs

// UpdateFrame is passed to every system run. Commands is the running system's own
// buffer, applied as soon as the system returns. World must only be written through
// by systems that declared exclusive access (WorldMut).
type UpdateFrame struct {
	DeltaTime float64
	Tick      Tick
	Stage     Stage
	Commands  *Commands
	World     *World
}
