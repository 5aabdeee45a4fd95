package ecs

// worldCell is the handle system inputs use to reach the world. It carries no lock.
//
// Safety rule: every input claims its access through the cell when the system is
// registered, and a claim that conflicts with an earlier claim of the same system is
// rejected. The scheduler only runs systems side by side when their combined accesses
// are compatible. Together these guarantee that no two live inputs alias a component or
// resource that either of them writes, so inputs may hand out raw pointers without
// synchronization. Structural changes are only made by exclusive (WorldMut) systems or by
// command application, both of which run with no other system live.
type worldCell struct {
	world  *World
	system string
	access *Access
	params []string
	claims []*Access
}

func newWorldCell(w *World, system string) *worldCell {
	return &worldCell{
		world:  w,
		system: system,
		access: newAccess(),
	}
}

// claim records a as used by the named input, failing if it aliases an earlier input.
func (c *worldCell) claim(a *Access, param string) error {
	for i, prior := range c.claims {
		if !prior.Compatible(a) {
			return c.world.conflictError(c.system+"."+c.params[i], c.system+"."+param, prior, a)
		}
	}
	c.params = append(c.params, param)
	c.claims = append(c.claims, a)
	c.access.extend(a)
	return nil
}

// systemParam is implemented by every input kind a system can declare.
type systemParam interface {
	initParam(cell *worldCell) error
}

// paramApplier is implemented by inputs that need exclusive world access after the
// system ran, such as command queues.
type paramApplier interface {
	applyParam(w *World)
}

// Local is per-system state that persists across runs and declares no access.
type Local[T any] struct {
	value T
}

func (l *Local[T]) initParam(*worldCell) error { return nil }

// Get returns the system's private value
func (l *Local[T]) Get() *T {
	return &l.value
}

// WorldMut is an exclusive system input: the system runs alone and may change the world
// structure directly.
type WorldMut struct {
	*World
}

func (w *WorldMut) initParam(cell *worldCell) error {
	w.World = cell.world
	access := newAccess()
	access.writesAll = true
	return cell.claim(access, "WorldMut")
}

// WorldRef is a read-only view of the whole world. It conflicts with any writer.
type WorldRef struct {
	*World
}

func (w *WorldRef) initParam(cell *worldCell) error {
	w.World = cell.world
	access := newAccess()
	access.readsAll = true
	return cell.claim(access, "WorldRef")
}
