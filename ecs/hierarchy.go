package ecs

import "slices"

// Children lists the direct children of an entity, in the order they were added.
type Children struct {
	Entities []EntityId
}

// ChildOf points at an entity's parent.
type ChildOf struct {
	Parent EntityId
}

func registerHierarchy(registry *ComponentRegistry) {
	SetComponentHooks[Children](registry, ComponentHooks{
		OnRemove: func(w *World, e EntityId) {
			children := GetComponent[Children](w, e)
			if children == nil {
				return
			}
			for _, child := range slices.Clone(children.Entities) {
				RemoveComponent[ChildOf](w, child)
			}
		},
	})
	SetComponentHooks[ChildOf](registry, ComponentHooks{
		OnRemove: func(w *World, e EntityId) {
			if link := GetComponent[ChildOf](w, e); link != nil {
				detachChild(w, link.Parent, e)
			}
		},
	})
}

// AddChild makes child a child of parent, detaching it from any previous parent.
// Returns false when either entity is not alive, they are the same entity, or child is
// an ancestor of parent.
func (w *World) AddChild(parent EntityId, child EntityId) bool {
	if parent == child || !w.Contains(parent) || !w.Contains(child) {
		return false
	}
	if w.isAncestor(child, parent) {
		return false
	}

	if link := GetComponent[ChildOf](w, child); link != nil {
		if link.Parent == parent {
			return true
		}
		detachChild(w, link.Parent, child)
	}
	w.Insert(child, ChildOf{Parent: parent})

	if children := GetComponentMut[Children](w, parent); children != nil {
		children.Entities = append(children.Entities, child)
		return true
	}
	w.Insert(parent, Children{Entities: []EntityId{child}})
	return true
}

// RemoveParent detaches child from its parent, keeping both entities alive.
func (w *World) RemoveParent(child EntityId) bool {
	return RemoveComponent[ChildOf](w, child)
}

// Parent returns child's parent, if any
func (w *World) Parent(child EntityId) (EntityId, bool) {
	link := GetComponent[ChildOf](w, child)
	if link == nil {
		return 0, false
	}
	return link.Parent, true
}

// isAncestor walks the ChildOf chain up from e looking for ancestor.
func (w *World) isAncestor(ancestor EntityId, e EntityId) bool {
	for {
		link := GetComponent[ChildOf](w, e)
		if link == nil {
			return false
		}
		if link.Parent == ancestor {
			return true
		}
		e = link.Parent
	}
}

func detachChild(w *World, parent EntityId, child EntityId) {
	children := GetComponentMut[Children](w, parent)
	if children == nil {
		return
	}
	children.Entities = slices.DeleteFunc(children.Entities, func(e EntityId) bool { return e == child })
}
