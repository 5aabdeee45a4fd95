package anim

import (
	"github.com/plus3/kiln/asset"
	"github.com/plus3/kiln/transform"
	"github.com/rotisserie/eris"
)

// State is one state of a Machine; while active, its graph is sampled.
type State struct {
	Name  string
	Graph *asset.Handle[Graph]
}

// Transition leaves a state for To when Trigger fires, cross-fading at FadeSpeed weight
// per second. A nil Trigger behaves like Instant; FadeSpeed <= 0 switches at once.
type Transition struct {
	To        int
	Trigger   Trigger
	FadeSpeed float32
}

// Machine is the shared description of a state machine. Transitions[i] lists the
// transitions out of state i in priority order.
type Machine struct {
	Initial     int
	States      []State
	Transitions [][]Transition
}

// BlendLayer is a state fading in over the states beneath it.
type BlendLayer struct {
	Target    int
	Weight    float32
	FadeSpeed float32
}

// FSMState is the per-player state of one machine. Current is the state the machine is
// in, which may still be fading in as the top layer; Base is the fully committed state
// sampled beneath the layers.
type FSMState struct {
	Current int
	Base    int
	Layers  []BlendLayer
	// States holds the node state of each state's sub-graph, nil until first advanced.
	States [][]NodeState
}

// Validate checks state and transition indices
func (m *Machine) Validate() error {
	if len(m.States) == 0 {
		return eris.Wrap(ErrInvalidGraph, "state machine has no states")
	}
	if m.Initial < 0 || m.Initial >= len(m.States) {
		return eris.Wrapf(ErrInvalidGraph, "initial state %d out of range", m.Initial)
	}
	if len(m.Transitions) > len(m.States) {
		return eris.Wrapf(ErrInvalidGraph, "%d transition lists for %d states", len(m.Transitions), len(m.States))
	}
	for from, transitions := range m.Transitions {
		for _, tr := range transitions {
			if tr.To < 0 || tr.To >= len(m.States) {
				return eris.Wrapf(ErrInvalidGraph, "transition from %q to %d out of range", m.States[from].Name, tr.To)
			}
		}
	}
	return nil
}

// StateIndex finds a state by name
func (m *Machine) StateIndex(name string) (int, bool) {
	for i, s := range m.States {
		if s.Name == name {
			return i, true
		}
	}
	return -1, false
}

func (m *Machine) newState() *FSMState {
	return &FSMState{
		Current: m.Initial,
		Base:    m.Initial,
		States:  make([][]NodeState, len(m.States)),
	}
}

func (m *Machine) transitionsFrom(state int) []Transition {
	if state < len(m.Transitions) {
		return m.Transitions[state]
	}
	return nil
}

// active reports whether state is being sampled
func (s *FSMState) active(state int) bool {
	if s.Base == state {
		return true
	}
	for _, layer := range s.Layers {
		if layer.Target == state {
			return true
		}
	}
	return false
}

// advancedBefore reports whether the layer at i targets a state already advanced this
// update.
func (s *FSMState) advancedBefore(i int) bool {
	target := s.Layers[i].Target
	if target == s.Base {
		return true
	}
	for _, layer := range s.Layers[:i] {
		if layer.Target == target {
			return true
		}
	}
	return false
}

func (m *Machine) update(e *Evaluator, s *FSMState, dt float32) {
	if len(s.States) != len(m.States) {
		s.States = make([][]NodeState, len(m.States))
	}

	m.advanceState(e, s, s.Base, dt)
	for i := range s.Layers {
		if !s.advancedBefore(i) {
			m.advanceState(e, s, s.Layers[i].Target, dt)
		}
	}

	commit := -1
	for i := range s.Layers {
		layer := &s.Layers[i]
		layer.Weight = min(layer.Weight+layer.FadeSpeed*dt, 1)
		if layer.Weight >= 1 {
			commit = i
		}
	}
	if commit >= 0 {
		s.commit(commit)
	}

	for _, tr := range m.transitionsFrom(s.Current) {
		if tr.Trigger != nil && !tr.Trigger.Fires(e.params) {
			continue
		}
		s.transition(tr)
		break
	}
}

func (m *Machine) advanceState(e *Evaluator, s *FSMState, state int, dt float32) {
	graph := e.graph(m.States[state].Graph)
	if graph == nil {
		return
	}
	e.advance(graph, &s.States[state], dt)
}

func (s *FSMState) transition(tr Transition) {
	if !s.active(tr.To) {
		s.States[tr.To] = nil
	}
	s.Current = tr.To
	if tr.FadeSpeed <= 0 {
		s.Layers = append(s.Layers, BlendLayer{Target: tr.To, Weight: 1})
		s.commit(len(s.Layers) - 1)
		return
	}
	s.Layers = append(s.Layers, BlendLayer{Target: tr.To, FadeSpeed: tr.FadeSpeed})
}

// commit makes layer i the base state. Layers beneath it no longer contribute and are
// dropped with it; states left unsampled are reset.
func (s *FSMState) commit(i int) {
	released := make([]int, 0, i+1)
	released = append(released, s.Base)
	for _, layer := range s.Layers[:i] {
		released = append(released, layer.Target)
	}

	s.Base = s.Layers[i].Target
	s.Layers = append(s.Layers[:0], s.Layers[i+1:]...)
	for _, state := range released {
		if !s.active(state) {
			s.States[state] = nil
		}
	}
}

func (m *Machine) evaluate(e *Evaluator, s *FSMState, target TargetId, base transform.Transform) transform.Transform {
	result := m.sampleState(e, s, s.Base, target, base)
	for _, layer := range s.Layers {
		result = transform.Interpolate(result, m.sampleState(e, s, layer.Target, target, base), layer.Weight)
	}
	return result
}

func (m *Machine) sampleState(e *Evaluator, s *FSMState, state int, target TargetId, base transform.Transform) transform.Transform {
	graph := e.graph(m.States[state].Graph)
	if graph == nil || state >= len(s.States) {
		return base
	}
	return e.evaluate(graph, s.States[state], target, base)
}
