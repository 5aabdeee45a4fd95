package anim

import (
	"github.com/plus3/kiln/asset"
)

// NodeState is the per-player state of one graph node: playback time for clips, the
// current weight for blends, the machine state for FSM nodes.
type NodeState struct {
	Time   float32
	Weight float32
	FSM    *FSMState
}

// AnimationPlayer plays a graph on an entity. Targets point at the player entity through
// AnimationTarget. The graph is shared; everything the player changes while playing
// lives in Params and States, which are sized from the graph on the first update.
//
// Removing the component drops its graph handle. Inserting a new player over an existing
// one fires no hook, so the old handle is only released when it is collected; switch
// graphs on a live player with Play instead.
type AnimationPlayer struct {
	Graph  *asset.Handle[Graph]
	Speed  float32
	Paused bool
	Params Params
	States []NodeState

	prepared asset.Id
}

// NewAnimationPlayer returns a player running graph at normal speed
func NewAnimationPlayer(graph *asset.Handle[Graph]) AnimationPlayer {
	return AnimationPlayer{
		Graph:  graph,
		Speed:  1,
		Params: Params{},
	}
}

// Play switches to graph, dropping the previous handle and its state.
func (p *AnimationPlayer) Play(graph *asset.Handle[Graph]) {
	if p.Graph != nil && p.Graph != graph {
		p.Graph.Drop()
	}
	p.Graph = graph
	p.Reset()
}

// Reset restarts the graph from its initial state
func (p *AnimationPlayer) Reset() {
	p.States = nil
	p.prepared = 0
}

// SetParam sets a state machine parameter
func (p *AnimationPlayer) SetParam(name string, value Value) {
	if p.Params == nil {
		p.Params = Params{}
	}
	p.Params[name] = value
}

// Param returns a state machine parameter
func (p *AnimationPlayer) Param(name string) (Value, bool) {
	v, ok := p.Params[name]
	return v, ok
}

// NodeState returns the state of node, or nil before the player's first update.
func (p *AnimationPlayer) NodeState(node NodeIndex) *NodeState {
	if node < 0 || int(node) >= len(p.States) {
		return nil
	}
	return &p.States[node]
}

// SetBlendWeight sets the weight of a blend node, clamped to [0, 1]. It reports false
// when the node has no state yet.
func (p *AnimationPlayer) SetBlendWeight(node NodeIndex, weight float32) bool {
	s := p.NodeState(node)
	if s == nil {
		return false
	}
	s.Weight = max(0, min(weight, 1))
	return true
}

// FSMState returns the machine state of an FSM node, or nil
func (p *AnimationPlayer) FSMState(node NodeIndex) *FSMState {
	if s := p.NodeState(node); s != nil {
		return s.FSM
	}
	return nil
}
