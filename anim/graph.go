package anim

import (
	"fmt"
	"math"

	"github.com/plus3/kiln/asset"
	"github.com/plus3/kiln/transform"
	"github.com/rotisserie/eris"
)

// ErrInvalidGraph is the cause of every graph validation failure.
var ErrInvalidGraph = eris.New("invalid animation graph")

// NodeIndex addresses a node within its graph.
type NodeIndex int

// NodeKind names a node variant
type NodeKind string

const (
	KindRoot  NodeKind = "root"
	KindClip  NodeKind = "clip"
	KindBlend NodeKind = "blend"
	KindFSM   NodeKind = "fsm"
)

// Node is one step of a graph. Each node consumes the outputs of its inputs, in the
// order the graph declares them, and produces one transform per target.
type Node interface {
	Kind() NodeKind

	accepts(inputs int) bool
	initState() NodeState
	update(e *Evaluator, state *NodeState, dt float32)
	evaluate(e *Evaluator, state *NodeState, target TargetId, base transform.Transform, inputs []transform.Transform) transform.Transform
}

// Graph is a tree of nodes evaluated children first. Inputs[i] lists the nodes feeding
// node i; a node feeds at most one other node.
type Graph struct {
	Nodes  []Node
	Inputs [][]NodeIndex
	Root   NodeIndex

	order []NodeIndex
}

// NewGraph builds and validates a graph.
func NewGraph(nodes []Node, inputs [][]NodeIndex, root NodeIndex) (Graph, error) {
	g := Graph{Nodes: nodes, Inputs: inputs, Root: root}
	if err := g.Validate(); err != nil {
		return Graph{}, err
	}
	return g, nil
}

// InputsOf returns the nodes feeding i
func (g *Graph) InputsOf(i NodeIndex) []NodeIndex {
	if int(i) < len(g.Inputs) {
		return g.Inputs[i]
	}
	return nil
}

// Validate checks node indices, input counts, the root kind and that the nodes form a
// forest, then caches the evaluation order.
func (g *Graph) Validate() error {
	order, err := g.check()
	g.order = order
	return err
}

// check validates g without touching it and returns the evaluation order.
func (g *Graph) check() ([]NodeIndex, error) {
	n := len(g.Nodes)
	if n == 0 {
		return nil, eris.Wrap(ErrInvalidGraph, "graph has no nodes")
	}
	if len(g.Inputs) > n {
		return nil, eris.Wrapf(ErrInvalidGraph, "%d input lists for %d nodes", len(g.Inputs), n)
	}
	if g.Root < 0 || int(g.Root) >= n {
		return nil, eris.Wrapf(ErrInvalidGraph, "root %d out of range", g.Root)
	}
	if _, ok := g.Nodes[g.Root].(*RootNode); !ok {
		return nil, eris.Wrapf(ErrInvalidGraph, "root %d is a %s node", g.Root, kindOf(g.Nodes[g.Root]))
	}

	parent := make([]NodeIndex, n)
	for i := range parent {
		parent[i] = -1
	}
	for i, node := range g.Nodes {
		if node == nil {
			return nil, eris.Wrapf(ErrInvalidGraph, "node %d is nil", i)
		}
		inputs := g.InputsOf(NodeIndex(i))
		if !node.accepts(len(inputs)) {
			return nil, eris.Wrapf(ErrInvalidGraph, "%s node %d cannot take %d inputs", node.Kind(), i, len(inputs))
		}
		for _, in := range inputs {
			if in < 0 || int(in) >= n {
				return nil, eris.Wrapf(ErrInvalidGraph, "node %d input %d out of range", i, in)
			}
			if in == g.Root {
				return nil, eris.Wrapf(ErrInvalidGraph, "root %d feeds node %d", in, i)
			}
			if parent[in] >= 0 {
				return nil, eris.Wrapf(ErrInvalidGraph, "node %d feeds both %d and %d", in, parent[in], i)
			}
			parent[in] = NodeIndex(i)
		}
		if fsm, ok := node.(*FSMNode); ok {
			if err := fsm.Machine.Validate(); err != nil {
				return nil, eris.Wrapf(err, "node %d", i)
			}
		}
	}

	// with one parent per node, a cycle is a chain of parents that never ends
	for i := range g.Nodes {
		steps := 0
		for at := NodeIndex(i); parent[at] >= 0; at = parent[at] {
			if steps++; steps > n {
				return nil, eris.Wrapf(ErrInvalidGraph, "node %d is on a cycle", i)
			}
		}
	}

	order := make([]NodeIndex, 0, n)
	var visit func(NodeIndex)
	visit = func(i NodeIndex) {
		for _, in := range g.InputsOf(i) {
			visit(in)
		}
		order = append(order, i)
	}
	visit(g.Root)
	return order, nil
}

// Order returns the post-order of the nodes reachable from the root. Graphs built by
// NewGraph or the loader carry a cached order; any other graph is checked on every call
// without being modified.
func (g *Graph) Order() ([]NodeIndex, error) {
	if g.order != nil {
		return g.order, nil
	}
	return g.check()
}

func (g *Graph) newStates() []NodeState {
	states := make([]NodeState, len(g.Nodes))
	for i, node := range g.Nodes {
		states[i] = node.initState()
	}
	return states
}

func kindOf(node Node) string {
	if node == nil {
		return "nil"
	}
	return string(node.Kind())
}

// RootNode passes its single input through, or the target's current transform when it
// has none.
type RootNode struct{}

func (*RootNode) Kind() NodeKind { return KindRoot }
func (*RootNode) accepts(inputs int) bool { return inputs <= 1 }
func (*RootNode) initState() NodeState { return NodeState{} }
func (*RootNode) update(*Evaluator, *NodeState, float32) {}

func (*RootNode) evaluate(_ *Evaluator, _ *NodeState, _ TargetId, base transform.Transform, inputs []transform.Transform) transform.Transform {
	if len(inputs) == 1 {
		return inputs[0]
	}
	return base
}

// ClipNode plays a clip. Its time lives in the player's state for this node and moves
// at Speed times the player's rate, wrapping when Loop is set and holding at either end
// otherwise.
type ClipNode struct {
	Clip  *asset.Handle[Clip]
	Loop  bool
	Speed float32
}

// NewClipNode returns a looping clip node at normal speed
func NewClipNode(clip *asset.Handle[Clip]) *ClipNode {
	return &ClipNode{Clip: clip, Loop: true, Speed: 1}
}

func (*ClipNode) Kind() NodeKind { return KindClip }
func (*ClipNode) accepts(inputs int) bool { return inputs == 0 }
func (*ClipNode) initState() NodeState { return NodeState{} }

func (n *ClipNode) update(e *Evaluator, state *NodeState, dt float32) {
	clip := e.clip(n.Clip)
	if clip == nil {
		return
	}
	duration := clip.Duration()
	t := state.Time + dt*n.Speed
	switch {
	case n.Loop && duration > 0:
		t = float32(math.Mod(float64(t), float64(duration)))
		if t < 0 {
			t += duration
		}
	case t < 0:
		t = 0
	case t > duration:
		t = duration
	}
	state.Time = t
}

func (n *ClipNode) evaluate(e *Evaluator, state *NodeState, target TargetId, base transform.Transform, _ []transform.Transform) transform.Transform {
	clip := e.clip(n.Clip)
	if clip == nil {
		return base
	}
	out, _ := clip.Sample(target, state.Time, base)
	return out
}

// BlendNode interpolates from its first input toward its second by the weight kept in
// the player's state for this node. Weight is the initial value.
type BlendNode struct {
	Weight float32
}

func (*BlendNode) Kind() NodeKind { return KindBlend }
func (*BlendNode) accepts(inputs int) bool { return inputs == 2 }
func (n *BlendNode) initState() NodeState { return NodeState{Weight: n.Weight} }
func (*BlendNode) update(*Evaluator, *NodeState, float32) {}

func (*BlendNode) evaluate(_ *Evaluator, state *NodeState, _ TargetId, _ transform.Transform, inputs []transform.Transform) transform.Transform {
	return transform.Interpolate(inputs[0], inputs[1], state.Weight)
}

// FSMNode samples the sub-graph of the machine's current state, cross-fading into the
// states it transitions to.
type FSMNode struct {
	Machine Machine
}

func (*FSMNode) Kind() NodeKind { return KindFSM }
func (*FSMNode) accepts(inputs int) bool { return inputs == 0 }

func (n *FSMNode) initState() NodeState {
	return NodeState{FSM: n.Machine.newState()}
}

func (n *FSMNode) update(e *Evaluator, state *NodeState, dt float32) {
	if state.FSM == nil {
		state.FSM = n.Machine.newState()
	}
	n.Machine.update(e, state.FSM, dt)
}

func (n *FSMNode) evaluate(e *Evaluator, state *NodeState, target TargetId, base transform.Transform, _ []transform.Transform) transform.Transform {
	if state.FSM == nil {
		return base
	}
	return n.Machine.evaluate(e, state.FSM, target, base)
}

func (n *FSMNode) String() string {
	return fmt.Sprintf("fsm(%d states)", len(n.Machine.States))
}
