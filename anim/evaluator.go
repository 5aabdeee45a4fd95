package anim

import (
	"github.com/plus3/kiln/asset"
	"github.com/plus3/kiln/transform"
)

// maxGraphDepth bounds how deeply state machines may nest sub-graphs; a graph that
// reaches itself through its states stops there.
const maxGraphDepth = 16

// Evaluator advances players and samples their graphs against the loaded clips and
// graphs. It keeps its scratch stack between calls and is not safe for concurrent use.
type Evaluator struct {
	clips  *asset.Store[Clip]
	graphs *asset.Store[Graph]
	params Params
	stack  []transform.Transform
	depth  int
}

// NewEvaluator creates an evaluator over the given stores
func NewEvaluator(clips *asset.Store[Clip], graphs *asset.Store[Graph]) *Evaluator {
	e := &Evaluator{}
	e.bind(clips, graphs)
	return e
}

func (e *Evaluator) bind(clips *asset.Store[Clip], graphs *asset.Store[Graph]) {
	e.clips = clips
	e.graphs = graphs
	e.stack = e.stack[:0]
	e.depth = 0
}

func (e *Evaluator) clip(h *asset.Handle[Clip]) *Clip {
	if e.clips == nil || h == nil {
		return nil
	}
	return e.clips.Get(h)
}

// graph returns the loaded graph behind h if it is valid
func (e *Evaluator) graph(h *asset.Handle[Graph]) *Graph {
	if e.graphs == nil || h == nil {
		return nil
	}
	g := e.graphs.Get(h)
	if g == nil {
		return nil
	}
	if _, err := g.Order(); err != nil {
		return nil
	}
	return g
}

// Prepare sizes the player's node states for its graph and returns the graph, or nil
// while the graph is not loaded.
func (e *Evaluator) Prepare(p *AnimationPlayer) *Graph {
	g := e.graph(p.Graph)
	if g == nil {
		return nil
	}
	if p.prepared != p.Graph.Id() || len(p.States) != len(g.Nodes) {
		p.States = g.newStates()
		p.prepared = p.Graph.Id()
	}
	return g
}

// Advance moves the player's graph forward by dt seconds scaled by the player speed.
func (e *Evaluator) Advance(p *AnimationPlayer, dt float32) {
	if p.Paused {
		return
	}
	g := e.Prepare(p)
	if g == nil {
		return
	}
	e.params = p.Params
	e.advance(g, &p.States, dt*p.Speed)
}

// Sample evaluates the player's graph for target. Properties nothing animates keep
// their value from base; an unprepared player returns base unchanged.
func (e *Evaluator) Sample(p *AnimationPlayer, target TargetId, base transform.Transform) transform.Transform {
	g := e.graph(p.Graph)
	if g == nil || p.prepared != p.Graph.Id() {
		return base
	}
	e.params = p.Params
	return e.evaluate(g, p.States, target, base)
}

func (e *Evaluator) advance(g *Graph, states *[]NodeState, dt float32) {
	if e.depth >= maxGraphDepth {
		return
	}
	if len(*states) != len(g.Nodes) {
		*states = g.newStates()
	}
	order, err := g.Order()
	if err != nil {
		return
	}
	e.depth++
	defer func() { e.depth-- }()

	for _, i := range order {
		g.Nodes[i].update(e, &(*states)[i], dt)
	}
}

// evaluate runs g in post-order. Every node pops the outputs of its inputs off the
// stack and pushes its own; the root leaves the result on top.
func (e *Evaluator) evaluate(g *Graph, states []NodeState, target TargetId, base transform.Transform) transform.Transform {
	if e.depth >= maxGraphDepth || len(states) != len(g.Nodes) {
		return base
	}
	order, err := g.Order()
	if err != nil {
		return base
	}
	e.depth++
	defer func() { e.depth-- }()

	mark := len(e.stack)
	for _, i := range order {
		top := len(e.stack)
		n := len(g.InputsOf(i))
		out := g.Nodes[i].evaluate(e, &states[i], target, base, e.stack[top-n:top])
		e.stack = append(e.stack[:top-n], out)
	}
	out := e.stack[len(e.stack)-1]
	e.stack = e.stack[:mark]
	return out
}
