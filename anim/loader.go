package anim

import (
	"context"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/goccy/go-json"
	"github.com/plus3/kiln/asset"
	"github.com/rotisserie/eris"
)

func decode[T any](data []byte) (T, error) {
	doc := new(T)
	if err := json.Unmarshal(data, doc); err != nil {
		return *doc, eris.Wrap(err, "")
	}
	return *doc, nil
}

type channelDoc struct {
	Property Property    `json:"property"`
	Times    []float32   `json:"times"`
	Values   [][]float32 `json:"values"`
}

// clipDoc is the file form of a Clip. Curves are keyed by bone name or target uuid;
// rotations are [x, y, z, w].
type clipDoc struct {
	Curves map[string][]channelDoc `json:"curves"`
}

// LoadClip decodes a JSON clip.
func LoadClip(_ context.Context, lc *asset.LoadContext) (Clip, error) {
	data, err := lc.Read()
	if err != nil {
		return Clip{}, err
	}
	doc, err := decode[clipDoc](data)
	if err != nil {
		return Clip{}, eris.Wrapf(err, "decode clip %s", lc.Path)
	}
	return doc.clip()
}

func (doc clipDoc) clip() (Clip, error) {
	clip := Clip{Curves: make(map[TargetId][]Channel, len(doc.Curves))}
	for name, channels := range doc.Curves {
		var target TargetId
		if err := target.UnmarshalText([]byte(name)); err != nil {
			return Clip{}, err
		}
		for _, cd := range channels {
			ch := Channel{Property: cd.Property, Times: cd.Times}
			width := 3
			if cd.Property == Rotation {
				width = 4
			}
			for i, v := range cd.Values {
				if len(v) != width {
					return Clip{}, eris.Errorf("target %s %s key %d has %d components, want %d", target, cd.Property, i, len(v), width)
				}
				if cd.Property == Rotation {
					ch.Quats = append(ch.Quats, mgl32.Quat{W: v[3], V: mgl32.Vec3{v[0], v[1], v[2]}}.Normalize())
				} else {
					ch.Vec3s = append(ch.Vec3s, mgl32.Vec3{v[0], v[1], v[2]})
				}
			}
			clip.Curves[target] = append(clip.Curves[target], ch)
		}
	}
	if err := clip.Validate(); err != nil {
		return Clip{}, err
	}
	return clip, nil
}

type conditionDoc struct {
	Param string    `json:"param"`
	Op    CompareOp `json:"op"`
	Value Value     `json:"value"`
}

type transitionDoc struct {
	From string        `json:"from"`
	To   string        `json:"to"`
	Fade float32       `json:"fade"`
	When *conditionDoc `json:"when"`
}

type stateDoc struct {
	Name  string `json:"name"`
	Graph string `json:"graph"`
}

type nodeDoc struct {
	Kind   NodeKind    `json:"kind"`
	Inputs []NodeIndex `json:"inputs"`

	// clip
	Clip  string   `json:"clip"`
	Loop  *bool    `json:"loop"`
	Speed *float32 `json:"speed"`

	// blend
	Weight float32 `json:"weight"`

	// fsm
	Initial     string          `json:"initial"`
	States      []stateDoc      `json:"states"`
	Transitions []transitionDoc `json:"transitions"`
}

// graphDoc is the file form of a Graph. Clip and sub-graph paths starting with "./" or
// "../" are relative to the graph file.
type graphDoc struct {
	Root  NodeIndex `json:"root"`
	Nodes []nodeDoc `json:"nodes"`
}

// LoadGraph decodes a JSON graph and starts loading the clips and state graphs it
// references.
func LoadGraph(_ context.Context, lc *asset.LoadContext) (Graph, error) {
	data, err := lc.Read()
	if err != nil {
		return Graph{}, err
	}
	doc, err := decode[graphDoc](data)
	if err != nil {
		return Graph{}, eris.Wrapf(err, "decode graph %s", lc.Path)
	}

	nodes := make([]Node, len(doc.Nodes))
	inputs := make([][]NodeIndex, len(doc.Nodes))
	for i, nd := range doc.Nodes {
		node, err := nd.node(lc)
		if err != nil {
			return Graph{}, eris.Wrapf(err, "node %d", i)
		}
		nodes[i] = node
		inputs[i] = nd.Inputs
	}
	return NewGraph(nodes, inputs, doc.Root)
}

func (nd nodeDoc) node(lc *asset.LoadContext) (Node, error) {
	switch nd.Kind {
	case KindRoot:
		return &RootNode{}, nil
	case KindBlend:
		return &BlendNode{Weight: nd.Weight}, nil
	case KindClip:
		if nd.Clip == "" {
			return nil, eris.New("clip node without a clip")
		}
		node := NewClipNode(asset.LoadDependency[Clip](lc, nd.Clip))
		if nd.Loop != nil {
			node.Loop = *nd.Loop
		}
		if nd.Speed != nil {
			node.Speed = *nd.Speed
		}
		return node, nil
	case KindFSM:
		machine, err := nd.machine(lc)
		if err != nil {
			return nil, err
		}
		return &FSMNode{Machine: machine}, nil
	}
	return nil, eris.Errorf("unknown node kind %q", nd.Kind)
}

func (nd nodeDoc) machine(lc *asset.LoadContext) (Machine, error) {
	m := Machine{
		States:      make([]State, len(nd.States)),
		Transitions: make([][]Transition, len(nd.States)),
	}
	for i, sd := range nd.States {
		m.States[i] = State{Name: sd.Name, Graph: asset.LoadDependency[Graph](lc, sd.Graph)}
	}
	if nd.Initial != "" {
		initial, ok := m.StateIndex(nd.Initial)
		if !ok {
			return Machine{}, eris.Errorf("unknown initial state %q", nd.Initial)
		}
		m.Initial = initial
	}
	for _, td := range nd.Transitions {
		from, ok := m.StateIndex(td.From)
		if !ok {
			return Machine{}, eris.Errorf("transition from unknown state %q", td.From)
		}
		to, ok := m.StateIndex(td.To)
		if !ok {
			return Machine{}, eris.Errorf("transition to unknown state %q", td.To)
		}
		tr := Transition{To: to, Trigger: Instant{}, FadeSpeed: td.Fade}
		if td.When != nil {
			tr.Trigger = ParamCompare{Name: td.When.Param, Op: td.When.Op, Value: td.When.Value}
		}
		m.Transitions[from] = append(m.Transitions[from], tr)
	}
	return m, nil
}
