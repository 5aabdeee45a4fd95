package debugui

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/plus3/kiln/ecs"
)

// QueryDebugger previews which archetypes and entities a set of required component
// types would match.
type QueryDebugger struct {
	selected map[reflect.Type]bool
	types    []reflect.Type
}

func NewQueryDebugger() QueryDebugger {
	return QueryDebugger{selected: make(map[reflect.Type]bool)}
}

// Toggle adds or removes t from the required set
func (qd *QueryDebugger) Toggle(t reflect.Type, on bool) {
	if on {
		qd.selected[t] = true
	} else {
		delete(qd.selected, t)
	}
}

func (qd *QueryDebugger) Render(w *ecs.World) {
	if !imgui.BeginV("Query Debugger", nil, imgui.WindowFlagsNone) {
		imgui.End()
		return
	}
	defer imgui.End()

	qd.refreshTypes(w.Registry())

	imgui.Text("Select Component Types:")
	imgui.Separator()

	if imgui.Button("Clear All") {
		clear(qd.selected)
	}

	for _, t := range qd.types {
		on := qd.selected[t]
		if imgui.Checkbox(t.String(), &on) {
			qd.Toggle(t, on)
		}
	}

	imgui.Separator()

	if len(qd.selected) == 0 {
		imgui.Text("No component types selected")
		return
	}

	matching := qd.Match(w)
	totalEntities := 0
	for _, arch := range matching {
		totalEntities += arch.Len()
	}

	imgui.Text(fmt.Sprintf("Matching Archetypes: %d", len(matching)))
	imgui.Text(fmt.Sprintf("Matching Entities: %d", totalEntities))

	if imgui.TreeNodeStr("Archetype Details") {
		const tableFlags = imgui.TableFlagsBorders | imgui.TableFlagsRowBg
		if imgui.BeginTableV("QueryArchTable", 3, tableFlags, imgui.NewVec2(0, 0), 0) {
			imgui.TableSetupColumn("Archetype")
			imgui.TableSetupColumn("All Components")
			imgui.TableSetupColumn("Entity Count")
			imgui.TableHeadersRow()

			for _, arch := range matching {
				imgui.TableNextRow()
				imgui.TableSetColumnIndex(0)
				imgui.Text(fmt.Sprintf("%d", arch.Index()))
				imgui.TableSetColumnIndex(1)
				imgui.Text(strings.Join(typeNames(arch), ", "))
				imgui.TableSetColumnIndex(2)
				imgui.Text(fmt.Sprintf("%d", arch.Len()))
			}

			imgui.EndTable()
		}
		imgui.TreePop()
	}
}

func (qd *QueryDebugger) refreshTypes(registry *ecs.ComponentRegistry) {
	types := registry.Types()
	if len(types) == len(qd.types) {
		return
	}
	qd.types = append(qd.types[:0], types...)
	sort.Slice(qd.types, func(i, j int) bool {
		return qd.types[i].String() < qd.types[j].String()
	})
}

// Match returns the archetypes holding every selected type, in index order
func (qd *QueryDebugger) Match(w *ecs.World) []*ecs.Archetype {
	var matching []*ecs.Archetype
	for _, archetype := range w.Archetypes() {
		if qd.matches(archetype) {
			matching = append(matching, archetype)
		}
	}
	return matching
}

func (qd *QueryDebugger) matches(archetype *ecs.Archetype) bool {
	for t := range qd.selected {
		if !archetype.HasComponent(t) {
			return false
		}
	}
	return true
}
