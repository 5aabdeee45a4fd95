// Package debugui provides immediate-mode GUI integration for ECS applications using Dear ImGui.
// It manages ImGui rendering and input state through ECS components, resources and systems.
package debugui

import (
	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/plus3/kiln/app"
	"github.com/plus3/kiln/ecs"
)

// ImguiItem is a component that holds a Dear ImGui render function.
// Attach this to entities that should render ImGui widgets each frame.
type ImguiItem struct {
	Render func()
}

// ImguiInputState tracks Dear ImGui's input capture state as a resource.
// Use this to determine if ImGui is consuming mouse or keyboard input.
type ImguiInputState struct {
	WantCaptureMouse    bool
	WantCaptureKeyboard bool
}

// ImguiSystem updates the ImguiInputState resource and defers every item's render
// function. Deferred renders run when the system's commands are applied, still inside
// the host's ImGui frame.
func ImguiSystem(frame *ecs.UpdateFrame, items *ecs.Query[struct{ Item *ImguiItem }], input *ecs.ResMut[ImguiInputState]) {
	io := imgui.CurrentIO()
	state := input.Get()
	state.WantCaptureMouse = io.WantCaptureMouse()
	state.WantCaptureKeyboard = io.WantCaptureKeyboard()

	for item := range items.Values() {
		if render := item.Item.Render; render != nil {
			frame.Commands.Defer(func(*ecs.World) { render() })
		}
	}
}

// PanelsSystem draws the world inspection panels.
func PanelsSystem(frame *ecs.UpdateFrame, panels *ecs.ResMut[Panels]) {
	p := panels.Get()
	if !p.Visible {
		return
	}
	frame.Commands.Defer(p.Render)
}

// Plugin registers the ImGui item component, the input state and panel resources, and
// both drawing systems in the Render stage. The host owns the ImGui frame: it must begin
// one before App.Frame and end it afterwards.
type Plugin struct {
	// HidePanels starts with the inspection panels hidden
	HidePanels bool
}

func (p Plugin) Build(a *app.App) error {
	app.RegisterComponent[ImguiItem](a)
	a.InsertResource(&ImguiInputState{})

	panels := NewPanels(a.Scheduler())
	panels.Visible = !p.HidePanels
	a.InsertResource(panels)

	return a.AddSystems(ecs.Render,
		ecs.Named("debugui.ImguiSystem", ImguiSystem),
		ecs.Named("debugui.PanelsSystem", PanelsSystem),
	)
}
