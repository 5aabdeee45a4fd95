package debugui

import (
	"github.com/plus3/kiln/ecs"
)

// Panels is the resource behind the inspection windows. Selection flows from the
// archetype viewer into the entity browser filter and from the browser into the
// component inspector.
type Panels struct {
	Visible bool

	Browser     EntityBrowser
	Inspector   ComponentInspector
	Archetypes  ArchetypeViewer
	Performance PerformanceStats
	Queries     QueryDebugger

	scheduler *ecs.Scheduler
}

// NewPanels creates the panels. scheduler may be nil; the per-system timings are then
// left out of the performance window.
func NewPanels(scheduler *ecs.Scheduler) *Panels {
	return &Panels{
		Visible:     true,
		Browser:     NewEntityBrowser(100),
		Inspector:   ComponentInspector{},
		Archetypes:  NewArchetypeViewer(),
		Performance: NewPerformanceStats(120),
		Queries:     NewQueryDebugger(),
		scheduler:   scheduler,
	}
}

// Render draws every window against w. It must run inside an ImGui frame.
func (p *Panels) Render(w *ecs.World) {
	var dt float64
	if clock := ecs.GetResource[ecs.Time](w); clock != nil {
		dt = clock.Delta
	}

	if clicked, ok := p.Archetypes.Render(w); ok {
		p.Browser.FilterArchetype(clicked)
	}
	p.Browser.Render(w)
	p.Inspector.Render(w, p.Browser.Selected())
	p.Performance.Render(w, p.scheduler, float32(dt))
	p.Queries.Render(w)
}
