package debugui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/AllenDang/cimgui-go/imgui"
	"github.com/plus3/kiln/ecs"
)

type ArchetypeInfo struct {
	Index          uint32
	ComponentTypes []string
	EntityCount    int
	ComponentCount int
}

// ArchetypeViewer tabulates archetypes with their occupancy. Empty archetypes are kept
// in the table since they are never destroyed.
type ArchetypeViewer struct {
	archetypes    []ArchetypeInfo
	sortColumn    int
	sortAscending bool
	selected      *uint32
}

func NewArchetypeViewer() ArchetypeViewer {
	return ArchetypeViewer{sortColumn: 3}
}

// Render draws the table and returns the archetype clicked this frame, if any.
func (av *ArchetypeViewer) Render(w *ecs.World) (uint32, bool) {
	if !imgui.BeginV("Archetype Viewer", nil, imgui.WindowFlagsNone) {
		imgui.End()
		return 0, false
	}
	defer imgui.End()

	av.Refresh(w)

	maxEntityCount := 0
	for _, arch := range av.archetypes {
		maxEntityCount = max(maxEntityCount, arch.EntityCount)
	}

	var clicked *uint32
	const tableFlags = imgui.TableFlagsBorders | imgui.TableFlagsRowBg | imgui.TableFlagsSortable | imgui.TableFlagsScrollY
	if imgui.BeginTableV("ArchetypeTable", 4, tableFlags, imgui.NewVec2(0, 0), 0) {
		imgui.TableSetupColumn("Archetype")
		imgui.TableSetupColumn("Components")
		imgui.TableSetupColumn("Comp Count")
		imgui.TableSetupColumn("Entity Count")
		imgui.TableHeadersRow()

		sortSpecs := imgui.TableGetSortSpecs()
		if sortSpecs.SpecsDirty() && sortSpecs.SpecsCount() > 0 {
			spec := sortSpecs.Specs()
			av.SortBy(int(spec.ColumnIndex()), spec.SortDirection() == imgui.SortDirectionAscending)
			sortSpecs.SetSpecsDirty(false)
		}

		for _, arch := range av.archetypes {
			imgui.TableNextRow()

			imgui.TableNextColumn()
			isSelected := av.selected != nil && *av.selected == arch.Index
			if imgui.SelectableBoolV(fmt.Sprintf("%d", arch.Index), isSelected, imgui.SelectableFlagsSpanAllColumns, imgui.NewVec2(0, 0)) {
				index := arch.Index
				clicked = &index
				av.selected = &index
			}

			imgui.TableNextColumn()
			imgui.Text(strings.Join(arch.ComponentTypes, ", "))

			imgui.TableNextColumn()
			imgui.Text(fmt.Sprintf("%d", arch.ComponentCount))

			imgui.TableNextColumn()
			imgui.Text(fmt.Sprintf("%d", arch.EntityCount))

			if maxEntityCount > 0 {
				barWidth := float32(arch.EntityCount) / float32(maxEntityCount) * 80.0
				imgui.SameLine()
				drawList := imgui.WindowDrawList()
				pos := imgui.CursorScreenPos()
				color := imgui.ColorU32Vec4(imgui.NewVec4(0.2, 0.6, 0.8, 0.6))
				drawList.AddRectFilled(pos, imgui.NewVec2(pos.X+barWidth, pos.Y+10), color)
			}
		}

		imgui.EndTable()
	}

	if clicked == nil {
		return 0, false
	}
	return *clicked, true
}

// Refresh rebuilds the table rows from w, keeping the current sort.
func (av *ArchetypeViewer) Refresh(w *ecs.World) {
	archetypes := w.Archetypes()
	if len(av.archetypes) != len(archetypes) {
		av.archetypes = make([]ArchetypeInfo, 0, len(archetypes))
		for _, archetype := range archetypes {
			names := typeNames(archetype)
			av.archetypes = append(av.archetypes, ArchetypeInfo{
				Index:          archetype.Index(),
				ComponentTypes: names,
				ComponentCount: len(names),
			})
		}
	}

	for i := range av.archetypes {
		av.archetypes[i].EntityCount = archetypes[av.archetypes[i].Index].Len()
	}
	av.sortArchetypes()
}

// Rows returns the table rows in display order
func (av *ArchetypeViewer) Rows() []ArchetypeInfo {
	return av.archetypes
}

// SortBy orders rows by column: 0 index, 1 component names, 2 component count, 3 entities.
func (av *ArchetypeViewer) SortBy(column int, ascending bool) {
	av.sortColumn = column
	av.sortAscending = ascending
	av.sortArchetypes()
}

func (av *ArchetypeViewer) sortArchetypes() {
	sort.SliceStable(av.archetypes, func(i, j int) bool {
		a, b := av.archetypes[i], av.archetypes[j]
		var less bool

		switch av.sortColumn {
		case 0:
			less = a.Index < b.Index
		case 1:
			less = strings.Join(a.ComponentTypes, ",") < strings.Join(b.ComponentTypes, ",")
		case 2:
			less = a.ComponentCount < b.ComponentCount
		default:
			less = a.EntityCount < b.EntityCount
		}

		if !av.sortAscending {
			return !less
		}
		return less
	})
}
