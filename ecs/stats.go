package ecs

import "sort"

// WorldStats is a snapshot of world occupancy.
type WorldStats struct {
	TotalEntityCount   int
	ArchetypeCount     int
	ResourceCount      int
	ArchetypeBreakdown []ArchetypeStats
	ResourceTypes      []string
	Tick               Tick
}

// ArchetypeStats describes one non-empty archetype.
type ArchetypeStats struct {
	Index          uint32
	ComponentTypes []string
	EntityCount    int
}

// CollectStats gathers statistics about archetypes and resources. Archetypes that
// currently hold no entity are not counted.
func (w *World) CollectStats() WorldStats {
	stats := WorldStats{
		TotalEntityCount: w.EntityCount(),
		Tick:             w.tick,
	}

	for _, archetype := range w.archetypes {
		if len(archetype.entities) == 0 {
			continue
		}
		types := make([]string, len(archetype.types))
		for i, t := range archetype.types {
			types[i] = t.String()
		}
		stats.ArchetypeBreakdown = append(stats.ArchetypeBreakdown, ArchetypeStats{
			Index:          archetype.index,
			ComponentTypes: types,
			EntityCount:    len(archetype.entities),
		})
	}
	stats.ArchetypeCount = len(stats.ArchetypeBreakdown)

	for t := range w.Resources() {
		stats.ResourceTypes = append(stats.ResourceTypes, t.String())
	}
	sort.Strings(stats.ResourceTypes)
	stats.ResourceCount = len(stats.ResourceTypes)

	return stats
}
