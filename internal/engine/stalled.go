package engine

import (
	"cmp"
	"slices"

	"github.com/miradorstack/mirador-zones/internal/models"
)

// Stalled reports entities whose latest event is outside the terminal zone, newest
// first, and how many stopped in each zone.
func Stalled(events []models.TransitionEvent, terminal string) models.StalledReport {
	if terminal == "" {
		terminal = DefaultTerminalZone
	}

	report := models.StalledReport{
		Entities: make([]models.StalledEntity, 0),
		ByZone:   make([]models.ZoneCount, 0),
	}
	counts := make(map[string]int)
	for _, last := range lastEvents(events) {
		if last.Zone == terminal {
			continue
		}
		report.Entities = append(report.Entities, models.StalledEntity{
			Entity:     last.Entity,
			Zone:       last.Zone,
			ApprovedAt: last.ApprovedAt,
		})
		counts[last.Zone]++
	}

	slices.SortStableFunc(report.Entities, func(a, b models.StalledEntity) int {
		if c := b.ApprovedAt.Compare(a.ApprovedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Entity, b.Entity)
	})
	for zone, n := range counts {
		report.ByZone = append(report.ByZone, models.ZoneCount{Zone: zone, Count: n})
	}
	slices.SortFunc(report.ByZone, func(a, b models.ZoneCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Zone, b.Zone)
	})
	return report
}

func lastEvents(events []models.TransitionEvent) []models.TransitionEvent {
	order, byEntity := EventsByEntity(events)
	out := make([]models.TransitionEvent, 0, len(order))
	for _, entity := range order {
		history := byEntity[entity]
		out = append(out, history[len(history)-1])
	}
	return out
}
