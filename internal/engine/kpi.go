package engine

import (
	"math"

	"github.com/miradorstack/mirador-zones/internal/models"
)

// Summarise computes headline KPIs over a dataset's events.
func Summarise(datasetID string, events []models.TransitionEvent, terminal string) models.Summary {
	if terminal == "" {
		terminal = DefaultTerminalZone
	}
	order, byEntity := EventsByEntity(events)
	from, to := DateBounds(events)

	summary := models.Summary{
		DatasetID: datasetID,
		Entities:  len(order),
		Events:    len(events),
		Zones:     Zones(events),
		From:      from,
		To:        to,
	}
	for _, entity := range order {
		for _, ev := range byEntity[entity] {
			if ev.Zone == terminal {
				summary.ReachedTerminal++
				break
			}
		}
	}
	summary.Stalled = len(Stalled(events, terminal).Entities)
	if summary.Entities > 0 {
		avg := float64(summary.Events) / float64(summary.Entities)
		summary.AvgStepsPerEntity = math.Round(avg*100) / 100
	}
	return summary
}
