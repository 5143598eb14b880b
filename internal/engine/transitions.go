package engine

import (
	"cmp"
	"slices"

	"github.com/miradorstack/mirador-zones/internal/models"
)

// SortRecords returns a copy of records ordered by entity, then approval date, then
// source row. The input slice is left untouched.
func SortRecords(records []models.ZoneRecord) []models.ZoneRecord {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b models.ZoneRecord) int {
		if c := cmp.Compare(a.Entity, b.Entity); c != 0 {
			return c
		}
		if c := a.ApprovedAt.Compare(b.ApprovedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Row, b.Row)
	})
	return sorted
}

// Extract turns raw zone records into per-entity zone-change events.
//
// Lookahead (NextZone, NextDate) is taken from the full raw sequence before records
// without a zone change are dropped, so an event's NextZone is the zone of the very
// next raw record and may equal its own zone.
func Extract(records []models.ZoneRecord) []models.TransitionEvent {
	if len(records) == 0 {
		return []models.TransitionEvent{}
	}

	sorted := SortRecords(records)
	events := make([]models.TransitionEvent, 0, len(sorted))
	for _, group := range groupByEntity(sorted) {
		events = appendEntityEvents(events, group)
	}
	return events
}

func appendEntityEvents(dst []models.TransitionEvent, group []models.ZoneRecord) []models.TransitionEvent {
	step := 0
	for i, rec := range group {
		var prevZone string
		if i > 0 {
			prevZone = group[i-1].Zone
		}
		// The first record has no predecessor and always counts as a change.
		if i > 0 && rec.Zone == prevZone {
			continue
		}

		step++
		event := models.TransitionEvent{
			Entity:     rec.Entity,
			Zone:       rec.Zone,
			ApprovedAt: rec.ApprovedAt,
			PrevZone:   prevZone,
			Changed:    true,
			Step:       step,
		}
		if i+1 < len(group) {
			event.NextZone = group[i+1].Zone
			event.NextDate = group[i+1].ApprovedAt
		}
		dst = append(dst, event)
	}
	return dst
}

// groupByEntity splits records already sorted by entity into contiguous runs.
func groupByEntity(sorted []models.ZoneRecord) [][]models.ZoneRecord {
	var groups [][]models.ZoneRecord
	start := 0
	for i := 1; i <= len(sorted); i++ {
		if i == len(sorted) || sorted[i].Entity != sorted[start].Entity {
			groups = append(groups, sorted[start:i])
			start = i
		}
	}
	return groups
}

// EventsByEntity groups events per entity, each group in chronological order.
// Entity order follows first appearance in events.
func EventsByEntity(events []models.TransitionEvent) ([]string, map[string][]models.TransitionEvent) {
	order := make([]string, 0)
	byEntity := make(map[string][]models.TransitionEvent)
	for _, ev := range events {
		if _, ok := byEntity[ev.Entity]; !ok {
			order = append(order, ev.Entity)
		}
		byEntity[ev.Entity] = append(byEntity[ev.Entity], ev)
	}
	for _, entity := range order {
		slices.SortStableFunc(byEntity[entity], func(a, b models.TransitionEvent) int {
			if c := a.ApprovedAt.Compare(b.ApprovedAt); c != 0 {
				return c
			}
			return cmp.Compare(a.Step, b.Step)
		})
	}
	return order, byEntity
}
