package engine

import (
	"time"

	"github.com/miradorstack/mirador-zones/internal/models"
)

// ApplyFilter returns the events passing every condition of f, preserving order.
func ApplyFilter(events []models.TransitionEvent, f models.Filter) []models.TransitionEvent {
	var zones map[string]struct{}
	if len(f.Zones) > 0 {
		zones = make(map[string]struct{}, len(f.Zones))
		for _, z := range f.Zones {
			zones[z] = struct{}{}
		}
	}

	out := make([]models.TransitionEvent, 0, len(events))
	for _, ev := range events {
		if zones != nil {
			if _, ok := zones[ev.Zone]; !ok {
				continue
			}
		}
		if !f.From.IsZero() && ev.ApprovedAt.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && ev.ApprovedAt.After(f.To) {
			continue
		}
		if f.TransitionsOnly && ev.Step <= 1 {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// RestrictToEntities keeps the events of the listed entities only.
func RestrictToEntities(events []models.TransitionEvent, entities []string) []models.TransitionEvent {
	keep := make(map[string]struct{}, len(entities))
	for _, e := range entities {
		keep[e] = struct{}{}
	}
	out := make([]models.TransitionEvent, 0)
	for _, ev := range events {
		if _, ok := keep[ev.Entity]; ok {
			out = append(out, ev)
		}
	}
	return out
}

// Zones lists distinct zone labels in order of first appearance.
func Zones(events []models.TransitionEvent) []string {
	seen := make(map[string]struct{})
	zones := make([]string, 0)
	for _, ev := range events {
		if _, ok := seen[ev.Zone]; ok {
			continue
		}
		seen[ev.Zone] = struct{}{}
		zones = append(zones, ev.Zone)
	}
	return zones
}

// DateBounds returns the earliest and latest approval dates; zero values when empty.
func DateBounds(events []models.TransitionEvent) (time.Time, time.Time) {
	var from, to time.Time
	for i, ev := range events {
		if i == 0 || ev.ApprovedAt.Before(from) {
			from = ev.ApprovedAt
		}
		if i == 0 || ev.ApprovedAt.After(to) {
			to = ev.ApprovedAt
		}
	}
	return from, to
}
