package engine

import (
	"fmt"
	"slices"
	"strings"

	"github.com/miradorstack/mirador-zones/internal/models"
)

// DefaultScenarioSeparator joins zone labels in rendered scenario strings.
const DefaultScenarioSeparator = " → "

// Sequence is an entity's chronological list of zone labels.
type Sequence struct {
	Entity string
	Zones  []string
}

// SequencesFromRecords builds zone sequences from raw records in date order, keeping
// repeated same-zone observations.
func SequencesFromRecords(records []models.ZoneRecord) []Sequence {
	sorted := SortRecords(records)
	sequences := make([]Sequence, 0)
	for _, group := range groupByEntity(sorted) {
		zones := make([]string, len(group))
		for i, rec := range group {
			zones[i] = rec.Zone
		}
		sequences = append(sequences, Sequence{Entity: group[0].Entity, Zones: zones})
	}
	return sequences
}

// SequencesFromEvents builds zone sequences from the derived table. It is the fallback
// when raw records are not available; same-zone repeats are already collapsed there.
func SequencesFromEvents(events []models.TransitionEvent) []Sequence {
	order, byEntity := EventsByEntity(events)
	slices.Sort(order)
	sequences := make([]Sequence, 0, len(order))
	for _, entity := range order {
		history := byEntity[entity]
		zones := make([]string, len(history))
		for i, ev := range history {
			zones[i] = ev.Zone
		}
		sequences = append(sequences, Sequence{Entity: entity, Zones: zones})
	}
	return sequences
}

// ScenarioMatcher finds entities whose zone path contains a scenario as a contiguous run.
type ScenarioMatcher struct {
	separator string
}

// NewScenarioMatcher creates a matcher rendering and parsing scenarios with separator.
func NewScenarioMatcher(separator string) *ScenarioMatcher {
	if separator == "" {
		separator = DefaultScenarioSeparator
	}
	return &ScenarioMatcher{separator: separator}
}

// Separator returns the scenario separator.
func (m *ScenarioMatcher) Separator() string {
	return m.separator
}

// Parse splits a rendered scenario back into zone labels.
func (m *ScenarioMatcher) Parse(label string) ([]string, error) {
	if strings.TrimSpace(label) == "" {
		return nil, fmt.Errorf("%w: empty scenario", models.ErrInvalidScenario)
	}
	parts := strings.Split(label, m.separator)
	path := make([]string, 0, len(parts))
	for _, part := range parts {
		zone := strings.TrimSpace(part)
		if zone == "" {
			return nil, fmt.Errorf("%w: empty zone in %q", models.ErrInvalidScenario, label)
		}
		path = append(path, zone)
	}
	return path, nil
}

// Render joins a path with the separator.
func (m *ScenarioMatcher) Render(path []string) string {
	return strings.Join(path, m.separator)
}

// Match returns each entity whose sequence contains path contiguously, in sequence order.
// Any path of length >= 1 is accepted.
func (m *ScenarioMatcher) Match(sequences []Sequence, path []string) (models.ScenarioMatch, error) {
	if len(path) == 0 {
		return models.ScenarioMatch{}, fmt.Errorf("%w: path must contain at least one zone", models.ErrInvalidScenario)
	}

	result := models.ScenarioMatch{
		Path:     slices.Clone(path),
		Label:    m.Render(path),
		Entities: make([]string, 0),
	}
	seen := make(map[string]struct{})
	for _, seq := range sequences {
		if _, dup := seen[seq.Entity]; dup {
			continue
		}
		if ContainsRun(seq.Zones, path) {
			seen[seq.Entity] = struct{}{}
			result.Entities = append(result.Entities, seq.Entity)
		}
	}
	return result, nil
}

// ContainsRun reports whether path occurs in zones as a contiguous run.
func ContainsRun(zones, path []string) bool {
	if len(path) == 0 || len(path) > len(zones) {
		return false
	}
	for i := 0; i+len(path) <= len(zones); i++ {
		if slices.Equal(zones[i:i+len(path)], path) {
			return true
		}
	}
	return false
}

// Enumerate lists every ordered pair of distinct zones and every ordered triple of
// pairwise-distinct zones, rendered and sorted lexicographically.
func (m *ScenarioMatcher) Enumerate(zones []string) []string {
	unique := make([]string, 0, len(zones))
	seen := make(map[string]struct{}, len(zones))
	for _, z := range zones {
		if _, ok := seen[z]; ok {
			continue
		}
		seen[z] = struct{}{}
		unique = append(unique, z)
	}

	scenarios := make([]string, 0)
	for _, a := range unique {
		for _, b := range unique {
			if a == b {
				continue
			}
			scenarios = append(scenarios, m.Render([]string{a, b}))
			for _, c := range unique {
				if c == a || c == b {
					continue
				}
				scenarios = append(scenarios, m.Render([]string{a, b, c}))
			}
		}
	}
	slices.Sort(scenarios)
	return scenarios
}
