package engine

import (
	"cmp"
	"math"
	"slices"

	"github.com/miradorstack/mirador-zones/internal/models"
	"github.com/miradorstack/mirador-zones/internal/utils"
)

// DefaultTerminalZone is the black-list zone whose approach is measured.
const DefaultTerminalZone = "Ч"

// DurationAnalyzer measures how long entities stayed in the zone they left for the terminal zone.
type DurationAnalyzer struct {
	terminal string
}

// NewDurationAnalyzer creates an analyzer for the given terminal zone label.
func NewDurationAnalyzer(terminal string) *DurationAnalyzer {
	if terminal == "" {
		terminal = DefaultTerminalZone
	}
	return &DurationAnalyzer{terminal: terminal}
}

// Terminal returns the terminal zone label.
func (a *DurationAnalyzer) Terminal() string {
	return a.terminal
}

// Analyze returns the duration records meeting threshold (inclusive) together with
// their per-zone statistics. Only each entity's first approach to the terminal zone
// is considered. An empty report is the "no data" condition, not a failure.
func (a *DurationAnalyzer) Analyze(events []models.TransitionEvent, threshold int) models.DurationReport {
	if threshold < 0 {
		threshold = 0
	}
	records := a.Durations(events, threshold)
	return models.DurationReport{
		Terminal:  a.terminal,
		Threshold: threshold,
		Records:   records,
		Stats:     Summarize(records),
	}
}

// Durations computes the per-entity records. Candidates are entities having an event
// whose lookahead zone is terminal; their events are then scanned pairwise.
func (a *DurationAnalyzer) Durations(events []models.TransitionEvent, threshold int) []models.DurationRecord {
	candidates := make(map[string]struct{})
	for _, ev := range events {
		if ev.NextZone == a.terminal {
			candidates[ev.Entity] = struct{}{}
		}
	}

	records := make([]models.DurationRecord, 0, len(candidates))
	if len(candidates) == 0 {
		return records
	}

	order, byEntity := EventsByEntity(events)
	for _, entity := range order {
		if _, ok := candidates[entity]; !ok {
			continue
		}
		if rec, ok := a.firstApproach(byEntity[entity]); ok && rec.Days >= threshold {
			records = append(records, rec)
		}
	}
	return records
}

// firstApproach finds the first adjacent pair whose second element is terminal.
func (a *DurationAnalyzer) firstApproach(history []models.TransitionEvent) (models.DurationRecord, bool) {
	for i := 0; i+1 < len(history); i++ {
		current, next := history[i], history[i+1]
		if next.Zone != a.terminal {
			continue
		}
		return models.DurationRecord{
			Entity:     current.Entity,
			ZoneBefore: current.Zone,
			EnteredAt:  current.ApprovedAt,
			TerminalAt: next.ApprovedAt,
			Days:       utils.DaysBetween(current.ApprovedAt, next.ApprovedAt),
		}, true
	}
	return models.DurationRecord{}, false
}

// Summarize groups records by preceding zone and reports mean, median and count of
// days, rounded to one decimal. Zones are returned in lexical order.
func Summarize(records []models.DurationRecord) []models.DurationStat {
	days := make(map[string][]int)
	for _, rec := range records {
		days[rec.ZoneBefore] = append(days[rec.ZoneBefore], rec.Days)
	}

	stats := make([]models.DurationStat, 0, len(days))
	for zone, values := range days {
		stats = append(stats, models.DurationStat{
			Zone:   zone,
			Mean:   round1(mean(values)),
			Median: round1(median(values)),
			Count:  len(values),
		})
	}
	slices.SortFunc(stats, func(a, b models.DurationStat) int { return cmp.Compare(a.Zone, b.Zone) })
	return stats
}

func mean(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	total := 0
	for _, v := range values {
		total += v
	}
	return float64(total) / float64(len(values))
}

func median(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return float64(sorted[mid])
	}
	return float64(sorted[mid-1]+sorted[mid]) / 2
}

// round1 rounds half to even at one decimal.
func round1(v float64) float64 {
	return math.RoundToEven(v*10) / 10
}
