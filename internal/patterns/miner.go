package patterns

import (
	"cmp"
	"context"
	"log/slog"
	"math"
	"slices"

	"github.com/miradorstack/mirador-zones/internal/models"
)

// Store abstracts persistence for mined patterns.
type Store interface {
	StorePatterns(ctx context.Context, datasetID string, patterns []models.TransitionPattern) error
}

// Miner aggregates zone-to-zone moves observed in the transition table.
type Miner struct {
	store  Store
	logger *slog.Logger
}

// NewMiner constructs a Miner; store may be nil for dry runs.
func NewMiner(logger *slog.Logger, store Store) *Miner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Miner{store: store, logger: logger}
}

// Mine counts every event's Zone → NextZone lookahead pair where the zone actually
// changed, and returns the patterns ordered by count, then by labels.
func (m *Miner) Mine(ctx context.Context, datasetID string, events []models.TransitionEvent) ([]models.TransitionPattern, error) {
	if len(events) == 0 {
		return nil, nil
	}

	stats := make(map[edge]*edgeAggregate)
	total := 0
	for _, ev := range events {
		if ev.NextZone == "" || ev.NextZone == ev.Zone {
			continue
		}
		key := edge{from: ev.Zone, to: ev.NextZone}
		agg, ok := stats[key]
		if !ok {
			agg = &edgeAggregate{entities: make(map[string]struct{})}
			stats[key] = agg
		}
		agg.count++
		agg.entities[ev.Entity] = struct{}{}
		total++
	}

	patterns := make([]models.TransitionPattern, 0, len(stats))
	for key, agg := range stats {
		patterns = append(patterns, models.TransitionPattern{
			From:     key.from,
			To:       key.to,
			Count:    agg.count,
			Entities: len(agg.entities),
			Share:    math.Round(float64(agg.count)/float64(total)*1000) / 1000,
		})
	}
	slices.SortFunc(patterns, func(a, b models.TransitionPattern) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		if c := cmp.Compare(a.From, b.From); c != 0 {
			return c
		}
		return cmp.Compare(a.To, b.To)
	})

	if m.store != nil && len(patterns) > 0 {
		if err := m.store.StorePatterns(ctx, datasetID, patterns); err != nil {
			m.logger.Warn("pattern store failed", slog.String("dataset_id", datasetID), slog.Any("error", err))
		}
	}

	return patterns, nil
}

type edge struct {
	from string
	to   string
}

type edgeAggregate struct {
	count    int
	entities map[string]struct{}
}

// EndingIn keeps the patterns leading into zone.
func EndingIn(patterns []models.TransitionPattern, zone string) []models.TransitionPattern {
	out := make([]models.TransitionPattern, 0)
	for _, p := range patterns {
		if p.To == zone {
			out = append(out, p)
		}
	}
	return out
}
