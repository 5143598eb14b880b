package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/miradorstack/mirador-zones/internal/engine"
	"github.com/miradorstack/mirador-zones/internal/ingest"
	"github.com/miradorstack/mirador-zones/internal/models"
	"github.com/miradorstack/mirador-zones/internal/patterns"
)

const upload = "ИНН,Зона,Дата_утверждения\n" +
	"1,A,2024-01-01\n" +
	"1,A,2024-01-05\n" +
	"1,Ч,2024-01-20\n" +
	"2,B,2024-01-01\n" +
	"2,Ч,2024-01-31\n" +
	"3,A,2024-01-02\n" +
	"3,B,2024-01-04\n"

type repoStub struct {
	saved   *models.Dataset
	loadErr error
	cleared bool
}

func (r *repoStub) Save(ctx context.Context, dataset *models.Dataset) error {
	r.saved = dataset
	return nil
}

func (r *repoStub) Load(ctx context.Context) (*models.Dataset, error) {
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	if r.saved == nil {
		return nil, models.ErrNoDataset
	}
	return r.saved, nil
}

func (r *repoStub) Clear(ctx context.Context) error {
	r.cleared = true
	r.saved = nil
	return nil
}

type patternRepoStub struct {
	patterns []models.TransitionPattern
	calls    int
}

func (p *patternRepoStub) FetchPatterns(ctx context.Context, datasetID string) ([]models.TransitionPattern, bool, error) {
	p.calls++
	return p.patterns, p.patterns != nil, nil
}

func newTestService(repo *repoStub) *ZoneService {
	miner := patterns.NewMiner(nil, nil)
	pipeline := engine.NewPipeline(nil, ingest.Options{}, repo, miner)
	return NewZoneService(nil, pipeline, repo, nil, miner, Options{DefaultMinDays: 10, MaxMinDays: 180})
}

func uploaded(t *testing.T) (*ZoneService, *repoStub) {
	t.Helper()
	repo := &repoStub{}
	service := newTestService(repo)
	if _, err := service.Upload(context.Background(), "zones.csv", strings.NewReader(upload)); err != nil {
		t.Fatalf("upload: %v", err)
	}
	return service, repo
}

func TestAnalyticsRequireDataset(t *testing.T) {
	service := newTestService(&repoStub{})
	ctx := context.Background()

	if _, err := service.Durations(ctx, 10); !errors.Is(err, models.ErrNoDataset) {
		t.Fatalf("durations: expected ErrNoDataset, got %v", err)
	}
	if _, err := service.MatchScenario(ctx, "A → B"); !errors.Is(err, models.ErrNoDataset) {
		t.Fatalf("match: expected ErrNoDataset, got %v", err)
	}
	if _, err := service.Transitions(ctx, models.Filter{}, ""); !errors.Is(err, models.ErrNoDataset) {
		t.Fatalf("transitions: expected ErrNoDataset, got %v", err)
	}
	if _, err := service.Current(); !errors.Is(err, models.ErrNoDataset) {
		t.Fatalf("current: expected ErrNoDataset, got %v", err)
	}
}

func TestUploadReplacesDataset(t *testing.T) {
	service, repo := uploaded(t)

	current, err := service.Current()
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if repo.saved != current {
		t.Fatalf("expected the uploaded dataset to be persisted")
	}
	if len(current.Events) != 6 {
		t.Fatalf("expected 6 events, got %d", len(current.Events))
	}

	if _, err := service.Upload(context.Background(), "zones.csv", strings.NewReader("ИНН,Зона\n1,A\n")); !errors.Is(err, models.ErrMalformedInput) {
		t.Fatalf("expected malformed input, got %v", err)
	}
	after, _ := service.Current()
	if after != current {
		t.Fatalf("a rejected upload must keep the previous dataset")
	}
}

func TestDurations(t *testing.T) {
	service, _ := uploaded(t)
	ctx := context.Background()

	report, err := service.Durations(ctx, -1)
	if err != nil {
		t.Fatalf("durations: %v", err)
	}
	if report.Threshold != 10 {
		t.Fatalf("expected default threshold, got %d", report.Threshold)
	}
	if len(report.Records) != 1 || report.Records[0].Entity != "2" || report.Records[0].Days != 30 {
		t.Fatalf("unexpected records %+v", report.Records)
	}
	if len(report.Stats) != 1 || report.Stats[0].Zone != "B" || report.Stats[0].Mean != 30 {
		t.Fatalf("unexpected stats %+v", report.Stats)
	}

	report, err = service.Durations(ctx, 31)
	if err != nil || !report.Empty() {
		t.Fatalf("expected empty report above every duration, got %+v (%v)", report, err)
	}

	if _, err := service.Durations(ctx, 181); !errors.Is(err, models.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestScenarios(t *testing.T) {
	service, _ := uploaded(t)
	ctx := context.Background()

	scenarios, err := service.Scenarios(ctx)
	if err != nil {
		t.Fatalf("scenarios: %v", err)
	}
	if len(scenarios) != 12 {
		t.Fatalf("expected 6 pairs and 6 triples, got %d: %v", len(scenarios), scenarios)
	}

	match, err := service.MatchScenario(ctx, "A → Ч")
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(match.Entities) != 1 || match.Entities[0] != "1" {
		t.Fatalf("unexpected match %+v", match)
	}

	if _, err := service.MatchScenario(ctx, " "); !errors.Is(err, models.ErrInvalidScenario) {
		t.Fatalf("expected invalid scenario, got %v", err)
	}
}

func TestTransitionsWithScenario(t *testing.T) {
	service, _ := uploaded(t)

	events, err := service.Transitions(context.Background(), models.Filter{TransitionsOnly: true}, "B → Ч")
	if err != nil {
		t.Fatalf("transitions: %v", err)
	}
	if len(events) != 1 || events[0].Entity != "2" || events[0].Zone != "Ч" {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestStalledSummaryAndPatterns(t *testing.T) {
	service, _ := uploaded(t)
	ctx := context.Background()

	stalled, err := service.Stalled(ctx)
	if err != nil {
		t.Fatalf("stalled: %v", err)
	}
	if len(stalled.Entities) != 1 || stalled.Entities[0].Entity != "3" {
		t.Fatalf("unexpected stalled %+v", stalled)
	}

	summary, err := service.Summary(ctx)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Entities != 3 || summary.ReachedTerminal != 2 || summary.Stalled != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	mined, err := service.Patterns(ctx)
	if err != nil {
		t.Fatalf("patterns: %v", err)
	}
	if len(mined) != 2 || mined[0].From != "A" || mined[0].To != "B" {
		t.Fatalf("unexpected patterns %+v", mined)
	}
}

func TestRestoreAndClear(t *testing.T) {
	_, repo := uploaded(t)
	cached := &patternRepoStub{patterns: []models.TransitionPattern{{From: "X", To: "Y", Count: 9}}}
	restored := NewZoneService(nil, nil, repo, cached, nil, Options{})
	ctx := context.Background()

	dataset, err := restored.Restore(ctx)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if dataset != repo.saved {
		t.Fatalf("expected persisted dataset to become current")
	}
	mined, _ := restored.Patterns(ctx)
	if cached.calls != 1 || len(mined) != 1 || mined[0].From != "X" {
		t.Fatalf("expected cached patterns, got %+v", mined)
	}

	if err := restored.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if !repo.cleared {
		t.Fatalf("expected persisted dataset to be cleared")
	}
	if _, err := restored.Restore(ctx); !errors.Is(err, models.ErrNoDataset) {
		t.Fatalf("expected ErrNoDataset after clear, got %v", err)
	}
}
