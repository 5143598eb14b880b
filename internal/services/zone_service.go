package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/miradorstack/mirador-zones/internal/engine"
	"github.com/miradorstack/mirador-zones/internal/metrics"
	"github.com/miradorstack/mirador-zones/internal/models"
	"github.com/miradorstack/mirador-zones/internal/utils"
)

// Analysis kinds reported to metrics.
const (
	KindTransitions = "transitions"
	KindDurations   = "durations"
	KindScenarios   = "scenarios"
	KindMatch       = "scenario_match"
	KindStalled     = "stalled"
	KindPatterns    = "patterns"
	KindSummary     = "summary"
)

// DatasetRepo restores and clears the persisted dataset.
type DatasetRepo interface {
	Load(ctx context.Context) (*models.Dataset, error)
	Clear(ctx context.Context) error
}

// PatternRepo returns previously mined patterns for a dataset.
type PatternRepo interface {
	FetchPatterns(ctx context.Context, datasetID string) ([]models.TransitionPattern, bool, error)
}

// Options tune the analytics defaults.
type Options struct {
	TerminalZone      string
	ScenarioSeparator string
	DefaultMinDays    int
	MaxMinDays        int
}

// ZoneService owns the current dataset and answers analytics queries over it.
// The dataset is replaced whole on upload; readers never see a partial one.
type ZoneService struct {
	logger    *slog.Logger
	pipeline  *engine.Pipeline
	repo      DatasetRepo
	patterns  PatternRepo
	miner     engine.PatternMiner
	durations *engine.DurationAnalyzer
	matcher   *engine.ScenarioMatcher
	opts      Options
	latencies *utils.LatencyTracker

	mu      sync.RWMutex
	current *models.Dataset
	mined   []models.TransitionPattern
}

// NewZoneService constructs the service facade. repo, patterns and miner may be nil.
func NewZoneService(logger *slog.Logger, pipeline *engine.Pipeline, repo DatasetRepo, patterns PatternRepo, miner engine.PatternMiner, opts Options) *ZoneService {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxMinDays <= 0 {
		opts.MaxMinDays = 180
	}
	analyzer := engine.NewDurationAnalyzer(opts.TerminalZone)
	opts.TerminalZone = analyzer.Terminal()
	matcher := engine.NewScenarioMatcher(opts.ScenarioSeparator)
	opts.ScenarioSeparator = matcher.Separator()
	return &ZoneService{
		logger:    logger,
		pipeline:  pipeline,
		repo:      repo,
		patterns:  patterns,
		miner:     miner,
		durations: analyzer,
		matcher:   matcher,
		opts:      opts,
		latencies: utils.NewLatencyTracker(256),
	}
}

// Options returns the effective analytics options.
func (s *ZoneService) Options() Options { return s.opts }

// Upload extracts a new dataset from body and makes it current. On failure the
// previous dataset stays current.
func (s *ZoneService) Upload(ctx context.Context, source string, body io.Reader) (*models.Dataset, error) {
	if s.pipeline == nil {
		return nil, errors.New("pipeline not configured")
	}

	start := time.Now()
	result, err := s.pipeline.Run(ctx, source, body)
	if err != nil {
		s.logger.Warn("dataset upload rejected", slog.String("source", source), slog.Any("error", err))
		return nil, err
	}
	s.observe(time.Since(start))

	s.mu.Lock()
	s.current = result.Dataset
	s.mined = result.Patterns
	s.mu.Unlock()
	return result.Dataset, nil
}

// Restore makes the persisted dataset current. It returns ErrNoDataset when nothing
// was persisted.
func (s *ZoneService) Restore(ctx context.Context) (*models.Dataset, error) {
	if s.repo == nil {
		return nil, models.ErrNoDataset
	}
	dataset, err := s.repo.Load(ctx)
	if err != nil {
		return nil, err
	}

	var mined []models.TransitionPattern
	found := false
	if s.patterns != nil {
		mined, found, err = s.patterns.FetchPatterns(ctx, dataset.ID)
		if err != nil {
			s.logger.Warn("cached patterns unavailable", slog.String("dataset_id", dataset.ID), slog.Any("error", err))
		}
	}
	if !found && s.miner != nil {
		if mined, err = s.miner.Mine(ctx, dataset.ID, dataset.Events); err != nil {
			s.logger.Warn("pattern mining failed", slog.String("dataset_id", dataset.ID), slog.Any("error", err))
		}
	}

	s.mu.Lock()
	s.current = dataset
	s.mined = mined
	s.mu.Unlock()

	entities, _ := engine.EventsByEntity(dataset.Events)
	metrics.SetDatasetSize(len(entities), len(dataset.Events))
	s.logger.Info("dataset restored", slog.String("dataset_id", dataset.ID), slog.Int("events", len(dataset.Events)))
	return dataset, nil
}

// Clear forgets the current dataset and removes the persisted copy.
func (s *ZoneService) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.current = nil
	s.mined = nil
	s.mu.Unlock()
	metrics.SetDatasetSize(0, 0)
	if s.repo == nil {
		return nil
	}
	return s.repo.Clear(ctx)
}

// Current returns the current dataset or ErrNoDataset.
func (s *ZoneService) Current() (*models.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, models.ErrNoDataset
	}
	return s.current, nil
}

// Transitions returns the events passing filter. A non-empty scenario further
// restricts the result to entities whose trajectory contains it.
func (s *ZoneService) Transitions(ctx context.Context, filter models.Filter, scenario string) ([]models.TransitionEvent, error) {
	dataset, err := s.dataset(KindTransitions)
	if err != nil {
		return nil, err
	}
	events := engine.ApplyFilter(dataset.Events, filter)
	if scenario != "" {
		match, err := s.match(dataset, scenario)
		if err != nil {
			metrics.ObserveAnalysis(KindTransitions, metrics.OutcomeError)
			return nil, err
		}
		events = engine.RestrictToEntities(events, match.Entities)
	}
	s.record(KindTransitions, len(events) == 0)
	return events, nil
}

// Durations measures days spent in the zone preceding the first approach to the
// terminal zone. minDays below zero uses the configured default; values above the
// configured maximum are rejected.
func (s *ZoneService) Durations(ctx context.Context, minDays int) (models.DurationReport, error) {
	dataset, err := s.dataset(KindDurations)
	if err != nil {
		return models.DurationReport{}, err
	}
	if minDays < 0 {
		minDays = s.opts.DefaultMinDays
	}
	if minDays > s.opts.MaxMinDays {
		metrics.ObserveAnalysis(KindDurations, metrics.OutcomeError)
		return models.DurationReport{}, fmt.Errorf("%w: min days %d exceeds %d", models.ErrInvalidArgument, minDays, s.opts.MaxMinDays)
	}
	report := s.durations.Analyze(dataset.Events, minDays)
	s.record(KindDurations, report.Empty())
	return report, nil
}

// Scenarios lists the selectable two- and three-zone scenarios of the dataset.
func (s *ZoneService) Scenarios(ctx context.Context) ([]string, error) {
	dataset, err := s.dataset(KindScenarios)
	if err != nil {
		return nil, err
	}
	scenarios := s.matcher.Enumerate(engine.Zones(dataset.Events))
	s.record(KindScenarios, len(scenarios) == 0)
	return scenarios, nil
}

// MatchScenario returns the entities whose trajectory contains the zones of label
// as a contiguous run.
func (s *ZoneService) MatchScenario(ctx context.Context, label string) (models.ScenarioMatch, error) {
	dataset, err := s.dataset(KindMatch)
	if err != nil {
		return models.ScenarioMatch{}, err
	}
	match, err := s.match(dataset, label)
	if err != nil {
		metrics.ObserveAnalysis(KindMatch, metrics.OutcomeError)
		return models.ScenarioMatch{}, err
	}
	s.record(KindMatch, match.Empty())
	return match, nil
}

// Stalled lists entities whose latest zone is not terminal.
func (s *ZoneService) Stalled(ctx context.Context) (models.StalledReport, error) {
	dataset, err := s.dataset(KindStalled)
	if err != nil {
		return models.StalledReport{}, err
	}
	report := engine.Stalled(dataset.Events, s.opts.TerminalZone)
	s.record(KindStalled, report.Empty())
	return report, nil
}

// Patterns returns the transition patterns mined for the current dataset.
func (s *ZoneService) Patterns(ctx context.Context) ([]models.TransitionPattern, error) {
	if _, err := s.dataset(KindPatterns); err != nil {
		return nil, err
	}
	s.mu.RLock()
	mined := s.mined
	s.mu.RUnlock()
	if mined == nil {
		mined = []models.TransitionPattern{}
	}
	s.record(KindPatterns, len(mined) == 0)
	return mined, nil
}

// Summary returns headline KPIs of the current dataset.
func (s *ZoneService) Summary(ctx context.Context) (models.Summary, error) {
	dataset, err := s.dataset(KindSummary)
	if err != nil {
		return models.Summary{}, err
	}
	summary := engine.Summarise(dataset.ID, dataset.Events, s.opts.TerminalZone)
	s.record(KindSummary, summary.Events == 0)
	return summary, nil
}

// LatencyP95 returns the current p95 upload latency.
func (s *ZoneService) LatencyP95() time.Duration {
	if s.latencies == nil {
		return 0
	}
	return s.latencies.Percentile(95)
}

func (s *ZoneService) dataset(kind string) (*models.Dataset, error) {
	dataset, err := s.Current()
	if err != nil {
		metrics.ObserveAnalysis(kind, metrics.OutcomeError)
		return nil, err
	}
	return dataset, nil
}

func (s *ZoneService) match(dataset *models.Dataset, label string) (models.ScenarioMatch, error) {
	path, err := s.matcher.Parse(label)
	if err != nil {
		return models.ScenarioMatch{}, err
	}
	var sequences []engine.Sequence
	if dataset.HasRecords() {
		sequences = engine.SequencesFromRecords(dataset.Records)
	} else {
		sequences = engine.SequencesFromEvents(dataset.Events)
	}
	match, err := s.matcher.Match(sequences, path)
	if err != nil {
		return models.ScenarioMatch{}, fmt.Errorf("match %q: %w", label, err)
	}
	return match, nil
}

func (s *ZoneService) record(kind string, empty bool) {
	outcome := metrics.OutcomeSuccess
	if empty {
		outcome = metrics.OutcomeEmpty
	}
	metrics.ObserveAnalysis(kind, outcome)
}

func (s *ZoneService) observe(d time.Duration) {
	s.latencies.Observe(d)
	if count := s.latencies.Count(); count >= 20 && count%20 == 0 {
		s.logger.Info("upload latency", slog.Duration("p95", s.latencies.Percentile(95)), slog.Int("samples", count))
	}
}
