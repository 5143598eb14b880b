package engine

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/miradorstack/mirador-zones/internal/ingest"
	"github.com/miradorstack/mirador-zones/internal/metrics"
	"github.com/miradorstack/mirador-zones/internal/models"
)

// DatasetStore persists the derived dataset after a successful extraction.
type DatasetStore interface {
	Save(ctx context.Context, dataset *models.Dataset) error
}

// PatternMiner aggregates transition patterns for a freshly extracted dataset.
type PatternMiner interface {
	Mine(ctx context.Context, datasetID string, events []models.TransitionEvent) ([]models.TransitionPattern, error)
}

// Pipeline runs one upload through ingest, extraction, pattern mining and persistence.
type Pipeline struct {
	logger *slog.Logger
	opts   ingest.Options
	store  DatasetStore
	miner  PatternMiner
	now    func() time.Time
}

// NewPipeline constructs a pipeline; store and miner may be nil.
func NewPipeline(logger *slog.Logger, opts ingest.Options, store DatasetStore, miner PatternMiner) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		logger: logger,
		opts:   opts,
		store:  store,
		miner:  miner,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Result is the output of a pipeline run.
type Result struct {
	Dataset  *models.Dataset
	Patterns []models.TransitionPattern
}

// Run ingests body (named source, used for format detection) and returns the new dataset.
// Malformed input rejects the whole file and nothing is persisted.
func (p *Pipeline) Run(ctx context.Context, source string, body io.Reader) (Result, error) {
	start := time.Now()
	result, err := p.run(ctx, source, body)
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeError
	}
	metrics.ObserveExtraction(time.Since(start), outcome)
	return result, err
}

func (p *Pipeline) run(ctx context.Context, source string, body io.Reader) (Result, error) {
	buffered := bufio.NewReader(body)
	head, _ := buffered.Peek(8)
	reader := ingest.ForSource(source, head, p.opts)

	records, err := reader.Read(ctx, buffered)
	if err != nil {
		return Result{}, fmt.Errorf("ingest %s: %w", source, err)
	}

	dataset := &models.Dataset{
		ID:       uuid.NewString(),
		Source:   source,
		LoadedAt: p.now(),
		Records:  SortRecords(records),
		Events:   Extract(records),
	}
	p.logger.Info("dataset extracted",
		slog.String("dataset_id", dataset.ID),
		slog.String("source", source),
		slog.Int("records", len(records)),
		slog.Int("events", len(dataset.Events)),
	)

	var mined []models.TransitionPattern
	if p.miner != nil {
		mined, err = p.miner.Mine(ctx, dataset.ID, dataset.Events)
		if err != nil {
			p.logger.Warn("pattern mining failed", slog.String("dataset_id", dataset.ID), slog.Any("error", err))
		}
	}

	if p.store != nil {
		if err := p.store.Save(ctx, dataset); err != nil {
			p.logger.Error("dataset persistence failed", slog.String("dataset_id", dataset.ID), slog.Any("error", err))
		}
	}

	entities, _ := EventsByEntity(dataset.Events)
	metrics.SetDatasetSize(len(entities), len(dataset.Events))
	return Result{Dataset: dataset, Patterns: mined}, nil
}
