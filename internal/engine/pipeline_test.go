package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/miradorstack/mirador-zones/internal/ingest"
	"github.com/miradorstack/mirador-zones/internal/models"
)

type fakeStore struct {
	saved []*models.Dataset
	err   error
}

func (f *fakeStore) Save(ctx context.Context, dataset *models.Dataset) error {
	f.saved = append(f.saved, dataset)
	return f.err
}

type fakeMiner struct {
	calls int
}

func (f *fakeMiner) Mine(ctx context.Context, datasetID string, events []models.TransitionEvent) ([]models.TransitionPattern, error) {
	f.calls++
	return []models.TransitionPattern{{From: "A", To: "B", Count: 1}}, nil
}

const upload = "ИНН,Зона,Дата_утверждения\n" +
	"1,A,2024-01-01\n" +
	"1,A,2024-01-05\n" +
	"1,Ч,2024-01-20\n" +
	"2,B,2024-01-03\n"

func TestPipelineRun(t *testing.T) {
	store := &fakeStore{}
	miner := &fakeMiner{}
	pipeline := NewPipeline(nil, ingest.Options{}, store, miner)

	result, err := pipeline.Run(context.Background(), "zones.csv", strings.NewReader(upload))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ds := result.Dataset
	if ds.ID == "" || ds.Source != "zones.csv" || ds.LoadedAt.IsZero() {
		t.Fatalf("dataset metadata not populated: %+v", ds)
	}
	if len(ds.Records) != 4 {
		t.Fatalf("expected 4 raw records, got %d", len(ds.Records))
	}
	if len(ds.Events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(ds.Events))
	}
	if len(store.saved) != 1 || store.saved[0] != ds {
		t.Fatalf("expected dataset to be persisted once")
	}
	if miner.calls != 1 || len(result.Patterns) != 1 {
		t.Fatalf("expected patterns to be mined")
	}
}

func TestPipelineRejectsMalformedInputWithoutPersisting(t *testing.T) {
	store := &fakeStore{}
	pipeline := NewPipeline(nil, ingest.Options{}, store, nil)

	_, err := pipeline.Run(context.Background(), "zones.csv", strings.NewReader("ИНН,Зона\n1,A\n"))
	if !errors.Is(err, models.ErrMalformedInput) {
		t.Fatalf("expected malformed input, got %v", err)
	}
	if len(store.saved) != 0 {
		t.Fatalf("nothing should be persisted on failure")
	}
}

func TestPipelineStoreFailureKeepsDataset(t *testing.T) {
	store := &fakeStore{err: errors.New("disk full")}
	pipeline := NewPipeline(nil, ingest.Options{}, store, nil)

	result, err := pipeline.Run(context.Background(), "zones.csv", strings.NewReader(upload))
	if err != nil {
		t.Fatalf("persistence is a cache and must not fail the run: %v", err)
	}
	if result.Dataset == nil || len(result.Dataset.Events) != 3 {
		t.Fatalf("expected dataset despite store failure")
	}
}
