package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MIRADOR_ZONES_CONFIG", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Analysis.TerminalZone != "Ч" {
		t.Fatalf("unexpected terminal zone %q", cfg.Analysis.TerminalZone)
	}
	if cfg.Analysis.DefaultMinDays != 10 {
		t.Fatalf("unexpected default min days %d", cfg.Analysis.DefaultMinDays)
	}
	if cfg.Dataset.Columns.Entity != "ИНН" || cfg.Dataset.Columns.Zone != "Зона" || cfg.Dataset.Columns.Date != "Дата_утверждения" {
		t.Fatalf("unexpected columns %+v", cfg.Dataset.Columns)
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "zones.yaml")
	body := `
server:
  httpAddress: ":9090"
  gracefulTimeout: 3s
dataset:
  path: /tmp/derived.csv
  sheet: Лист1
  columns:
    entity: inn
    zone: zone
    date: approved
analysis:
  defaultMinDays: 30
cache:
  datasetTTL: 1h
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("MIRADOR_ZONES_LOG_LEVEL", "debug")
	t.Setenv("MIRADOR_ZONES_CACHE_ENABLED", "true")
	t.Setenv("MIRADOR_ZONES_CACHE_ADDR", "localhost:6379")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.HTTPAddress != ":9090" || cfg.Server.GracefulTimeout != 3*time.Second {
		t.Fatalf("unexpected server config %+v", cfg.Server)
	}
	if cfg.Server.GRPCAddress != ":50051" {
		t.Fatalf("expected default grpc address to survive, got %q", cfg.Server.GRPCAddress)
	}
	if cfg.Dataset.Columns.Entity != "inn" || cfg.Dataset.Sheet != "Лист1" {
		t.Fatalf("unexpected dataset config %+v", cfg.Dataset)
	}
	if cfg.Analysis.DefaultMinDays != 30 || cfg.Analysis.TerminalZone != "Ч" {
		t.Fatalf("unexpected analysis config %+v", cfg.Analysis)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("expected env log level, got %q", cfg.Logging.Level)
	}
	if !cfg.Cache.Enabled || cfg.Cache.Addr != "localhost:6379" || cfg.Cache.DatasetTTL != time.Hour {
		t.Fatalf("unexpected cache config %+v", cfg.Cache)
	}

	opts := cfg.IngestOptions()
	if opts.Sheet != "Лист1" || opts.Columns.Zone != "zone" {
		t.Fatalf("unexpected ingest options %+v", opts)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	cfg := defaultConfig()
	cfg.Analysis.TerminalZone = " "
	cfg.Analysis.DefaultMinDays = -1
	cfg.Dataset.Columns.Zone = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"terminalZone", "defaultMinDays", "dataset.columns"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}

	cfg = defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}
