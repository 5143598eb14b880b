package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/miradorstack/mirador-zones/internal/config"
	"github.com/miradorstack/mirador-zones/internal/engine"
	"github.com/miradorstack/mirador-zones/internal/models"
	"github.com/miradorstack/mirador-zones/internal/repo"
	"github.com/miradorstack/mirador-zones/internal/report"
	"github.com/miradorstack/mirador-zones/internal/utils"
)

type options struct {
	configPath    string
	input         string
	output        string
	sheet         string
	durationsPath string
	minDays       int
	stats         bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	flag.StringVar(&opts.input, "in", "", "Input spreadsheet (.xlsx or .csv)")
	flag.StringVar(&opts.output, "out", "", "Derived transitions file (defaults to dataset.path)")
	flag.StringVar(&opts.sheet, "sheet", "", "Worksheet name (defaults to the first sheet)")
	flag.StringVar(&opts.durationsPath, "durations", "", "Optional durations output file")
	flag.IntVar(&opts.minDays, "min-days", -1, "Minimum days before the terminal zone (defaults to analysis.defaultMinDays)")
	flag.BoolVar(&opts.stats, "stats", false, "Print duration statistics to stdout")
	flag.Parse()

	if opts.input == "" {
		fmt.Fprintln(os.Stderr, "zones-extract: -in is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", opts.configPath), slog.Any("error", err))
		os.Exit(1)
	}
	logger := utils.NewLoggerTo(os.Stderr, cfg.Logging.Level, cfg.Logging.JSON)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, cfg, opts, os.Stdout); err != nil {
		logger.Error("extraction failed", slog.String("input", opts.input), slog.Any("error", err))
		if errors.Is(err, models.ErrMalformedInput) {
			os.Exit(3)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, cfg *config.Config, opts options, stdout io.Writer) error {
	if opts.output == "" {
		opts.output = cfg.Dataset.Path
	}
	if opts.sheet != "" {
		cfg.Dataset.Sheet = opts.sheet
	}
	if opts.minDays < 0 {
		opts.minDays = cfg.Analysis.DefaultMinDays
	}

	in, err := os.Open(opts.input)
	if err != nil {
		return err
	}
	defer in.Close()

	store := repo.NewFileStore(opts.output, cfg.Dataset.Columns, logger)
	pipeline := engine.NewPipeline(logger, cfg.IngestOptions(), nil, nil)
	result, err := pipeline.Run(ctx, filepath.Base(opts.input), in)
	if err != nil {
		return err
	}
	if err := store.Save(ctx, result.Dataset); err != nil {
		return err
	}
	logger.Info("derived table written", slog.String("path", opts.output), slog.Int("events", len(result.Dataset.Events)))

	if opts.durationsPath == "" && !opts.stats {
		return nil
	}

	analysis := engine.NewDurationAnalyzer(cfg.Analysis.TerminalZone).Analyze(result.Dataset.Events, opts.minDays)
	if analysis.Empty() {
		logger.Warn("no durations at threshold", slog.Int("min_days", opts.minDays))
	}
	if opts.durationsPath != "" {
		if err := writeFile(opts.durationsPath, func(w io.Writer) error {
			return report.WriteDurations(w, cfg.Dataset.Columns, analysis)
		}); err != nil {
			return err
		}
	}
	if opts.stats {
		if err := report.WriteDurationStats(stdout, analysis); err != nil {
			return err
		}
		fmt.Fprintln(stdout)
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
