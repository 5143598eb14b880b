package report

import (
	"io"
	"strconv"

	"github.com/miradorstack/mirador-zones/internal/ingest"
	"github.com/miradorstack/mirador-zones/internal/models"
	"github.com/miradorstack/mirador-zones/internal/utils"
)

// WriteDurations renders per-entity dwell times before the terminal zone.
func WriteDurations(w io.Writer, cols ingest.Columns, report models.DurationReport) error {
	header := []string{cols.Entity, "Зона перед " + report.Terminal, "Дата входа", "Дата в " + report.Terminal, "Дней в зоне"}
	rows := make([][]string, 0, len(report.Records))
	for _, rec := range report.Records {
		rows = append(rows, []string{
			rec.Entity,
			rec.ZoneBefore,
			utils.FormatDate(rec.EnteredAt),
			utils.FormatDate(rec.TerminalAt),
			strconv.Itoa(rec.Days),
		})
	}
	return writeTable(w, header, rows)
}

// WriteDurationStats renders the per-zone aggregate of a duration report.
func WriteDurationStats(w io.Writer, report models.DurationReport) error {
	header := []string{"Зона перед " + report.Terminal, "mean", "median", "count"}
	rows := make([][]string, 0, len(report.Stats))
	for _, s := range report.Stats {
		rows = append(rows, []string{s.Zone, formatFloat(s.Mean), formatFloat(s.Median), strconv.Itoa(s.Count)})
	}
	return writeTable(w, header, rows)
}

// WriteStalled renders the last position of stalled entities.
func WriteStalled(w io.Writer, cols ingest.Columns, report models.StalledReport) error {
	rows := make([][]string, 0, len(report.Entities))
	for _, e := range report.Entities {
		rows = append(rows, []string{e.Entity, e.Zone, utils.FormatDate(e.ApprovedAt)})
	}
	return writeTable(w, []string{cols.Entity, cols.Zone, cols.Date}, rows)
}

// WritePatterns renders mined transition patterns.
func WritePatterns(w io.Writer, patterns []models.TransitionPattern) error {
	rows := make([][]string, 0, len(patterns))
	for _, p := range patterns {
		rows = append(rows, []string{
			p.From,
			p.To,
			strconv.Itoa(p.Count),
			strconv.Itoa(p.Entities),
			strconv.FormatFloat(p.Share, 'f', 3, 64),
		})
	}
	return writeTable(w, []string{"from", "to", "count", "entities", "share"}, rows)
}

// WriteScenarioMatch lists the entities matching a scenario, one per row.
func WriteScenarioMatch(w io.Writer, cols ingest.Columns, match models.ScenarioMatch) error {
	rows := make([][]string, 0, len(match.Entities))
	for _, entity := range match.Entities {
		rows = append(rows, []string{entity, match.Label})
	}
	return writeTable(w, []string{cols.Entity, "scenario"}, rows)
}
