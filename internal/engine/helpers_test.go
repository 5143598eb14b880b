package engine

import (
	"time"

	"github.com/miradorstack/mirador-zones/internal/models"
)

var base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time {
	return base.AddDate(0, 0, n)
}

// history builds raw records for one entity: zones[i] observed on day days[i].
func history(entity string, zones []string, days []int) []models.ZoneRecord {
	records := make([]models.ZoneRecord, len(zones))
	for i := range zones {
		records[i] = models.ZoneRecord{Entity: entity, Zone: zones[i], ApprovedAt: day(days[i])}
	}
	return records
}

func numberRows(records []models.ZoneRecord) []models.ZoneRecord {
	for i := range records {
		records[i].Row = i
	}
	return records
}

func concat(groups ...[]models.ZoneRecord) []models.ZoneRecord {
	var out []models.ZoneRecord
	for _, g := range groups {
		out = append(out, g...)
	}
	return numberRows(out)
}
