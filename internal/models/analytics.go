package models

import "time"

// DurationRecord captures the dwell time in the zone an entity occupied right before
// it first entered the terminal zone.
type DurationRecord struct {
	Entity     string    `json:"entity"`
	ZoneBefore string    `json:"zone_before"`
	EnteredAt  time.Time `json:"entered_at"`
	TerminalAt time.Time `json:"terminal_at"`
	Days       int       `json:"days"`
}

// DurationStat aggregates DurationRecord days per preceding zone.
type DurationStat struct {
	Zone   string  `json:"zone"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Count  int     `json:"count"`
}

// DurationReport bundles the per-entity records with their aggregate.
type DurationReport struct {
	Terminal  string           `json:"terminal"`
	Threshold int              `json:"threshold"`
	Records   []DurationRecord `json:"records"`
	Stats     []DurationStat   `json:"stats"`
}

// Empty reports the "no data" condition: nobody met the threshold.
func (r DurationReport) Empty() bool {
	return len(r.Records) == 0
}

// StalledEntity is the last known position of an entity that never ended in the terminal zone.
type StalledEntity struct {
	Entity     string    `json:"entity"`
	Zone       string    `json:"zone"`
	ApprovedAt time.Time `json:"approved_at"`
}

// ZoneCount is a zone label with a number of entities.
type ZoneCount struct {
	Zone  string `json:"zone"`
	Count int    `json:"count"`
}

// StalledReport lists stalled entities and how they spread across zones.
type StalledReport struct {
	Entities []StalledEntity `json:"entities"`
	ByZone   []ZoneCount     `json:"by_zone"`
}

// Empty reports whether every entity reached the terminal zone.
func (r StalledReport) Empty() bool {
	return len(r.Entities) == 0
}

// ScenarioMatch is the result of matching one scenario path against entity histories.
type ScenarioMatch struct {
	Path     []string `json:"path"`
	Label    string   `json:"label"`
	Entities []string `json:"entities"`
}

// Empty reports whether no entity followed the path.
func (m ScenarioMatch) Empty() bool {
	return len(m.Entities) == 0
}

// TransitionPattern counts how often entities moved from one zone to the next.
type TransitionPattern struct {
	From     string  `json:"from"`
	To       string  `json:"to"`
	Count    int     `json:"count"`
	Entities int     `json:"entities"`
	Share    float64 `json:"share"`
}

// Summary holds headline KPIs of a dataset.
type Summary struct {
	DatasetID         string    `json:"dataset_id"`
	Entities          int       `json:"entities"`
	Events            int       `json:"events"`
	ReachedTerminal   int       `json:"reached_terminal"`
	Stalled           int       `json:"stalled"`
	AvgStepsPerEntity float64   `json:"avg_steps_per_entity"`
	Zones             []string  `json:"zones"`
	From              time.Time `json:"from"`
	To                time.Time `json:"to"`
}
