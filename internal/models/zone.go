package models

import (
	"encoding/json"
	"time"
)

// ZoneRecord is one raw input row: an entity observed in a zone on an approval date.
type ZoneRecord struct {
	Entity     string    `json:"entity"`
	Zone       string    `json:"zone"`
	ApprovedAt time.Time `json:"approved_at"`
	// Row is the zero-based position in the source file; it breaks same-date ties.
	Row int `json:"row"`
}

// TransitionEvent is a retained zone change for an entity. PrevZone, NextZone and
// NextDate are empty when there is no neighbouring raw record.
type TransitionEvent struct {
	Entity     string    `json:"entity"`
	Zone       string    `json:"zone"`
	ApprovedAt time.Time `json:"approved_at"`
	PrevZone   string    `json:"prev_zone,omitempty"`
	NextZone   string    `json:"next_zone,omitempty"`
	NextDate   time.Time `json:"next_date"`
	Changed    bool      `json:"zone_change"`
	Step       int       `json:"step"`
}

// HasNext reports whether a raw record followed the one that produced the event.
func (e TransitionEvent) HasNext() bool {
	return e.NextZone != "" || !e.NextDate.IsZero()
}

// MarshalJSON writes next_date as null when no raw record followed the event.
func (e TransitionEvent) MarshalJSON() ([]byte, error) {
	type plain TransitionEvent
	out := struct {
		plain
		NextDate *time.Time `json:"next_date"`
	}{plain: plain(e)}
	if !e.NextDate.IsZero() {
		out.NextDate = &e.NextDate
	}
	return json.Marshal(out)
}

// Dataset is the product of one extraction run. It is replaced whole on every upload.
type Dataset struct {
	ID       string            `json:"id"`
	Source   string            `json:"source"`
	LoadedAt time.Time         `json:"loaded_at"`
	Records  []ZoneRecord      `json:"records,omitempty"`
	Events   []TransitionEvent `json:"events"`
}

// HasRecords reports whether the raw records are available (they are not when the
// dataset was restored from the derived table alone).
func (d *Dataset) HasRecords() bool {
	return d != nil && len(d.Records) > 0
}
