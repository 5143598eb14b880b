package models

import "time"

// Filter narrows the transition table the way the analyst's sidebar does.
type Filter struct {
	// Zones keeps only events whose current zone is listed; empty keeps all.
	Zones []string
	// From and To bound ApprovedAt inclusively; zero values are open bounds.
	From time.Time
	To   time.Time
	// TransitionsOnly drops each entity's first observation, which is a change by convention only.
	TransitionsOnly bool
}
