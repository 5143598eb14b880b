package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/mirador-zones/internal/models"
)

func sampleEvents() []models.TransitionEvent {
	return Extract(concat(
		history("1", []string{"A", "B", "Ч"}, []int{0, 5, 9}),
		history("2", []string{"B", "A"}, []int{2, 30}),
		history("3", []string{"C"}, []int{40}),
	))
}

func TestApplyFilterZonesAndDates(t *testing.T) {
	events := sampleEvents()

	byZone := ApplyFilter(events, models.Filter{Zones: []string{"B"}})
	assert.Equal(t, []string{"B", "B"}, zonesOf(byZone))

	byDate := ApplyFilter(events, models.Filter{From: day(5), To: day(30)})
	assert.Equal(t, []string{"B", "Ч", "A"}, zonesOf(byDate))

	all := ApplyFilter(events, models.Filter{})
	assert.Equal(t, events, all)
}

func TestApplyFilterTransitionsOnly(t *testing.T) {
	out := ApplyFilter(sampleEvents(), models.Filter{TransitionsOnly: true})
	for _, ev := range out {
		assert.Greater(t, ev.Step, 1)
	}
	assert.Len(t, out, 3)
}

func TestRestrictToEntities(t *testing.T) {
	out := RestrictToEntities(sampleEvents(), []string{"2"})
	require.Len(t, out, 2)
	assert.Equal(t, "2", out[0].Entity)
}

func TestZonesAndBounds(t *testing.T) {
	events := sampleEvents()
	assert.Equal(t, []string{"A", "B", "Ч", "C"}, Zones(events))

	from, to := DateBounds(events)
	assert.Equal(t, day(0), from)
	assert.Equal(t, day(40), to)

	from, to = DateBounds(nil)
	assert.True(t, from.IsZero() && to.IsZero())
}

func TestStalled(t *testing.T) {
	events := Extract(concat(
		history("1", []string{"A", "Ч"}, []int{0, 9}),
		history("2", []string{"B", "A"}, []int{2, 30}),
		history("3", []string{"C", "A"}, []int{1, 3}),
		history("4", []string{"Ч", "B"}, []int{1, 50}),
	))
	report := Stalled(events, "Ч")

	require.Len(t, report.Entities, 3)
	assert.Equal(t, "4", report.Entities[0].Entity)
	assert.Equal(t, "2", report.Entities[1].Entity)
	assert.Equal(t, []models.ZoneCount{{Zone: "A", Count: 2}, {Zone: "B", Count: 1}}, report.ByZone)
}

func TestStalledEmptyWhenAllTerminal(t *testing.T) {
	events := Extract(history("1", []string{"A", "Ч"}, []int{0, 1}))
	assert.True(t, Stalled(events, "Ч").Empty())
}

func TestSummarise(t *testing.T) {
	summary := Summarise("ds", sampleEvents(), "Ч")
	assert.Equal(t, "ds", summary.DatasetID)
	assert.Equal(t, 3, summary.Entities)
	assert.Equal(t, 6, summary.Events)
	assert.Equal(t, 1, summary.ReachedTerminal)
	assert.Equal(t, 2, summary.Stalled)
	assert.Equal(t, 2.0, summary.AvgStepsPerEntity)
	assert.Equal(t, day(40), summary.To)
}
