package report

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/miradorstack/mirador-zones/internal/ingest"
	"github.com/miradorstack/mirador-zones/internal/models"
	"github.com/miradorstack/mirador-zones/internal/utils"
)

// TransitionHeader returns the derived table header for the given input columns.
func TransitionHeader(cols ingest.Columns) []string {
	return []string{cols.Entity, cols.Zone, cols.Date, ColPrevZone, ColNextZone, ColNextDate, ColZoneChange, ColStep}
}

// WriteTransitions renders the derived transition table.
func WriteTransitions(w io.Writer, cols ingest.Columns, events []models.TransitionEvent) error {
	rows := make([][]string, 0, len(events))
	for _, ev := range events {
		rows = append(rows, []string{
			ev.Entity,
			ev.Zone,
			utils.FormatDate(ev.ApprovedAt),
			ev.PrevZone,
			ev.NextZone,
			utils.FormatDate(ev.NextDate),
			formatBool(ev.Changed),
			strconv.Itoa(ev.Step),
		})
	}
	return writeTable(w, TransitionHeader(cols), rows)
}

// ReadTransitions parses a derived transition table written by WriteTransitions.
// Any malformed row rejects the whole table.
func ReadTransitions(ctx context.Context, r io.Reader, cols ingest.Columns) ([]models.TransitionEvent, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, malformed("empty transition table", nil)
	}
	if err != nil {
		return nil, malformed("read header", err)
	}
	idx, err := indexHeader(header, TransitionHeader(cols))
	if err != nil {
		return nil, err
	}

	events := make([]models.TransitionEvent, 0)
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, malformed(fmt.Sprintf("line %d", line), err)
		}
		if line%1024 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		ev, err := parseEvent(record, idx)
		if err != nil {
			return nil, malformed(fmt.Sprintf("line %d", line), err)
		}
		events = append(events, ev)
	}
	return events, nil
}

func parseEvent(record []string, idx []int) (models.TransitionEvent, error) {
	get := func(i int) string {
		if idx[i] >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx[i]])
	}

	ev := models.TransitionEvent{
		Entity:   get(0),
		Zone:     get(1),
		PrevZone: get(3),
		NextZone: get(4),
	}
	if ev.Entity == "" || ev.Zone == "" {
		return ev, fmt.Errorf("entity and zone are required")
	}
	var err error
	if ev.ApprovedAt, err = utils.ParseDate(get(2)); err != nil {
		return ev, err
	}
	if next := get(5); next != "" {
		if ev.NextDate, err = utils.ParseDate(next); err != nil {
			return ev, err
		}
	}
	if ev.Changed, err = parseBool(get(6)); err != nil {
		return ev, err
	}
	if ev.Step, err = strconv.Atoi(get(7)); err != nil || ev.Step < 1 {
		return ev, fmt.Errorf("invalid step %q", get(7))
	}
	return ev, nil
}

func indexHeader(header, want []string) ([]int, error) {
	pos := make(map[string]int, len(header))
	for i, name := range header {
		pos[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	idx := make([]int, len(want))
	var missing []string
	for i, name := range want {
		p, ok := pos[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		idx[i] = p
	}
	if len(missing) > 0 {
		return nil, malformed("missing columns: "+strings.Join(missing, ", "), nil)
	}
	return idx, nil
}

func malformed(msg string, err error) error {
	return utils.KindError(models.ErrMalformedInput, "transition table", msg, err)
}
