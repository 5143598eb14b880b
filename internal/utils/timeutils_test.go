package utils

import (
	"errors"
	"testing"
	"time"
)

func TestParseDateLayouts(t *testing.T) {
	want := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	for _, value := range []string{"2024-03-05", "2024-03-05 13:45:00", "05.03.2024", "2024/03/05", " 2024-03-05T08:00:00Z "} {
		got, err := ParseDate(value)
		if err != nil {
			t.Fatalf("parse %q: %v", value, err)
		}
		if !got.Equal(want) {
			t.Fatalf("parse %q: expected %v, got %v", value, want, got)
		}
	}
}

func TestParseDateRejectsGarbage(t *testing.T) {
	if _, err := ParseDate("not-a-date"); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := ParseDate(""); err == nil {
		t.Fatalf("expected error for empty value")
	}
}

func TestDaysBetweenIgnoresTimeOfDay(t *testing.T) {
	start := time.Date(2024, 1, 1, 23, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 11, 1, 0, 0, 0, time.UTC)
	if got := DaysBetween(start, end); got != 10 {
		t.Fatalf("expected 10 days, got %d", got)
	}
	if got := DaysBetween(end, start); got != -10 {
		t.Fatalf("expected -10 days, got %d", got)
	}
}

func TestDaysBetweenWideGap(t *testing.T) {
	start := time.Date(1600, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2400, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := DaysBetween(start, end); got != 292194 {
		t.Fatalf("expected 292194 days, got %d", got)
	}
	if got := DaysBetween(end, start); got != -292194 {
		t.Fatalf("expected -292194 days, got %d", got)
	}
}

func TestAppErrorKind(t *testing.T) {
	kind := errors.New("kind")
	cause := errors.New("cause")
	err := KindError(kind, "ingest", "bad row", cause)
	if !errors.Is(err, kind) || !errors.Is(err, cause) {
		t.Fatalf("expected kind and cause to be reachable: %v", err)
	}
	if err.Error() != "ingest: bad row: cause" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
