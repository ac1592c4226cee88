package ui

import (
	"testing"
	"time"

	"eventcal/internal/api"
)

func TestMonthWindowBounds(t *testing.T) {
	ref := time.Date(2025, time.June, 15, 12, 30, 0, 0, time.UTC)
	start, end := monthWindow(ref)
	if !start.Equal(time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("start = %v", start)
	}
	if !end.Equal(time.Date(2025, time.June, 30, 23, 59, 59, 0, time.UTC)) {
		t.Fatalf("end = %v", end)
	}
}

func TestGridWindowCoversWholeWeeks(t *testing.T) {
	// June 2025 starts on a Sunday and ends on a Monday.
	start, end := monthWindow(time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC))

	gs, ge := gridWindow(start, end, time.Monday)
	if gs.Weekday() != time.Monday {
		t.Fatalf("grid start weekday = %v", gs.Weekday())
	}
	if !gs.Equal(time.Date(2025, time.May, 26, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("grid start = %v", gs)
	}
	if ge.Weekday() != time.Sunday {
		t.Fatalf("grid end weekday = %v", ge.Weekday())
	}
	if !ge.Equal(time.Date(2025, time.July, 6, 23, 59, 59, 0, time.UTC)) {
		t.Fatalf("grid end = %v", ge)
	}

	gs, ge = gridWindow(start, end, time.Sunday)
	if gs.Weekday() != time.Sunday || ge.Weekday() != time.Saturday {
		t.Fatalf("sunday grid = %v..%v", gs.Weekday(), ge.Weekday())
	}
}

func TestExpandAllSortsAndPartitionsErrors(t *testing.T) {
	from := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, time.June, 30, 23, 59, 59, 0, time.UTC)
	events := []api.Event{
		{ID: 2, Title: "later", StartTime: from.AddDate(0, 0, 10), EndTime: from.AddDate(0, 0, 10).Add(time.Hour)},
		{ID: 1, Title: "earlier", StartTime: from.AddDate(0, 0, 3), EndTime: from.AddDate(0, 0, 3).Add(time.Hour)},
	}

	occs, errs := expandAll(events, from, to)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(occs) != 2 || occs[0].Title != "earlier" || occs[1].Title != "later" {
		t.Fatalf("occurrences not sorted by start: %+v", occs)
	}
}

func TestOccurrencesOnFiltersByCivilDay(t *testing.T) {
	from := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, time.June, 30, 23, 59, 59, 0, time.UTC)
	events := []api.Event{
		{ID: 1, Title: "a", StartTime: time.Date(2025, time.June, 5, 9, 0, 0, 0, time.UTC), EndTime: time.Date(2025, time.June, 5, 10, 0, 0, 0, time.UTC)},
		{ID: 2, Title: "b", StartTime: time.Date(2025, time.June, 6, 9, 0, 0, 0, time.UTC), EndTime: time.Date(2025, time.June, 6, 10, 0, 0, 0, time.UTC)},
	}
	occs, _ := expandAll(events, from, to)

	day5 := occurrencesOn(occs, time.Date(2025, time.June, 5, 0, 0, 0, 0, time.UTC))
	if len(day5) != 1 || day5[0].Title != "a" {
		t.Fatalf("day filter wrong: %+v", day5)
	}
	empty := occurrencesOn(occs, time.Date(2025, time.June, 7, 0, 0, 0, 0, time.UTC))
	if len(empty) != 0 {
		t.Fatalf("expected no occurrences, got %+v", empty)
	}
}
