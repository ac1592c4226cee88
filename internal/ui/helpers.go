package ui

import (
	"sort"
	"time"

	"eventcal/internal/api"
	"eventcal/internal/recur"
)

// monthWindow returns the inclusive bounds of the calendar month that
// contains ref, in ref's location.
func monthWindow(ref time.Time) (time.Time, time.Time) {
	loc := ref.Location()
	start := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 1, 0).Add(-time.Second)
	return start, end
}

// gridWindow widens a month window so it covers whole weeks, starting on
// weekStart. A 6x7 month grid shows trailing days of the previous month
// and leading days of the next one, and those cells need occurrences too.
func gridWindow(monthStart, monthEnd time.Time, weekStart time.Weekday) (time.Time, time.Time) {
	start := monthStart
	for start.Weekday() != weekStart {
		start = start.AddDate(0, 0, -1)
	}
	end := monthEnd
	last := weekStart - 1
	if last < time.Sunday {
		last = time.Saturday
	}
	for end.Weekday() != last {
		end = end.AddDate(0, 0, 1)
	}
	return start, end
}

// expandAll expands every event into the window, collecting per-event
// failures without aborting the rest. Occurrences come back sorted by
// start time.
func expandAll(events []api.Event, from, to time.Time) ([]recur.Occurrence, []expandError) {
	var occs []recur.Occurrence
	var errs []expandError
	for _, ev := range events {
		out, err := recur.Expand(ev.RecurEvent(), from, to)
		if err != nil {
			errs = append(errs, expandError{Event: ev, Err: err})
			continue
		}
		occs = append(occs, out...)
	}
	sort.Slice(occs, func(i, j int) bool {
		if occs[i].Start.Equal(occs[j].Start) {
			return occs[i].ID < occs[j].ID
		}
		return occs[i].Start.Before(occs[j].Start)
	})
	return occs, errs
}

type expandError struct {
	Event api.Event
	Err   error
}

// occurrencesOn filters occurrences to those starting on the given civil day.
func occurrencesOn(occs []recur.Occurrence, day time.Time) []recur.Occurrence {
	var out []recur.Occurrence
	y, m, d := day.Date()
	for _, o := range occs {
		oy, om, od := o.Start.In(day.Location()).Date()
		if oy == y && om == m && od == d {
			out = append(out, o)
		}
	}
	return out
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
