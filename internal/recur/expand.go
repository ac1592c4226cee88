// Package recur expands recurrence rules into concrete calendar occurrences.
// Expansion is a pure function of its inputs: no state is retained between
// calls and identical inputs always produce identical output.
package recur

import (
	"fmt"
	"strconv"
	"time"
)

// Event is the expansion input: the fields of a schedulable record that
// recurrence needs. The start/end pair supplies the duration applied to
// every generated occurrence.
type Event struct {
	ID          int64
	Title       string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	Recurring   bool
	Rule        *Rule
}

// Occurrence is one concrete time instance of an event within a window.
type Occurrence struct {
	// ID is stable across re-expansion: the event id for a one-off,
	// "<id>-<startUnixMilli>" for a generated instance.
	ID     string
	Title  string
	Start  time.Time
	End    time.Time
	Source Event
}

// Expand materializes the occurrences of ev that fall inside
// [windowStart, windowEnd], both bounds inclusive.
//
// A non-recurring event yields exactly one occurrence with the event's own
// interval. A recurring event is generated from its rule, capped at the
// rule's end date when one is set: a series whose end date has already
// passed produces nothing beyond that date even if the window extends
// further. A WEEKLY rule with no selected weekdays yields no occurrences.
func Expand(ev Event, windowStart, windowEnd time.Time) ([]Occurrence, error) {
	if windowEnd.Before(windowStart) {
		return nil, &ValidationError{Field: "window", Reason: "end precedes start"}
	}

	// A one-off event always yields itself; the caller's window only drives
	// rule generation. This mirrors the server, which filters one-offs by
	// date range before they ever reach the client.
	if !ev.Recurring || ev.Rule == nil {
		return []Occurrence{{
			ID:     strconv.FormatInt(ev.ID, 10),
			Title:  ev.Title,
			Start:  ev.Start,
			End:    ev.End,
			Source: ev,
		}}, nil
	}

	sched, err := ev.Rule.compile()
	if err != nil {
		return nil, err
	}
	if sched == nil {
		// YEARLY: stored but not expanded.
		return nil, nil
	}

	upper := effectiveUpperBound(ev, windowEnd)
	if upper.Before(windowStart) {
		return nil, nil
	}

	starts, err := sched.between(ev.Start, windowStart, upper)
	if err != nil {
		return nil, err
	}

	duration := ev.End.Sub(ev.Start)
	occs := make([]Occurrence, 0, len(starts))
	for _, start := range starts {
		occs = append(occs, Occurrence{
			ID:     fmt.Sprintf("%d-%d", ev.ID, start.UnixMilli()),
			Title:  ev.Title,
			Start:  start,
			End:    start.Add(duration),
			Source: ev,
		})
	}
	return occs, nil
}

// effectiveUpperBound caps generation at the rule's end date when set.
// The end date is inclusive through the whole calendar day, interpreted in
// the event's own location.
func effectiveUpperBound(ev Event, windowEnd time.Time) time.Time {
	if ev.Rule.EndDate == "" {
		return windowEnd
	}
	d, err := time.Parse("2006-01-02", ev.Rule.EndDate)
	if err != nil {
		// compile already rejected malformed dates
		return windowEnd
	}
	loc := ev.Start.Location()
	endOfDay := time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, 0, loc)
	if endOfDay.Before(windowEnd) {
		return endOfDay
	}
	return windowEnd
}

// Closed reports whether a recurring event's series has already ended
// relative to now. A series without an end date never closes. One-off
// events are closed once their end time passes.
func Closed(ev Event, now time.Time) bool {
	if ev.Recurring && ev.Rule != nil {
		if ev.Rule.EndDate == "" {
			return false
		}
		d, err := time.Parse("2006-01-02", ev.Rule.EndDate)
		if err != nil {
			return false
		}
		loc := ev.Start.Location()
		return time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, 0, loc).Before(now)
	}
	return ev.End.Before(now)
}
