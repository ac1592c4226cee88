// Package ics writes expanded occurrences as an iCalendar file, so a window
// of the schedule can be handed to other calendar software.
package ics

import (
	"fmt"
	"io"
	"time"

	ical "github.com/arran4/golang-ical"

	"eventcal/internal/recur"
)

// Write serializes the occurrences as VEVENTs. Occurrence IDs are stable
// across re-expansion, so repeated exports of the same window produce the
// same UIDs.
func Write(w io.Writer, occs []recur.Occurrence) error {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//eventcal//EN")

	now := time.Now().UTC()
	for _, occ := range occs {
		ve := cal.AddEvent(fmt.Sprintf("%s@eventcal", occ.ID))
		ve.SetDtStampTime(now)
		ve.SetStartAt(occ.Start)
		ve.SetEndAt(occ.End)
		ve.SetSummary(occ.Title)
		if occ.Source.Description != "" {
			ve.SetDescription(occ.Source.Description)
		}
		if occ.Source.Location != "" {
			ve.SetLocation(occ.Source.Location)
		}
	}

	_, err := io.WriteString(w, cal.Serialize())
	return err
}
