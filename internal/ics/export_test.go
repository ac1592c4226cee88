package ics

import (
	"strings"
	"testing"
	"time"

	"eventcal/internal/recur"
)

func TestWriteProducesVEvents(t *testing.T) {
	start := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	src := recur.Event{
		ID:          7,
		Title:       "Standup",
		Description: "Daily sync",
		Location:    "Room 2",
	}
	occs := []recur.Occurrence{
		{ID: "7-1748858400000", Title: "Standup", Start: start, End: start.Add(time.Hour), Source: src},
		{ID: "7-1748944800000", Title: "Standup", Start: start.AddDate(0, 0, 1), End: start.AddDate(0, 0, 1).Add(time.Hour), Source: src},
	}

	var sb strings.Builder
	if err := Write(&sb, occs); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := sb.String()

	if !strings.Contains(out, "BEGIN:VCALENDAR") || !strings.Contains(out, "END:VCALENDAR") {
		t.Fatal("missing calendar envelope")
	}
	if got := strings.Count(out, "BEGIN:VEVENT"); got != 2 {
		t.Errorf("found %d VEVENTs, want 2", got)
	}
	if !strings.Contains(out, "UID:7-1748858400000@eventcal") {
		t.Error("missing stable UID")
	}
	if !strings.Contains(out, "SUMMARY:Standup") {
		t.Error("missing summary")
	}
	if !strings.Contains(out, "LOCATION:Room 2") {
		t.Error("missing location")
	}
}

func TestWriteEmptyWindow(t *testing.T) {
	var sb strings.Builder
	if err := Write(&sb, nil); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !strings.Contains(sb.String(), "BEGIN:VCALENDAR") {
		t.Error("empty export should still be a valid calendar")
	}
}
