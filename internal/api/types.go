package api

import (
	"time"

	"eventcal/internal/recur"
)

// Event mirrors the server's event serializer.
type Event struct {
	ID             int64       `json:"id,omitempty"`
	Title          string      `json:"title"`
	Description    string      `json:"description,omitempty"`
	Location       string      `json:"location,omitempty"`
	StartTime      time.Time   `json:"start_time"`
	EndTime        time.Time   `json:"end_time"`
	IsRecurring    bool        `json:"is_recurring"`
	RecurrenceRule *recur.Rule `json:"recurrence_rule,omitempty"`
}

// Page is one page of a cursor-paginated listing. Next and Previous are
// opaque server-issued URLs, empty when exhausted.
type Page struct {
	Count    int     `json:"count"`
	Next     string  `json:"next"`
	Previous string  `json:"previous"`
	Results  []Event `json:"results"`
}

// RecurEvent converts the wire event into the expander's input.
func (e Event) RecurEvent() recur.Event {
	return recur.Event{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		Location:    e.Location,
		Start:       e.StartTime,
		End:         e.EndTime,
		Recurring:   e.IsRecurring,
		Rule:        e.RecurrenceRule,
	}
}

// Validate applies the same constraints the server's serializer enforces,
// so obviously bad input never goes over the wire.
func (e Event) Validate() error {
	if e.Title == "" {
		return &recur.ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if !e.EndTime.After(e.StartTime) {
		return &recur.ValidationError{Field: "end_time", Reason: "must be after start time"}
	}
	if e.IsRecurring && e.RecurrenceRule == nil {
		return &recur.ValidationError{Field: "recurrence_rule", Reason: "required for recurring events"}
	}
	if !e.IsRecurring && e.RecurrenceRule != nil {
		return &recur.ValidationError{Field: "recurrence_rule", Reason: "not allowed for non-recurring events"}
	}
	if e.RecurrenceRule != nil {
		if err := e.RecurrenceRule.Validate(); err != nil {
			return err
		}
	}
	return nil
}
