package recur

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

// Frequency is the repetition unit of a recurrence rule. The server also
// stores YEARLY, which is accepted structurally but never expanded.
type Frequency string

const (
	Daily   Frequency = "DAILY"
	Weekly  Frequency = "WEEKLY"
	Monthly Frequency = "MONTHLY"
	Yearly  Frequency = "YEARLY"
)

// Weekday uses the server's three-letter codes.
type Weekday string

const (
	Monday    Weekday = "MON"
	Tuesday   Weekday = "TUE"
	Wednesday Weekday = "WED"
	Thursday  Weekday = "THU"
	Friday    Weekday = "FRI"
	Saturday  Weekday = "SAT"
	Sunday    Weekday = "SUN"
)

var weekdayMap = map[Weekday]rrule.Weekday{
	Monday:    rrule.MO,
	Tuesday:   rrule.TU,
	Wednesday: rrule.WE,
	Thursday:  rrule.TH,
	Friday:    rrule.FR,
	Saturday:  rrule.SA,
	Sunday:    rrule.SU,
}

// Rule is the wire shape of a recurrence rule as the API serves it.
// Weekdays applies only to WEEKLY rules; Weekday and Ordinal only to MONTHLY
// rules ("third Tuesday" style). EndDate is a calendar date (2006-01-02).
type Rule struct {
	Frequency Frequency `json:"frequency"`
	Interval  int       `json:"interval"`
	EndDate   string    `json:"end_date,omitempty"`
	Weekdays  []Weekday `json:"weekdays,omitempty"`
	Weekday   Weekday   `json:"weekday,omitempty"`
	Ordinal   int       `json:"ordinal,omitempty"`
}

// ValidationError reports a malformed rule or event field. It is returned
// synchronously so callers can distinguish bad data from an empty window.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validate checks the rule independent of any window. Expansion calls it
// first and fails fast instead of silently yielding nothing.
func (r *Rule) Validate() error {
	switch r.Frequency {
	case Daily, Weekly, Monthly, Yearly:
	default:
		return &ValidationError{Field: "frequency", Reason: fmt.Sprintf("unknown frequency %q", r.Frequency)}
	}
	if r.Interval <= 0 {
		return &ValidationError{Field: "interval", Reason: "must be a positive integer"}
	}
	if r.EndDate != "" {
		if _, err := time.Parse("2006-01-02", r.EndDate); err != nil {
			return &ValidationError{Field: "end_date", Reason: fmt.Sprintf("not a date: %q", r.EndDate)}
		}
	}
	for _, wd := range r.Weekdays {
		if _, ok := weekdayMap[wd]; !ok {
			return &ValidationError{Field: "weekdays", Reason: fmt.Sprintf("unknown weekday %q", wd)}
		}
	}
	if r.Frequency == Monthly && (r.Weekday != "" || r.Ordinal != 0) {
		if _, ok := weekdayMap[r.Weekday]; !ok {
			return &ValidationError{Field: "weekday", Reason: fmt.Sprintf("unknown weekday %q", r.Weekday)}
		}
		if r.Ordinal < 1 || r.Ordinal > 5 {
			return &ValidationError{Field: "ordinal", Reason: "must be between 1 and 5"}
		}
	}
	return nil
}

// schedule is the compiled, frequency-specific form of a Rule. Each variant
// carries only the fields its frequency uses.
type schedule interface {
	// between generates occurrence starts in [after, before], inclusive.
	between(dtstart, after, before time.Time) ([]time.Time, error)
}

type dailySchedule struct {
	interval int
}

type weeklySchedule struct {
	interval int
	weekdays []rrule.Weekday
}

type monthlySchedule struct {
	interval int
	// byDay is nil for plain same-day-of-month repetition.
	byDay *rrule.Weekday
}

// compile turns a validated Rule into its schedule variant. YEARLY compiles
// to nil: the product stores it but never expands it.
func (r *Rule) compile() (schedule, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	switch r.Frequency {
	case Daily:
		return &dailySchedule{interval: r.Interval}, nil
	case Weekly:
		ws := make([]rrule.Weekday, 0, len(r.Weekdays))
		for _, wd := range r.Weekdays {
			ws = append(ws, weekdayMap[wd])
		}
		return &weeklySchedule{interval: r.Interval, weekdays: ws}, nil
	case Monthly:
		s := &monthlySchedule{interval: r.Interval}
		if r.Weekday != "" && r.Ordinal != 0 {
			wdv := weekdayMap[r.Weekday]
			wd := wdv.Nth(r.Ordinal)
			s.byDay = &wd
		}
		return s, nil
	default: // Yearly
		return nil, nil
	}
}

func (s *dailySchedule) between(dtstart, after, before time.Time) ([]time.Time, error) {
	return runRule(rrule.ROption{
		Freq:     rrule.DAILY,
		Interval: s.interval,
		Dtstart:  dtstart,
		Until:    before,
	}, after, before)
}

func (s *weeklySchedule) between(dtstart, after, before time.Time) ([]time.Time, error) {
	// An empty weekday set selects nothing. Without this guard the rrule
	// engine would fall back to the dtstart weekday.
	if len(s.weekdays) == 0 {
		return nil, nil
	}
	return runRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Interval:  s.interval,
		Dtstart:   dtstart,
		Until:     before,
		Byweekday: s.weekdays,
	}, after, before)
}

func (s *monthlySchedule) between(dtstart, after, before time.Time) ([]time.Time, error) {
	opt := rrule.ROption{
		Freq:     rrule.MONTHLY,
		Interval: s.interval,
		Dtstart:  dtstart,
		Until:    before,
	}
	if s.byDay != nil {
		opt.Byweekday = []rrule.Weekday{*s.byDay}
	}
	return runRule(opt, after, before)
}

func runRule(opt rrule.ROption, after, before time.Time) ([]time.Time, error) {
	r, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, &ValidationError{Field: "recurrence_rule", Reason: err.Error()}
	}
	return r.Between(after, before, true), nil
}
