package ui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"eventcal/internal/api"
	"eventcal/internal/recur"
)

type loginForm struct {
	username textinput.Model
	password textinput.Model
	focus    int
	busy     bool
	err      string
}

func newLoginForm() loginForm {
	user := textinput.New()
	user.Placeholder = "username"
	user.CharLimit = 150
	user.Focus()

	pass := textinput.New()
	pass.Placeholder = "password"
	pass.EchoMode = textinput.EchoPassword
	pass.EchoCharacter = '*'

	return loginForm{username: user, password: pass}
}

func (f *loginForm) cycle() {
	f.focus = (f.focus + 1) % 2
	if f.focus == 0 {
		f.username.Focus()
		f.password.Blur()
	} else {
		f.username.Blur()
		f.password.Focus()
	}
}

func (f *loginForm) update(msg tea.Msg) tea.Cmd {
	var cmds []tea.Cmd
	var cmd tea.Cmd
	f.username, cmd = f.username.Update(msg)
	cmds = append(cmds, cmd)
	f.password, cmd = f.password.Update(msg)
	cmds = append(cmds, cmd)
	return tea.Batch(cmds...)
}

// editorField indices; the recurrence fields past fieldRecurring only
// apply when the recurring toggle is on.
const (
	fieldTitle = iota
	fieldDescription
	fieldLocation
	fieldStart
	fieldEnd
	fieldRecurring
	fieldFrequency
	fieldInterval
	fieldEndDate
	fieldWeekdays
	fieldWeekday
	fieldOrdinal
	fieldCount
)

var fieldLabels = [fieldCount]string{
	"Title",
	"Description",
	"Location",
	"Start (2006-01-02 15:04)",
	"End (2006-01-02 15:04)",
	"Recurring (y/n)",
	"Frequency (DAILY/WEEKLY/MONTHLY/YEARLY)",
	"Interval",
	"End date (2006-01-02, optional)",
	"Weekdays (MON,WED,...)",
	"Monthly weekday (TUE, empty = same day)",
	"Monthly ordinal (1-5)",
}

type editorForm struct {
	inputs [fieldCount]textinput.Model
	focus  int
	id     int64
	busy   bool
	err    string
}

func newEditorForm(ev *api.Event, loc *time.Location) editorForm {
	var f editorForm
	for i := range f.inputs {
		in := textinput.New()
		in.Placeholder = fieldLabels[i]
		in.CharLimit = 500
		f.inputs[i] = in
	}
	f.inputs[fieldRecurring].SetValue("n")
	f.inputs[fieldInterval].SetValue("1")

	if ev != nil {
		f.id = ev.ID
		f.inputs[fieldTitle].SetValue(ev.Title)
		f.inputs[fieldDescription].SetValue(ev.Description)
		f.inputs[fieldLocation].SetValue(ev.Location)
		f.inputs[fieldStart].SetValue(ev.StartTime.In(loc).Format("2006-01-02 15:04"))
		f.inputs[fieldEnd].SetValue(ev.EndTime.In(loc).Format("2006-01-02 15:04"))
		if ev.IsRecurring && ev.RecurrenceRule != nil {
			r := ev.RecurrenceRule
			f.inputs[fieldRecurring].SetValue("y")
			f.inputs[fieldFrequency].SetValue(string(r.Frequency))
			f.inputs[fieldInterval].SetValue(strconv.Itoa(r.Interval))
			f.inputs[fieldEndDate].SetValue(r.EndDate)
			days := make([]string, len(r.Weekdays))
			for i, d := range r.Weekdays {
				days[i] = string(d)
			}
			f.inputs[fieldWeekdays].SetValue(strings.Join(days, ","))
			f.inputs[fieldWeekday].SetValue(string(r.Weekday))
			if r.Ordinal != 0 {
				f.inputs[fieldOrdinal].SetValue(strconv.Itoa(r.Ordinal))
			}
		}
	}
	f.inputs[fieldTitle].Focus()
	return f
}

func (f *editorForm) recurring() bool {
	v := strings.ToLower(strings.TrimSpace(f.inputs[fieldRecurring].Value()))
	return v == "y" || v == "yes" || v == "true"
}

// visible reports whether the field at index i is active given the
// recurring toggle.
func (f *editorForm) visible(i int) bool {
	return i <= fieldRecurring || f.recurring()
}

func (f *editorForm) cycle(back bool) {
	step := 1
	if back {
		step = fieldCount - 1
	}
	f.inputs[f.focus].Blur()
	for {
		f.focus = (f.focus + step) % fieldCount
		if f.visible(f.focus) {
			break
		}
	}
	f.inputs[f.focus].Focus()
}

func (f *editorForm) update(msg tea.Msg) tea.Cmd {
	var cmds []tea.Cmd
	for i := range f.inputs {
		var cmd tea.Cmd
		f.inputs[i], cmd = f.inputs[i].Update(msg)
		cmds = append(cmds, cmd)
	}
	return tea.Batch(cmds...)
}

// event assembles an API event from the form, reporting the first
// malformed field it finds.
func (f *editorForm) event(loc *time.Location) (*api.Event, error) {
	start, err := time.ParseInLocation("2006-01-02 15:04", strings.TrimSpace(f.inputs[fieldStart].Value()), loc)
	if err != nil {
		return nil, fmt.Errorf("start: want 2006-01-02 15:04")
	}
	end, err := time.ParseInLocation("2006-01-02 15:04", strings.TrimSpace(f.inputs[fieldEnd].Value()), loc)
	if err != nil {
		return nil, fmt.Errorf("end: want 2006-01-02 15:04")
	}

	ev := &api.Event{
		ID:          f.id,
		Title:       strings.TrimSpace(f.inputs[fieldTitle].Value()),
		Description: strings.TrimSpace(f.inputs[fieldDescription].Value()),
		Location:    strings.TrimSpace(f.inputs[fieldLocation].Value()),
		StartTime:   start,
		EndTime:     end,
	}

	if f.recurring() {
		interval, err := strconv.Atoi(strings.TrimSpace(f.inputs[fieldInterval].Value()))
		if err != nil {
			return nil, fmt.Errorf("interval: not a number")
		}
		rule := &recur.Rule{
			Frequency: recur.Frequency(strings.ToUpper(strings.TrimSpace(f.inputs[fieldFrequency].Value()))),
			Interval:  interval,
			EndDate:   strings.TrimSpace(f.inputs[fieldEndDate].Value()),
		}
		for _, d := range strings.Split(f.inputs[fieldWeekdays].Value(), ",") {
			d = strings.ToUpper(strings.TrimSpace(d))
			if d != "" {
				rule.Weekdays = append(rule.Weekdays, recur.Weekday(d))
			}
		}
		rule.Weekday = recur.Weekday(strings.ToUpper(strings.TrimSpace(f.inputs[fieldWeekday].Value())))
		if v := strings.TrimSpace(f.inputs[fieldOrdinal].Value()); v != "" {
			rule.Ordinal, err = strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("ordinal: not a number")
			}
		}
		ev.IsRecurring = true
		ev.RecurrenceRule = rule
	}

	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return ev, nil
}
