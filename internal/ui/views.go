package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"eventcal/internal/recur"
)

func (m Model) View() string {
	var body string
	switch m.mode {
	case ModeLogin:
		body = m.viewLogin()
	case ModeCalendar:
		body = m.viewCalendar()
	case ModeList:
		body = m.viewList()
	case ModeEditor:
		body = m.viewEditor()
	case ModeConfirmDelete:
		body = m.viewConfirm()
	case ModeHelp:
		body = m.viewHelp()
	}
	return body + "\n" + m.viewStatusBar()
}

func (m Model) viewLogin() string {
	var b strings.Builder
	b.WriteString(m.styles.Header.Render("eventcal"))
	b.WriteString("\n\n")
	b.WriteString(m.styles.Label.Render("Username") + "\n")
	b.WriteString(m.login.username.View() + "\n\n")
	b.WriteString(m.styles.Label.Render("Password") + "\n")
	b.WriteString(m.login.password.View() + "\n\n")
	if m.login.busy {
		b.WriteString(m.styles.Help.Render("signing in..."))
	} else if m.login.err != "" {
		b.WriteString(m.styles.Error.Render(m.login.err))
	}
	b.WriteString("\n\n")
	b.WriteString(m.styles.Help.Render("enter sign in · tab switch field · esc quit"))
	return m.styles.Border.Padding(1, 2).Render(b.String())
}

const dayCellWidth = 14

func (m Model) viewCalendar() string {
	var b strings.Builder

	title := m.month.Format("January 2006")
	if m.loading {
		title += " (loading...)"
	}
	b.WriteString(m.styles.Header.Render(title))
	b.WriteString("\n\n")

	weekStart := m.cfg.WeekStartDay()
	for i := 0; i < 7; i++ {
		day := time.Weekday((int(weekStart) + i) % 7)
		b.WriteString(m.styles.Label.Width(dayCellWidth).Render(day.String()[:3]))
	}
	b.WriteString("\n")

	gridStart, gridEnd := m.fetchWindow()
	now := m.now()
	for day := gridStart; !day.After(gridEnd); day = day.AddDate(0, 0, 7) {
		cells := make([]string, 7)
		for i := 0; i < 7; i++ {
			cells[i] = m.renderDayCell(day.AddDate(0, 0, i), now)
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cells...))
		b.WriteString("\n")
	}

	if occ := m.selectedOccurrence(); occ != nil {
		b.WriteString("\n")
		b.WriteString(m.renderDetail(*occ))
	}
	return b.String()
}

func (m Model) renderDayCell(day, now time.Time) string {
	numStyle := m.styles.Normal
	switch {
	case sameDay(day, m.selected):
		numStyle = m.styles.Selected
	case sameDay(day, now):
		numStyle = m.styles.Today
	case day.Month() != m.month.Month():
		numStyle = m.styles.Help
	case day.Weekday() == time.Saturday || day.Weekday() == time.Sunday:
		numStyle = m.styles.Weekend
	}

	lines := []string{numStyle.Render(fmt.Sprintf("%2d", day.Day()))}
	occs := occurrencesOn(m.occs, day)
	for i, occ := range occs {
		if i == 3 {
			lines = append(lines, m.styles.Help.Render(fmt.Sprintf("+%d more", len(occs)-3)))
			break
		}
		style := m.styles.Event
		if occ.Source.Recurring && recur.Closed(occ.Source, now) {
			style = m.styles.Closed
		}
		label := occ.Start.In(m.loc).Format(m.cfg.TimeFormat) + " " + occ.Title
		lines = append(lines, style.Render(truncate(label, dayCellWidth-1)))
	}
	return lipgloss.NewStyle().Width(dayCellWidth).Height(5).Render(strings.Join(lines, "\n"))
}

func (m Model) viewList() string {
	var b strings.Builder

	title := m.month.Format("January 2006") + " agenda"
	if m.loading {
		title += " (loading...)"
	}
	b.WriteString(m.styles.Header.Render(title))
	b.WriteString("\n\n")

	if len(m.occs) == 0 {
		b.WriteString(m.styles.Help.Render("no events this month"))
		return b.String()
	}

	now := m.now()
	var lastDay time.Time
	for i, occ := range m.occs {
		start := occ.Start.In(m.loc)
		if !sameDay(start, lastDay) {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString(m.styles.Label.Render(start.Format(m.cfg.DateFormat)))
			b.WriteString("\n")
			lastDay = start
		}

		style := m.styles.Normal
		if occ.Source.Recurring && recur.Closed(occ.Source, now) {
			style = m.styles.Closed
		}
		line := fmt.Sprintf("  %s - %s  %s",
			start.Format(m.cfg.TimeFormat),
			occ.End.In(m.loc).Format(m.cfg.TimeFormat),
			occ.Title)
		if occ.Source.Location != "" {
			line += m.styles.Help.Render(" @ " + occ.Source.Location)
		}
		if i == m.listIndex {
			b.WriteString(m.styles.Selected.Render(">") + style.Render(line[1:]))
		} else {
			b.WriteString(style.Render(line))
		}
		b.WriteString("\n")
	}

	if m.listIndex >= 0 && m.listIndex < len(m.occs) {
		b.WriteString("\n")
		b.WriteString(m.renderDetail(m.occs[m.listIndex]))
	}
	return b.String()
}

func (m Model) renderDetail(occ recur.Occurrence) string {
	var b strings.Builder
	b.WriteString(m.styles.Label.Render(occ.Title))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%s, %s - %s\n",
		occ.Start.In(m.loc).Format(m.cfg.DateFormat),
		occ.Start.In(m.loc).Format(m.cfg.TimeFormat),
		occ.End.In(m.loc).Format(m.cfg.TimeFormat)))
	if occ.Source.Location != "" {
		b.WriteString(occ.Source.Location + "\n")
	}
	if occ.Source.Recurring && occ.Source.Rule != nil {
		b.WriteString(m.styles.Help.Render(describeRule(occ.Source.Rule)) + "\n")
	}
	if occ.Source.Description != "" {
		width := m.width - 4
		if width < 20 {
			width = 76
		}
		b.WriteString(wordwrap.String(occ.Source.Description, width))
		b.WriteString("\n")
	}
	return m.styles.Border.Padding(0, 1).Render(strings.TrimRight(b.String(), "\n"))
}

func describeRule(r *recur.Rule) string {
	unit := map[recur.Frequency]string{
		recur.Daily:   "day",
		recur.Weekly:  "week",
		recur.Monthly: "month",
		recur.Yearly:  "year",
	}[r.Frequency]
	s := "every "
	if r.Interval > 1 {
		s += fmt.Sprintf("%d %ss", r.Interval, unit)
	} else {
		s += unit
	}
	if len(r.Weekdays) > 0 {
		days := make([]string, len(r.Weekdays))
		for i, d := range r.Weekdays {
			days[i] = string(d)
		}
		s += " on " + strings.Join(days, ",")
	}
	if r.EndDate != "" {
		s += " until " + r.EndDate
	}
	return s
}

func (m Model) viewEditor() string {
	var b strings.Builder
	title := "New event"
	if m.editor.id != 0 {
		title = "Edit event"
	}
	b.WriteString(m.styles.Header.Render(title))
	b.WriteString("\n\n")
	for i := range m.editor.inputs {
		if !m.editor.visible(i) {
			continue
		}
		b.WriteString(m.styles.Label.Render(fieldLabels[i]) + "\n")
		b.WriteString(m.editor.inputs[i].View() + "\n")
	}
	b.WriteString("\n")
	if m.editor.busy {
		b.WriteString(m.styles.Help.Render("saving..."))
	} else if m.editor.err != "" {
		b.WriteString(m.styles.Error.Render(m.editor.err))
	}
	b.WriteString("\n")
	b.WriteString(m.styles.Help.Render("ctrl+s save · tab next field · esc cancel"))
	return m.styles.Border.Padding(1, 2).Render(b.String())
}

func (m Model) viewConfirm() string {
	title := "event"
	if m.confirm != nil {
		title = m.confirm.Title
	}
	body := fmt.Sprintf("Delete %q?", title)
	if m.confirm != nil && m.confirm.Source.Recurring {
		body += "\n" + m.styles.Help.Render("this removes the whole series")
	}
	body += "\n\n" + m.styles.Help.Render("y delete · n cancel")
	return m.styles.Border.Padding(1, 2).Render(body)
}

func (m Model) viewHelp() string {
	rows := [][2]string{
		{"1 / 2", "calendar / agenda view"},
		{"h j k l", "move selection"},
		{"< / >", "previous / next month"},
		{"t", "jump to today"},
		{"n", "new event"},
		{"e / enter", "edit selected event"},
		{"d", "delete selected event"},
		{"r", "refresh now"},
		{"L", "sign out"},
		{"?", "toggle this help"},
		{"q", "quit"},
	}
	var b strings.Builder
	b.WriteString(m.styles.Header.Render("Keys"))
	b.WriteString("\n\n")
	for _, row := range rows {
		b.WriteString(m.styles.Label.Width(12).Render(row[0]))
		b.WriteString(row[1])
		b.WriteString("\n")
	}
	return m.styles.Border.Padding(1, 2).Render(b.String())
}

func (m Model) viewStatusBar() string {
	left := ""
	if u := m.auth.Store().User(); u != nil {
		left = u.Username
	}
	right := m.status
	if right == "" && len(m.badRules) > 0 {
		right = m.styles.Error.Render(fmt.Sprintf("%d event(s) have invalid recurrence rules", len(m.badRules)))
	}
	if left == "" && right == "" {
		return ""
	}
	if left != "" && right != "" {
		return m.styles.Help.Render(left) + "  " + m.styles.Message.Render(right)
	}
	if right != "" {
		return m.styles.Message.Render(right)
	}
	return m.styles.Help.Render(left)
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}
