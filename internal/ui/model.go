// Package ui implements the interactive terminal frontend: a month
// calendar and agenda list over the event API, with inline editing.
package ui

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"eventcal/internal/api"
	"eventcal/internal/auth"
	"eventcal/internal/config"
	"eventcal/internal/poll"
	"eventcal/internal/recur"
)

type Mode int

const (
	ModeLogin Mode = iota
	ModeCalendar
	ModeList
	ModeEditor
	ModeConfirmDelete
	ModeHelp
)

// Model is the program state. One fetch may be in flight at a time;
// fetchSeq stamps each request so a response that arrives after the
// window moved on is dropped instead of clobbering newer data.
type Model struct {
	cfg    *config.Config
	auth   *auth.Manager
	client *api.Client
	poller *poll.Poller
	log    zerolog.Logger
	loc    *time.Location
	styles Styles

	mode     Mode
	prevMode Mode

	month    time.Time
	selected time.Time
	now      func() time.Time

	events   []api.Event
	occs     []recur.Occurrence
	badRules []expandError
	fetchSeq int
	loading  bool

	listIndex int

	width  int
	height int
	status string

	login   loginForm
	editor  editorForm
	confirm *recur.Occurrence
}

func New(cfg *config.Config, mgr *auth.Manager, client *api.Client, poller *poll.Poller, log zerolog.Logger) Model {
	loc, err := cfg.Location()
	if err != nil {
		loc = time.Local
	}
	now := time.Now().In(loc)

	m := Model{
		cfg:      cfg,
		auth:     mgr,
		client:   client,
		poller:   poller,
		log:      log,
		loc:      loc,
		styles:   DefaultStyles(),
		month:    time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc),
		selected: time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc),
		now:      func() time.Time { return time.Now().In(loc) },
		login:    newLoginForm(),
	}

	switch {
	case !mgr.Authenticated():
		m.mode = ModeLogin
	case cfg.StartupView == "list":
		m.mode = ModeList
	default:
		m.mode = ModeCalendar
	}
	return m
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.waitPoll()}
	if m.mode != ModeLogin {
		cmds = append(cmds, func() tea.Msg { return refreshMsg{} })
	}
	return tea.Batch(cmds...)
}

// Messages.

type eventsMsg struct {
	seq    int
	events []api.Event
	err    error
}

type loginMsg struct {
	session *auth.Session
	err     error
}

type savedMsg struct {
	event *api.Event
	err   error
}

type deletedMsg struct {
	id  int64
	err error
}

type pollMsg poll.Result

// refreshMsg asks the update loop to start a fetch for the current window.
type refreshMsg struct{}

// ConfigReloadedMsg is sent from outside the program when the config file
// changed on disk.
type ConfigReloadedMsg struct {
	Config *config.Config
}

type statusExpiredMsg struct{}

// Commands.

func (m Model) startFetch() (Model, tea.Cmd) {
	m.fetchSeq++
	m.loading = true
	seq := m.fetchSeq
	from, to := m.fetchWindow()
	client := m.client
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		events, err := client.ListAllEvents(ctx, &api.ListOptions{From: from, To: to})
		return eventsMsg{seq: seq, events: events, err: err}
	}
}

func (m Model) fetchWindow() (time.Time, time.Time) {
	start, end := monthWindow(m.month)
	return gridWindow(start, end, m.cfg.WeekStartDay())
}

func (m Model) loginCmd() tea.Cmd {
	username := m.login.username.Value()
	password := m.login.password.Value()
	mgr := m.auth
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		sess, err := mgr.Login(ctx, username, password)
		return loginMsg{session: sess, err: err}
	}
}

func (m Model) saveCmd(ev api.Event) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		var out *api.Event
		var err error
		if ev.ID == 0 {
			out, err = client.CreateEvent(ctx, ev)
		} else {
			out, err = client.UpdateEvent(ctx, ev)
		}
		return savedMsg{event: out, err: err}
	}
}

func (m Model) deleteCmd(id int64) tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return deletedMsg{id: id, err: client.DeleteEvent(ctx, id)}
	}
}

func (m Model) waitPoll() tea.Cmd {
	if m.poller == nil {
		return nil
	}
	ch := m.poller.Updates()
	return func() tea.Msg {
		r, ok := <-ch
		if !ok {
			return nil
		}
		return pollMsg(r)
	}
}

func setStatus(text string) (string, tea.Cmd) {
	return text, tea.Tick(4*time.Second, func(time.Time) tea.Msg {
		return statusExpiredMsg{}
	})
}

// Update.

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case refreshMsg:
		return m.startFetch()

	case ConfigReloadedMsg:
		m.cfg = msg.Config
		if loc, err := msg.Config.Location(); err == nil {
			m.loc = loc
			m.now = func() time.Time { return time.Now().In(loc) }
		}
		var cmd, statusCmd tea.Cmd
		m.status, statusCmd = setStatus("configuration reloaded")
		m, cmd = m.startFetch()
		return m, tea.Batch(cmd, statusCmd)

	case eventsMsg:
		if msg.seq != m.fetchSeq {
			// A newer fetch superseded this one.
			return m, nil
		}
		m.loading = false
		if msg.err != nil {
			return m.handleFetchError(msg.err)
		}
		m.events = msg.events
		m.rebuildOccurrences()
		return m, nil

	case loginMsg:
		m.login.busy = false
		if msg.err != nil {
			switch {
			case errors.Is(msg.err, auth.ErrInvalidCredentials):
				m.login.err = "invalid username or password"
			case errors.Is(msg.err, auth.ErrUnreachable):
				m.login.err = "server unreachable"
			default:
				m.login.err = msg.err.Error()
			}
			return m, nil
		}
		m.login = newLoginForm()
		if m.cfg.StartupView == "list" {
			m.mode = ModeList
		} else {
			m.mode = ModeCalendar
		}
		var cmd tea.Cmd
		var statusCmd tea.Cmd
		m.status, statusCmd = setStatus("signed in as " + msg.session.User.Username)
		m, cmd = m.startFetch()
		return m, tea.Batch(cmd, statusCmd)

	case savedMsg:
		m.editor.busy = false
		if msg.err != nil {
			return m.handleEditorError(msg.err)
		}
		m.mode = m.prevMode
		var cmd, statusCmd tea.Cmd
		m.status, statusCmd = setStatus("saved " + msg.event.Title)
		m, cmd = m.startFetch()
		return m, tea.Batch(cmd, statusCmd)

	case deletedMsg:
		if msg.err != nil {
			return m.handleFetchError(msg.err)
		}
		m.mode = m.prevMode
		m.confirm = nil
		var cmd, statusCmd tea.Cmd
		m.status, statusCmd = setStatus("event deleted")
		m, cmd = m.startFetch()
		return m, tea.Batch(cmd, statusCmd)

	case pollMsg:
		next := m.waitPoll()
		if msg.Err != nil {
			m.log.Warn().Err(msg.Err).Msg("background refresh failed")
			if errors.Is(msg.Err, auth.ErrSessionExpired) {
				return m.toLogin("session expired, sign in again"), next
			}
			return m, next
		}
		m.events = msg.Events
		m.rebuildOccurrences()
		return m, next

	case statusExpiredMsg:
		m.status = ""
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.updateForms(msg)
}

func (m Model) updateForms(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case ModeLogin:
		return m, m.login.update(msg)
	case ModeEditor:
		return m, m.editor.update(msg)
	}
	return m, nil
}

func (m Model) handleFetchError(err error) (tea.Model, tea.Cmd) {
	if errors.Is(err, auth.ErrSessionExpired) {
		return m.toLogin("session expired, sign in again"), nil
	}
	var statusCmd tea.Cmd
	var apiErr *api.APIError
	var netErr *api.NetworkError
	switch {
	case errors.As(err, &apiErr):
		m.status, statusCmd = setStatus(apiErr.Error())
	case errors.As(err, &netErr):
		m.status, statusCmd = setStatus("network error, will retry on next refresh")
	default:
		m.status, statusCmd = setStatus(err.Error())
	}
	m.log.Error().Err(err).Msg("fetch failed")
	return m, statusCmd
}

func (m Model) handleEditorError(err error) (tea.Model, tea.Cmd) {
	if errors.Is(err, auth.ErrSessionExpired) {
		return m.toLogin("session expired, sign in again"), nil
	}
	m.editor.err = err.Error()
	return m, nil
}

func (m Model) toLogin(status string) Model {
	m.mode = ModeLogin
	m.login = newLoginForm()
	m.login.err = status
	m.events = nil
	m.occs = nil
	m.badRules = nil
	return m
}

func (m *Model) rebuildOccurrences() {
	from, to := m.fetchWindow()
	m.occs, m.badRules = m.expandInto(from, to)
	for _, e := range m.badRules {
		m.log.Warn().Int64("event_id", e.Event.ID).Err(e.Err).Msg("skipping event with invalid recurrence rule")
	}
	if m.listIndex >= len(m.occs) {
		m.listIndex = len(m.occs) - 1
	}
	if m.listIndex < 0 {
		m.listIndex = 0
	}
}

func (m *Model) expandInto(from, to time.Time) ([]recur.Occurrence, []expandError) {
	return expandAll(m.events, from, to)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case ModeLogin:
		return m.handleLoginKey(msg)
	case ModeEditor:
		return m.handleEditorKey(msg)
	case ModeConfirmDelete:
		return m.handleConfirmKey(msg)
	case ModeHelp:
		switch msg.String() {
		case "q", "esc", "?":
			m.mode = m.prevMode
		case "ctrl+c":
			return m, tea.Quit
		}
		return m, nil
	}
	return m.handleBrowseKey(msg)
}

func (m Model) handleLoginKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit
	case "tab", "shift+tab", "up", "down":
		m.login.cycle()
		return m, nil
	case "enter":
		if m.login.focus == 0 {
			m.login.cycle()
			return m, nil
		}
		if m.login.busy {
			return m, nil
		}
		m.login.busy = true
		m.login.err = ""
		return m, m.loginCmd()
	}
	return m, m.login.update(msg)
}

func (m Model) handleEditorKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.mode = m.prevMode
		return m, nil
	case "tab", "down":
		m.editor.cycle(false)
		return m, nil
	case "shift+tab", "up":
		m.editor.cycle(true)
		return m, nil
	case "ctrl+s", "enter":
		if msg.String() == "enter" && m.editor.focus != fieldCount-1 && m.editor.visible(m.editor.focus+1) {
			m.editor.cycle(false)
			return m, nil
		}
		if m.editor.busy {
			return m, nil
		}
		ev, err := m.editor.event(m.loc)
		if err != nil {
			m.editor.err = err.Error()
			return m, nil
		}
		m.editor.busy = true
		m.editor.err = ""
		return m, m.saveCmd(*ev)
	}
	return m, m.editor.update(msg)
}

func (m Model) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "enter":
		if m.confirm != nil {
			return m, m.deleteCmd(m.confirm.Source.ID)
		}
	case "n", "esc", "q":
		m.mode = m.prevMode
		m.confirm = nil
	case "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) handleBrowseKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "?":
		m.prevMode = m.mode
		m.mode = ModeHelp
		return m, nil

	case "1":
		m.mode = ModeCalendar
		return m, nil

	case "2":
		m.mode = ModeList
		return m, nil

	case "r":
		return m.startFetch()

	case "t":
		now := m.now()
		m.selected = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, m.loc)
		return m.setMonth(time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, m.loc))

	case "n":
		m.prevMode = m.mode
		m.mode = ModeEditor
		m.editor = newEditorForm(nil, m.loc)
		start := m.selected.Add(9 * time.Hour)
		m.editor.inputs[fieldStart].SetValue(start.Format("2006-01-02 15:04"))
		m.editor.inputs[fieldEnd].SetValue(start.Add(time.Hour).Format("2006-01-02 15:04"))
		return m, nil

	case "e", "enter":
		if occ := m.selectedOccurrence(); occ != nil {
			m.prevMode = m.mode
			m.mode = ModeEditor
			ev := m.eventByID(occ.Source.ID)
			m.editor = newEditorForm(ev, m.loc)
		}
		return m, nil

	case "d", "x":
		if occ := m.selectedOccurrence(); occ != nil {
			if !m.cfg.ConfirmDelete {
				return m, m.deleteCmd(occ.Source.ID)
			}
			m.prevMode = m.mode
			m.mode = ModeConfirmDelete
			m.confirm = occ
		}
		return m, nil

	case "L":
		m.auth.Logout()
		return m.toLogin("signed out"), nil
	}

	if m.mode == ModeList {
		return m.handleListKey(msg)
	}
	return m.handleCalendarKey(msg)
}

func (m Model) handleCalendarKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "h", "left":
		return m.moveSelection(0, 0, -1)
	case "l", "right":
		return m.moveSelection(0, 0, 1)
	case "k", "up":
		return m.moveSelection(0, 0, -7)
	case "j", "down":
		return m.moveSelection(0, 0, 7)
	case "<", "pgup":
		return m.setMonth(m.month.AddDate(0, -1, 0))
	case ">", "pgdown":
		return m.setMonth(m.month.AddDate(0, 1, 0))
	}
	return m, nil
}

func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "j", "down":
		if m.listIndex < len(m.occs)-1 {
			m.listIndex++
		}
	case "k", "up":
		if m.listIndex > 0 {
			m.listIndex--
		}
	case "g", "home":
		m.listIndex = 0
	case "G", "end":
		if len(m.occs) > 0 {
			m.listIndex = len(m.occs) - 1
		}
	case "<", "pgup":
		return m.setMonth(m.month.AddDate(0, -1, 0))
	case ">", "pgdown":
		return m.setMonth(m.month.AddDate(0, 1, 0))
	}
	return m, nil
}

func (m Model) moveSelection(years, months, days int) (tea.Model, tea.Cmd) {
	m.selected = m.selected.AddDate(years, months, days)
	if m.selected.Month() != m.month.Month() || m.selected.Year() != m.month.Year() {
		return m.setMonthKeepSelection(time.Date(m.selected.Year(), m.selected.Month(), 1, 0, 0, 0, 0, m.loc))
	}
	return m, nil
}

func (m Model) setMonth(month time.Time) (tea.Model, tea.Cmd) {
	if m.selected.Month() != month.Month() || m.selected.Year() != month.Year() {
		m.selected = time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, m.loc)
	}
	return m.setMonthKeepSelection(month)
}

func (m Model) setMonthKeepSelection(month time.Time) (tea.Model, tea.Cmd) {
	m.month = month
	m.listIndex = 0
	return m.startFetch()
}

// selectedOccurrence resolves the occurrence the cursor is on: the
// list row in list mode, the first occurrence of the selected day in
// calendar mode.
func (m Model) selectedOccurrence() *recur.Occurrence {
	if m.mode == ModeList {
		if m.listIndex >= 0 && m.listIndex < len(m.occs) {
			occ := m.occs[m.listIndex]
			return &occ
		}
		return nil
	}
	day := occurrencesOn(m.occs, m.selected)
	if len(day) == 0 {
		return nil
	}
	return &day[0]
}

func (m Model) eventByID(id int64) *api.Event {
	for i := range m.events {
		if m.events[i].ID == id {
			return &m.events[i]
		}
	}
	return nil
}
