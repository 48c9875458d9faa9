package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"taskapp/internal/alarm"
	"taskapp/internal/config"
	"taskapp/internal/storage"
)

const noticeTTL = 4 * time.Second

type mode int

const (
	modeList mode = iota
	modeSearch
	modeEdit
)

// Store is everything the list screen needs from the task store.
type Store interface {
	TaskQuerier
	TaskDeleter
	TaskWriter
	Subscribe(ctx context.Context) (<-chan []storage.Task, error)
}

// Alarms schedules and cancels reminders keyed by task id.
type Alarms interface {
	AlarmScheduler
	AlarmCanceller
}

// reminderLookup is implemented by schedulers that can report an armed reminder.
type reminderLookup interface {
	Lookup(id int) (alarm.Registration, bool)
}

type (
	snapshotMsg           []storage.Task
	subscriptionClosedMsg struct{}
	reminderMsg           alarm.Reminder
	clearNoticeMsg        struct{ seq int }
)

type Model struct {
	store    Store
	alarms   Alarms
	cfg      config.Config
	logger   *zap.Logger
	list     *TaskList
	search   *SearchController
	deletion *DeleteFlow

	snapshots <-chan []storage.Task

	cursor      int
	mode        mode
	searchInput textinput.Model
	editor      *editor
	showDetail  bool
	status      string
	notice      string
	noticeSeq   int
}

// New builds the list screen. snapshots is the store subscription feeding it.
func New(store Store, alarms Alarms, cfg config.Config, logger *zap.Logger, snapshots <-chan []storage.Task) Model {
	if logger == nil {
		logger = zap.NewNop()
	}
	list := &TaskList{}

	si := textinput.New()
	si.Placeholder = "category (empty shows all)"
	si.CharLimit = 128
	si.Width = 40
	si.Prompt = "/ "

	return Model{
		store:       store,
		alarms:      alarms,
		cfg:         cfg,
		logger:      logger,
		list:        list,
		search:      NewSearchController(store, list),
		deletion:    NewDeleteFlow(store, alarms, logger),
		snapshots:   snapshots,
		searchInput: si,
		mode:        modeList,
		status:      fmt.Sprintf("Press '%s' to add, '%s' to search, '%s' to delete.", cfg.Keys.Add, cfg.Keys.Search, cfg.Keys.Delete),
	}
}

// Run opens the live subscription, runs the screen until the user quits or
// ctx is cancelled, and stops the subscription on the way out. When attach is
// set it receives a callback that puts fired reminders on screen, and nil
// once the screen is gone.
func Run(ctx context.Context, store Store, alarms Alarms, cfg config.Config, logger *zap.Logger, attach func(func(alarm.Reminder))) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	snapshots, err := store.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to tasks: %w", err)
	}

	program := tea.NewProgram(New(store, alarms, cfg, logger, snapshots), tea.WithContext(ctx), tea.WithAltScreen())
	if attach != nil {
		attach(func(r alarm.Reminder) { program.Send(reminderMsg(r)) })
		defer attach(nil)
	}
	_, err = program.Run()
	if err != nil && ctx.Err() != nil {
		// cancelled from outside (signal or teardown); not a failure
		return nil
	}
	return err
}

func (m Model) Init() tea.Cmd {
	return waitForSnapshot(m.snapshots)
}

// waitForSnapshot blocks off the update loop and hands the next snapshot back
// to it as a message, so only Update ever touches the list.
func waitForSnapshot(ch <-chan []storage.Task) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return subscriptionClosedMsg{}
		}
		return snapshotMsg(snap)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case snapshotMsg:
		m.applySnapshot(msg)
		return m, waitForSnapshot(m.snapshots)
	case subscriptionClosedMsg:
		m.logger.Info("task subscription closed")
		return m, nil
	case reminderMsg:
		m.logger.Info("reminder shown", zap.Int("task_id", msg.ID))
		return m.setNotice(fmt.Sprintf("Reminder: %s (%s)", msg.Title, msg.At.Format(storage.DateLayout)))
	case clearNoticeMsg:
		if msg.seq == m.noticeSeq {
			m.notice = ""
		}
		return m, nil
	case tea.KeyMsg:
		if _, ok := m.deletion.Pending(); ok {
			return m.updateDeleteConfirm(msg.String())
		}
		switch m.mode {
		case modeEdit:
			return m.updateEditMode(msg)
		case modeSearch:
			return m.updateSearchMode(msg)
		default:
			return m.updateListMode(msg.String())
		}
	case tea.WindowSizeMsg:
		m.searchInput.Width = msg.Width - 10
	}
	return m, nil
}

// applySnapshot replaces the list with a live snapshot, keeping the cursor on
// the same task when it is still there.
func (m *Model) applySnapshot(tasks []storage.Task) {
	selected, hadSelection := m.list.TaskAt(m.cursor)
	m.list.UpdateTaskList(tasks)
	if hadSelection {
		if idx := m.list.IndexOf(selected.ID); idx >= 0 {
			m.cursor = idx
			return
		}
	}
	m.cursor = clampCursor(m.cursor, m.list.Len())
}

func (m Model) setNotice(text string) (tea.Model, tea.Cmd) {
	m.noticeSeq++
	m.notice = text
	seq := m.noticeSeq
	return m, tea.Tick(noticeTTL, func(time.Time) tea.Msg { return clearNoticeMsg{seq: seq} })
}

func (m Model) updateListMode(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "ctrl+c", m.cfg.Keys.Quit:
		return m, tea.Quit
	case m.cfg.Keys.Down, "down":
		m.cursor = clampCursor(m.cursor+1, m.list.Len())
	case m.cfg.Keys.Up, "up":
		m.cursor = clampCursor(m.cursor-1, m.list.Len())
	case m.cfg.Keys.Add:
		return m.showEditor(newEditor(nil))
	case m.cfg.Keys.Edit, m.cfg.Keys.Confirm:
		t, ok := m.list.TaskAt(m.cursor)
		if !ok {
			m.status = "No tasks to edit"
			return m, nil
		}
		return m.openEditor(t.ID)
	case m.cfg.Keys.Delete:
		t, ok := m.list.TaskAt(m.cursor)
		if !ok {
			return m, nil
		}
		prompt, err := m.deletion.Begin(t)
		if err != nil {
			m.status = err.Error()
			return m, nil
		}
		m.status = prompt
	case m.cfg.Keys.Search:
		m.mode = modeSearch
		m.status = "Search by category: Enter to apply, Esc to cancel"
		return m, m.searchInput.Focus()
	case m.cfg.Keys.Detail:
		m.showDetail = !m.showDetail
	}
	return m, nil
}

func (m Model) updateSearchMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case m.cfg.Keys.Cancel, "esc":
		m.mode = modeList
		m.searchInput.Blur()
		m.status = "Search cancelled"
		return m, nil
	case m.cfg.Keys.Confirm, "enter":
		m.mode = modeList
		m.searchInput.Blur()
		return m.runSearch(m.searchInput.Value())
	default:
		var cmd tea.Cmd
		m.searchInput, cmd = m.searchInput.Update(msg)
		return m, cmd
	}
}

func (m Model) runSearch(input string) (tea.Model, tea.Cmd) {
	res, err := m.search.Search(input)
	if err != nil {
		m.logger.Error("search failed", zap.String("category", input), zap.Error(err))
		m.status = fmt.Sprintf("search failed: %s", describeErr(err))
		return m, nil
	}
	switch res.Outcome {
	case SearchNoMatch:
		m.status = fmt.Sprintf("Category %q", input)
		return m.setNotice(res.Notice)
	case SearchFiltered:
		m.cursor = 0
		m.status = fmt.Sprintf("%d task(s) in %q", res.Count, input)
	default:
		m.cursor = clampCursor(m.cursor, m.list.Len())
		m.status = "Showing all tasks"
	}
	return m, nil
}

func (m Model) updateDeleteConfirm(key string) (tea.Model, tea.Cmd) {
	switch key {
	case "n", "N", "esc", m.cfg.Keys.Cancel:
		if err := m.deletion.Abort(); err != nil {
			m.status = err.Error()
			return m, nil
		}
		m.status = "Delete cancelled"
	case "y", "Y", m.cfg.Keys.Confirm:
		if err := m.deletion.Confirm(); err != nil {
			m.status = fmt.Sprintf("delete failed: %s", describeErr(err))
			return m, nil
		}
		m.status = "Deleted task"
	}
	return m, nil
}

// openEditor loads the task by id before showing the form.
func (m Model) openEditor(id int) (tea.Model, tea.Cmd) {
	t, ok, err := m.store.Get(id)
	if err != nil {
		m.logger.Error("load task failed", zap.Int("task_id", id), zap.Error(err))
		m.status = fmt.Sprintf("load failed: %s", describeErr(err))
		return m, nil
	}
	if !ok {
		m.status = "task no longer exists"
		return m, nil
	}
	return m.showEditor(newEditor(&t))
}

func (m Model) showEditor(e *editor) (tea.Model, tea.Cmd) {
	m.editor = e
	m.mode = modeEdit
	m.status = "Tab to move, Enter on the last field (or ctrl+s) to save, Esc to cancel"
	return m, textinput.Blink
}

func (m Model) updateEditMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.editor == nil {
		m.mode = modeList
		return m, nil
	}
	switch msg.String() {
	case m.cfg.Keys.Cancel, "esc":
		m.editor = nil
		m.mode = modeList
		m.status = "Edit cancelled"
		return m, nil
	case "tab", "down":
		m.editor.move(1)
		return m, nil
	case "shift+tab", "up":
		m.editor.move(-1)
		return m, nil
	case "ctrl+s":
		return m.saveEditor()
	case m.cfg.Keys.Confirm, "enter":
		if !m.editor.last() {
			m.editor.move(1)
			return m, nil
		}
		return m.saveEditor()
	default:
		return m, m.editor.update(msg)
	}
}

func (m Model) saveEditor() (tea.Model, tea.Cmd) {
	creating := m.editor.creating()
	t, err := saveTask(m.store, m.alarms, m.editor)
	if err != nil && !errors.Is(err, errReminderNotSet) {
		m.logger.Warn("save task failed", zap.Error(err))
		m.status = fmt.Sprintf("save failed: %s", describeErr(err))
		return m, nil
	}
	m.editor = nil
	m.mode = modeList
	if err != nil {
		m.logger.Warn("task saved without reminder", zap.Int("task_id", t.ID), zap.Error(err))
		m.status = fmt.Sprintf("Saved %q but %v", t.Title, err)
		return m, nil
	}
	if creating {
		m.status = "Added task"
	} else {
		m.status = "Task saved"
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("Tasks"))
	b.WriteString("\n")
	if m.mode == modeSearch {
		b.WriteString(m.searchInput.View())
		b.WriteString("\n")
	}
	b.WriteString("\n")

	if m.list.Len() == 0 {
		b.WriteString(fmt.Sprintf("No tasks yet. Press '%s' to add one.\n", m.cfg.Keys.Add))
	} else {
		b.WriteString(m.list.Render(m.cursor, m.mode == modeList))
	}

	if m.editor != nil {
		b.WriteString("\n")
		b.WriteString(m.editor.view())
		b.WriteString("\n")
	} else if m.showDetail {
		b.WriteString("\n")
		b.WriteString(m.renderDetail())
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if _, ok := m.deletion.Pending(); ok {
		b.WriteString(confirmStyle.Render(m.status))
	} else {
		b.WriteString(statusStyle.Render(m.status))
	}
	if m.notice != "" {
		b.WriteString("\n")
		b.WriteString(noticeStyle.Render(m.notice))
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(renderHelp(m.cfg.Keys)))

	return b.String()
}

func (m Model) renderDetail() string {
	t, ok := m.list.TaskAt(m.cursor)
	if !ok {
		return panelStyle.Render("No task selected")
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Task #%d\n", t.ID))
	b.WriteString(fmt.Sprintf("Title    : %s\n", t.Title))
	b.WriteString(fmt.Sprintf("Content  : %s\n", emptyPlaceholder(t.Content)))
	b.WriteString(fmt.Sprintf("Date     : %s\n", emptyPlaceholder(t.Date)))
	b.WriteString(fmt.Sprintf("Category : %s\n", emptyPlaceholder(t.Category)))
	b.WriteString(fmt.Sprintf("Reminder : %s", m.reminderText(t.ID)))
	return panelStyle.Render(b.String())
}

func (m Model) reminderText(id int) string {
	lookup, ok := m.alarms.(reminderLookup)
	if !ok {
		return "(unknown)"
	}
	reg, ok := lookup.Lookup(id)
	if !ok {
		return "(none)"
	}
	return humanize.Time(reg.At)
}

// describeErr words store failures for the status line.
func describeErr(err error) string {
	switch {
	case errors.Is(err, storage.ErrClosed):
		return "task database is closed"
	case storage.IsCode(err, storage.CodeWriteFailed):
		return fmt.Sprintf("could not write to the task database (%v)", err)
	case storage.IsCode(err, storage.CodeReadFailed):
		return fmt.Sprintf("could not read the task database (%v)", err)
	default:
		return err.Error()
	}
}

func renderHelp(k config.Keymap) string {
	return fmt.Sprintf("%s/%s move • %s add • %s/%s edit • %s delete • %s search • %s detail • %s quit",
		k.Up, k.Down, k.Add, k.Edit, k.Confirm, k.Delete, k.Search, k.Detail, k.Quit)
}

func emptyPlaceholder(v string) string {
	if strings.TrimSpace(v) == "" {
		return "(empty)"
	}
	return v
}

func clampCursor(cur, n int) int {
	if n <= 0 {
		return 0
	}
	if cur < 0 {
		return 0
	}
	if cur >= n {
		return n - 1
	}
	return cur
}
