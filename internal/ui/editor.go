package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"taskapp/internal/alarm"
	"taskapp/internal/storage"
)

// errReminderNotSet marks a save where the task was stored but its alarm was not.
var errReminderNotSet = errors.New("reminder not set")

type TaskWriter interface {
	Get(id int) (storage.Task, bool, error)
	NextID() (int, error)
	Insert(t storage.Task) error
	Update(t storage.Task) error
}

type AlarmScheduler interface {
	Schedule(id int, at time.Time, title string) error
}

const (
	fieldTitle = iota
	fieldContent
	fieldDate
	fieldCategory
	fieldCount
)

var fieldLabels = [fieldCount]string{"title", "content", "date (YYYY-MM-DD HH:MM)", "category"}

type editor struct {
	taskID int
	create bool
	inputs [fieldCount]textinput.Model
	index  int
}

// newEditor opens the form for t, or an empty form when t is nil.
func newEditor(t *storage.Task) *editor {
	e := &editor{}
	for i := range e.inputs {
		ti := textinput.New()
		ti.Placeholder = fieldLabels[i]
		ti.CharLimit = 256
		ti.Width = 40
		ti.Prompt = ""
		e.inputs[i] = ti
	}
	if t != nil {
		e.taskID = t.ID
		e.inputs[fieldTitle].SetValue(t.Title)
		e.inputs[fieldContent].SetValue(t.Content)
		e.inputs[fieldDate].SetValue(t.Date)
		e.inputs[fieldCategory].SetValue(t.Category)
	} else {
		e.create = true
		e.inputs[fieldDate].SetValue(time.Now().Add(time.Hour).Truncate(time.Minute).Format(storage.DateLayout))
	}
	e.inputs[0].Focus()
	return e
}

func (e *editor) creating() bool {
	return e.create
}

func (e *editor) last() bool {
	return e.index == fieldCount-1
}

// move shifts focus by delta, wrapping around.
func (e *editor) move(delta int) {
	e.inputs[e.index].Blur()
	e.index = wrapIndex(e.index+delta, fieldCount)
	e.inputs[e.index].Focus()
}

func (e *editor) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	e.inputs[e.index], cmd = e.inputs[e.index].Update(msg)
	return cmd
}

func (e *editor) task() storage.Task {
	return storage.Task{
		ID:       e.taskID,
		Title:    strings.TrimSpace(e.inputs[fieldTitle].Value()),
		Content:  e.inputs[fieldContent].Value(),
		Date:     strings.TrimSpace(e.inputs[fieldDate].Value()),
		Category: strings.TrimSpace(e.inputs[fieldCategory].Value()),
	}
}

func (e *editor) view() string {
	var b strings.Builder
	heading := "Edit task"
	if e.creating() {
		heading = "New task"
	}
	b.WriteString(headerStyle.Render(heading))
	b.WriteString("\n")
	for i := range e.inputs {
		prefix := "  "
		if i == e.index {
			prefix = cursorStyle.Render("> ")
		}
		b.WriteString(fmt.Sprintf("%s%-24s %s\n", prefix, fieldLabels[i], e.inputs[i].View()))
	}
	return panelStyle.Render(b.String())
}

// saveTask validates the form, writes the task, then arms its reminder.
// A failed alarm still leaves the task saved; the error wraps errReminderNotSet.
func saveTask(w TaskWriter, alarms AlarmScheduler, e *editor) (storage.Task, error) {
	t := e.task()
	if t.Title == "" {
		return storage.Task{}, errors.New("title cannot be empty")
	}
	due, err := alarm.ParseDue(t.Date)
	if err != nil {
		return storage.Task{}, err
	}

	if e.creating() {
		id, err := w.NextID()
		if err != nil {
			return storage.Task{}, err
		}
		t.ID = id
		if err := w.Insert(t); err != nil {
			return storage.Task{}, err
		}
	} else {
		if err := w.Update(t); err != nil {
			return storage.Task{}, err
		}
	}

	if alarms != nil {
		if err := alarms.Schedule(t.ID, due, t.Title); err != nil {
			return t, fmt.Errorf("%w: %v", errReminderNotSet, err)
		}
	}
	return t, nil
}

func wrapIndex(idx, n int) int {
	if n <= 0 {
		return 0
	}
	idx %= n
	if idx < 0 {
		idx += n
	}
	return idx
}
