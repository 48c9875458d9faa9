package ui

import (
	"strings"

	"taskapp/internal/storage"
)

// Row is what one list entry shows: the title on top, the date below.
type Row struct {
	Primary   string
	Secondary string
}

// TaskList holds the tasks currently on screen. Positions map to tasks as of
// the most recent UpdateTaskList; there is no incremental patching.
type TaskList struct {
	tasks []storage.Task
}

// UpdateTaskList replaces the displayed tasks wholesale.
func (l *TaskList) UpdateTaskList(tasks []storage.Task) {
	l.tasks = make([]storage.Task, len(tasks))
	copy(l.tasks, tasks)
}

func (l *TaskList) Len() int {
	return len(l.tasks)
}

// TaskAt returns the task shown at pos.
func (l *TaskList) TaskAt(pos int) (storage.Task, bool) {
	if pos < 0 || pos >= len(l.tasks) {
		return storage.Task{}, false
	}
	return l.tasks[pos], true
}

// IndexOf returns the position of the task with id, or -1.
func (l *TaskList) IndexOf(id int) int {
	for i, t := range l.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (l *TaskList) Rows() []Row {
	rows := make([]Row, 0, len(l.tasks))
	for _, t := range l.tasks {
		rows = append(rows, Row{Primary: t.Title, Secondary: t.Date})
	}
	return rows
}

// Render draws every row with a cursor marker in front of the selected one.
func (l *TaskList) Render(cursor int, focused bool) string {
	var b strings.Builder
	for i, row := range l.Rows() {
		marker := "  "
		title := titleStyle
		if i == cursor && focused {
			marker = cursorStyle.Render("> ")
			title = selectedTitleStyle
		}
		b.WriteString(marker)
		b.WriteString(title.Render(row.Primary))
		b.WriteString("\n  ")
		b.WriteString(dateStyle.Render(row.Secondary))
		b.WriteString("\n")
	}
	return b.String()
}
