package ui

import (
	"context"
	"errors"
	"sort"
	"time"

	"taskapp/internal/storage"
)

// memStore is an in-memory Store. Snapshots are pushed to a buffered channel.
type memStore struct {
	tasks     map[int]storage.Task
	order     []int
	deleted   []int
	gets      []int
	failGet   error
	failWrite error
	failQuery error
	queries   []string
	snapshots chan []storage.Task
}

func newMemStore(tasks ...storage.Task) *memStore {
	s := &memStore{tasks: map[int]storage.Task{}, snapshots: make(chan []storage.Task, 64)}
	for _, t := range tasks {
		s.tasks[t.ID] = t
		s.order = append(s.order, t.ID)
	}
	return s
}

func (s *memStore) sorted(filter func(storage.Task) bool) []storage.Task {
	out := []storage.Task{}
	for _, id := range s.order {
		t, ok := s.tasks[id]
		if ok && filter(t) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out
}

func (s *memStore) QueryAll() ([]storage.Task, error) {
	s.queries = append(s.queries, "all")
	if s.failQuery != nil {
		return nil, s.failQuery
	}
	return s.sorted(func(storage.Task) bool { return true }), nil
}

func (s *memStore) QueryByCategory(text string) ([]storage.Task, error) {
	s.queries = append(s.queries, "category:"+text)
	if s.failQuery != nil {
		return nil, s.failQuery
	}
	return s.sorted(func(t storage.Task) bool { return t.Category == text }), nil
}

func (s *memStore) Get(id int) (storage.Task, bool, error) {
	s.gets = append(s.gets, id)
	if s.failGet != nil {
		return storage.Task{}, false, s.failGet
	}
	t, ok := s.tasks[id]
	return t, ok, nil
}

func (s *memStore) NextID() (int, error) {
	highest := 0
	for id := range s.tasks {
		if id > highest {
			highest = id
		}
	}
	return highest + 1, nil
}

func (s *memStore) Insert(t storage.Task) error { return s.put(t) }
func (s *memStore) Update(t storage.Task) error { return s.put(t) }

func (s *memStore) put(t storage.Task) error {
	if s.failWrite != nil {
		return s.failWrite
	}
	if _, ok := s.tasks[t.ID]; !ok {
		s.order = append(s.order, t.ID)
	}
	s.tasks[t.ID] = t
	s.emit()
	return nil
}

func (s *memStore) DeleteByID(id int) (int64, error) {
	s.deleted = append(s.deleted, id)
	if s.failWrite != nil {
		return 0, s.failWrite
	}
	_, ok := s.tasks[id]
	delete(s.tasks, id)
	s.emit()
	if ok {
		return 1, nil
	}
	return 0, nil
}

func (s *memStore) emit() {
	all := s.sorted(func(storage.Task) bool { return true })
	select {
	case s.snapshots <- all:
	default:
	}
}

func (s *memStore) Subscribe(context.Context) (<-chan []storage.Task, error) {
	return s.snapshots, nil
}

type scheduled struct {
	ID    int
	At    time.Time
	Title string
}

type fakeAlarms struct {
	scheduled  []scheduled
	cancelled  []int
	failCancel error
	failSched  error
}

func (a *fakeAlarms) Schedule(id int, at time.Time, title string) error {
	if a.failSched != nil {
		return a.failSched
	}
	a.scheduled = append(a.scheduled, scheduled{ID: id, At: at, Title: title})
	return nil
}

func (a *fakeAlarms) Cancel(id int) error {
	a.cancelled = append(a.cancelled, id)
	return a.failCancel
}

var errBoom = errors.New("boom")

func sampleTasks() []storage.Task {
	return []storage.Task{
		{ID: 1, Title: "Buy milk", Date: "2024-01-02", Category: "errand"},
		{ID: 2, Title: "Pay rent", Date: "2024-01-05", Category: "finance"},
	}
}
