package alarm

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	seen []Reminder
}

func (r *recorder) Notify(rem Reminder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, rem)
}

func (r *recorder) reminders() []Reminder {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Reminder(nil), r.seen...)
}

func openRegistry(t *testing.T, path string) *Registry {
	t.Helper()
	reg, err := OpenRegistry(path)
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close() })
	return reg
}

func newScheduler(t *testing.T, reg *Registry, rec *recorder, grace time.Duration) *Scheduler {
	t.Helper()
	s := NewScheduler(reg, rec, nil, Config{Grace: grace})
	require.NoError(t, s.Start())
	t.Cleanup(func() { s.Stop(context.Background()) })
	return s
}

func TestScheduleFiresOnce(t *testing.T) {
	rec := &recorder{}
	s := newScheduler(t, openRegistry(t, filepath.Join(t.TempDir(), "alarms.db")), rec, time.Minute)

	at := time.Now().Add(150 * time.Millisecond)
	require.NoError(t, s.Schedule(1, at, "Buy milk"))

	require.Eventually(t, func() bool { return len(rec.reminders()) == 1 }, 3*time.Second, 20*time.Millisecond)
	got := rec.reminders()[0]
	assert.Equal(t, 1, got.ID)
	assert.Equal(t, "Buy milk", got.Title)

	pending, err := s.Pending()
	require.NoError(t, err)
	assert.Empty(t, pending)

	time.Sleep(200 * time.Millisecond)
	assert.Len(t, rec.reminders(), 1)
}

func TestScheduleReplacesExistingTrigger(t *testing.T) {
	rec := &recorder{}
	s := newScheduler(t, openRegistry(t, filepath.Join(t.TempDir(), "alarms.db")), rec, time.Minute)

	require.NoError(t, s.Schedule(1, time.Now().Add(100*time.Millisecond), "old"))
	require.NoError(t, s.Schedule(1, time.Now().Add(time.Hour), "new"))

	time.Sleep(400 * time.Millisecond)
	assert.Empty(t, rec.reminders())

	reg, ok := s.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, "new", reg.Title)
}

func TestCancelIsIdempotent(t *testing.T) {
	rec := &recorder{}
	s := newScheduler(t, openRegistry(t, filepath.Join(t.TempDir(), "alarms.db")), rec, time.Minute)

	require.NoError(t, s.Schedule(4, time.Now().Add(150*time.Millisecond), "x"))
	require.NoError(t, s.Cancel(4))
	require.NoError(t, s.Cancel(4))
	require.NoError(t, s.Cancel(404))

	time.Sleep(400 * time.Millisecond)
	assert.Empty(t, rec.reminders())
	_, ok := s.Lookup(4)
	assert.False(t, ok)
}

func TestStartRestoresPersistedAlarms(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alarms.db")

	reg, err := OpenRegistry(path)
	require.NoError(t, err)
	first := NewScheduler(reg, nil, nil, Config{Grace: time.Minute})
	require.NoError(t, first.Schedule(7, time.Now().Add(300*time.Millisecond), "restored"))
	require.NoError(t, first.Schedule(8, time.Now().Add(-time.Hour), "stale"))
	require.NoError(t, reg.Close())

	rec := &recorder{}
	s := newScheduler(t, openRegistry(t, path), rec, time.Minute)

	pending, err := s.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 7, pending[0].ID)

	require.Eventually(t, func() bool { return len(rec.reminders()) == 1 }, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, "restored", rec.reminders()[0].Title)
}

func TestOverdueWithinGraceFires(t *testing.T) {
	rec := &recorder{}
	s := newScheduler(t, openRegistry(t, filepath.Join(t.TempDir(), "alarms.db")), rec, time.Hour)

	require.NoError(t, s.Schedule(2, time.Now().Add(-time.Minute), "late"))
	require.Eventually(t, func() bool { return len(rec.reminders()) == 1 }, 3*time.Second, 20*time.Millisecond)
}

func TestOverdueBeyondGraceIsDropped(t *testing.T) {
	rec := &recorder{}
	s := newScheduler(t, openRegistry(t, filepath.Join(t.TempDir(), "alarms.db")), rec, time.Minute)

	require.NoError(t, s.Schedule(2, time.Now().Add(-time.Hour), "too late"))
	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, rec.reminders())
	_, ok := s.Lookup(2)
	assert.False(t, ok)
}

func TestScheduleBeforeStartOnlyPersists(t *testing.T) {
	rec := &recorder{}
	s := NewScheduler(openRegistry(t, filepath.Join(t.TempDir(), "alarms.db")), rec, nil, Config{})
	require.NoError(t, s.Schedule(3, time.Now().Add(50*time.Millisecond), "later"))

	time.Sleep(200 * time.Millisecond)
	assert.Empty(t, rec.reminders())
	_, ok := s.Lookup(3)
	assert.True(t, ok)
}

func TestScheduleOnClosedRegistryFails(t *testing.T) {
	reg, err := OpenRegistry(filepath.Join(t.TempDir(), "alarms.db"))
	require.NoError(t, err)
	require.NoError(t, reg.Close())

	s := NewScheduler(reg, nil, nil, Config{})
	assert.Error(t, s.Schedule(1, time.Now().Add(time.Hour), "x"))
	assert.Error(t, s.Cancel(1))
}

func TestParseDue(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{in: "2024-01-02 09:30", want: time.Date(2024, 1, 2, 9, 30, 0, 0, time.Local)},
		{in: "2024-01-02", want: time.Date(2024, 1, 2, 0, 0, 0, 0, time.Local)},
		{in: " 2024-01-05 ", want: time.Date(2024, 1, 5, 0, 0, 0, 0, time.Local)},
		{in: "tomorrow", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDue(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v", got)
		})
	}
}

func TestOnceScheduleNext(t *testing.T) {
	at := time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)
	s := onceSchedule{at: at}
	assert.Equal(t, at, s.Next(at.Add(-time.Second)))
	assert.True(t, s.Next(at).IsZero())
	assert.True(t, s.Next(at.Add(time.Second)).IsZero())
}

func TestFailedCancelKeepsTriggerArmed(t *testing.T) {
	reg, err := OpenRegistry(filepath.Join(t.TempDir(), "alarms.db"))
	require.NoError(t, err)
	s := NewScheduler(reg, nil, nil, Config{Grace: time.Minute})
	require.NoError(t, s.Start())
	t.Cleanup(func() { s.Stop(context.Background()) })

	require.NoError(t, s.Schedule(9, time.Now().Add(time.Hour), "keep"))
	require.NoError(t, reg.Close())

	assert.Error(t, s.Cancel(9))
	s.mu.Lock()
	_, armed := s.entries[9]
	s.mu.Unlock()
	assert.True(t, armed)
}
