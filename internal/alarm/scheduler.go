// Package alarm arms one-shot reminders for tasks. Each task id owns at most
// one trigger; scheduling again replaces it and cancelling is idempotent.
package alarm

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Layouts accepted for a task's date.
var dueLayouts = []string{"2006-01-02 15:04", "2006-01-02"}

// overdueDelay is how far ahead an overdue but still-in-grace reminder is
// armed, so the cron loop picks it up on its next pass.
const overdueDelay = 50 * time.Millisecond

// Reminder is delivered to the Notifier when a trigger fires.
type Reminder struct {
	ID    int
	Title string
	At    time.Time
}

type Notifier interface {
	Notify(Reminder)
}

// NotifierFunc adapts a plain function to Notifier.
type NotifierFunc func(Reminder)

func (f NotifierFunc) Notify(r Reminder) { f(r) }

// ParseDue reads a task date in local time.
func ParseDue(date string) (time.Time, error) {
	date = strings.TrimSpace(date)
	for _, layout := range dueLayouts {
		if t, err := time.ParseInLocation(layout, date, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("date %q: want YYYY-MM-DD or YYYY-MM-DD HH:MM", date)
}

// onceSchedule fires a single time at `at`.
type onceSchedule struct {
	at time.Time
}

func (o onceSchedule) Next(t time.Time) time.Time {
	if t.Before(o.at) {
		return o.at
	}
	return time.Time{}
}

type Config struct {
	// Grace is how late an overdue reminder may still fire.
	Grace time.Duration
}

type Scheduler struct {
	cron     *cron.Cron
	registry *Registry
	notifier Notifier
	logger   *zap.Logger
	cfg      Config
	now      func() time.Time

	mu      sync.Mutex
	entries map[int]cron.EntryID
	started bool
}

func NewScheduler(registry *Registry, notifier Notifier, logger *zap.Logger, cfg Config) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = NotifierFunc(func(Reminder) {})
	}
	if cfg.Grace < 0 {
		cfg.Grace = 0
	}
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		registry: registry,
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
		entries:  make(map[int]cron.EntryID),
	}
}

// Start re-arms every persisted registration and launches the cron loop.
func (s *Scheduler) Start() error {
	if s == nil || s.cron == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	regs, err := s.registry.All()
	if err != nil {
		return fmt.Errorf("load alarms: %w", err)
	}
	s.cron.Start()
	s.started = true
	for _, reg := range regs {
		s.armLocked(reg)
	}
	s.logger.Info("alarm scheduler started", zap.Int("restored", len(regs)))
	return nil
}

// Stop halts the cron loop, waiting for running deliveries or ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	if s == nil || s.cron == nil {
		return
	}
	s.mu.Lock()
	s.started = false
	s.entries = make(map[int]cron.EntryID)
	s.mu.Unlock()

	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	s.logger.Info("alarm scheduler stopped")
}

// Schedule arms a one-shot reminder for id, replacing any earlier one.
func (s *Scheduler) Schedule(id int, at time.Time, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeEntryLocked(id)
	reg := Registration{ID: id, Title: title, At: at}
	if err := s.registry.Put(reg); err != nil {
		return fmt.Errorf("persist alarm %d: %w", id, err)
	}
	if s.started {
		s.armLocked(reg)
	}
	s.logger.Debug("alarm scheduled", zap.Int("task_id", id), zap.Time("at", at))
	return nil
}

// Cancel disarms the reminder for id. Cancelling an unknown id is a no-op.
// The trigger stays armed when the registration cannot be removed, so memory
// and the registry keep agreeing.
func (s *Scheduler) Cancel(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.registry.Delete(id); err != nil {
		return fmt.Errorf("cancel alarm %d: %w", id, err)
	}
	s.removeEntryLocked(id)
	s.logger.Debug("alarm cancelled", zap.Int("task_id", id))
	return nil
}

// Pending lists persisted registrations ordered by task id.
func (s *Scheduler) Pending() ([]Registration, error) {
	regs, err := s.registry.All()
	if err != nil {
		return nil, err
	}
	sort.Slice(regs, func(i, j int) bool { return regs[i].ID < regs[j].ID })
	return regs, nil
}

// Lookup returns the registration for id, if one is armed.
func (s *Scheduler) Lookup(id int) (Registration, bool) {
	reg, ok, err := s.registry.Get(id)
	if err != nil {
		s.logger.Warn("alarm lookup failed", zap.Int("task_id", id), zap.Error(err))
		return Registration{}, false
	}
	return reg, ok
}

func (s *Scheduler) armLocked(reg Registration) {
	now := s.now()
	at := reg.At
	if !at.After(now) {
		if now.Sub(at) > s.cfg.Grace {
			s.logger.Info("dropping stale alarm", zap.Int("task_id", reg.ID), zap.Time("at", reg.At))
			if err := s.registry.Delete(reg.ID); err != nil {
				s.logger.Warn("failed to drop stale alarm", zap.Int("task_id", reg.ID), zap.Error(err))
			}
			return
		}
		at = now.Add(overdueDelay)
	}

	entryID := new(cron.EntryID)
	*entryID = s.cron.Schedule(onceSchedule{at: at}, cron.FuncJob(func() {
		s.fire(reg, entryID)
	}))
	s.entries[reg.ID] = *entryID
}

func (s *Scheduler) fire(reg Registration, entryID *cron.EntryID) {
	s.mu.Lock()
	current, ok := s.entries[reg.ID]
	if !ok || current != *entryID {
		// replaced or cancelled after the cron loop picked it up
		s.mu.Unlock()
		return
	}
	delete(s.entries, reg.ID)
	s.cron.Remove(current)
	if err := s.registry.Delete(reg.ID); err != nil {
		s.logger.Warn("failed to clear fired alarm", zap.Int("task_id", reg.ID), zap.Error(err))
	}
	s.mu.Unlock()

	s.logger.Info("alarm fired", zap.Int("task_id", reg.ID), zap.String("title", reg.Title))
	s.notifier.Notify(Reminder{ID: reg.ID, Title: reg.Title, At: reg.At})
}

func (s *Scheduler) removeEntryLocked(id int) {
	if entryID, ok := s.entries[id]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, id)
	}
}
