// Package notify decides whether reminders may be shown and hands fired
// reminders to whatever screen is currently attached.
package notify

import (
	"sync"

	"go.uber.org/zap"

	"taskapp/internal/alarm"
)

type Permission int

const (
	Denied Permission = iota
	Granted
)

func (p Permission) String() string {
	if p == Granted {
		return "granted"
	}
	return "denied"
}

// RequestPermission is a one-time, best-effort check made when the list
// screen starts. The outcome is only logged; nothing else waits on it.
func RequestPermission(enabled bool, logger *zap.Logger) Permission {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := Denied
	if enabled {
		p = Granted
	}
	if p == Granted {
		logger.Info("notification permission", zap.Stringer("permission", p))
	} else {
		logger.Warn("notification permission", zap.Stringer("permission", p))
	}
	return p
}

// Sink implements alarm.Notifier. Reminders are dropped while permission is
// denied or no screen is attached.
type Sink struct {
	perm   Permission
	logger *zap.Logger

	mu     sync.Mutex
	target func(alarm.Reminder)
}

func NewSink(perm Permission, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{perm: perm, logger: logger}
}

// Attach routes future reminders to fn. Passing nil detaches.
func (s *Sink) Attach(fn func(alarm.Reminder)) {
	s.mu.Lock()
	s.target = fn
	s.mu.Unlock()
}

func (s *Sink) Notify(r alarm.Reminder) {
	if s.perm != Granted {
		s.logger.Debug("reminder suppressed", zap.Int("task_id", r.ID))
		return
	}
	s.mu.Lock()
	target := s.target
	s.mu.Unlock()
	if target == nil {
		s.logger.Info("reminder with no screen attached", zap.Int("task_id", r.ID), zap.String("title", r.Title))
		return
	}
	target(r)
}
