package storage

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

type subscriber struct {
	mu      sync.Mutex
	pending [][]Task
	wake    chan struct{}
	out     chan []Task
}

func (sub *subscriber) push(snapshot []Task) {
	sub.mu.Lock()
	sub.pending = append(sub.pending, snapshot)
	sub.mu.Unlock()
	select {
	case sub.wake <- struct{}{}:
	default:
	}
}

func (sub *subscriber) pop() ([]Task, bool) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if len(sub.pending) == 0 {
		return nil, false
	}
	next := sub.pending[0]
	sub.pending[0] = nil
	sub.pending = sub.pending[1:]
	return next, true
}

// Subscribe returns a live sequence of snapshots, each sorted like QueryAll.
// The first value is the current contents; one more follows every Insert,
// Update or DeleteByID made through this Store. Snapshots queue up per
// subscriber, so a slow reader never blocks writers and never misses one.
// The channel closes when ctx is cancelled or the Store is closed.
func (s *Store) Subscribe(ctx context.Context) (<-chan []Task, error) {
	select {
	case <-s.closed:
		return nil, &Error{Code: CodeClosed, Op: "subscribe"}
	default:
	}

	sub := &subscriber{
		wake: make(chan struct{}, 1),
		out:  make(chan []Task),
	}

	s.mu.Lock()
	initial, err := s.QueryAll()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	sub.push(initial)
	s.subsMu.Lock()
	s.subs[sub] = struct{}{}
	s.subsMu.Unlock()
	s.mu.Unlock()

	go s.pump(ctx, sub)
	return sub.out, nil
}

func (s *Store) pump(ctx context.Context, sub *subscriber) {
	defer func() {
		s.subsMu.Lock()
		delete(s.subs, sub)
		s.subsMu.Unlock()
		close(sub.out)
	}()

	for {
		snapshot, ok := sub.pop()
		if !ok {
			select {
			case <-sub.wake:
				continue
			case <-ctx.Done():
				return
			case <-s.closed:
				return
			}
		}
		select {
		case sub.out <- snapshot:
		case <-ctx.Done():
			return
		case <-s.closed:
			return
		}
	}
}

// publishLocked must be called with s.mu held.
func (s *Store) publishLocked() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	if len(s.subs) == 0 {
		return
	}
	snapshot, err := s.QueryAll()
	if err != nil {
		s.logger.Error("snapshot after write failed", zap.Error(err))
		return
	}
	for sub := range s.subs {
		// Each subscriber gets its own copy so readers can't alias each other.
		cp := make([]Task, len(snapshot))
		copy(cp, snapshot)
		sub.push(cp)
	}
}

// subscriberCount reports how many subscriptions are currently live.
func (s *Store) subscriberCount() int {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	return len(s.subs)
}
