package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

type releaseStep struct {
	name string
	fn   func(ctx context.Context) error
}

// teardown collects what a command opened and releases it newest first.
type teardown struct {
	timeout time.Duration
	logger  *zap.Logger

	mu    sync.Mutex
	steps []releaseStep
	done  chan struct{}
	once  sync.Once
}

func newTeardown(timeout time.Duration, logger *zap.Logger) *teardown {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &teardown{timeout: timeout, logger: logger, done: make(chan struct{})}
}

func (td *teardown) add(name string, fn func(ctx context.Context) error) {
	if fn == nil {
		return
	}
	td.mu.Lock()
	td.steps = append(td.steps, releaseStep{name: name, fn: fn})
	td.mu.Unlock()
}

func (td *teardown) addCloser(name string, c io.Closer) {
	if c == nil {
		return
	}
	td.add(name, func(context.Context) error { return c.Close() })
}

// run releases every step once. A failing step is logged and the rest still run.
func (td *teardown) run(ctx context.Context) error {
	var result error
	td.once.Do(func() {
		close(td.done)
		if td.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, td.timeout)
			defer cancel()
		}

		td.mu.Lock()
		steps := td.steps
		td.steps = nil
		td.mu.Unlock()

		for i := len(steps) - 1; i >= 0; i-- {
			if err := steps[i].fn(ctx); err != nil {
				td.logger.Error("release failed", zap.String("resource", steps[i].name), zap.Error(err))
				result = errors.Join(result, err)
				continue
			}
			td.logger.Debug("released", zap.String("resource", steps[i].name))
		}
	})
	return result
}

// cancelOnSignal calls cancel on SIGINT or SIGTERM until run is called. The
// returned channel closes once the watcher has exited.
func (td *teardown) cancelOnSignal(cancel context.CancelFunc) <-chan struct{} {
	stopped := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		defer close(stopped)
		defer signal.Stop(sigCh)
		select {
		case sig := <-sigCh:
			td.logger.Info("shutdown signal received", zap.String("signal", sig.String()))
			cancel()
		case <-td.done:
		}
	}()
	return stopped
}
