package cli

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestTeardownRunsNewestFirst(t *testing.T) {
	td := newTeardown(time.Second, nil)
	var order []string
	td.add("logger", func(context.Context) error { order = append(order, "logger"); return nil })
	td.add("store", func(context.Context) error { order = append(order, "store"); return nil })
	td.addCloser("registry", closerFunc(func() error { order = append(order, "registry"); return nil }))

	require.NoError(t, td.run(context.Background()))
	assert.Equal(t, []string{"registry", "store", "logger"}, order)
}

func TestTeardownJoinsErrors(t *testing.T) {
	td := newTeardown(time.Second, nil)
	errA, errB := errors.New("a"), errors.New("b")
	ran := false
	td.add("first", func(context.Context) error { ran = true; return nil })
	td.add("b", func(context.Context) error { return errB })
	td.add("a", func(context.Context) error { return errA })

	err := td.run(context.Background())
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.True(t, ran)
}

func TestTeardownRunsOnce(t *testing.T) {
	td := newTeardown(0, nil)
	calls := 0
	td.add("x", func(context.Context) error { calls++; return nil })
	td.add("nil", nil)
	td.addCloser("nil", nil)

	require.NoError(t, td.run(context.Background()))
	require.NoError(t, td.run(context.Background()))
	assert.Equal(t, 1, calls)
}

func TestTeardownStepsSeeDeadline(t *testing.T) {
	td := newTeardown(time.Second, nil)
	var hasDeadline bool
	td.add("x", func(ctx context.Context) error { _, hasDeadline = ctx.Deadline(); return nil })
	require.NoError(t, td.run(context.Background()))
	assert.True(t, hasDeadline)
}

func TestSignalWatcherExitsOnRun(t *testing.T) {
	td := newTeardown(time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopped := td.cancelOnSignal(cancel)
	require.NoError(t, td.run(context.Background()))

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("signal watcher still running after teardown")
	}
	assert.NoError(t, ctx.Err())
}
