package logger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	log, closer, err := New(Config{Level: "debug", Encoding: "json", Path: path})
	require.NoError(t, err)

	log.Debug("hello")
	_ = log.Sync()
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
	assert.Contains(t, string(data), `"timestamp"`)
}

func TestNewFallsBackToInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	log, closer, err := New(Config{Level: "shouting", Path: path})
	require.NoError(t, err)
	defer closer.Close()

	assert.False(t, log.Core().Enabled(-1))
	assert.True(t, log.Core().Enabled(0))
}

func TestNewWithoutPathDiscards(t *testing.T) {
	log, closer, err := New(Config{})
	require.NoError(t, err)
	assert.NotNil(t, log)
	assert.NoError(t, closer.Close())
}

func TestSessionContext(t *testing.T) {
	assert.Empty(t, SessionID(context.Background()))

	ctx := NewSessionContext(context.Background())
	first := SessionID(ctx)
	assert.Len(t, first, 36)
	assert.NotEqual(t, first, SessionID(NewSessionContext(context.Background())))
}
