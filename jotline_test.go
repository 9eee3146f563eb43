package jotline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_DefaultsToMemoryStore(t *testing.T) {
	c, err := NewClient(DefaultConfig(), nil)
	require.NoError(t, err)
	require.NotNil(t, c.Engine())
	assert.Nil(t, c.db, "no DSN, no database handle")
	require.NoError(t, c.Close())
}

func TestNewClient_BroadcasterNeedsDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Dir = t.TempDir()

	c, err := NewClient(cfg, NewLogger("test"))
	require.NoError(t, err)
	assert.NotNil(t, c.bcast)
	require.NoError(t, c.Close())
}

func TestClient_RunStopsOnCancel(t *testing.T) {
	c, err := NewClient(DefaultConfig(), nil)
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	cancel()
	select {
	case runErr := <-done:
		assert.ErrorIs(t, runErr, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop on cancel")
	}
}
