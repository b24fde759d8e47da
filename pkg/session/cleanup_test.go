package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanupDefaults(t *testing.T) {
	o := NewOrchestrator(OrchestratorConfig{})

	c := NewCleanup(o, 0, "")
	assert.Equal(t, DefaultIdleTimeout, c.IdleTimeout())
	assert.False(t, c.IsRunning())
}

func TestCleanupNowClosesIdleSessions(t *testing.T) {
	o := NewOrchestrator(OrchestratorConfig{})
	o.RegisterGraph("echo", newEchoRunner(t))
	ctx := context.Background()

	_, err := o.CreateSession(ctx, "echo", nil)
	require.NoError(t, err)
	_, err = o.CreateSession(ctx, "echo", nil)
	require.NoError(t, err)

	// With a nanosecond timeout every session counts as idle.
	c := NewCleanup(o, time.Nanosecond, "")
	time.Sleep(time.Millisecond)

	closed, err := c.CleanupNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, closed)
	assert.Zero(t, o.Len())
}

func TestCleanupNowKeepsActiveSessions(t *testing.T) {
	o := NewOrchestrator(OrchestratorConfig{})
	o.RegisterGraph("echo", newEchoRunner(t))
	ctx := context.Background()

	_, err := o.CreateSession(ctx, "echo", nil)
	require.NoError(t, err)

	c := NewCleanup(o, time.Hour, "")
	closed, err := c.CleanupNow(ctx)
	require.NoError(t, err)
	assert.Zero(t, closed)
	assert.Equal(t, 1, o.Len())
}

func TestCleanupStartStop(t *testing.T) {
	o := NewOrchestrator(OrchestratorConfig{})

	c := NewCleanup(o, time.Minute, "@every 1h")
	require.NoError(t, c.Start())
	assert.True(t, c.IsRunning())

	assert.Error(t, c.Start(), "double start is rejected")

	require.NoError(t, c.Stop())
	assert.False(t, c.IsRunning())
	assert.Error(t, c.Stop(), "double stop is rejected")
}

func TestCleanupRejectsBadSchedule(t *testing.T) {
	o := NewOrchestrator(OrchestratorConfig{})

	c := NewCleanup(o, time.Minute, "not a schedule")
	err := c.Start()
	require.Error(t, err)
	assert.False(t, c.IsRunning())
}
