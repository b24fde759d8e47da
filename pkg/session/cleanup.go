package session

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// DefaultIdleTimeout is how long a session may sit untouched before cleanup
// closes it.
const DefaultIdleTimeout = 30 * time.Minute

// DefaultCleanupSchedule runs cleanup every ten minutes.
const DefaultCleanupSchedule = "@every 10m"

// Cleanup closes idle sessions on a cron schedule.
type Cleanup struct {
	orchestrator *Orchestrator
	idleTimeout  time.Duration
	schedule     string
	cron         *cron.Cron
	entryID      cron.EntryID
	running      bool
}

// NewCleanup creates a cleanup handler. A zero idleTimeout or empty schedule
// falls back to the defaults.
func NewCleanup(orchestrator *Orchestrator, idleTimeout time.Duration, schedule string) *Cleanup {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	if schedule == "" {
		schedule = DefaultCleanupSchedule
	}
	return &Cleanup{
		orchestrator: orchestrator,
		idleTimeout:  idleTimeout,
		schedule:     schedule,
	}
}

// Start schedules the cleanup job.
func (c *Cleanup) Start() error {
	if c.running {
		return fmt.Errorf("cleanup is already running")
	}

	c.cron = cron.New()
	id, err := c.cron.AddFunc(c.schedule, func() {
		if _, err := c.CleanupNow(context.Background()); err != nil {
			log.Error().Err(err).Msg("Failed to clean up idle sessions")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", c.schedule, err)
	}
	c.entryID = id
	c.cron.Start()
	c.running = true

	log.Info().
		Dur("idle_timeout", c.idleTimeout).
		Str("schedule", c.schedule).
		Msg("Session cleanup started")
	return nil
}

// Stop cancels the scheduled job and waits for a running one to finish.
func (c *Cleanup) Stop() error {
	if !c.running {
		return fmt.Errorf("cleanup is not running")
	}

	c.cron.Remove(c.entryID)
	<-c.cron.Stop().Done()
	c.running = false

	log.Info().Msg("Session cleanup stopped")
	return nil
}

// CleanupNow closes every session idle past the timeout and returns how many
// were closed.
func (c *Cleanup) CleanupNow(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	closed := 0

	for _, info := range c.orchestrator.ListSessions() {
		idle := now.Sub(info.LastUpdatedAt)
		if idle < c.idleTimeout {
			continue
		}
		if err := c.orchestrator.CloseSession(ctx, info.ID); err != nil {
			log.Warn().Str("session_id", info.ID).Err(err).Msg("Failed to close idle session")
			continue
		}
		closed++
		log.Debug().Str("session_id", info.ID).Dur("idle", idle).Msg("Idle session closed")
	}

	if closed > 0 {
		log.Info().Int("closed", closed).Msg("Cleaned up idle sessions")
	}
	return closed, nil
}

// IsRunning reports whether the cleanup job is scheduled.
func (c *Cleanup) IsRunning() bool {
	return c.running
}

// IdleTimeout returns the configured idle timeout.
func (c *Cleanup) IdleTimeout() time.Duration {
	return c.idleTimeout
}
