// Package idle implements opt-in, idle-time coalescing of adjacent
// pieces; the piece tree itself never merges adjacent pieces at edit
// time. This resolves
// spec.md §9's first open question: whether to coalesce Added pieces
// during idle time is a memory/time tradeoff the spec leaves
// unspecified; this package implements it as an opt-in background
// pass rather than leaving it undone.
//
// Modeled on the teacher's cronRotationManager
// (internal/orchestrator/cronrotation.go): a single gocron scheduler
// with one named job per registered buffer, repurposed here from
// sealing log chunks on a cron schedule to coalescing piece-tree
// pieces on an idle-duration schedule.
package idle

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"piecebuf/internal/logging"
)

// Coalescing is the subset of Buffer's surface the coalescer needs;
// internal/buffer.Buffer satisfies it. Declared here, rather than
// importing internal/buffer directly, so this package has no
// dependency on the buffer's full surface, only the idle-pass contract.
type Coalescing interface {
	IdleSince() time.Duration
	CoalesceAdjacentAdded() bool
}

// Coalescer periodically scans every registered buffer and merges its
// adjacent same-chunk Added pieces once it has been idle for at least
// its registered window. Off by default: a caller must construct one
// and Register each buffer it wants coalesced.
type Coalescer struct {
	mu        sync.Mutex
	scheduler gocron.Scheduler
	jobs      map[string]gocron.Job
	log       *slog.Logger
}

// NewCoalescer builds a Coalescer with its own gocron scheduler. Call
// Start to begin running registered jobs, and Stop to shut down
// cleanly.
func NewCoalescer(logger *slog.Logger) (*Coalescer, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("idle: create scheduler: %w", err)
	}
	return &Coalescer{
		scheduler: s,
		jobs:      make(map[string]gocron.Job),
		log:       logging.Default(logger).With("component", "idle"),
	}, nil
}

// Register schedules periodic coalescing for buf under key, running
// every checkEvery and coalescing only once buf has been idle for at
// least idleWindow. Registering the same key twice replaces the prior
// job.
func (c *Coalescer) Register(key string, buf Coalescing, checkEvery, idleWindow time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeLocked(key)

	j, err := c.scheduler.NewJob(
		gocron.DurationJob(checkEvery),
		gocron.NewTask(c.tryCoalesce, key, buf, idleWindow),
		gocron.WithName(fmt.Sprintf("idle-coalesce-%s", key)),
	)
	if err != nil {
		return fmt.Errorf("idle: register job for %s: %w", key, err)
	}
	c.jobs[key] = j
	return nil
}

// Unregister stops and removes the coalescing job for key, if any.
func (c *Coalescer) Unregister(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(key)
}

func (c *Coalescer) removeLocked(key string) {
	j, ok := c.jobs[key]
	if !ok {
		return
	}
	if err := c.scheduler.RemoveJob(j.ID()); err != nil {
		c.log.Warn("failed to remove coalesce job", "key", key, "error", err)
	}
	delete(c.jobs, key)
}

// Start begins running registered jobs.
func (c *Coalescer) Start() { c.scheduler.Start() }

// Stop shuts down the scheduler, waiting for any in-flight job.
func (c *Coalescer) Stop() error { return c.scheduler.Shutdown() }

func (c *Coalescer) tryCoalesce(key string, buf Coalescing, idleWindow time.Duration) {
	if buf.IdleSince() < idleWindow {
		return
	}
	if buf.CoalesceAdjacentAdded() {
		c.log.Debug("coalesced adjacent added pieces", "buffer", key)
	}
}
