package terminal

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/arpitjain799/jupyter-server-terminals/internal/logging"
)

// Culler periodically reaps sessions that have seen no I/O for longer
// than the configured timeout. Attach/detach events are not activity, so
// a session somebody opened and walked away from is still reaped.
//
// A zero timeout disables culling: the scheduler still ticks but never
// matches. Both values are fixed at start.
type Culler struct {
	manager  *Manager
	timeout  time.Duration
	interval time.Duration
	logger   *logging.Logger
}

// NewCuller creates a scheduler reaping sessions idle longer than timeout,
// scanning every interval. A non-positive interval defaults to 5 minutes.
func NewCuller(m *Manager, timeout, interval time.Duration, logger *logging.Logger) *Culler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if logger == nil {
		logger = logging.NewDefault()
	}
	return &Culler{manager: m, timeout: timeout, interval: interval, logger: logger}
}

// Run ticks until ctx is cancelled. Scans run synchronously on the ticker
// goroutine, so a new scan never overlaps one still deleting sessions.
func (c *Culler) Run(ctx context.Context) {
	c.logger.Info("culler started",
		zap.Duration("timeout", c.timeout),
		zap.Duration("interval", c.interval),
	)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.scan()
		}
	}
}

// scan walks a stable snapshot of the registry, so deletions cannot
// corrupt the enumeration, and isolates per-session failures.
func (c *Culler) scan() {
	if c.timeout <= 0 {
		return
	}
	now := time.Now()
	for _, info := range c.manager.List() {
		idle := now.Sub(info.LastActivity)
		if idle <= c.timeout {
			continue
		}
		err := c.manager.Delete(info.Name)
		if err != nil {
			// Already gone (raced an explicit delete or process exit)
			// or kill failed; either way the scan continues.
			if !errors.Is(err, ErrNotFound) {
				c.logger.Warn("failed to cull terminal",
					zap.String("name", info.Name), zap.Error(err))
			}
			continue
		}
		if c.manager.metrics != nil {
			c.manager.metrics.TerminalsCulled.Inc()
		}
		c.logger.Info("culled idle terminal",
			zap.String("name", info.Name),
			zap.Duration("idle", idle),
		)
	}
}
