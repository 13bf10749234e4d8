package controller

import (
	"context"
	"time"
)

// RunFailureDetector wakes every HeartbeatInterval, flips stale workers to
// failed, and launches one recovery task per newly failed worker. It never
// blocks on recovery itself.
func (c *Coordinator) RunFailureDetector(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweep(ctx)
		}
	}
}

func (c *Coordinator) sweep(ctx context.Context) {
	c.globalMu.Lock()
	failed := c.registry.CheckFailed(time.Now(), c.cfg.HeartbeatTimeout)
	c.globalMu.Unlock()

	for _, id := range failed {
		c.log.Warn().Str("worker", id).Msg("worker declared failed")
		if c.metrics != nil {
			c.metrics.FailuresDetected.Inc()
		}
		go c.Recover(ctx, id)
	}
}
