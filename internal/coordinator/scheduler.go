package coordinator

import (
	"context"
	"time"

	"algo_engine/internal/models"
	"algo_engine/pkg/logger"
)

// Start restores persisted algorithms and begins rescheduling cycles for
// instances that carry a CycleInterval. On-demand instances (interval 0) are
// driven only through ExecuteAlgorithm.
func (c *Coordinator) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	c.cancel = cancel

	c.restore(ctx)

	c.wg.Add(1)
	go c.scheduleLoop(ctx)
}

// Stop cancels scheduling and waits for in-flight cycles to finish.
func (c *Coordinator) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

func (c *Coordinator) scheduleLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	next := make(map[string]time.Time)
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, in := range c.due(now, next) {
				cfg := in.config()
				if _, err := c.ExecuteAlgorithm(ctx, cfg.ID); err != nil {
					logger.Error("schedule %s: %v", cfg.ID, err)
				}
			}
		}
	}
}

// due collects instances whose interval has elapsed and books their next
// slot. Paused and errored instances stay registered but are never
// scheduled; they come back through ResumeAlgorithm.
func (c *Coordinator) due(now time.Time, next map[string]time.Time) []*instance {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []*instance
	for id, in := range c.instances {
		cfg := in.config()
		if cfg.Execution.CycleInterval <= 0 {
			continue
		}
		if st := in.snapshotState(); st.Status == models.StatusPaused || st.Status == models.StatusError {
			continue
		}
		if at, ok := next[id]; ok && now.Before(at) {
			continue
		}
		next[id] = now.Add(cfg.Execution.CycleInterval)
		out = append(out, in)
	}
	return out
}
