// Package worker holds the background coordinators that keep the local
// state converging while the app runs unattended.
package worker

import (
	"context"
	"log/slog"
	"time"
)

// ConnectivityChecker re-evaluates reachability. Implemented by
// connectivity.Monitor; transition side effects (listener notification,
// sync auto-trigger) happen inside the monitor.
type ConnectivityChecker interface {
	Check(ctx context.Context) bool
}

// ProbeCoordinator polls connectivity on a fixed interval so reachability
// transitions are noticed even when no request is in flight.
type ProbeCoordinator struct {
	checker  ConnectivityChecker
	interval time.Duration
}

// NewProbeCoordinator creates a coordinator probing at the given interval.
func NewProbeCoordinator(checker ConnectivityChecker, interval time.Duration) *ProbeCoordinator {
	return &ProbeCoordinator{
		checker:  checker,
		interval: interval,
	}
}

// Run starts the probe loop. It probes once immediately, then on every
// tick, and blocks until ctx is cancelled.
func (c *ProbeCoordinator) Run(ctx context.Context) {
	slog.Info("probe coordinator started",
		"component", "worker",
		"worker", "probe-coordinator",
		"interval", c.interval.String(),
	)

	c.probe(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("probe coordinator stopped",
				"component", "worker",
				"worker", "probe-coordinator",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			c.probe(ctx)
		}
	}
}

func (c *ProbeCoordinator) probe(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	online := c.checker.Check(ctx)
	slog.Debug("connectivity probed",
		"component", "worker",
		"worker", "probe-coordinator",
		"online", online,
	)
}
