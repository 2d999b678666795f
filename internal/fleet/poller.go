package fleet

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Poller periodically refreshes metrics and log tails for connected hosts.
// It is deliberately low priority: probes are paced by a rate limiter so a
// large fleet reconnecting does not stampede, and a failed probe only logs.
// Status transitions belong to connect/disconnect, never to the poller.
type Poller struct {
	registry *Registry
	interval time.Duration
	logLines int
	limiter  *rate.Limiter
	log      *slog.Logger
}

func NewPoller(registry *Registry, interval time.Duration, logLines int, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logLines <= 0 {
		logLines = 50
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		registry: registry,
		interval: interval,
		logLines: logLines,
		// Two probes per second with a small burst keeps a reconnect wave
		// from turning into a probe storm.
		limiter: rate.NewLimiter(rate.Limit(2), 4),
		log:     logger.With("component", "poller"),
	}
}

// Run blocks until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sweep(ctx)
		}
	}
}

func (p *Poller) sweep(ctx context.Context) {
	for _, id := range p.registry.ConnectedIDs() {
		if err := p.limiter.Wait(ctx); err != nil {
			return
		}
		if err := p.registry.RefreshMetrics(ctx, id); err != nil {
			p.log.Debug("metrics refresh failed", "host", id, "error", err)
			continue
		}
		if err := p.registry.RefreshLogs(ctx, id, p.logLines); err != nil {
			p.log.Debug("log refresh failed", "host", id, "error", err)
		}
	}
}
