package invite

import (
	"context"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"
)

// DefaultSweepInterval is how often expired invitations are swept.
const DefaultSweepInterval = 60 * time.Second

// SweeperConfig tunes the cleanup scheduler.
type SweeperConfig struct {
	// Interval between sweeps. Zero uses DefaultSweepInterval.
	Interval time.Duration
	// CronExpr optionally replaces the fixed interval with a cron
	// schedule (e.g. "*/5 * * * *"). Checked once a minute.
	CronExpr string
	// StaleAfter evicts invitations with no activity for this long,
	// expiry or not. Zero disables stale eviction.
	StaleAfter time.Duration
}

// Sweeper periodically removes expired invitations via the registry's
// mutation path. A single periodic sweep keeps resource usage bounded and
// makes restart recovery trivial: the next tick re-evaluates every
// persisted expiry against current time, so no timer state is rebuilt.
type Sweeper struct {
	registry *Registry
	cfg      SweeperConfig
	cron     *gronx.Gronx
}

// NewSweeper creates a sweeper over the given registry.
func NewSweeper(registry *Registry, cfg SweeperConfig) *Sweeper {
	s := &Sweeper{registry: registry, cfg: cfg}
	if cfg.CronExpr != "" {
		s.cron = gronx.New()
		if !s.cron.IsValid(cfg.CronExpr) {
			slog.Warn("invalid cleanup cron expression, using fixed interval", "expr", cfg.CronExpr)
			s.cron = nil
		}
	}
	return s
}

// Run sweeps until ctx is cancelled. A failed tick is logged and never
// stops future ticks.
func (s *Sweeper) Run(ctx context.Context) {
	interval := s.cfg.Interval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if s.cron != nil {
		// Cron granularity is one minute.
		interval = time.Minute
	}
	slog.Info("invitation sweeper started", "interval", interval, "cron", s.cfg.CronExpr)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("invitation sweeper stopped")
			return
		case <-ticker.C:
			if s.cron != nil {
				due, err := s.cron.IsDue(s.cfg.CronExpr, time.Now())
				if err != nil || !due {
					continue
				}
			}
			s.Sweep(ctx)
		}
	}
}

// Sweep removes every expired (and, if configured, stale) invitation.
// Individual removal failures are logged and skipped.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := s.registry.now()
	removed := 0
	for _, inv := range s.registry.snapshot() {
		expired := inv.Expired(now)
		stale := s.cfg.StaleAfter > 0 && now.Sub(inv.LastActivityAt) >= s.cfg.StaleAfter
		if !expired && !stale {
			continue
		}
		// The registry re-evaluates under its lock, so a grant that was
		// refreshed after the snapshot above is left alone.
		if s.registry.removeIfDefunct(ctx, inv.AgentName, inv.ThreadID, s.cfg.StaleAfter) {
			removed++
			slog.Info("swept invitation",
				"agent", inv.AgentName, "thread", inv.ThreadID,
				"expired", expired, "stale", stale)
		}
	}
	if removed > 0 {
		slog.Debug("sweep complete", "removed", removed)
	}
}
