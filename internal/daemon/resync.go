package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Resyncer periodically rescans every root so that changes the watchers
// missed (event overflow, network mounts) are eventually picked up.
//
// A resync runs when:
//  1. ResyncInterval has elapsed since the last one
//  2. no query has arrived for IdleTimeout
//  3. the index has caught up with every earlier change
type Resyncer struct {
	interval    time.Duration
	idleTimeout time.Duration
	roots       func() []string
	idle        func() bool
	sync        func(ctx context.Context, root string) error
	logger      *slog.Logger
	now         func() time.Time

	mu         sync.Mutex
	lastQuery  time.Time
	lastResync time.Time
}

// NewResyncer creates a resyncer. sync is called once per root per resync.
func NewResyncer(cfg Config, roots func() []string, idle func() bool, sync func(context.Context, string) error, logger *slog.Logger) *Resyncer {
	if logger == nil {
		logger = slog.Default()
	}
	now := time.Now()
	return &Resyncer{
		interval:    cfg.ResyncInterval,
		idleTimeout: cfg.IdleTimeout,
		roots:       roots,
		idle:        idle,
		sync:        sync,
		logger:      logger.With(slog.String("component", "resync")),
		now:         time.Now,
		lastQuery:   now,
		lastResync:  now,
	}
}

// OnQuery records query activity, postponing the next resync.
func (r *Resyncer) OnQuery() {
	r.mu.Lock()
	r.lastQuery = r.now()
	r.mu.Unlock()
}

// Run checks for eligibility until ctx is cancelled.
func (r *Resyncer) Run(ctx context.Context) {
	if r.interval <= 0 {
		return
	}
	check := r.interval / 4
	if check < time.Second {
		check = time.Second
	}
	ticker := time.NewTicker(check)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if r.shouldResync() {
				r.resync(ctx)
			}
		}
	}
}

// shouldResync determines if a resync is due.
func (r *Resyncer) shouldResync() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if now.Sub(r.lastResync) < r.interval {
		return false
	}
	if now.Sub(r.lastQuery) < r.idleTimeout {
		r.logger.Debug("resync postponed: queries active")
		return false
	}
	if !r.idle() {
		r.logger.Debug("resync postponed: index busy")
		return false
	}
	return true
}

// resync submits a directory sync for every root.
func (r *Resyncer) resync(ctx context.Context) {
	roots := r.roots()
	for _, root := range roots {
		if err := r.sync(ctx, root); err != nil {
			r.logger.Warn("resync failed", slog.String("root", root), slog.String("error", err.Error()))
			return
		}
	}

	r.mu.Lock()
	r.lastResync = r.now()
	r.mu.Unlock()
	r.logger.Info("resync submitted", slog.Int("roots", len(roots)))
}
