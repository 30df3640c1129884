package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gabriel/anime-watchlist/backend/internal/catalog"
	"github.com/gabriel/anime-watchlist/backend/internal/repository"
	"github.com/gabriel/anime-watchlist/backend/internal/resolve"
)

type refreshRepository interface {
	ListAiring(statuses []string) ([]repository.AiringEntry, error)
	UpdateAiringState(id int64, episodes *int, airingStatus *string, averageScore *int, checkedAt time.Time) error
}

type catalogLookup interface {
	Lookup(ctx context.Context, id int, opts resolve.ResolveOptions) (*catalog.Record, error)
}

// Poller periodically refreshes the catalog snapshot of library entries that
// are still airing or unaired.
type Poller struct {
	repo     refreshRepository
	lookup   catalogLookup
	interval time.Duration
	statuses []string
	logger   *slog.Logger
	started  bool
	stopCh   chan struct{}
}

type PollerConfig struct {
	Interval time.Duration
	// Statuses narrows which snapshot statuses get refreshed; empty means
	// the repository default.
	Statuses []string
}

func NewPoller(repo refreshRepository, lookup catalogLookup, cfg PollerConfig, logger *slog.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Poller{
		repo:     repo,
		lookup:   lookup,
		interval: cfg.Interval,
		statuses: cfg.Statuses,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

func (p *Poller) Start(ctx context.Context) {
	p.started = true
	p.logger.Info("airing refresh started", "interval", p.interval.String())
	ticker := time.NewTicker(p.interval)
	go func() {
		defer ticker.Stop()
		if err := p.RunOnce(ctx); err != nil {
			p.logger.Warn("airing refresh initial run failed", "error", err)
		}
		for {
			select {
			case <-ctx.Done():
				p.logger.Info("airing refresh stopped")
				close(p.stopCh)
				return
			case <-ticker.C:
				if err := p.RunOnce(ctx); err != nil {
					p.logger.Warn("airing refresh cycle failed", "error", err)
				}
			}
		}
	}()
}

// StopWait blocks until the refresh goroutine observed its context
// cancellation, up to timeout. A poller that was never started has nothing
// to wait for.
func (p *Poller) StopWait(timeout time.Duration) {
	if !p.started {
		return
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	select {
	case <-p.stopCh:
	case <-time.After(timeout):
	}
}

func (p *Poller) RunOnce(ctx context.Context) error {
	entries, err := p.repo.ListAiring(p.statuses)
	if err != nil {
		return fmt.Errorf("load entries for refresh: %w", err)
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return nil
		}

		requestCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		record, lookupErr := p.lookup.Lookup(requestCtx, entry.MediaID, resolve.ResolveOptions{})
		cancel()

		if lookupErr != nil {
			// Cancellation; the cycle is being torn down.
			return nil
		}
		if record == nil {
			p.logger.Debug("refresh lookup returned nothing", "entryId", entry.ID, "mediaId", entry.MediaID)
			continue
		}

		if err := p.repo.UpdateAiringState(entry.ID, record.Episodes, record.Status, record.AverageScore, time.Now().UTC()); err != nil {
			p.logger.Warn("refresh update failed", "entryId", entry.ID, "error", err)
			continue
		}
	}

	return nil
}
