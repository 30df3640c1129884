package resolve

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gabriel/anime-watchlist/backend/internal/anilist"
	"github.com/gabriel/anime-watchlist/backend/internal/catalog"
)

const (
	defaultBulkConcurrency  = 3
	maxBulkConcurrency      = 6
	defaultPerTitleTimeout  = 9 * time.Second
	defaultInterRequestGap  = 120 * time.Millisecond
	defaultCooldownAfter429 = 1200 * time.Millisecond
)

// BulkOptions tunes a batch resolution run.
type BulkOptions struct {
	Concurrency       int
	PerTitleTimeout   time.Duration
	InterRequestDelay time.Duration
	CooldownOn429     time.Duration
	OnProgress        func(Progress)
	Resolve           ResolveOptions
}

// Progress reports one completed item of a bulk run.
type Progress struct {
	Index        int
	Title        string
	Completed    int
	Total        int
	Found        bool
	Saw429       bool
	TimedOut     bool
	UsedFallback bool
}

func (o *BulkOptions) applyDefaults(batchSize int) {
	if o.Concurrency <= 0 {
		o.Concurrency = defaultBulkConcurrency
	}
	if o.Concurrency > maxBulkConcurrency {
		o.Concurrency = maxBulkConcurrency
	}
	if o.Concurrency > batchSize {
		o.Concurrency = batchSize
	}
	if o.Concurrency < 1 {
		o.Concurrency = 1
	}
	if o.PerTitleTimeout <= 0 {
		o.PerTitleTimeout = defaultPerTitleTimeout
	}
	if o.InterRequestDelay < 0 {
		o.InterRequestDelay = 0
	} else if o.InterRequestDelay == 0 {
		o.InterRequestDelay = defaultInterRequestGap
	}
	if o.CooldownOn429 <= 0 {
		o.CooldownOn429 = defaultCooldownAfter429
	}
}

// ResolveMany resolves a batch of titles with a bounded worker pool. Workers
// claim the next unprocessed index via an atomic cursor and write only to
// their own slot, so the output slice is positionally aligned to the input
// regardless of completion order. Per-item timeouts and upstream failures
// never fail the batch; the run returns an error only when the caller's
// context is cancelled.
func (s *Service) ResolveMany(ctx context.Context, titles []string, opts BulkOptions) ([]*catalog.Record, error) {
	results := make([]*catalog.Record, len(titles))
	if len(titles) == 0 {
		return results, nil
	}
	opts.applyDefaults(len(titles))

	var cursor atomic.Int64
	var completed atomic.Int64
	var waitGroup sync.WaitGroup

	for worker := 0; worker < opts.Concurrency; worker++ {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			for {
				index := int(cursor.Add(1)) - 1
				if index >= len(titles) {
					return
				}
				if ctx.Err() != nil {
					return
				}

				saw429 := s.resolveIndex(ctx, titles, results, index, opts, &completed)

				if ctx.Err() != nil {
					return
				}
				pause := opts.InterRequestDelay
				if saw429 {
					pause += opts.CooldownOn429
				}
				if pause > 0 && !sleepContext(ctx, pause) {
					return
				}
			}
		}()
	}

	waitGroup.Wait()

	if err := ctx.Err(); err != nil {
		return results, err
	}
	return results, nil
}

func (s *Service) resolveIndex(ctx context.Context, titles []string, results []*catalog.Record, index int, opts BulkOptions, completed *atomic.Int64) bool {
	itemCtx, cancel := context.WithTimeout(ctx, opts.PerTitleTimeout)
	outcome, err := s.resolveOne(itemCtx, titles[index], opts.Resolve)
	cancel()

	timedOut := false
	if err != nil {
		if ctx.Err() != nil {
			// Caller cancellation; the batch is being abandoned.
			return false
		}
		// Item deadline; record a miss without failing the batch.
		timedOut = anilist.IsCancellation(err)
	}

	results[index] = outcome.Record
	done := int(completed.Add(1))

	if opts.OnProgress != nil {
		invokeProgressHook(opts.OnProgress, Progress{
			Index:        index,
			Title:        titles[index],
			Completed:    done,
			Total:        len(titles),
			Found:        outcome.Record != nil,
			Saw429:       outcome.Saw429,
			TimedOut:     timedOut,
			UsedFallback: outcome.UsedFallback,
		}, s.logger)
	}

	return outcome.Saw429
}

func invokeProgressHook(hook func(Progress), progress Progress, logger interface{ Warn(string, ...any) }) {
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Warn("progress hook panicked", "panic", recovered)
		}
	}()
	hook(progress)
}

// sleepContext sleeps for the given duration unless the context is done
// first; it reports whether the full sleep elapsed.
func sleepContext(ctx context.Context, duration time.Duration) bool {
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
