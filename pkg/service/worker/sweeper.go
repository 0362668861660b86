package worker

import (
	"context"
	"errors"
	"time"

	"github.com/Dimkaghb/quokkaProd-sub000/pkg/usecase"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/utils/async"
	"github.com/Dimkaghb/quokkaProd-sub000/pkg/utils/logging"
)

const (
	defaultSweepInterval = 5 * time.Minute
	defaultSweepBackoff  = time.Minute
)

// SessionPool is the part of the session pool the sweeper drives
type SessionPool interface {
	EvictIdle(ctx context.Context, now time.Time) (int, error)
}

// SessionSweeper periodically evicts idle agent sessions so their
// context gets flushed and their resources released.
//
// Architecture assumptions:
// - Single server instance (no distributed locking)
// - For future horizontal scaling, implement distributed locking or leader election
type SessionSweeper struct {
	pool     SessionPool
	interval time.Duration
	backoff  time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewSessionSweeper creates a sweeper for the given pool. Zero
// durations fall back to the defaults (5 min interval, 1 min backoff).
func NewSessionSweeper(pool SessionPool, interval, backoff time.Duration) *SessionSweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if backoff <= 0 {
		backoff = defaultSweepBackoff
	}

	return &SessionSweeper{
		pool:     pool,
		interval: interval,
		backoff:  backoff,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background sweep loop. Does not block server
// startup.
func (w *SessionSweeper) Start(ctx context.Context) error {
	logging.Default().Info("session sweeper starting",
		"interval", w.interval.String())

	// the loop keeps the caller's cancellable context; Dispatch only
	// adds panic recovery around it
	async.Dispatch(ctx, func(context.Context) error {
		w.run(ctx)
		return nil
	})

	return nil
}

// Stop signals the sweeper to stop and waits for completion
func (w *SessionSweeper) Stop() {
	logging.Default().Info("session sweeper stopping")
	close(w.stopCh)
	<-w.doneCh
	logging.Default().Info("session sweeper stopped")
}

// run is the main sweep loop (runs in goroutine). A failed sweep
// re-arms the timer at the shorter backoff instead of the interval; a
// closed pool ends the loop.
func (w *SessionSweeper) run(ctx context.Context) {
	defer close(w.doneCh)

	timer := time.NewTimer(w.interval)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			evicted, err := w.pool.EvictIdle(ctx, time.Now())
			switch {
			case err == nil:
				if evicted > 0 {
					logging.Default().Info("idle sessions evicted", "count", evicted)
				}
				timer.Reset(w.interval)

			case errors.Is(err, usecase.ErrPoolClosed):
				logging.Default().Info("session pool closed, sweeper exiting")
				return

			default:
				logging.Default().Error("idle session sweep failed (will retry after backoff)",
					"error", err.Error())
				timer.Reset(w.backoff)
			}

		case <-w.stopCh:
			logging.Default().Info("session sweeper received stop signal")
			return

		case <-ctx.Done():
			logging.Default().Info("session sweeper context cancelled")
			return
		}
	}
}
