package tokens

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Purger is implemented by stores that cannot expire tokens on their own
type Purger interface {
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupWorker periodically removes tokens older than the configured TTL
type CleanupWorker struct {
	purger   Purger
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
	done     chan struct{}
	ticker   *time.Ticker
}

func NewCleanupWorker(purger Purger, ttl, interval time.Duration) *CleanupWorker {
	return &CleanupWorker{
		purger:   purger,
		ttl:      ttl,
		interval: interval,
		now:      time.Now,
		done:     make(chan struct{}),
	}
}

func (w *CleanupWorker) Start(ctx context.Context) {
	w.cleanup(ctx)

	w.ticker = time.NewTicker(w.interval)
	go w.run(ctx)

	log.Info().
		Dur("interval", w.interval).
		Dur("ttl", w.ttl).
		Msg("started start token cleanup worker")
}

func (w *CleanupWorker) Stop() {
	w.ticker.Stop()
	close(w.done)
	log.Info().Msg("start token cleanup worker stopped")
}

func (w *CleanupWorker) cleanup(ctx context.Context) {
	removed, err := w.purger.Purge(ctx, w.now().Add(-w.ttl))
	if err != nil {
		log.Error().
			Err(err).
			Msg("error purging expired start tokens")
		return
	}
	if removed > 0 {
		log.Info().
			Int64("removed", removed).
			Msg("purged expired start tokens")
	}
}

func (w *CleanupWorker) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("context cancelled, start token cleanup worker shutting down")
			return
		case <-w.done:
			return
		case <-w.ticker.C:
			w.cleanup(ctx)
		}
	}
}
