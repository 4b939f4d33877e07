package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/guildhall/internal/store"
	"github.com/wolfeidau/guildhall/internal/telemetry"
)

// Sweeper periodically purges expired session records from stores that do
// not expire them natively.
type Sweeper struct {
	deleter  store.ExpiredSessionDeleter
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSweeper creates a sweeper and starts its background loop. The loop
// runs until Stop is called or ctx is cancelled.
func NewSweeper(ctx context.Context, deleter store.ExpiredSessionDeleter, interval time.Duration) *Sweeper {
	sweepCtx, cancel := context.WithCancel(ctx)

	sw := &Sweeper{
		deleter:  deleter,
		interval: interval,
		ctx:      sweepCtx,
		cancel:   cancel,
	}

	sw.wg.Add(1)
	go sw.loop()

	return sw
}

// Stop cancels the loop and waits for it to exit.
func (sw *Sweeper) Stop() {
	sw.cancel()
	sw.wg.Wait()
}

// Sweep runs a single purge.
func (sw *Sweeper) Sweep(ctx context.Context) (int, error) {
	count, err := sw.deleter.DeleteExpired(ctx)
	if err != nil {
		return 0, err
	}

	if count > 0 {
		telemetry.GetMetrics().SessionsSweptTotal.Add(ctx, int64(count))
		log.Info().Int("count", count).Msg("Swept expired sessions")
	}
	return count, nil
}

func (sw *Sweeper) loop() {
	defer sw.wg.Done()

	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-sw.ctx.Done():
			log.Info().Msg("Session sweeper stopped")
			return

		case <-ticker.C:
			if _, err := sw.Sweep(sw.ctx); err != nil {
				log.Error().Err(err).Msg("Failed to sweep expired sessions")
			}
		}
	}
}
