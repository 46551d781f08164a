package viewings

import (
	"context"
	"time"

	observemetrics "github.com/propchat/propchat/internal/observability/metrics"
	"github.com/propchat/propchat/pkg/logging"
)

// StaleCanceller is the store surface the sweeper needs.
type StaleCanceller interface {
	CancelStale(ctx context.Context, maxAge time.Duration) (int64, error)
}

// Sweeper periodically cancels viewing requests the owner never answered,
// freeing their slots for other buyers.
type Sweeper struct {
	store    StaleCanceller
	maxAge   time.Duration
	interval time.Duration
	logger   *logging.Logger
	metrics  *observemetrics.ViewingMetrics
}

func NewSweeper(store StaleCanceller, maxAge, interval time.Duration, logger *logging.Logger, metrics *observemetrics.ViewingMetrics) *Sweeper {
	if store == nil {
		panic("viewings: sweeper store is required")
	}
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Sweeper{store: store, maxAge: maxAge, interval: interval, logger: logger, metrics: metrics}
}

// Run blocks until ctx is cancelled, sweeping once per interval. The first
// sweep happens immediately so a restart does not extend the grace period.
func (s *Sweeper) Run(ctx context.Context) {
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	cancelled, err := s.store.CancelStale(ctx, s.maxAge)
	if err != nil {
		s.logger.Error("stale appointment sweep failed", "error", err)
		return
	}
	if cancelled > 0 {
		s.metrics.AddStaleCancelled(float64(cancelled))
		s.logger.Info("stale appointments cancelled", "count", cancelled, "max_age", s.maxAge.String())
	}
}
