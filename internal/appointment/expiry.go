package appointment

import (
	"context"
	"time"
)

// RunExpiry sweeps lapsed holds once immediately and then every interval
// until ctx is done.
func (s *Service) RunExpiry(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	s.sweep(ctx)

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("expiry loop stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Service) sweep(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	n, err := s.ExpirePendingHolds(runCtx)
	if err != nil {
		s.logger.Error("expiry run failed", "error", err)
		return
	}
	s.logger.Debug("expiry run complete", "expired", n, "duration", time.Since(start))
}
