package workers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"baseQuestAPI/internal/logger"
)

// WeekKeeper is the part of the game service the worker drives.
type WeekKeeper interface {
	AdvanceWeek(ctx context.Context) (uint64, error)
	SettlePending(ctx context.Context) (int, error)
}

// StartWeekWorker rolls the game into the clock's week and settles closed
// weeks every interval until ctx is cancelled. The returned channel is
// closed once the routine exits.
func StartWeekWorker(ctx context.Context, keeper WeekKeeper, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	ticker := time.NewTicker(interval)

	go func() {
		defer close(done)
		defer ticker.Stop()

		RunOnce(ctx, keeper)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				RunOnce(ctx, keeper)
			}
		}
	}()

	return done
}

// RunOnce performs a single pass.
func RunOnce(ctx context.Context, keeper WeekKeeper) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	log := logger.WithContext(ctx)

	wk, err := keeper.AdvanceWeek(ctx)
	if err != nil {
		log.Error("week worker: advance failed", zap.Error(err))
		return
	}

	settled, err := keeper.SettlePending(ctx)
	if err != nil {
		log.Error("week worker: settlement failed", zap.Uint64("week", wk), zap.Error(err))
		return
	}
	if settled > 0 {
		log.Info("week worker: settled closed weeks", zap.Int("count", settled), zap.Uint64("week", wk))
	}
}
