package lotwatcher

import (
	"context"
	"time"

	"go.uber.org/zap"

	"lotservice/internal/services/lot"
)

// Run sweeps open, expired lots on a fixed interval and drives the closing
// workflow for each. Run must be started once at service boot and returns
// when ctx is cancelled.
func Run(ctx context.Context, interval time.Duration, svc lot.ILotService) {
	tk := time.NewTicker(interval)
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
			if _, err := svc.SweepExpired(ctx); err != nil {
				zap.L().Error("lotwatcher.sweep", zap.Error(err))
			}
		}
	}
}
