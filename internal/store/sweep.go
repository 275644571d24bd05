package store

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper is implemented by backends that cannot expire entries on their own.
type Sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

// RunSweeper calls s.Sweep on every tick until ctx is done.
func RunSweeper(ctx context.Context, s Sweeper, every time.Duration, log *slog.Logger) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				log.Error("conversation sweep failed", "error", err)
				continue
			}
			if n > 0 {
				log.Info("expired conversations removed", "count", n)
			}
		}
	}
}
