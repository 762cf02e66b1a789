package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper expires tickets left waiting from previous days.
type Sweeper interface {
	ExpireStale(ctx context.Context) (int64, error)
}

const sweepTimeout = time.Minute

// ExpireStaleTickets runs one sweep and logs its outcome.
func ExpireStaleTickets(ctx context.Context, s Sweeper, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	n, err := s.ExpireStale(ctx)
	if err != nil {
		log.Error("stale ticket sweep failed", zap.Error(err))
		return
	}
	log.Info("stale ticket sweep finished", zap.Int64("expired", n))
}

// InitScheduler starts the cron scheduler with the nightly expiry sweep.
// spec uses the six-field format with seconds, evaluated in loc.
func InitScheduler(ctx context.Context, spec string, loc *time.Location, s Sweeper, log *zap.Logger) (*cron.Cron, error) {
	if loc == nil {
		loc = time.Local
	}
	c := cron.New(cron.WithSeconds(), cron.WithLocation(loc))

	_, err := c.AddFunc(spec, func() { ExpireStaleTickets(ctx, s, log) })
	if err != nil {
		return nil, fmt.Errorf("schedule stale ticket sweep %q: %w", spec, err)
	}

	c.Start()
	log.Info("cron scheduler started", zap.String("expiry_schedule", spec))
	return c, nil
}
