package queue

import (
	"context"
	"fmt"

	"branchqueue/internal/models"
	"branchqueue/internal/telemetry"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ExpireStale marks every ticket still waiting from a previous day as expired.
// Each division is swept under its own lock so the sweep never interleaves
// with allocation. It returns the number of expired tickets.
func (s *Service) ExpireStale(ctx context.Context) (total int64, err error) {
	ctx, span := telemetry.StartSpan(ctx, "queue.expire_stale")
	defer func() { telemetry.EndSpan(span, err) }()

	today := s.store.clock.today()
	var divisionIDs []uint
	err = s.store.db.WithContext(ctx).Model(&models.Ticket{}).
		Where("status = ? AND queue_date < ?", models.StatusWaiting, today).
		Distinct().Pluck("division_id", &divisionIDs).Error
	if err != nil {
		return 0, fmt.Errorf("find stale divisions: %w", err)
	}

	now := s.store.clock.now()
	var changes []Change
	for _, id := range divisionIDs {
		var n int64
		err := s.store.withDivision(ctx, id, func(tx *gorm.DB, _ *models.Division) error {
			res := tx.Model(&models.Ticket{}).
				Where("division_id = ? AND status = ? AND queue_date < ?", id, models.StatusWaiting, today).
				Update("status", models.StatusExpired)
			n = res.RowsAffected
			return res.Error
		})
		if err != nil {
			s.log.Error("expire stale tickets failed", zap.Uint("division_id", id), zap.Error(err))
			continue
		}
		if n == 0 {
			continue
		}
		total += n
		changes = append(changes, Change{Kind: TicketsExpired, DivisionID: id, Count: n, At: now})
	}

	s.publish(ctx, changes...)
	s.log.Info("stale tickets expired", zap.Int64("count", total), zap.Int("divisions", len(changes)))
	return total, nil
}
