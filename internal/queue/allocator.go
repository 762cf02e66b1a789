package queue

import (
	"database/sql"
	"fmt"

	"branchqueue/internal/models"

	"gorm.io/gorm"
)

const dayLayout = "2006-01-02"

// FormatQueueNumber renders the human-readable queue number, e.g. "A-007".
func FormatQueueNumber(prefix string, seq int64) string {
	return fmt.Sprintf("%s-%03d", prefix, seq)
}

// waitingOrder limits a query to the tickets taking part in the normal
// serving order of a division on a day.
func waitingOrder(divisionID uint, day string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("division_id = ? AND queue_date = ? AND status = ? AND is_skipped = ?",
			divisionID, day, models.StatusWaiting, false)
	}
}

// servingOrder sorts by priority level, highest first, then by position.
func servingOrder(db *gorm.DB) *gorm.DB {
	return db.Order("priority_level DESC").Order("position ASC").Order("id ASC")
}

// The functions below must run inside the division's serialized transaction
// (see Store.withDivision); on their own they are racy.

// allocateQueueNumber counts every ticket the division issued on day,
// including deleted ones, so numbers are never handed out twice.
func allocateQueueNumber(tx *gorm.DB, division *models.Division, day string) (string, error) {
	var count int64
	err := tx.Unscoped().Model(&models.Ticket{}).
		Where("division_id = ? AND queue_date = ?", division.ID, day).
		Count(&count).Error
	if err != nil {
		return "", fmt.Errorf("count tickets: %w", err)
	}
	return FormatQueueNumber(division.Prefix(), count+1), nil
}

// nextPosition appends after the current maximum position, or 0 for an
// empty queue.
func nextPosition(tx *gorm.DB, divisionID uint, day string) (int, error) {
	var maxPos sql.NullInt64
	row := tx.Model(&models.Ticket{}).Scopes(waitingOrder(divisionID, day)).Select("MAX(position)").Row()
	if err := row.Scan(&maxPos); err != nil {
		return 0, fmt.Errorf("max position: %w", err)
	}
	if !maxPos.Valid {
		return 0, nil
	}
	return int(maxPos.Int64) + 1, nil
}

// resequenceAfterRemoval closes the gap a ticket left when it stopped waiting.
// It must commit together with the removal itself so that a retried removal
// never shifts the queue twice.
func resequenceAfterRemoval(tx *gorm.DB, divisionID uint, day string, removedPosition int) error {
	err := tx.Model(&models.Ticket{}).
		Scopes(waitingOrder(divisionID, day)).
		Where("position >= ?", removedPosition).
		Update("position", gorm.Expr("position - 1")).Error
	if err != nil {
		return fmt.Errorf("resequence positions: %w", err)
	}
	return nil
}
