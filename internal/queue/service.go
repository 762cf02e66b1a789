package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"branchqueue/internal/models"
	"branchqueue/internal/snapshot"
	"branchqueue/internal/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultAvgServiceMinutes is the assumed time a terminal spends per ticket.
const DefaultAvgServiceMinutes = 15

// CreateTicketInput carries the customer-facing fields of a new ticket.
type CreateTicketInput struct {
	CustomerName    string
	CustomerAccount string
	PriorityLevel   int
}

// Service applies staff and customer mutations to division queues. Every
// mutation commits inside the division's serialized transaction, invalidates
// the division's snapshot and then notifies the listeners.
type Service struct {
	store             *Store
	invalidator       Invalidator
	listeners         []ChangeListener
	avgServiceMinutes int
	log               *zap.Logger
}

func NewService(store *Store, invalidator Invalidator, avgServiceMinutes int, log *zap.Logger) *Service {
	if avgServiceMinutes <= 0 {
		avgServiceMinutes = DefaultAvgServiceMinutes
	}
	return &Service{
		store:             store,
		invalidator:       invalidator,
		avgServiceMinutes: avgServiceMinutes,
		log:               log,
	}
}

// AddListener registers l for change notifications. It must be called before
// the service handles requests.
func (s *Service) AddListener(l ChangeListener) {
	s.listeners = append(s.listeners, l)
}

func (s *Service) publish(ctx context.Context, changes ...Change) {
	invalidated := make(map[uint]bool, 1)
	for _, c := range changes {
		if !invalidated[c.DivisionID] {
			s.invalidator.Invalidate(ctx, c.DivisionID)
			invalidated[c.DivisionID] = true
		}
	}
	for _, c := range changes {
		for _, l := range s.listeners {
			l.OnQueueChange(ctx, c)
		}
	}
}

// CreateTicket issues the next queue number of the division and appends the
// ticket to the waiting order.
func (s *Service) CreateTicket(ctx context.Context, divisionID uint, in CreateTicketInput) (ticket *models.Ticket, err error) {
	ctx, span := telemetry.StartSpan(ctx, "queue.create_ticket")
	span.SetAttributes(attribute.Int64("division_id", int64(divisionID)))
	defer func() { telemetry.EndSpan(span, err) }()

	if in.PriorityLevel < 0 {
		return nil, ErrInvalidPriority
	}

	now := s.store.clock.now()
	var created models.Ticket
	err = s.store.withDivision(ctx, divisionID, func(tx *gorm.DB, division *models.Division) error {
		day := s.store.clock.today()
		number, err := allocateQueueNumber(tx, division, day)
		if err != nil {
			return err
		}
		position, err := nextPosition(tx, division.ID, day)
		if err != nil {
			return err
		}
		created = models.Ticket{
			DivisionID:      division.ID,
			QueueDate:       day,
			QueueNumber:     number,
			CustomerName:    in.CustomerName,
			CustomerAccount: in.CustomerAccount,
			PriorityLevel:   in.PriorityLevel,
			Status:          models.StatusWaiting,
			Position:        position,
		}
		created.CreatedAt = now
		return tx.Create(&created).Error
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("ticket created",
		zap.Uint("division_id", divisionID),
		zap.String("queue_number", created.QueueNumber),
		zap.Int("position", created.Position))
	s.publish(ctx, Change{Kind: TicketCreated, DivisionID: divisionID, Ticket: &created, At: now})
	return &created, nil
}

// completeCurrent finishes the ticket the terminal is serving, if any.
func completeCurrent(tx *gorm.DB, terminalID uint, now time.Time) (*models.Ticket, error) {
	var current models.Ticket
	err := tx.Where("terminal_id = ? AND status = ?", terminalID, models.StatusInProgress).First(&current).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	current.Status = models.StatusCompleted
	current.CompletedAt = &now
	err = tx.Model(&current).Updates(map[string]any{
		"status":       current.Status,
		"completed_at": now,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("complete ticket %d: %w", current.ID, err)
	}
	return &current, nil
}

// Next calls the first ticket in the division's serving order to the
// terminal. The ticket the terminal was serving is completed first. When no
// ticket is waiting the completion still commits and ErrQueueEmpty is returned.
func (s *Service) Next(ctx context.Context, divisionID, terminalID uint) (ticket *models.Ticket, err error) {
	ctx, span := telemetry.StartSpan(ctx, "queue.next")
	span.SetAttributes(
		attribute.Int64("division_id", int64(divisionID)),
		attribute.Int64("terminal_id", int64(terminalID)))
	defer func() { telemetry.EndSpan(span, err) }()

	now := s.store.clock.now()
	var changes []Change
	var called *models.Ticket
	err = s.store.withDivision(ctx, divisionID, func(tx *gorm.DB, division *models.Division) error {
		if _, err := findTerminal(tx, terminalID, division.ID); err != nil {
			return err
		}
		done, err := completeCurrent(tx, terminalID, now)
		if err != nil {
			return err
		}
		if done != nil {
			changes = append(changes, Change{Kind: TicketCompleted, DivisionID: division.ID, Ticket: done, At: now})
		}

		var next models.Ticket
		err = tx.Scopes(waitingOrder(division.ID, s.store.clock.today()), servingOrder).First(&next).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		removed := next.Position
		if err := callTicket(tx, &next, terminalID, now); err != nil {
			return err
		}
		if err := resequenceAfterRemoval(tx, division.ID, next.QueueDate, removed); err != nil {
			return err
		}
		called = &next
		changes = append(changes, Change{Kind: TicketCalled, DivisionID: division.ID, Ticket: &next, At: now})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, changes...)
	if called == nil {
		return nil, ErrQueueEmpty
	}
	s.log.Info("ticket called",
		zap.Uint("division_id", divisionID),
		zap.Uint("terminal_id", terminalID),
		zap.String("queue_number", called.QueueNumber))
	return called, nil
}

func callTicket(tx *gorm.DB, t *models.Ticket, terminalID uint, now time.Time) error {
	t.Status = models.StatusInProgress
	t.IsSkipped = false
	t.TerminalID = &terminalID
	t.CalledAt = &now
	err := tx.Model(t).Updates(map[string]any{
		"status":      t.Status,
		"is_skipped":  false,
		"terminal_id": terminalID,
		"called_at":   now,
	}).Error
	if err != nil {
		return fmt.Errorf("call ticket %d: %w", t.ID, err)
	}
	return nil
}

// Skip moves a ticket out of the normal serving order without renumbering
// the rest of the queue. A waiting ticket keeps its position slot; a ticket
// being served (a no-show) goes back to the division as skipped.
func (s *Service) Skip(ctx context.Context, ticketID uint) (ticket *models.Ticket, err error) {
	ctx, span := telemetry.StartSpan(ctx, "queue.skip")
	span.SetAttributes(attribute.Int64("ticket_id", int64(ticketID)))
	defer func() { telemetry.EndSpan(span, err) }()

	now := s.store.clock.now()
	var skipped models.Ticket
	err = s.store.withTicket(ctx, ticketID, func(tx *gorm.DB, _ *models.Division, t *models.Ticket) error {
		updates := map[string]any{"is_skipped": true}
		switch {
		case t.Status == models.StatusWaiting && !t.IsSkipped:
		case t.Status == models.StatusInProgress:
			updates["status"] = models.StatusWaiting
			updates["terminal_id"] = nil
			t.Status = models.StatusWaiting
			t.TerminalID = nil
		default:
			return ErrInvalidTransition
		}
		t.IsSkipped = true
		if err := tx.Model(t).Updates(updates).Error; err != nil {
			return fmt.Errorf("skip ticket %d: %w", t.ID, err)
		}
		skipped = *t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, Change{Kind: TicketSkipped, DivisionID: skipped.DivisionID, Ticket: &skipped, At: now})
	return &skipped, nil
}

// CallSkipped calls a previously skipped ticket to the terminal.
func (s *Service) CallSkipped(ctx context.Context, ticketID, terminalID uint) (ticket *models.Ticket, err error) {
	ctx, span := telemetry.StartSpan(ctx, "queue.call_skipped")
	span.SetAttributes(
		attribute.Int64("ticket_id", int64(ticketID)),
		attribute.Int64("terminal_id", int64(terminalID)))
	defer func() { telemetry.EndSpan(span, err) }()

	now := s.store.clock.now()
	var changes []Change
	var called models.Ticket
	err = s.store.withTicket(ctx, ticketID, func(tx *gorm.DB, division *models.Division, t *models.Ticket) error {
		if t.Status != models.StatusWaiting || !t.IsSkipped {
			return ErrInvalidTransition
		}
		if _, err := findTerminal(tx, terminalID, division.ID); err != nil {
			return err
		}
		done, err := completeCurrent(tx, terminalID, now)
		if err != nil {
			return err
		}
		if done != nil {
			changes = append(changes, Change{Kind: TicketCompleted, DivisionID: division.ID, Ticket: done, At: now})
		}
		if err := callTicket(tx, t, terminalID, now); err != nil {
			return err
		}
		called = *t
		changes = append(changes, Change{Kind: TicketCalled, DivisionID: division.ID, Ticket: &called, At: now})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, changes...)
	return &called, nil
}

// Delete removes a ticket that is not finished. Removing a ticket from the
// waiting order closes its position gap in the same transaction.
func (s *Service) Delete(ctx context.Context, ticketID uint) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "queue.delete")
	span.SetAttributes(attribute.Int64("ticket_id", int64(ticketID)))
	defer func() { telemetry.EndSpan(span, err) }()

	now := s.store.clock.now()
	var deleted models.Ticket
	err = s.store.withTicket(ctx, ticketID, func(tx *gorm.DB, _ *models.Division, t *models.Ticket) error {
		if t.Finished() {
			return ErrInvalidTransition
		}
		if err := tx.Delete(t).Error; err != nil {
			return fmt.Errorf("delete ticket %d: %w", t.ID, err)
		}
		if t.InWaitingOrder() {
			if err := resequenceAfterRemoval(tx, t.DivisionID, t.QueueDate, t.Position); err != nil {
				return err
			}
		}
		deleted = *t
		return nil
	})
	if err != nil {
		return err
	}

	s.publish(ctx, Change{Kind: TicketDeleted, DivisionID: deleted.DivisionID, Ticket: &deleted, At: now})
	return nil
}

// EndTransaction completes the ticket being served.
func (s *Service) EndTransaction(ctx context.Context, ticketID uint) (ticket *models.Ticket, err error) {
	ctx, span := telemetry.StartSpan(ctx, "queue.end_transaction")
	span.SetAttributes(attribute.Int64("ticket_id", int64(ticketID)))
	defer func() { telemetry.EndSpan(span, err) }()

	now := s.store.clock.now()
	var completed models.Ticket
	err = s.store.withTicket(ctx, ticketID, func(tx *gorm.DB, _ *models.Division, t *models.Ticket) error {
		if t.Status != models.StatusInProgress {
			return ErrInvalidTransition
		}
		t.Status = models.StatusCompleted
		t.CompletedAt = &now
		err := tx.Model(t).Updates(map[string]any{
			"status":       t.Status,
			"completed_at": now,
		}).Error
		if err != nil {
			return fmt.Errorf("complete ticket %d: %w", t.ID, err)
		}
		completed = *t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, Change{Kind: TicketCompleted, DivisionID: completed.DivisionID, Ticket: &completed, At: now})
	return &completed, nil
}

// Snapshot builds the division's view straight from the store.
func (s *Service) Snapshot(ctx context.Context, divisionID uint) (*snapshot.Snapshot, error) {
	return s.store.LoadSnapshot(ctx, divisionID)
}
