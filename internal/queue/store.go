package queue

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"branchqueue/internal/models"
	"branchqueue/internal/snapshot"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Clock decides what "today" is for queue numbering and expiry.
type Clock struct {
	Now      func() time.Time
	Location *time.Location
}

func (c Clock) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

func (c Clock) today() string {
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	return c.now().In(loc).Format(dayLayout)
}

// Store is the queue's view of the relational database.
type Store struct {
	db    *gorm.DB
	clock Clock
}

func NewStore(db *gorm.DB, clock Clock) *Store {
	return &Store{db: db, clock: clock}
}

// withDivision runs fn in a transaction that holds the division's row lock.
// It is the serialization boundary for every read-then-write on the
// division's queue numbers and positions.
func (s *Store) withDivision(ctx context.Context, divisionID uint, fn func(tx *gorm.DB, division *models.Division) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var division models.Division
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&division, divisionID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrDivisionNotFound
		}
		if err != nil {
			return fmt.Errorf("lock division %d: %w", divisionID, err)
		}
		return fn(tx, &division)
	})
}

// withTicket locks the ticket's division and re-reads the ticket under the lock.
func (s *Store) withTicket(ctx context.Context, ticketID uint, fn func(tx *gorm.DB, division *models.Division, ticket *models.Ticket) error) error {
	var probe models.Ticket
	err := s.db.WithContext(ctx).Select("id", "division_id").First(&probe, ticketID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrTicketNotFound
	}
	if err != nil {
		return fmt.Errorf("find ticket %d: %w", ticketID, err)
	}

	return s.withDivision(ctx, probe.DivisionID, func(tx *gorm.DB, division *models.Division) error {
		var ticket models.Ticket
		err := tx.First(&ticket, ticketID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTicketNotFound
		}
		if err != nil {
			return err
		}
		return fn(tx, division, &ticket)
	})
}

func findTerminal(tx *gorm.DB, terminalID uint, divisionID uint) (*models.Terminal, error) {
	var terminal models.Terminal
	err := tx.First(&terminal, terminalID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTerminalNotFound
	}
	if err != nil {
		return nil, err
	}
	if terminal.DivisionID != divisionID {
		return nil, ErrTerminalDivision
	}
	return &terminal, nil
}

// LoadSnapshot builds a division's snapshot from the database.
func (s *Store) LoadSnapshot(ctx context.Context, divisionID uint) (*snapshot.Snapshot, error) {
	db := s.db.WithContext(ctx)

	var division models.Division
	err := db.Select("id").First(&division, divisionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDivisionNotFound
	}
	if err != nil {
		return nil, err
	}

	// Tickets of earlier days left in progress stay with their terminal
	// until it moves on, but no longer show as the division's live state.
	var tickets []models.Ticket
	err = db.Preload("Terminal").
		Where("division_id = ? AND queue_date = ?", divisionID, s.clock.today()).
		Where("status IN ?", []models.TicketStatus{models.StatusWaiting, models.StatusInProgress}).
		Find(&tickets).Error
	if err != nil {
		return nil, fmt.Errorf("load division %d tickets: %w", divisionID, err)
	}

	snap := &snapshot.Snapshot{
		DivisionID: divisionID,
		Waiting:    []snapshot.TicketView{},
		Skipped:    []snapshot.TicketView{},
		InProgress: []snapshot.TicketView{},
		BuiltAt:    s.clock.now(),
	}
	for i := range tickets {
		v := snapshot.NewTicketView(&tickets[i])
		switch {
		case tickets[i].Status == models.StatusInProgress:
			snap.InProgress = append(snap.InProgress, v)
		case tickets[i].IsSkipped:
			snap.Skipped = append(snap.Skipped, v)
		default:
			snap.Waiting = append(snap.Waiting, v)
		}
	}
	SortServingOrder(snap.Waiting)
	slices.SortStableFunc(snap.Skipped, func(a, b snapshot.TicketView) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	slices.SortStableFunc(snap.InProgress, func(a, b snapshot.TicketView) int {
		return cmp.Or(calledAt(b).Compare(calledAt(a)), cmp.Compare(b.ID, a.ID))
	})
	return snap, nil
}

// SortServingOrder orders waiting tickets by priority level (highest first),
// then by position.
func SortServingOrder(views []snapshot.TicketView) {
	slices.SortStableFunc(views, func(a, b snapshot.TicketView) int {
		return cmp.Or(
			cmp.Compare(b.PriorityLevel, a.PriorityLevel),
			cmp.Compare(a.Position, b.Position),
			cmp.Compare(a.ID, b.ID),
		)
	})
}

func calledAt(v snapshot.TicketView) time.Time {
	if v.CalledAt == nil {
		return time.Time{}
	}
	return *v.CalledAt
}

// waitingTickets lists today's waiting tickets in serving order per division,
// divisions ordered by id.
func (s *Store) waitingTickets(ctx context.Context, divisionID *uint) ([]models.Ticket, error) {
	q := s.db.WithContext(ctx).Preload("Division").
		Where("queue_date = ? AND status = ? AND is_skipped = ?", s.clock.today(), models.StatusWaiting, false)
	if divisionID != nil {
		q = q.Where("division_id = ?", *divisionID)
	}
	var tickets []models.Ticket
	err := q.Order("division_id ASC").Scopes(servingOrder).Find(&tickets).Error
	if err != nil {
		return nil, fmt.Errorf("list waiting tickets: %w", err)
	}
	return tickets, nil
}

// countAhead counts today's waiting tickets that a new ticket with the given
// priority level would be served after.
func (s *Store) countAhead(ctx context.Context, divisionID uint, priorityLevel int) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Ticket{}).
		Scopes(waitingOrder(divisionID, s.clock.today())).
		Where("priority_level >= ?", priorityLevel).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count waiting tickets: %w", err)
	}
	return n, nil
}

func (s *Store) divisionExists(ctx context.Context, divisionID uint) error {
	var division models.Division
	err := s.db.WithContext(ctx).Select("id").First(&division, divisionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrDivisionNotFound
	}
	return err
}
