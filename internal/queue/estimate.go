package queue

import (
	"context"

	"branchqueue/internal/snapshot"
	"branchqueue/internal/telemetry"
)

// WaitingList is the cross-division listing shown on public displays.
type WaitingList struct {
	Total  int                      `json:"total"`
	Queues []snapshot.WaitingTicket `json:"queues"`
}

// AvgServiceMinutes returns the per-ticket service time used by estimates.
func (s *Service) AvgServiceMinutes() int {
	return s.avgServiceMinutes
}

// Estimate returns the expected wait in minutes for a ticket of the given
// priority level joining the division now: every waiting ticket at the same
// or a higher level is served first or alongside it.
func (s *Service) Estimate(ctx context.Context, divisionID uint, priorityLevel int) (minutes int, err error) {
	ctx, span := telemetry.StartSpan(ctx, "queue.estimate")
	defer func() { telemetry.EndSpan(span, err) }()

	if priorityLevel < 0 {
		return 0, ErrInvalidPriority
	}
	if err := s.store.divisionExists(ctx, divisionID); err != nil {
		return 0, err
	}
	ahead, err := s.store.countAhead(ctx, divisionID, priorityLevel)
	if err != nil {
		return 0, err
	}
	return int(ahead) * s.avgServiceMinutes, nil
}

// AllWaiting lists today's waiting tickets of one division, or of all
// divisions when divisionID is nil, each with its estimated wait. It always
// reads the store directly.
func (s *Service) AllWaiting(ctx context.Context, divisionID *uint) (list *WaitingList, err error) {
	ctx, span := telemetry.StartSpan(ctx, "queue.all_waiting")
	defer func() { telemetry.EndSpan(span, err) }()

	tickets, err := s.store.waitingTickets(ctx, divisionID)
	if err != nil {
		return nil, err
	}

	list = &WaitingList{Queues: make([]snapshot.WaitingTicket, 0, len(tickets))}
	ahead := make(map[uint]int)
	for i := range tickets {
		t := &tickets[i]
		wt := snapshot.WaitingTicket{
			TicketView:    snapshot.NewTicketView(t),
			DivisionName:  t.Division.Name,
			EstimatedWait: ahead[t.DivisionID] * s.avgServiceMinutes,
		}
		ahead[t.DivisionID]++
		list.Queues = append(list.Queues, wt)
	}
	list.Total = len(list.Queues)
	return list, nil
}
