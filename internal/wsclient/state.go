package wsclient

import (
	"sync"
	"time"

	"branchqueue/internal/protocol"
	"branchqueue/internal/snapshot"
)

// View is what a display renders.
type View struct {
	DivisionID uint
	Waiting    []snapshot.TicketView
	Skipped    []snapshot.TicketView
	InProgress []snapshot.TicketView
	Current    *snapshot.TicketView
	Terminal   *snapshot.TicketView
	AllWaiting []snapshot.WaitingTicket
	UpdatedAt  time.Time
}

// QueueState keeps the last pushed state of a subscription. Every
// QUEUE_UPDATE replaces the previous one wholesale, so a repeated push
// renders the same as a single one.
type QueueState struct {
	mu   sync.RWMutex
	view View
}

// Apply folds msg into the state and reports whether msg was a state message.
func (s *QueueState) Apply(msg protocol.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch m := msg.(type) {
	case protocol.QueueUpdate:
		all := s.view.AllWaiting
		s.view = View{
			DivisionID: m.DivisionID,
			Waiting:    m.Queues,
			Skipped:    m.SkippedQueues,
			InProgress: m.InProgress,
			Current:    m.CurrentQueue,
			Terminal:   m.TerminalQueue,
			AllWaiting: all,
			UpdatedAt:  m.Timestamp,
		}
		return true
	case protocol.WaitingQueuesUpdate:
		s.view.AllWaiting = m.Queues
		return true
	default:
		return false
	}
}

// View returns a copy of the current state.
func (s *QueueState) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := s.view
	v.Waiting = append([]snapshot.TicketView(nil), v.Waiting...)
	v.Skipped = append([]snapshot.TicketView(nil), v.Skipped...)
	v.InProgress = append([]snapshot.TicketView(nil), v.InProgress...)
	v.AllWaiting = append([]snapshot.WaitingTicket(nil), v.AllWaiting...)
	return v
}
