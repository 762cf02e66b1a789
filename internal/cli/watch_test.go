package cli

import (
	"bytes"
	"testing"
	"time"

	"branchqueue/internal/config"
	"branchqueue/internal/protocol"
	"branchqueue/internal/snapshot"
	"branchqueue/internal/wsclient"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestDisplayRendersQueueUpdates(t *testing.T) {
	color.NoColor = true
	var out bytes.Buffer
	d := &display{out: &out}

	counter := 2
	d.status(wsclient.StateConnected)
	d.handle(protocol.ConnectionAck{Message: "hello"})
	d.handle(protocol.QueueUpdate{
		DivisionID:    1,
		Queues:        []snapshot.TicketView{{QueueNumber: "A-004"}, {QueueNumber: "A-005"}},
		CurrentQueue:  &snapshot.TicketView{QueueNumber: "A-003", TerminalNumber: &counter},
		SkippedQueues: []snapshot.TicketView{{QueueNumber: "A-002"}},
		Timestamp:     time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC),
	})
	d.handle(protocol.TransactionAnnounced{QueueID: 3, AnnouncementID: "x"})

	got := out.String()
	assert.Contains(t, got, "connected")
	assert.NotContains(t, got, "hello")
	assert.Contains(t, got, "Division 1  10:30:00")
	assert.Contains(t, got, "now serving: A-003 → 2")
	assert.Contains(t, got, "waiting: A-004 A-005")
	assert.Contains(t, got, "skipped: A-002")
	assert.Contains(t, got, "announcement for ticket 3")
}

func TestDisplayRendersWaitingList(t *testing.T) {
	color.NoColor = true
	var out bytes.Buffer
	d := &display{out: &out}

	d.handle(protocol.WaitingQueuesUpdate{Total: 1, Queues: []snapshot.WaitingTicket{
		{TicketView: snapshot.TicketView{QueueNumber: "B-001"}, DivisionName: "Billing", EstimatedWait: 15},
	}})

	assert.Contains(t, out.String(), "Waiting in all divisions (1)")
	assert.Contains(t, out.String(), "B-001")
	assert.Contains(t, out.String(), "~15 min")
}

func TestClientConfig(t *testing.T) {
	c := clientConfig(config.ClientConfig{
		URL:         "ws://q/api/ws",
		BaseDelay:   time.Second,
		Multiplier:  2,
		MaxDelay:    5 * time.Second,
		MaxAttempts: 4,
	})
	assert.Equal(t, "ws://q/api/ws", c.URL)
	assert.Equal(t, wsclient.Backoff{BaseDelay: time.Second, Multiplier: 2, MaxDelay: 5 * time.Second, MaxAttempts: 4}, c.Backoff)
	assert.Equal(t, "-", numbers(nil))
}
