package ws

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"branchqueue/internal/protocol"
	"branchqueue/internal/wsclient"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestClientReconnectsAfterServerRestart(t *testing.T) {
	before := newHarness(t, quiet())
	after := newHarness(t, quiet())

	var dials atomic.Int32
	dial := func(ctx context.Context, _ string) (*websocket.Conn, error) {
		url := before.url()
		if dials.Add(1) > 1 {
			url = after.url()
		}
		conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		return conn, err
	}

	m := wsclient.New(wsclient.Config{
		URL:     "ws://queue.invalid/ws",
		Backoff: wsclient.Backoff{BaseDelay: 10 * time.Millisecond, MaxAttempts: 5},
	}, zaptest.NewLogger(t), wsclient.WithDialer(dial))
	t.Cleanup(m.Disconnect)

	updates := make(chan protocol.QueueUpdate, 16)
	m.Subscribe(func(msg protocol.Message) {
		if u, ok := msg.(protocol.QueueUpdate); ok {
			select {
			case updates <- u:
			default:
			}
		}
	})

	nextUpdate := func() protocol.QueueUpdate {
		t.Helper()
		select {
		case u := <-updates:
			return u
		case <-time.After(2 * time.Second):
			t.Fatal("no queue update")
			return protocol.QueueUpdate{}
		}
	}

	m.Connect(&wsclient.Target{DivisionID: 4})
	assert.Equal(t, uint(4), nextUpdate().DivisionID)
	require.EqualValues(t, 1, dials.Load())

	before.cancel()

	assert.Equal(t, uint(4), nextUpdate().DivisionID, "resubscribed on the restarted server")
	assert.EqualValues(t, 2, dials.Load())
	assert.True(t, m.Connected())
	assert.Eventually(t, func() bool { return after.hub.ConnectionCount() == 1 }, time.Second, 10*time.Millisecond)
}
