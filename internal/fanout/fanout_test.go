package fanout

import (
	"context"
	"testing"
	"time"

	"branchqueue/internal/queue"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRemoteChangesAreDelivered(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	local := New(rdb, "", zap.NewNop())
	remote := New(rdb, "", zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	received := make(chan uint, 4)
	done := make(chan error, 1)
	go func() {
		done <- local.Run(ctx, func(_ context.Context, divisionID uint) { received <- divisionID })
	}()
	require.Eventually(t, func() bool {
		return mr.PubSubNumSub(DefaultChannel)[DefaultChannel] == 1
	}, 2*time.Second, 10*time.Millisecond)

	local.OnQueueChange(context.Background(), queue.Change{Kind: queue.TicketCreated, DivisionID: 1})
	remote.OnQueueChange(context.Background(), queue.Change{Kind: queue.TicketCalled, DivisionID: 2})

	select {
	case id := <-received:
		assert.Equal(t, uint(2), id, "own changes are skipped")
	case <-time.After(2 * time.Second):
		t.Fatal("remote change not delivered")
	}

	require.NoError(t, rdb.Publish(context.Background(), DefaultChannel, "garbage").Err())
	select {
	case id := <-received:
		t.Fatalf("unexpected change for division %d", id)
	case <-time.After(100 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestPublishOutlivesCancelledRequest(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	sub := rdb.Subscribe(context.Background(), "custom")
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	New(rdb, "custom", zap.NewNop()).OnQueueChange(ctx, queue.Change{Kind: queue.TicketDeleted, DivisionID: 5})

	msg, err := sub.ReceiveMessage(context.Background())
	require.NoError(t, err)
	assert.Contains(t, msg.Payload, `"division_id":5`)
}
