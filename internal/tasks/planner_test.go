package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeSweeper struct {
	runs    atomic.Int32
	err     error
	expired int64
}

func (f *fakeSweeper) ExpireStale(ctx context.Context) (int64, error) {
	f.runs.Add(1)
	if _, ok := ctx.Deadline(); !ok {
		return 0, errors.New("sweep without deadline")
	}
	return f.expired, f.err
}

func TestExpireStaleTicketsLogsOutcome(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	log := zap.New(core)

	ExpireStaleTickets(context.Background(), &fakeSweeper{expired: 4}, log)
	ExpireStaleTickets(context.Background(), &fakeSweeper{err: errors.New("db down")}, log)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "stale ticket sweep finished", entries[0].Message)
	assert.EqualValues(t, 4, entries[0].ContextMap()["expired"])
	assert.Equal(t, "stale ticket sweep failed", entries[1].Message)
}

func TestInitSchedulerRunsSweep(t *testing.T) {
	s := &fakeSweeper{}
	c, err := InitScheduler(context.Background(), "* * * * * *", time.UTC, s, zap.NewNop())
	require.NoError(t, err)
	defer c.Stop()

	require.Len(t, c.Entries(), 1)
	assert.Eventually(t, func() bool { return s.runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
}

func TestInitSchedulerRejectsBadSpec(t *testing.T) {
	_, err := InitScheduler(context.Background(), "every night", nil, &fakeSweeper{}, zap.NewNop())
	assert.Error(t, err)

	_, err = InitScheduler(context.Background(), "0 0 * * *", nil, &fakeSweeper{}, zap.NewNop())
	assert.Error(t, err, "five-field specs lack seconds")
}
