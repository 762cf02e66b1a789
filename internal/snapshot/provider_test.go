package snapshot

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSource struct {
	builds  atomic.Int32
	version atomic.Int32
	gate    chan struct{} // holds a build until closed
	started chan struct{}
	err     error
}

func (f *fakeSource) LoadSnapshot(_ context.Context, divisionID uint) (*Snapshot, error) {
	f.builds.Add(1)
	v := f.version.Load()
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return nil, f.err
	}
	s := sampleSnapshot(divisionID)
	s.Waiting[0].Position = int(v)
	return s, nil
}

type failingCache struct{}

func (failingCache) Get(context.Context, uint) (*Snapshot, error) {
	return nil, errors.New("connection refused")
}

func (failingCache) Put(context.Context, uint, *Snapshot) {}

func (failingCache) Invalidate(context.Context, uint) {}

func TestProviderCachesBuilds(t *testing.T) {
	src := &fakeSource{}
	p := NewProvider(NewMemoryCache(10, time.Minute), src, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := p.Get(ctx, 1)
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, src.builds.Load())

	_, err := p.Get(ctx, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 2, src.builds.Load())
}

func TestProviderReadsAfterInvalidateSeeTheMutation(t *testing.T) {
	src := &fakeSource{}
	p := NewProvider(NewMemoryCache(10, time.Minute), src, zap.NewNop())
	ctx := context.Background()

	s, err := p.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Waiting[0].Position)

	src.version.Store(1)
	p.Invalidate(ctx, 1)

	s, err = p.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Waiting[0].Position)
}

func TestProviderDropsBuildThatRacedInvalidate(t *testing.T) {
	src := &fakeSource{gate: make(chan struct{}), started: make(chan struct{}, 1)}
	p := NewProvider(NewMemoryCache(10, time.Minute), src, zap.NewNop())
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = p.Get(ctx, 1)
	}()

	<-src.started
	src.version.Store(1)
	p.Invalidate(ctx, 1)
	close(src.gate)
	wg.Wait()

	src.gate = nil
	src.started = nil
	s, err := p.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Waiting[0].Position, "stale build was not cached")
	assert.EqualValues(t, 2, src.builds.Load())
}

func TestProviderFallsBackWhenCacheFails(t *testing.T) {
	src := &fakeSource{}
	p := NewProvider(failingCache{}, src, zap.NewNop())

	s, err := p.Get(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, uint(3), s.DivisionID)
}

func TestProviderReturnsSourceErrors(t *testing.T) {
	boom := errors.New("db down")
	p := NewProvider(NewMemoryCache(10, time.Minute), &fakeSource{err: boom}, zap.NewNop())

	_, err := p.Get(context.Background(), 1)
	assert.ErrorIs(t, err, boom)
}

func TestSnapshotCurrent(t *testing.T) {
	var empty Snapshot
	assert.Nil(t, empty.Current())

	term := uint(4)
	s := Snapshot{InProgress: []TicketView{
		{QueueNumber: "A-003", TerminalID: &term},
		{QueueNumber: "A-001"},
	}}
	assert.Equal(t, "A-003", s.Current().QueueNumber)
	assert.Equal(t, "A-003", s.CurrentFor(4).QueueNumber)
	assert.Nil(t, s.CurrentFor(5))
}
