package snapshot

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// Source builds a snapshot straight from the store.
type Source interface {
	LoadSnapshot(ctx context.Context, divisionID uint) (*Snapshot, error)
}

// Provider serves snapshots through the cache and falls back to the source
// on a miss or any cache failure.
type Provider struct {
	cache  Cache
	source Source
	log    *zap.Logger

	mu   sync.Mutex
	gens map[uint]uint64
}

func NewProvider(cache Cache, source Source, log *zap.Logger) *Provider {
	return &Provider{
		cache:  cache,
		source: source,
		log:    log,
		gens:   make(map[uint]uint64),
	}
}

// Get returns the division's snapshot, building it when the cache has none.
func (p *Provider) Get(ctx context.Context, divisionID uint) (*Snapshot, error) {
	s, err := p.cache.Get(ctx, divisionID)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		p.log.Warn("snapshot cache read failed, using store", zap.Uint("division_id", divisionID), zap.Error(err))
	}

	gen := p.generation(divisionID)
	s, err = p.source.LoadSnapshot(ctx, divisionID)
	if err != nil {
		return nil, err
	}

	// A build that raced an invalidation must not be cached: it may predate
	// the mutation.
	p.mu.Lock()
	if p.gens[divisionID] == gen {
		p.cache.Put(ctx, divisionID, s)
	}
	p.mu.Unlock()
	return s, nil
}

// Invalidate drops the division's entry. Every build started before this call
// is discarded instead of cached.
func (p *Provider) Invalidate(ctx context.Context, divisionID uint) {
	p.mu.Lock()
	p.gens[divisionID]++
	p.cache.Invalidate(ctx, divisionID)
	p.mu.Unlock()
}

func (p *Provider) generation(divisionID uint) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gens[divisionID]
}
