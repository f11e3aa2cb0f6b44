package prefetch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog"

	"github.com/eleven-am/relay247/internal/domain"
	"github.com/eleven-am/relay247/internal/log"
)

type ResolveFunc func(ctx context.Context, id string) (*domain.ResolvedItem, error)

// Pipeliner resolves the next item in the background while the current one
// streams. The cache holds exactly one lookahead entry and the worker pool
// has exactly one slot; a Prime while that slot is busy is dropped, never
// queued.
type Pipeliner struct {
	resolve ResolveFunc
	pool    *ants.Pool
	logger  zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	id   string
	item *domain.ResolvedItem
}

func New(resolve ResolveFunc) (*Pipeliner, error) {
	pool, err := ants.NewPool(1, ants.WithNonblocking(true))
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pipeliner{
		resolve: resolve,
		pool:    pool,
		logger:  log.WithComponent("prefetch"),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Prime kicks off background resolution for id. It never blocks.
func (p *Pipeliner) Prime(id string) {
	err := p.pool.Submit(func() {
		item, err := p.resolve(p.ctx, id)

		p.mu.Lock()
		defer p.mu.Unlock()
		if err != nil {
			p.logger.Debug().Str("item", id).Err(err).Msg("prefetch resolution failed")
			if p.id == id {
				p.id = ""
				p.item = nil
			}
			return
		}
		p.id = id
		p.item = item
	})
	if err == nil {
		return
	}
	if errors.Is(err, ants.ErrPoolOverload) {
		p.logger.Debug().Str("item", id).Msg("prefetch slot busy, dropping prime")
		return
	}
	p.logger.Debug().Str("item", id).Err(err).Msg("prefetch submit failed")
}

// Consume returns the cached entry when its tag matches id. The slot is
// cleared on every call; a mismatched or stale entry gets one chance and is
// then gone.
func (p *Pipeliner) Consume(id string) (*domain.ResolvedItem, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	item := p.item
	hit := p.id == id && item != nil
	p.id = ""
	p.item = nil

	if !hit {
		return nil, false
	}
	return item, true
}

// Close cancels any in-flight resolution and releases the pool.
func (p *Pipeliner) Close() {
	p.cancel()
	if err := p.pool.ReleaseTimeout(time.Second); err != nil {
		p.logger.Debug().Err(err).Msg("prefetch pool did not drain in time")
	}
}
