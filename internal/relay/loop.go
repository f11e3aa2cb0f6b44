package relay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/eleven-am/relay247/internal/domain"
	"github.com/eleven-am/relay247/internal/log"
	"github.com/eleven-am/relay247/internal/metrics"
	"github.com/eleven-am/relay247/internal/playlist"
	"github.com/eleven-am/relay247/internal/status"
)

var listRetryDelay = 30 * time.Second

type ListFetcher interface {
	ItemIDs(ctx context.Context, playlist string) ([]string, error)
}

type ItemResolver interface {
	Resolve(ctx context.Context, id string) (*domain.ResolvedItem, error)
}

type Prefetcher interface {
	Prime(id string)
	Consume(id string) (*domain.ResolvedItem, bool)
}

type Streamer interface {
	Stream(ctx context.Context, item *domain.ResolvedItem) error
}

// Deps are the components the loop drives. SelectEncoder never fails, it
// falls back to software encoding. Preflight may rewrite the ingest URL.
// NewStreamer is called once per run, after the encoder and final ingest
// URL are known.
type Deps struct {
	SelectEncoder func(ctx context.Context) domain.EncoderSelection
	Preflight     func(ctx context.Context, enc domain.EncoderSelection, ingestURL string) (string, error)
	NewStreamer   func(enc domain.EncoderSelection, ingestURL string) Streamer
	Fetcher       ListFetcher
	Resolver      ItemResolver
	Prefetch      Prefetcher
}

// Loop runs the relay state machine: probe the encoder, validate the ingest
// endpoint, then cycle playlist passes until the run context is cancelled.
// Cancelling the run context is the only way to stop; Skip aborts just the
// item currently on air.
type Loop struct {
	cfg    domain.RelayConfig
	deps   Deps
	pub    *status.Publisher
	rec    *metrics.Recorder
	logger zerolog.Logger

	mu         sync.Mutex
	itemCancel context.CancelFunc
	skipped    bool
}

func NewLoop(cfg domain.RelayConfig, deps Deps, pub *status.Publisher, rec *metrics.Recorder) *Loop {
	return &Loop{
		cfg:    cfg,
		deps:   deps,
		pub:    pub,
		rec:    rec,
		logger: log.WithComponent("relay"),
	}
}

// Run drives the relay until ctx is cancelled. It returns nil on a clean
// stop and an error only when the run cannot start.
func (l *Loop) Run(ctx context.Context) error {
	defer l.setState(status.StateStopped)

	runID := uuid.NewString()
	l.logger.Info().Str("run_id", runID).Str("playlist", l.cfg.PlaylistID).Msg("relay starting")
	l.pub.Update(func(s *status.Snapshot) {
		s.State = status.StateStarting
		s.RunID = runID
		s.StartedAt = time.Now()
	})
	l.rec.SetState(status.StateStarting)

	l.setState(status.StateProbing)
	enc := l.deps.SelectEncoder(ctx)
	l.pub.Update(func(s *status.Snapshot) { s.Encoder = enc.Name })

	l.setState(status.StatePreflight)
	ingestURL, err := l.deps.Preflight(ctx, enc, l.cfg.IngestURL())
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("ingest preflight: %w", err)
	}

	streamer := l.deps.NewStreamer(enc, ingestURL)

	for ctx.Err() == nil {
		ids, err := l.deps.Fetcher.ItemIDs(ctx, l.cfg.PlaylistID)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			l.rec.ListFailed()
			l.logger.Warn().Err(err).Msg("playlist fetch failed, retrying")
			l.waitForList(ctx)
			continue
		}
		if len(ids) == 0 {
			l.rec.ListFailed()
			l.logger.Warn().Str("playlist", l.cfg.PlaylistID).Msg("playlist has no items, retrying")
			l.waitForList(ctx)
			continue
		}
		l.rec.ListRefreshed()

		if l.cfg.Shuffle {
			playlist.Shuffle(ids)
		}
		l.logger.Info().Int("items", len(ids)).Bool("shuffled", l.cfg.Shuffle).Msg("starting playlist pass")
		l.streamPass(ctx, streamer, ids)
	}

	l.logger.Info().Str("run_id", runID).Msg("relay stopped")
	return nil
}

func (l *Loop) streamPass(ctx context.Context, streamer Streamer, ids []string) {
	for i, id := range ids {
		if ctx.Err() != nil {
			return
		}

		item, ok := l.deps.Prefetch.Consume(id)
		if ok {
			l.rec.PrefetchHit()
		} else {
			l.rec.PrefetchMiss()
		}

		// The follower is primed regardless of how the current item resolves.
		if i+1 < len(ids) {
			l.deps.Prefetch.Prime(ids[i+1])
		}

		if !ok {
			var err error
			item, err = l.deps.Resolver.Resolve(ctx, id)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				l.failItem(ctx, id, err)
				continue
			}
		}

		l.pub.Update(func(s *status.Snapshot) {
			s.State = status.StateRunning
			s.ItemID = item.ID
			s.ItemTitle = item.Title
			s.ItemIndex = i + 1
			s.ItemCount = len(ids)
		})
		l.rec.SetState(status.StateRunning)
		l.logger.Info().
			Str("item", item.ID).
			Str("title", item.Title).
			Int("index", i+1).
			Int("of", len(ids)).
			Msg("item starting")

		itemCtx := l.beginItem(ctx)
		started := time.Now()
		err := streamer.Stream(itemCtx, item)
		skipped := l.endItem()

		switch {
		case err == nil:
			l.pub.Update(func(s *status.Snapshot) { s.ItemsCompleted++ })
			l.rec.ItemCompleted(time.Since(started).Seconds())
			sleepCtx(ctx, l.cfg.CoolDown)
		case ctx.Err() != nil:
			return
		case skipped:
			l.logger.Info().Str("item", id).Msg("item skipped")
			l.rec.ItemSkipped()
			// The killed transcoder's ingest session may still be closing.
			sleepCtx(ctx, l.cfg.CoolDown)
		default:
			l.failItem(ctx, id, err)
		}
	}
}

// Skip aborts the item currently streaming. It does nothing when no item
// is on air.
func (l *Loop) Skip() {
	l.mu.Lock()
	cancel := l.itemCancel
	if cancel != nil {
		l.skipped = true
	}
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (l *Loop) beginItem(ctx context.Context) context.Context {
	itemCtx, cancel := context.WithCancel(ctx)
	l.mu.Lock()
	l.itemCancel = cancel
	l.skipped = false
	l.mu.Unlock()
	return itemCtx
}

func (l *Loop) endItem() bool {
	l.mu.Lock()
	cancel := l.itemCancel
	skipped := l.skipped
	l.itemCancel = nil
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return skipped
}

func (l *Loop) setState(s status.State) {
	l.pub.Update(func(snap *status.Snapshot) { snap.State = s })
	l.rec.SetState(s)
}

func (l *Loop) failItem(ctx context.Context, id string, err error) {
	l.logger.Error().Err(err).Str("item", id).Msg("item failed")
	l.pub.Update(func(s *status.Snapshot) { s.ItemsFailed++ })
	l.rec.ItemFailed()
	sleepCtx(ctx, l.cfg.ItemDelay)
}

func (l *Loop) waitForList(ctx context.Context) {
	l.pub.Update(func(s *status.Snapshot) {
		s.State = status.StateWaiting
		s.ItemID = ""
		s.ItemTitle = ""
		s.ItemIndex = 0
		s.ItemCount = 0
	})
	l.rec.SetState(status.StateWaiting)
	sleepCtx(ctx, listRetryDelay)
}

// sleepCtx waits for d unless ctx ends first. It reports whether the full
// duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
