// Package relay247 keeps a single RTMP live endpoint fed around the clock
// from a remote playlist.
//
// relay247 drives two external tools: yt-dlp resolves playlist entries to
// playable media URLs, and ffmpeg transcodes each item and pushes it to the
// ingest endpoint. The relay runs unattended: it refreshes the playlist
// between passes, resolves the next item while the current one is on air,
// rides out per-item failures, and keeps going until it is told to stop.
//
// # Run lifecycle
//
// A run moves through a fixed sequence before the first item goes live:
//
//  1. Probe the transcoder for a working hardware encoder (NVENC, Quick
//     Sync, AMF) and fall back to software x264.
//  2. Push one second of black video and silence at the ingest endpoint to
//     validate the stream key, switching to the TLS variant of the ingest
//     URL when the plain one is unreachable.
//  3. Cycle playlist passes: fetch item IDs, optionally shuffle, then
//     resolve and stream each item in turn.
//
// # Basic Usage
//
//	rel, err := relay247.New(relay247.Options{
//	    Config: relay247.Config{
//	        PlaylistID: "PLxxxxxxxxxxxxxxxx",
//	        StreamKey:  "xxxx-xxxx-xxxx-xxxx",
//	    },
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Run blocks until Stop is called or ctx is cancelled.
//	go func() {
//	    if err := rel.Run(ctx); err != nil {
//	        log.Fatal(err)
//	    }
//	}()
//
//	rel.Skip() // abort the item currently on air
//	rel.Stop() // end the run
//
// # Stop and Skip
//
// Stop ends the run permanently; a stopped relay cannot be restarted, build
// a new one. Skip aborts only the item currently streaming and is ignored
// when nothing is on air.
package relay247

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/eleven-am/relay247/internal/domain"
	"github.com/eleven-am/relay247/internal/encoder"
	"github.com/eleven-am/relay247/internal/ffmpeg"
	"github.com/eleven-am/relay247/internal/log"
	"github.com/eleven-am/relay247/internal/metrics"
	"github.com/eleven-am/relay247/internal/playlist"
	"github.com/eleven-am/relay247/internal/preflight"
	"github.com/eleven-am/relay247/internal/prefetch"
	"github.com/eleven-am/relay247/internal/relay"
	"github.com/eleven-am/relay247/internal/resolver"
	"github.com/eleven-am/relay247/internal/status"
	"github.com/eleven-am/relay247/internal/supervisor"
)

type (
	// Config describes what to relay and how to encode it. The zero value
	// is completed with defaults; only PlaylistID and StreamKey must be
	// set.
	Config = domain.RelayConfig

	// Tools holds explicit paths to the external executables. Leave a
	// field empty to discover the tool next to the running binary or on
	// PATH.
	Tools = domain.Tools

	// EncoderSelection names the encoder a run settled on.
	EncoderSelection = domain.EncoderSelection

	// ResolvedItem is a playlist entry resolved to playable media URLs.
	ResolvedItem = domain.ResolvedItem

	// Snapshot is the externally visible state of a run.
	Snapshot = status.Snapshot

	// State labels the phase a run is in.
	State = status.State
)

const (
	StateStarting  = status.StateStarting
	StateProbing   = status.StateProbing
	StatePreflight = status.StatePreflight
	StateRunning   = status.StateRunning
	StateWaiting   = status.StateWaiting
	StateStopped   = status.StateStopped
)

var (
	// ErrTranscoderNotFound reports that no ffmpeg executable could be
	// discovered.
	ErrTranscoderNotFound = domain.ErrTranscoderNotFound

	// ErrResolverNotFound reports that no yt-dlp executable could be
	// discovered.
	ErrResolverNotFound = domain.ErrResolverNotFound

	// ErrNoPlayableSource reports that every resolution strategy failed
	// for an item.
	ErrNoPlayableSource = domain.ErrNoPlayableSource

	// ErrPreflightFailed reports that the ingest endpoint rejected the
	// validation push on both the plain and TLS URL variants.
	ErrPreflightFailed = domain.ErrPreflightFailed
)

// Options configures a Relay.
type Options struct {
	// Config is required. It is normalized and validated by New.
	Config Config

	// Tools optionally pins the ffmpeg and yt-dlp executables. Empty
	// fields are discovered.
	Tools Tools

	// LogLevel sets the minimum level of the run log ("debug", "info",
	// "warn", ...). Empty means info. Logging is process-wide; the first
	// configuration wins.
	LogLevel string

	// LogOutput overrides where rendered log lines are written. Nil means
	// stdout. SubscribeLogs delivers lines regardless of this writer.
	LogOutput io.Writer
}

// Relay is the main entry point. Build one with New, drive it with Run,
// and control it with Stop and Skip. All methods are safe for concurrent
// use.
type Relay struct {
	cfg   domain.RelayConfig
	tools domain.Tools
	loop  *relay.Loop
	pub   *status.Publisher
	rec   *metrics.Recorder
	pre   *prefetch.Pipeliner

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
}

// New builds a Relay from opts. It validates the configuration and locates
// any tool paths not pinned in opts.Tools, but starts nothing yet.
func New(opts Options) (*Relay, error) {
	log.Configure(log.Config{Level: opts.LogLevel, Output: opts.LogOutput})

	cfg := opts.Config
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("relay config: %w", err)
	}

	tools, err := opts.Tools.Complete()
	if err != nil {
		return nil, err
	}

	res := resolver.New(tools.YtDlp, cfg.Height)
	pre, err := prefetch.New(res.Resolve)
	if err != nil {
		return nil, fmt.Errorf("prefetch pipeline: %w", err)
	}

	deps := relay.Deps{
		SelectEncoder: func(ctx context.Context) domain.EncoderSelection {
			return encoder.Select(ctx, tools.FFmpeg)
		},
		Preflight: func(ctx context.Context, enc domain.EncoderSelection, ingestURL string) (string, error) {
			checker := preflight.New(tools.FFmpeg, ffmpeg.NewBuilder(cfg, enc))
			return checker.Validate(ctx, ingestURL)
		},
		NewStreamer: func(enc domain.EncoderSelection, ingestURL string) relay.Streamer {
			return supervisor.New(tools.FFmpeg, ffmpeg.NewBuilder(cfg, enc), cfg, ingestURL)
		},
		Fetcher:  playlist.NewFetcher(tools.YtDlp),
		Resolver: res,
		Prefetch: pre,
	}

	pub := status.NewPublisher()
	rec := metrics.New()

	return &Relay{
		cfg:   cfg,
		tools: tools,
		loop:  relay.NewLoop(cfg, deps, pub, rec),
		pub:   pub,
		rec:   rec,
		pre:   pre,
	}, nil
}

// Run executes the relay until ctx is cancelled or Stop is called. It
// blocks for the whole run and can only be called once per Relay.
func (r *Relay) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return fmt.Errorf("relay already ran, build a new one")
	}
	r.started = true
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.mu.Unlock()

	defer r.pre.Close()
	defer cancel()
	return r.loop.Run(runCtx)
}

// Stop ends the run. It returns without waiting for the current item to
// shut down; watch SubscribeStatus for StateStopped.
func (r *Relay) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Skip aborts the item currently on air. The relay moves to the next item;
// nothing happens when no item is streaming.
func (r *Relay) Skip() {
	r.loop.Skip()
}

// Status returns the current run snapshot.
func (r *Relay) Status() Snapshot {
	return r.pub.Current()
}

// SubscribeStatus streams run snapshots on every change. The returned
// cancel function releases the subscription.
func (r *Relay) SubscribeStatus() (<-chan Snapshot, func()) {
	return r.pub.Subscribe()
}

// SubscribeLogs streams rendered log lines from every component of the
// relay. The returned cancel function releases the subscription.
func (r *Relay) SubscribeLogs() (<-chan string, func()) {
	return log.Subscribe()
}

// MetricsHandler serves the relay's Prometheus metrics.
func (r *Relay) MetricsHandler() http.Handler {
	return r.rec.Handler()
}
