package poller

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/paco-sync/internal/protocol"
)

// MatchSource provides the match keys to poll.
type MatchSource interface {
	MatchKeys() []string
}

// MatchSourceFunc is a function adapter for MatchSource.
type MatchSourceFunc func() []string

func (f MatchSourceFunc) MatchKeys() []string { return f() }

// Fetcher loads one match over REST. *api.Client satisfies it.
type Fetcher interface {
	GetMatch(ctx context.Context, key string) (protocol.CurrentMatchState, error)
}

// SnapshotHandler receives fetched snapshots.
type SnapshotHandler interface {
	HandleSnapshot(snapshot protocol.CurrentMatchState) error
}

// SnapshotHandlerFunc is a function adapter for SnapshotHandler.
type SnapshotHandlerFunc func(protocol.CurrentMatchState) error

func (f SnapshotHandlerFunc) HandleSnapshot(s protocol.CurrentMatchState) error {
	return f(s)
}

// Config holds poller configuration.
type Config struct {
	Interval    time.Duration // Poll interval (default: 30s)
	Concurrency int           // Max concurrent requests (default: 4)
	Timeout     time.Duration // Per-request timeout (default: 10s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:    30 * time.Second,
		Concurrency: 4,
		Timeout:     10 * time.Second,
	}
}

// Stats counts poll results since start.
type Stats struct {
	Cycles  int64
	Fetched int64
	Errors  int64
}

// Poller periodically fetches match snapshots via REST API.
type Poller struct {
	cfg     Config
	client  Fetcher
	matches MatchSource
	handler SnapshotHandler
	logger  *slog.Logger

	cycles  atomic.Int64
	fetched atomic.Int64
	errors  atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller.
func New(cfg Config, client Fetcher, matches MatchSource, handler SnapshotHandler, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Poller{
		cfg:     cfg,
		client:  client,
		matches: matches,
		handler: handler,
		logger:  logger.With("component", "poller"),
	}
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("snapshot poller started",
		"interval", p.cfg.Interval,
		"concurrency", p.cfg.Concurrency,
	)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("snapshot poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns counters since start.
func (p *Poller) Stats() Stats {
	return Stats{
		Cycles:  p.cycles.Load(),
		Fetched: p.fetched.Load(),
		Errors:  p.errors.Load(),
	}
}

// run is the main polling loop. The first poll waits one interval so the
// websocket has a chance to deliver the initial state.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.pollAll()
		}
	}
}

// pollAll fetches every watched match concurrently.
func (p *Poller) pollAll() {
	start := time.Now()
	p.cycles.Add(1)

	keys := p.matches.MatchKeys()
	if len(keys) == 0 {
		p.logger.Debug("no matches to poll")
		return
	}

	// Semaphore for bounded concurrency.
	sem := make(chan struct{}, p.cfg.Concurrency)
	var wg sync.WaitGroup
	var fetched, failed atomic.Int64

	for _, key := range keys {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-p.ctx.Done():
				return
			}

			if err := p.pollMatch(key); err != nil {
				p.logger.Warn("failed to poll match",
					"match_key", key,
					"error", err,
				)
				failed.Add(1)
				return
			}

			fetched.Add(1)
		}(key)
	}

	wg.Wait()
	p.fetched.Add(fetched.Load())
	p.errors.Add(failed.Load())

	p.logger.Debug("poll cycle complete",
		"matches", len(keys),
		"fetched", fetched.Load(),
		"errors", failed.Load(),
		"duration", time.Since(start),
	)
}

// pollMatch fetches and handles one match.
func (p *Poller) pollMatch(key string) error {
	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Timeout)
	defer cancel()

	state, err := p.client.GetMatch(ctx, key)
	if err != nil {
		return err
	}

	if p.handler != nil {
		return p.handler.HandleSnapshot(state)
	}
	return nil
}
