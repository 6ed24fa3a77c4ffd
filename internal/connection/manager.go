package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/paco-sync/internal/queue"
)

// Manager owns the connection to the match server.
type Manager interface {
	// Start begins connecting in the background.
	Start(ctx context.Context) error

	// Stop closes the connection and ends reconnection. It does not
	// reconnect afterwards.
	Stop(ctx context.Context) error

	// Send enqueues data for delivery. It never blocks on the network:
	// while disconnected the message waits in the outgoing queue and is
	// flushed, in order, right after the next successful open.
	Send(data []byte) error

	// Reconnect starts a fresh attempt now unless already connected. Any
	// pending backoff timer or in-flight attempt is superseded.
	Reconnect()

	// Events returns the buffer of status changes and inbound messages.
	Events() *queue.Buffer[Event]

	// Status returns the current connection status.
	Status() Status

	// Stats returns current statistics.
	Stats() ManagerStats
}

// Dialer opens a client for one strategy. The default dials a gorilla
// websocket; tests substitute their own.
type Dialer func(ctx context.Context, cfg ClientConfig, logger *slog.Logger) (Client, error)

// DialWebsocket is the default Dialer.
func DialWebsocket(ctx context.Context, cfg ClientConfig, logger *slog.Logger) (Client, error) {
	c := NewClient(cfg, logger)
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Option configures a Manager.
type Option func(*manager)

// WithDialer replaces the websocket dialer.
func WithDialer(d Dialer) Option {
	return func(m *manager) { m.dial = d }
}

// WithOnOpen registers a function whose messages are written first on every
// successful open, ahead of the queued backlog. It runs on the manager's
// goroutine.
func WithOnOpen(f func() [][]byte) Option {
	return func(m *manager) { m.onOpen = f }
}

// loop messages
type loopMsg interface {
	isLoopMsg()
}

type dialResult struct {
	gen      uint64
	client   Client
	strategy string
	err      error
}

type readMsg struct {
	gen uint64
	msg TimestampedMessage
}

type readErr struct {
	gen uint64
	err error
}

type retryMsg struct {
	gen uint64
}

func (dialResult) isLoopMsg() {}
func (readMsg) isLoopMsg()    {}
func (readErr) isLoopMsg()    {}
func (retryMsg) isLoopMsg()   {}

// manager implements the Manager interface. Everything below the "loop-owned"
// marker is touched only by run.
type manager struct {
	cfg    ManagerConfig
	dial   Dialer
	onOpen func() [][]byte
	logger *slog.Logger

	inbox     chan loopMsg
	kick      chan struct{}
	reconnect chan struct{}
	outgoing  *queue.Buffer[[]byte]
	events    *queue.Buffer[Event]

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started atomic.Bool

	status     atomic.Int32
	generation atomic.Uint64
	sent       atomic.Uint64
	received   atomic.Uint64
	dropped    atomic.Uint64
	attempts   atomic.Uint64

	// loop-owned
	gen        uint64
	client     Client
	readerStop chan struct{}
	backoff    *Backoff
	timer      *time.Timer
}

// NewManager creates a new Connection Manager.
func NewManager(cfg ManagerConfig, logger *slog.Logger, opts ...Option) Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = DefaultManagerConfig().QueueCapacity
	}

	m := &manager{
		cfg:       cfg,
		dial:      DialWebsocket,
		logger:    logger.With("component", "connection"),
		inbox:     make(chan loopMsg, 16),
		kick:      make(chan struct{}, 1),
		reconnect: make(chan struct{}, 1),
		outgoing:  queue.New[[]byte](cfg.QueueCapacity),
		events:    queue.New[Event](cfg.QueueCapacity),
		backoff:   NewBackoff(cfg.ReconnectBaseDelay, cfg.BackoffFactor, cfg.MaxReconnectDelay),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins the connection manager.
func (m *manager) Start(ctx context.Context) error {
	if len(m.cfg.Strategies) == 0 {
		return ErrNoStrategies
	}
	if !m.started.CompareAndSwap(false, true) {
		return fmt.Errorf("connection manager already started")
	}

	m.ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go m.run()

	m.logger.Info("connection manager started", "strategies", len(m.cfg.Strategies))
	return nil
}

// Stop gracefully shuts down.
func (m *manager) Stop(ctx context.Context) error {
	if !m.started.Load() || m.cancel == nil {
		return nil
	}
	m.logger.Info("stopping connection manager")

	m.cancel()

	// Wait for goroutines with timeout
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("shutdown timeout, forcing close")
	}

	m.outgoing.Close()
	m.events.Close()

	m.logger.Info("connection manager stopped",
		"sent", m.sent.Load(),
		"unsent", m.outgoing.Len(),
	)
	return nil
}

// Send enqueues data and nudges the loop.
func (m *manager) Send(data []byte) error {
	if !m.outgoing.Push(data) {
		return ErrStopped
	}
	select {
	case m.kick <- struct{}{}:
	default:
	}
	return nil
}

// Reconnect requests a fresh attempt.
func (m *manager) Reconnect() {
	select {
	case m.reconnect <- struct{}{}:
	default:
	}
}

// Events returns the event buffer.
func (m *manager) Events() *queue.Buffer[Event] {
	return m.events
}

// Status returns the current status.
func (m *manager) Status() Status {
	return Status(m.status.Load())
}

// Stats returns current statistics.
func (m *manager) Stats() ManagerStats {
	return ManagerStats{
		Status:     m.Status(),
		Generation: m.generation.Load(),
		Queued:     m.outgoing.Len(),
		Sent:       m.sent.Load(),
		Received:   m.received.Load(),
		Dropped:    m.dropped.Load(),
		Attempts:   m.attempts.Load(),
	}
}

// run is the single consumer of everything that changes connection state.
func (m *manager) run() {
	defer m.wg.Done()
	defer m.shutdown()

	m.connect("start")

	for {
		select {
		case <-m.ctx.Done():
			return

		case <-m.kick:
			if m.Status() == StatusConnected {
				if err := m.flush(); err != nil {
					m.lost(err)
				}
			}

		case <-m.reconnect:
			if m.Status() == StatusConnected {
				m.logger.Debug("reconnect requested while connected, ignoring")
				continue
			}
			m.connect("manual")

		case msg := <-m.inbox:
			m.handle(msg)
		}
	}
}

func (m *manager) handle(msg loopMsg) {
	switch msg := msg.(type) {
	case dialResult:
		m.handleDial(msg)

	case readMsg:
		if msg.gen != m.gen {
			m.dropped.Add(1)
			return
		}
		m.received.Add(1)
		m.events.Push(MessageEvent{TimestampedMessage: msg.msg, Generation: msg.gen})

	case readErr:
		if msg.gen != m.gen || m.client == nil {
			return
		}
		m.lost(msg.err)

	case retryMsg:
		if msg.gen != m.gen {
			m.logger.Debug("stale retry timer ignored", "gen", msg.gen, "current", m.gen)
			return
		}
		m.connect("retry")
	}
}

// connect starts a new attempt generation. Whatever the previous generation
// was doing is abandoned: its timer is stopped and its result will be
// discarded on arrival.
func (m *manager) connect(reason string) {
	m.stopTimer()
	m.dropClient()

	m.gen++
	m.generation.Store(m.gen)
	m.attempts.Add(1)
	m.setStatus(StatusConnecting, StatusEvent{Status: StatusConnecting, Generation: m.gen})

	gen := m.gen
	attempt := uuid.NewString()
	logger := m.logger.With("gen", gen, "attempt", attempt)
	logger.Debug("connecting", "reason", reason)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		client, strategy, err := m.dialStrategies(logger)
		m.post(dialResult{gen: gen, client: client, strategy: strategy, err: err})
	}()
}

// dialStrategies tries every strategy in order and returns the first that
// opens.
func (m *manager) dialStrategies(logger *slog.Logger) (Client, string, error) {
	var errs []error
	for _, s := range m.cfg.Strategies {
		if m.ctx.Err() != nil {
			return nil, "", m.ctx.Err()
		}

		cfg := m.cfg.Client
		cfg.URL = s.URL
		cfg.Header = s.Header

		client, err := m.dial(m.ctx, cfg, logger.With("strategy", s.Name))
		if err != nil {
			logger.Debug("strategy failed", "strategy", s.Name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
			continue
		}
		return client, s.Name, nil
	}
	return nil, "", errors.Join(errs...)
}

func (m *manager) handleDial(r dialResult) {
	if r.gen != m.gen {
		if r.client != nil {
			r.client.Close()
		}
		m.logger.Debug("stale connection attempt discarded", "gen", r.gen, "current", m.gen)
		return
	}

	if r.err != nil {
		m.logger.Warn("all connection strategies failed", "gen", r.gen, "error", r.err)
		m.scheduleRetry(r.err)
		return
	}

	m.client = r.client
	m.readerStop = make(chan struct{})
	m.wg.Add(1)
	go m.read(r.gen, r.client, m.readerStop)

	if err := m.greet(); err != nil {
		m.lost(err)
		return
	}
	if err := m.flush(); err != nil {
		m.lost(err)
		return
	}

	m.backoff.Reset()
	m.setStatus(StatusConnected, StatusEvent{Status: StatusConnected, Strategy: r.strategy, Generation: r.gen})
	m.logger.Info("connected", "strategy", r.strategy, "gen", r.gen)
}

// greet writes the on-open messages.
func (m *manager) greet() error {
	if m.onOpen == nil {
		return nil
	}
	for _, data := range m.onOpen() {
		if err := m.client.Send(data); err != nil {
			return fmt.Errorf("on-open send: %w", err)
		}
		m.sent.Add(1)
	}
	return nil
}

// flush writes the outgoing queue in order. A message whose write fails goes
// back to the head of the queue.
func (m *manager) flush() error {
	for {
		data, ok := m.outgoing.Pop()
		if !ok {
			return nil
		}
		if err := m.client.Send(data); err != nil {
			m.outgoing.PushFront(data)
			return fmt.Errorf("flush: %w", err)
		}
		m.sent.Add(1)
	}
}

// lost handles an unclean close of the current connection.
func (m *manager) lost(err error) {
	m.logger.Warn("connection lost", "gen", m.gen, "error", err)
	m.dropClient()
	m.scheduleRetry(err)
}

func (m *manager) scheduleRetry(cause error) {
	delay := m.backoff.Next()
	gen := m.gen
	m.stopTimer()
	m.timer = time.AfterFunc(delay, func() {
		m.post(retryMsg{gen: gen})
	})
	m.setStatus(StatusDisconnected, StatusEvent{
		Status:     StatusDisconnected,
		Generation: gen,
		Err:        cause,
		RetryIn:    delay,
	})
	m.logger.Info("reconnect scheduled", "delay", delay, "retry", m.backoff.Attempt())
}

// read forwards one client's traffic to the loop, tagged with its generation.
func (m *manager) read(gen uint64, c Client, stop <-chan struct{}) {
	defer m.wg.Done()
	for {
		select {
		case <-stop:
			return
		case <-m.ctx.Done():
			return
		case msg := <-c.Messages():
			m.post(readMsg{gen: gen, msg: msg})
		case err := <-c.Errors():
			// Frames read before the failure are already buffered.
			m.drain(gen, c)
			m.post(readErr{gen: gen, err: err})
			return
		}
	}
}

// drain forwards whatever c has buffered without blocking.
func (m *manager) drain(gen uint64, c Client) {
	for {
		select {
		case msg, ok := <-c.Messages():
			if !ok {
				return
			}
			m.post(readMsg{gen: gen, msg: msg})
		default:
			return
		}
	}
}

func (m *manager) post(msg loopMsg) {
	select {
	case m.inbox <- msg:
	case <-m.ctx.Done():
	}
}

func (m *manager) dropClient() {
	if m.readerStop != nil {
		close(m.readerStop)
		m.readerStop = nil
	}
	if m.client != nil {
		m.client.Close()
		m.client = nil
	}
}

func (m *manager) stopTimer() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *manager) setStatus(s Status, ev StatusEvent) {
	m.status.Store(int32(s))
	m.events.Push(ev)
}

func (m *manager) shutdown() {
	m.stopTimer()
	m.dropClient()
	m.status.Store(int32(StatusDisconnected))
	m.events.Push(StatusEvent{Status: StatusDisconnected, Generation: m.gen, Err: ErrStopped})
}
