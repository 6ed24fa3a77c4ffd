package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/paco-sync/internal/connection"
	"github.com/rickgao/paco-sync/internal/drift"
	"github.com/rickgao/paco-sync/internal/journal"
	"github.com/rickgao/paco-sync/internal/match"
	"github.com/rickgao/paco-sync/internal/protocol"
	"github.com/rickgao/paco-sync/internal/queue"
	"github.com/rickgao/paco-sync/internal/rules"
)

// Errors
var (
	ErrClosed     = errors.New("session closed")
	ErrNotStarted = errors.New("session not started")
)

// Config configures one match view.
type Config struct {
	MatchKey        string
	DriftCheckDelay time.Duration // Wait after the first subscription before measuring drift
	TickInterval    time.Duration // Countdown refresh; 0 disables ticking
	InboxSize       int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		DriftCheckDelay: time.Second,
		TickInterval:    100 * time.Millisecond,
		InboxSize:       64,
	}
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithManager substitutes the connection manager. The session still owns its
// lifecycle and installs nothing on it, so the caller must arrange for the
// subscription to be sent on open (see SubscribeMessage).
func WithManager(m connection.Manager) Option {
	return func(s *Session) { s.conn = m }
}

// WithConnectionOptions passes options to the connection manager the session
// builds.
func WithConnectionOptions(opts ...connection.Option) Option {
	return func(s *Session) { s.connOpts = append(s.connOpts, opts...) }
}

// WithJournal sends diagnostics events to buf.
func WithJournal(buf *queue.Buffer[journal.Event]) Option {
	return func(s *Session) { s.journal = buf }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// command is a request from the UI, handled on the loop.
type command interface {
	isCommand()
}

type submitCmd struct {
	action protocol.Action
	reply  chan error
}

type rollbackCmd struct {
	reply chan error
}

type setTimerCmd struct {
	timer protocol.TimerConfig
	reply chan error
}

type startTimerCmd struct {
	reply chan error
}

func (submitCmd) isCommand()     {}
func (rollbackCmd) isCommand()   {}
func (setTimerCmd) isCommand()   {}
func (startTimerCmd) isCommand() {}

// Session is one match view.
type Session struct {
	id       string
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
	connOpts []connection.Option

	conn    connection.Manager
	store   *match.Store
	rec     *match.Reconciler
	applier *match.Applier
	updates *queue.Buffer[Update]
	journal *queue.Buffer[journal.Event]

	inbox chan command

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	done    chan struct{}
	started atomic.Bool

	countMu   sync.RWMutex
	countdown drift.Countdown

	// loop-owned
	estimator     drift.Estimator
	driftTimer    *time.Timer
	driftArmed    bool
	lastCountdown drift.Countdown
}

// New creates a session for cfg.MatchKey. connCfg supplies the strategies
// and transport settings.
func New(cfg Config, engine rules.Engine, connCfg connection.ManagerConfig, opts ...Option) (*Session, error) {
	if cfg.MatchKey == "" {
		return nil, fmt.Errorf("session: match key is required")
	}
	if engine == nil {
		return nil, fmt.Errorf("session: rules engine is required")
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = DefaultConfig().InboxSize
	}

	s := &Session{
		id:      uuid.NewString(),
		cfg:     cfg,
		logger:  slog.Default(),
		now:     time.Now,
		updates: queue.New[Update](cfg.InboxSize),
		inbox:   make(chan command, cfg.InboxSize),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("view_id", s.id, "match_key", cfg.MatchKey)

	s.store = match.NewStore(cfg.MatchKey, engine)
	s.rec = match.NewReconciler(s.store, s.logger)
	s.applier = match.NewApplier(s.store, s.logger)

	if s.conn == nil {
		subscribe, err := SubscribeMessage(cfg.MatchKey)
		if err != nil {
			return nil, err
		}
		opts := append([]connection.Option{
			connection.WithOnOpen(func() [][]byte { return [][]byte{subscribe} }),
		}, s.connOpts...)
		s.conn = connection.NewManager(connCfg, s.logger, opts...)
	}

	return s, nil
}

// SubscribeMessage encodes the subscription sent on every open.
func SubscribeMessage(key string) ([]byte, error) {
	data, err := protocol.EncodeClient(protocol.SubscribeToMatch{Key: key})
	if err != nil {
		return nil, fmt.Errorf("encode subscribe: %w", err)
	}
	return data, nil
}

// ID returns the view id used in logs and the journal.
func (s *Session) ID() string { return s.id }

// Start connects and begins processing.
func (s *Session) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	if err := s.conn.Start(s.ctx); err != nil {
		s.cancel()
		return fmt.Errorf("start connection: %w", err)
	}
	s.started.Store(true)

	s.wg.Add(1)
	go s.run()

	s.logger.Info("match view opened")
	return nil
}

// Stop ends the loop and closes the connection without reconnecting.
func (s *Session) Stop(ctx context.Context) error {
	if !s.started.Load() {
		return nil
	}
	s.logger.Info("closing match view")

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("session stop timed out")
	}

	err := s.conn.Stop(ctx)
	s.updates.Close()
	return err
}

// Submit applies action optimistically and sends it. It fails without
// touching the view when legal actions are not loaded or action is not in
// the legal set.
func (s *Session) Submit(ctx context.Context, action protocol.Action) error {
	reply := make(chan error, 1)
	return s.do(ctx, submitCmd{action: action, reply: reply}, reply)
}

// Rollback asks the server to undo the move in progress. The view changes
// only when the server's answer arrives.
func (s *Session) Rollback(ctx context.Context) error {
	reply := make(chan error, 1)
	return s.do(ctx, rollbackCmd{reply: reply}, reply)
}

// SetTimer configures the match timer.
func (s *Session) SetTimer(ctx context.Context, timer protocol.TimerConfig) error {
	reply := make(chan error, 1)
	return s.do(ctx, setTimerCmd{timer: timer, reply: reply}, reply)
}

// StartTimer starts the match timer.
func (s *Session) StartTimer(ctx context.Context) error {
	reply := make(chan error, 1)
	return s.do(ctx, startTimerCmd{reply: reply}, reply)
}

// Reconnect triggers a connection attempt now.
func (s *Session) Reconnect() { s.conn.Reconnect() }

// Snapshot returns the current view.
func (s *Session) Snapshot() match.View { return s.store.View() }

// Status returns the connection status.
func (s *Session) Status() connection.Status { return s.conn.Status() }

// LegalActionsReady reports whether input may be enabled.
func (s *Session) LegalActionsReady() bool { return s.store.LegalActionsReady() }

// Countdown returns the last computed clock values.
func (s *Session) Countdown() drift.Countdown {
	s.countMu.RLock()
	defer s.countMu.RUnlock()
	return s.countdown
}

// Updates returns the feed of changes for the renderer.
func (s *Session) Updates() *queue.Buffer[Update] { return s.updates }

func (s *Session) do(ctx context.Context, cmd command, reply <-chan error) error {
	if !s.started.Load() {
		return ErrNotStarted
	}
	select {
	case s.inbox <- cmd:
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the single sequential update path.
func (s *Session) run() {
	defer s.wg.Done()
	defer close(s.done)
	defer s.stopDriftTimer()

	var tick <-chan time.Time
	if s.cfg.TickInterval > 0 {
		ticker := time.NewTicker(s.cfg.TickInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	events := s.conn.Events()

	for {
		var driftC <-chan time.Time
		if s.driftTimer != nil {
			driftC = s.driftTimer.C
		}

		select {
		case <-s.ctx.Done():
			return

		case cmd := <-s.inbox:
			s.handleCommand(cmd)

		case <-events.Ready():
			for {
				ev, ok := events.Pop()
				if !ok {
					break
				}
				s.handleEvent(ev)
			}

		case <-tick:
			s.tick()

		case <-driftC:
			s.driftTimer = nil
			s.beginDriftCheck()
		}
	}
}

func (s *Session) handleCommand(cmd command) {
	switch cmd := cmd.(type) {
	case submitCmd:
		cmd.reply <- s.submit(cmd.action)
	case rollbackCmd:
		cmd.reply <- s.send(s.applier.Rollback())
	case setTimerCmd:
		cmd.reply <- s.send(protocol.SetTimer{Key: s.cfg.MatchKey, Timer: cmd.timer})
	case startTimerCmd:
		cmd.reply <- s.send(protocol.StartTimer{Key: s.cfg.MatchKey})
	}
}

func (s *Session) submit(action protocol.Action) error {
	msg, err := s.applier.Submit(action)
	if err != nil {
		return err
	}
	view := s.store.View()
	s.publish(Update{Kind: UpdateOptimistic, Actions: []protocol.Action{action}})
	s.record(journal.Event{Kind: journal.KindSubmit, Detail: action.String(), HistoryLen: len(view.State.History)})
	return s.send(msg)
}

func (s *Session) send(msg protocol.ClientMessage) error {
	data, err := protocol.EncodeClient(msg)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return s.conn.Send(data)
}

func (s *Session) handleEvent(ev connection.Event) {
	switch ev := ev.(type) {
	case connection.StatusEvent:
		s.logger.Debug("connection status", "status", ev.Status, "gen", ev.Generation)
		detail := ev.Status.String()
		if ev.Strategy != "" {
			detail += " via " + ev.Strategy
		}
		s.record(journal.Event{Kind: journal.KindStatus, Detail: detail, Value: ev.RetryIn.Milliseconds()})
		s.publish(Update{Kind: UpdateStatus, Status: ev.Status, Err: ev.Err})

	case connection.MessageEvent:
		s.handleMessage(ev.TimestampedMessage)
	}
}

func (s *Session) handleMessage(raw connection.TimestampedMessage) {
	msg, err := protocol.DecodeServer(raw.Data)
	if err != nil {
		s.logger.Warn("undecodable server message dropped", "error", err, "size", len(raw.Data))
		s.record(journal.Event{Kind: journal.KindDecodeError, Detail: err.Error()})
		return
	}

	switch msg := msg.(type) {
	case protocol.MatchConnectionSuccess:
		out, err := s.rec.ApplyConnectionSuccess(msg)
		s.afterReconcile(out, err, msg.State.Seq)
		if err == nil && out.Mode != match.ModeIgnored {
			s.logger.Info("subscribed", "history_len", len(msg.State.Actions))
			s.armDriftCheck()
		}

	case protocol.CurrentMatchState:
		out, err := s.rec.ApplyServerUpdate(msg)
		s.afterReconcile(out, err, msg.Seq)

	case protocol.TimeDriftResponse:
		offset, err := s.estimator.Complete(msg, s.now())
		if err != nil {
			s.logger.Warn("drift response ignored", "error", err)
			return
		}
		sample := s.estimator.Sample()
		s.logger.Info("drift estimated", "offset", offset, "rtt", sample.RoundTrip())
		s.publish(Update{Kind: UpdateDrift, Offset: offset})
		s.record(journal.Event{Kind: journal.KindDrift, Value: offset.Microseconds()})
		s.tick()

	case protocol.TechnicalError:
		s.logger.Warn("server technical error", "message", msg.ErrorMessage)
		s.publish(Update{Kind: UpdateServerError, Err: errors.New(msg.ErrorMessage)})
		s.record(journal.Event{Kind: journal.KindServerError, Detail: msg.ErrorMessage})
	}
}

func (s *Session) afterReconcile(out match.Outcome, err error, seq uint64) {
	view := s.store.View()
	switch {
	case errors.Is(err, match.ErrViewFailed):
		s.logger.Debug("push for failed view ignored")
		return
	case err != nil:
		s.publish(Update{Kind: UpdateFailed, Err: err})
		s.record(journal.Event{Kind: journal.KindReplayFailed, Detail: err.Error(), HistoryLen: len(view.State.History), Seq: seq})
		return
	case out.Mode == match.ModeIgnored:
		s.logger.Debug("push ignored", "reason", out.Reason, "seq", seq)
		s.record(journal.Event{Kind: journal.KindReconcile, Detail: "ignored: " + out.Reason, Seq: seq})
		return
	}

	s.logger.Debug("reconciled", "mode", out.Mode, "applied", len(out.Applied), "history_len", len(view.State.History))
	s.record(journal.Event{
		Kind:       journal.KindReconcile,
		Detail:     out.Mode.String(),
		HistoryLen: len(view.State.History),
		Seq:        seq,
		Value:      int64(len(out.Applied)),
	})
	s.publish(Update{Kind: UpdateState, Mode: out.Mode, Actions: out.Applied})
	s.tick()
}

// armDriftCheck schedules the one drift measurement of this view.
func (s *Session) armDriftCheck() {
	if s.driftArmed {
		return
	}
	s.driftArmed = true
	s.driftTimer = time.NewTimer(s.cfg.DriftCheckDelay)
}

func (s *Session) beginDriftCheck() {
	check := s.estimator.Begin(s.now())
	if err := s.send(check); err != nil {
		s.logger.Warn("drift check not sent", "error", err)
	}
}

func (s *Session) stopDriftTimer() {
	if s.driftTimer != nil {
		s.driftTimer.Stop()
		s.driftTimer = nil
	}
}

// tick recomputes the countdown and publishes it when it moved.
func (s *Session) tick() {
	view := s.store.View()
	if view.State.Timer == nil {
		return
	}
	c := drift.Remaining(*view.State.Timer, view.State.ControllingPlayer, s.now(), s.estimator.Offset())

	s.countMu.Lock()
	s.countdown = c
	s.countMu.Unlock()

	if c == s.lastCountdown {
		return
	}
	s.lastCountdown = c
	s.publish(Update{Kind: UpdateCountdown, Countdown: c})
}

func (s *Session) publish(u Update) {
	if u.At.IsZero() {
		u.At = s.now()
	}
	s.updates.Push(u)
}

func (s *Session) record(ev journal.Event) {
	if s.journal == nil {
		return
	}
	ev.ViewID = s.id
	ev.MatchKey = s.cfg.MatchKey
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = s.now()
	}
	s.journal.Push(ev)
}
