package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rickgao/paco-sync/internal/protocol"
	"github.com/rickgao/paco-sync/internal/rules"
)

// Config configures the dev server.
type Config struct {
	ListenAddr   string
	AutoCreate   bool          // Subscribing to an unknown key creates the match
	WriteTimeout time.Duration // Per-frame write deadline
	SendBuffer   int           // Outbound frames buffered per peer
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ListenAddr:   ":8090",
		AutoCreate:   true,
		WriteTimeout: 5 * time.Second,
		SendBuffer:   64,
	}
}

// Server is the dev match server.
type Server struct {
	cfg      Config
	engine   rules.TurnEngine
	logger   *slog.Logger
	upgrader websocket.Upgrader
	now      func() time.Time

	mu      sync.Mutex
	matches map[string]*room

	http *http.Server
	wg   sync.WaitGroup
}

// New creates a Server.
func New(cfg Config, engine rules.TurnEngine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = DefaultConfig().SendBuffer
	}
	return &Server{
		cfg:    cfg,
		engine: engine,
		logger: logger.With("component", "devserver"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		now:     time.Now,
		matches: make(map[string]*room),
	}
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealthz)
	r.Post("/api/matches", s.handleCreateMatch)
	r.Get("/api/matches/{key}", s.handleGetMatch)
	r.Get("/ws", s.handleWS)
	return r
}

// Start listens on cfg.ListenAddr in the background.
func (s *Server) Start(ctx context.Context) error {
	s.http = &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("dev server failed", "error", err)
		}
	}()

	s.logger.Info("dev server listening", "addr", s.cfg.ListenAddr)
	return nil
}

// Stop shuts the HTTP server down and disconnects every peer.
func (s *Server) Stop(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	err := s.http.Shutdown(ctx)

	s.mu.Lock()
	peers := make(map[*peer]struct{})
	for _, m := range s.matches {
		for p := range m.subscribers {
			peers[p] = struct{}{}
		}
	}
	s.mu.Unlock()
	for p := range peers {
		p.close()
	}

	s.wg.Wait()
	return err
}

// CreateMatch registers a new match and returns its key.
func (s *Server) CreateMatch() string {
	key := uuid.NewString()

	s.mu.Lock()
	s.matches[key] = newRoom(key, s.engine)
	s.mu.Unlock()

	s.logger.Info("match created", "match_key", key)
	return key
}

// State returns the current state of a match.
func (s *Server) State(key string) (protocol.CurrentMatchState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.matches[key]
	if !ok {
		return protocol.CurrentMatchState{}, ErrMatchNotFound
	}
	return m.state(false), nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleCreateMatch(w http.ResponseWriter, r *http.Request) {
	key := s.CreateMatch()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(struct {
		Key string `json:"key"`
	}{Key: key})
}

func (s *Server) handleGetMatch(w http.ResponseWriter, r *http.Request) {
	state, err := s.State(chi.URLParam(r, "key"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(state)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("upgrade failed", "error", err)
		return
	}

	p := newPeer(conn, s.cfg, s.logger)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		p.writeLoop()
	}()

	defer func() {
		s.unsubscribe(p)
		p.close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		msg, err := protocol.DecodeClient(data)
		if err != nil {
			s.logger.Warn("bad client message", "error", err)
			p.sendMsg(protocol.TechnicalError{ErrorMessage: err.Error()})
			continue
		}
		s.handle(p, msg)
	}
}

// handle runs one client request.
func (s *Server) handle(p *peer, msg protocol.ClientMessage) {
	now := s.now()

	switch msg := msg.(type) {
	case protocol.TimeDriftCheck:
		p.sendMsg(protocol.TimeDriftResponse{Send: msg.Send, Bounced: now})

	case protocol.SubscribeToMatch:
		s.mu.Lock()
		m, err := s.lookup(msg.Key, s.cfg.AutoCreate)
		if err != nil {
			s.mu.Unlock()
			p.sendMsg(protocol.TechnicalError{ErrorMessage: err.Error()})
			return
		}
		m.subscribers[p] = struct{}{}
		state := m.state(false)
		s.mu.Unlock()

		p.sendMsg(protocol.MatchConnectionSuccess{Key: msg.Key, State: state})

	case protocol.DoAction:
		s.mutate(p, msg.Key, false, func(m *room) error {
			return m.apply(msg.Action, now)
		})

	case protocol.Rollback:
		s.mutate(p, msg.Key, true, func(m *room) error {
			_, err := m.rollback()
			return err
		})

	case protocol.SetTimer:
		s.mutate(p, msg.Key, false, func(m *room) error {
			return m.setTimer(msg.Timer, now)
		})

	case protocol.StartTimer:
		s.mutate(p, msg.Key, false, func(m *room) error {
			return m.startTimer(now)
		})
	}
}

// mutate applies f to a match and broadcasts the result. On failure the
// sender gets a TechnicalError followed by the current state, so an
// optimistic client can correct itself.
func (s *Server) mutate(p *peer, key string, rollback bool, f func(*room) error) {
	s.mu.Lock()
	m, err := s.lookup(key, false)
	if err != nil {
		s.mu.Unlock()
		p.sendMsg(protocol.TechnicalError{ErrorMessage: err.Error()})
		return
	}

	seqBefore := m.seq
	ferr := f(m)
	state := m.state(rollback)
	targets := make([]*peer, 0, len(m.subscribers))
	for sub := range m.subscribers {
		targets = append(targets, sub)
	}
	s.mu.Unlock()

	if ferr != nil {
		s.logger.Debug("request rejected", "match_key", key, "error", ferr)
		p.sendMsg(protocol.TechnicalError{ErrorMessage: ferr.Error()})
		if state.Seq == seqBefore {
			p.sendMsg(state)
			return
		}
	}
	for _, sub := range targets {
		sub.sendMsg(state)
	}
}

// lookup must be called with mu held.
func (s *Server) lookup(key string, create bool) (*room, error) {
	if m, ok := s.matches[key]; ok {
		return m, nil
	}
	if !create || key == "" {
		return nil, fmt.Errorf("%w: %q", ErrMatchNotFound, key)
	}
	m := newRoom(key, s.engine)
	s.matches[key] = m
	s.logger.Info("match created on subscribe", "match_key", key)
	return m, nil
}

func (s *Server) unsubscribe(p *peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.matches {
		delete(m.subscribers, p)
	}
}
