// matchview opens one match over websocket and keeps a local view of it in
// sync with the server. Moves are read from stdin, updates printed to stdout.
// Usage: go run ./cmd/matchview --config configs/matchview.example.yaml --key abc123
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/paco-sync/internal/api"
	"github.com/rickgao/paco-sync/internal/config"
	"github.com/rickgao/paco-sync/internal/connection"
	"github.com/rickgao/paco-sync/internal/database"
	"github.com/rickgao/paco-sync/internal/journal"
	"github.com/rickgao/paco-sync/internal/poller"
	"github.com/rickgao/paco-sync/internal/protocol"
	"github.com/rickgao/paco-sync/internal/queue"
	"github.com/rickgao/paco-sync/internal/rules"
	"github.com/rickgao/paco-sync/internal/session"
	"github.com/rickgao/paco-sync/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	matchKey := flag.String("key", "", "match key (overrides server.match_key)")
	create := flag.Bool("create", false, "create a new match through the REST API")
	verbose := flag.Bool("verbose", false, "print clock ticks")
	flag.Parse()

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}
	if *matchKey != "" {
		cfg.Server.MatchKey = *matchKey
	}

	// Logs go to stderr so stdout stays readable.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
	}))
	slog.SetDefault(logger)

	logger.Info("starting matchview", version.Attr(), "config", *configPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *create {
		key, err := createMatch(ctx, cfg, logger)
		if err != nil {
			logger.Error("failed to create match", "error", err)
			os.Exit(1)
		}
		cfg.Server.MatchKey = key
		fmt.Fprintln(os.Stdout, "created match", key)
	}

	if cfg.Server.MatchKey == "" {
		logger.Error("match key required: pass --key, --create or set server.match_key")
		os.Exit(1)
	}

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	if err := run(ctx, cancel, cfg, os.Stdin, os.Stdout, *verbose, logger); err != nil {
		logger.Error("matchview failed", "error", err)
		os.Exit(1)
	}
	logger.Info("matchview stopped")
}

func run(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, in io.Reader, out io.Writer, verbose bool, logger *slog.Logger) error {
	opts := []session.Option{session.WithLogger(logger)}

	var writer *journal.Writer
	if cfg.Journal.Enabled {
		pool, err := database.Connect(ctx, cfg.Journal.Database)
		if err != nil {
			return fmt.Errorf("connect journal database: %w", err)
		}
		defer pool.Close()

		if err := journal.EnsureSchema(ctx, pool); err != nil {
			return err
		}

		events := queue.New[journal.Event](cfg.Journal.BatchSize)
		writer = journal.NewWriter(journalConfig(cfg), events, pool, logger)
		if err := writer.Start(ctx); err != nil {
			return fmt.Errorf("start journal: %w", err)
		}
		opts = append(opts, session.WithJournal(events))
		logger.Info("journal enabled", "host", cfg.Journal.Database.Host, "database", cfg.Journal.Database.Name)
	}

	engine := rules.Freeform{Promotions: true}
	sess, err := session.New(sessionConfig(cfg), engine, managerConfig(cfg), opts...)
	if err != nil {
		return err
	}
	if err := sess.Start(ctx); err != nil {
		return err
	}

	var audit *poller.Poller
	if cfg.Session.AuditInterval > 0 {
		audit = newAuditor(cfg, sess, logger)
		if err := audit.Start(ctx); err != nil {
			return fmt.Errorf("start audit: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			u, ok := sess.Updates().Receive(gctx)
			if !ok {
				return nil
			}
			if line, show := formatUpdate(u, verbose); show {
				fmt.Fprintln(out, line)
			}
		}
	})

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-gctx.Done():
				return
			}
		}
		close(lines)
	}()

	g.Go(func() error {
		defer cancel()
		fmt.Fprintln(out, helpText)
		for {
			select {
			case <-gctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					return nil
				}
				if quit := execute(gctx, sess, line, out); quit {
					return nil
				}
			}
		}
	})

	err = g.Wait()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if audit != nil {
		if stopErr := audit.Stop(stopCtx); stopErr != nil {
			logger.Warn("audit stop failed", "error", stopErr)
		}
	}
	if stopErr := sess.Stop(stopCtx); stopErr != nil {
		logger.Warn("session stop failed", "error", stopErr)
	}
	if writer != nil {
		if stopErr := writer.Stop(stopCtx); stopErr != nil {
			logger.Warn("journal stop failed", "error", stopErr)
		}
		m := writer.Stats()
		logger.Info("journal flushed", "inserts", m.Inserts, "errors", m.Errors)
	}
	return err
}

// execute runs one stdin line. It returns true on quit.
func execute(ctx context.Context, sess *session.Session, line string, out io.Writer) bool {
	cmd, err := parseCommand(line)
	if err != nil {
		fmt.Fprintln(out, "error:", err)
		return false
	}

	switch cmd.kind {
	case cmdAction:
		err = sess.Submit(ctx, cmd.action)
	case cmdRollback:
		err = sess.Rollback(ctx)
	case cmdSetTimer:
		err = sess.SetTimer(ctx, cmd.timer)
	case cmdStartTimer:
		err = sess.StartTimer(ctx)
	case cmdReconnect:
		sess.Reconnect()
	case cmdState:
		printView(out, sess.Snapshot())
	case cmdLegal:
		printLegal(out, sess.Snapshot())
	case cmdHelp:
		fmt.Fprintln(out, helpText)
	case cmdQuit:
		return true
	}
	if err != nil {
		fmt.Fprintln(out, "error:", err)
	}
	return false
}

func createMatch(ctx context.Context, cfg *config.Config, logger *slog.Logger) (string, error) {
	if cfg.Server.APIURL == "" {
		return "", fmt.Errorf("server.api_url is not set")
	}
	client := api.NewClient(cfg.Server.APIURL,
		api.WithLogger(logger),
		api.WithTimeout(10*time.Second),
	)
	if err := client.Health(ctx); err != nil {
		return "", fmt.Errorf("server health: %w", err)
	}
	return client.CreateMatch(ctx)
}

// newAuditor polls the REST state of the match and logs how the local view
// compares. Divergence is only reported; the websocket feed stays in charge.
func newAuditor(cfg *config.Config, sess *session.Session, logger *slog.Logger) *poller.Poller {
	client := api.NewClient(cfg.Server.APIURL, api.WithLogger(logger), api.WithRetries(1, time.Second))
	key := cfg.Server.MatchKey

	handler := poller.SnapshotHandlerFunc(func(snap protocol.CurrentMatchState) error {
		view := sess.Snapshot()
		verdict := poller.Compare(view.State.Actions(), snap)
		attrs := []any{
			"verdict", verdict,
			"local_len", len(view.State.History),
			"server_len", len(snap.Actions),
			"local_seq", view.State.Seq,
			"server_seq", snap.Seq,
		}
		if verdict == poller.Diverged {
			logger.Warn("view diverged from server snapshot", attrs...)
		} else {
			logger.Debug("view audit", attrs...)
		}
		return nil
	})

	return poller.New(poller.Config{Interval: cfg.Session.AuditInterval},
		client, poller.MatchSourceFunc(func() []string { return []string{key} }), handler, logger)
}

func managerConfig(cfg *config.Config) connection.ManagerConfig {
	mc := connection.DefaultManagerConfig()
	mc.ReconnectBaseDelay = cfg.Connection.ReconnectBaseDelay
	mc.BackoffFactor = cfg.Connection.BackoffFactor
	mc.MaxReconnectDelay = cfg.Connection.MaxReconnectDelay

	mc.Client.PingInterval = cfg.Connection.PingInterval
	mc.Client.PingTimeout = cfg.Connection.PingTimeout
	mc.Client.WriteTimeout = cfg.Connection.WriteTimeout
	mc.Client.HandshakeTimeout = cfg.Connection.HandshakeTimeout
	mc.Client.BufferSize = cfg.Connection.BufferSize

	header := http.Header{}
	header.Set("User-Agent", "paco-sync/"+version.Version)
	for _, s := range cfg.Server.Strategies {
		mc.Strategies = append(mc.Strategies, connection.Strategy{
			Name:   s.Name,
			URL:    s.URL,
			Header: header,
		})
	}
	return mc
}

func sessionConfig(cfg *config.Config) session.Config {
	return session.Config{
		MatchKey:        cfg.Server.MatchKey,
		DriftCheckDelay: cfg.Session.DriftCheckDelay,
		TickInterval:    cfg.Session.TickInterval,
		InboxSize:       cfg.Session.InboxSize,
	}
}

func journalConfig(cfg *config.Config) journal.WriterConfig {
	return journal.WriterConfig{
		BatchSize:     cfg.Journal.BatchSize,
		FlushInterval: cfg.Journal.FlushInterval,
	}
}
