// devserver runs the in-memory match server for local testing.
// Usage: go run ./cmd/devserver --config configs/matchview.example.yaml
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/paco-sync/internal/config"
	"github.com/rickgao/paco-sync/internal/devserver"
	"github.com/rickgao/paco-sync/internal/rules"
	"github.com/rickgao/paco-sync/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	listen := flag.String("listen", "", "listen address (overrides devserver.listen_addr)")
	flag.Parse()

	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
	}))
	slog.SetDefault(logger)

	logger.Info("starting devserver", version.Attr(), "config", *configPath)

	srvCfg := serverConfig(cfg)
	if *listen != "" {
		srvCfg.ListenAddr = *listen
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	srv := devserver.New(srvCfg, rules.Freeform{Promotions: true}, logger)
	if err := srv.Start(ctx); err != nil {
		logger.Error("failed to start devserver", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("devserver shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("devserver stopped")
}

func serverConfig(cfg *config.Config) devserver.Config {
	sc := devserver.DefaultConfig()
	sc.ListenAddr = cfg.DevServer.ListenAddr
	sc.AutoCreate = !cfg.DevServer.StrictKeys
	sc.WriteTimeout = cfg.Connection.WriteTimeout
	return sc
}
