package main

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rickgao/paco-sync/internal/config"
	"github.com/rickgao/paco-sync/internal/devserver"
	"github.com/rickgao/paco-sync/internal/protocol"
	"github.com/rickgao/paco-sync/internal/rules"
	"github.com/rickgao/paco-sync/internal/session"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadWithDefaults("")
	if err != nil {
		t.Fatalf("LoadWithDefaults() error = %v", err)
	}
	cfg.Server.MatchKey = "abc123"
	cfg.Server.Strategies = []config.StrategyConfig{
		{Name: "direct", URL: "ws://localhost:8090/ws"},
		{Name: "proxy", URL: "wss://proxy.example.com/ws"},
	}
	cfg.Connection.MaxReconnectDelay = 10 * time.Second
	return cfg
}

func TestManagerConfig(t *testing.T) {
	mc := managerConfig(testConfig(t))

	if len(mc.Strategies) != 2 {
		t.Fatalf("len(Strategies) = %d, want 2", len(mc.Strategies))
	}
	if mc.Strategies[1].URL != "wss://proxy.example.com/ws" {
		t.Errorf("Strategies[1].URL = %q", mc.Strategies[1].URL)
	}
	if ua := mc.Strategies[0].Header.Get("User-Agent"); !strings.HasPrefix(ua, "paco-sync/") {
		t.Errorf("User-Agent = %q, want paco-sync/ prefix", ua)
	}
	if mc.ReconnectBaseDelay != 200*time.Millisecond {
		t.Errorf("ReconnectBaseDelay = %v, want 200ms", mc.ReconnectBaseDelay)
	}
	if mc.BackoffFactor != 1.2 {
		t.Errorf("BackoffFactor = %v, want 1.2", mc.BackoffFactor)
	}
	if mc.MaxReconnectDelay != 10*time.Second {
		t.Errorf("MaxReconnectDelay = %v, want 10s", mc.MaxReconnectDelay)
	}
	if mc.Client.PingInterval != 30*time.Second {
		t.Errorf("Client.PingInterval = %v, want 30s", mc.Client.PingInterval)
	}
	if mc.QueueCapacity == 0 {
		t.Error("QueueCapacity = 0, want the manager default")
	}
}

func TestSessionConfig(t *testing.T) {
	sc := sessionConfig(testConfig(t))

	want := session.Config{
		MatchKey:        "abc123",
		DriftCheckDelay: time.Second,
		TickInterval:    100 * time.Millisecond,
		InboxSize:       64,
	}
	if sc != want {
		t.Errorf("sessionConfig() = %+v, want %+v", sc, want)
	}
}

func TestFormatUpdate(t *testing.T) {
	u := session.Update{
		Kind:    session.UpdateOptimistic,
		Actions: []protocol.Action{protocol.Lift(12)},
	}
	line, ok := formatUpdate(u, false)
	if !ok {
		t.Fatal("formatUpdate() hid an optimistic update")
	}
	if !strings.Contains(line, protocol.Lift(12).String()) {
		t.Errorf("formatUpdate() = %q, want it to name the action", line)
	}

	if _, ok := formatUpdate(session.Update{Kind: session.UpdateCountdown}, false); ok {
		t.Error("formatUpdate() showed a countdown without verbose")
	}
	if _, ok := formatUpdate(session.Update{Kind: session.UpdateCountdown}, true); !ok {
		t.Error("formatUpdate() hid a countdown with verbose")
	}
}

func TestCreateMatch(t *testing.T) {
	srv := devserver.New(devserver.DefaultConfig(), rules.Freeform{}, nil)
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	cfg := testConfig(t)
	cfg.Server.APIURL = ts.URL

	key, err := createMatch(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("createMatch() error = %v", err)
	}
	if _, err := srv.State(key); err != nil {
		t.Errorf("State(%q) error = %v, want the created match", key, err)
	}

	cfg.Server.APIURL = ""
	if _, err := createMatch(context.Background(), cfg, nil); err == nil {
		t.Error("createMatch() error = nil without api_url")
	}
}
