package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	content := `
server:
  match_key: abc123
  strategies:
    - name: direct
      url: ws://localhost:8090/ws
    - name: proxy
      url: wss://proxy.example.com/ws
connection:
  reconnect_base_delay: 250ms
  backoff_factor: 1.5
session:
  drift_check_delay: 2s
journal:
  enabled: true
  database:
    host: localhost
    name: paco
    user: paco
    password: secret
log:
  level: debug
`
	cfg, err := Load(writeTempFile(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.MatchKey != "abc123" {
		t.Errorf("Server.MatchKey = %q, want %q", cfg.Server.MatchKey, "abc123")
	}
	if len(cfg.Server.Strategies) != 2 {
		t.Fatalf("len(Server.Strategies) = %d, want 2", len(cfg.Server.Strategies))
	}
	if cfg.Server.Strategies[1].Name != "proxy" {
		t.Errorf("Strategies[1].Name = %q, want %q", cfg.Server.Strategies[1].Name, "proxy")
	}
	if cfg.Connection.ReconnectBaseDelay != 250*time.Millisecond {
		t.Errorf("ReconnectBaseDelay = %v, want 250ms", cfg.Connection.ReconnectBaseDelay)
	}
	if cfg.Connection.BackoffFactor != 1.5 {
		t.Errorf("BackoffFactor = %v, want 1.5", cfg.Connection.BackoffFactor)
	}
	if cfg.Session.DriftCheckDelay != 2*time.Second {
		t.Errorf("DriftCheckDelay = %v, want 2s", cfg.Session.DriftCheckDelay)
	}
	if !cfg.Journal.Enabled {
		t.Error("Journal.Enabled = false, want true")
	}
	if cfg.Journal.Database.Host != "localhost" {
		t.Errorf("Journal.Database.Host = %q, want %q", cfg.Journal.Database.Host, "localhost")
	}
}

func TestLoadEnvExpansion(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "from_env")

	content := `
journal:
  database:
    password: ${TEST_DB_PASSWORD}
`
	cfg, err := Load(writeTempFile(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Journal.Database.Password != "from_env" {
		t.Errorf("Password = %q, want %q", cfg.Journal.Database.Password, "from_env")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	if _, err := Load(writeTempFile(t, "server: [unclosed")); err == nil {
		t.Error("Load() expected error for invalid YAML")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := LoadWithDefaults("")
	if err != nil {
		t.Fatalf("LoadWithDefaults() error = %v", err)
	}

	if len(cfg.Server.Strategies) != 1 || cfg.Server.Strategies[0].URL != DefaultStrategyURL {
		t.Errorf("Strategies = %+v, want one default strategy", cfg.Server.Strategies)
	}
	if cfg.Server.APIURL != "http://localhost:8090" {
		t.Errorf("Server.APIURL = %q, want %q", cfg.Server.APIURL, "http://localhost:8090")
	}
	if cfg.Connection.ReconnectBaseDelay != 200*time.Millisecond {
		t.Errorf("ReconnectBaseDelay = %v, want 200ms", cfg.Connection.ReconnectBaseDelay)
	}
	if cfg.Connection.BackoffFactor != 1.2 {
		t.Errorf("BackoffFactor = %v, want 1.2", cfg.Connection.BackoffFactor)
	}
	if cfg.Connection.MaxReconnectDelay != 0 {
		t.Errorf("MaxReconnectDelay = %v, want 0 (unbounded)", cfg.Connection.MaxReconnectDelay)
	}
	if cfg.Session.DriftCheckDelay != time.Second {
		t.Errorf("DriftCheckDelay = %v, want 1s", cfg.Session.DriftCheckDelay)
	}
	if cfg.Session.TickInterval != 100*time.Millisecond {
		t.Errorf("TickInterval = %v, want 100ms", cfg.Session.TickInterval)
	}
	if cfg.Journal.BatchSize != DefaultJournalBatchSize {
		t.Errorf("Journal.BatchSize = %d, want %d", cfg.Journal.BatchSize, DefaultJournalBatchSize)
	}
	if cfg.Journal.Database.Port != DefaultDBPort {
		t.Errorf("Journal.Database.Port = %d, want %d", cfg.Journal.Database.Port, DefaultDBPort)
	}
	if cfg.DevServer.ListenAddr != ":8090" {
		t.Errorf("DevServer.ListenAddr = %q, want %q", cfg.DevServer.ListenAddr, ":8090")
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}
}

func TestLoadWithDefaultsKeepsExplicitValues(t *testing.T) {
	content := `
server:
  strategies:
    - url: ws://example.com/ws
connection:
  buffer_size: 16
`
	cfg, err := LoadWithDefaults(writeTempFile(t, content))
	if err != nil {
		t.Fatalf("LoadWithDefaults() error = %v", err)
	}
	if cfg.Server.Strategies[0].Name != "ws://example.com/ws" {
		t.Errorf("Strategies[0].Name = %q, want url as name", cfg.Server.Strategies[0].Name)
	}
	if cfg.Connection.BufferSize != 16 {
		t.Errorf("BufferSize = %d, want 16", cfg.Connection.BufferSize)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PACOSYNC_SERVER_MATCH_KEY", "env-key")
	t.Setenv("PACOSYNC_CONNECTION_BACKOFF_FACTOR", "2")
	t.Setenv("PACOSYNC_SESSION_TICK_INTERVAL", "50ms")
	t.Setenv("PACOSYNC_JOURNAL_ENABLED", "true")
	t.Setenv("PACOSYNC_JOURNAL_DB_HOST", "db.internal")
	t.Setenv("PACOSYNC_LOG_LEVEL", "warn")

	content := `
server:
  match_key: file-key
connection:
  backoff_factor: 1.5
journal:
  database:
    host: localhost
    name: paco
`
	cfg, err := LoadWithDefaults(writeTempFile(t, content))
	if err != nil {
		t.Fatalf("LoadWithDefaults() error = %v", err)
	}

	if cfg.Server.MatchKey != "env-key" {
		t.Errorf("MatchKey = %q, want %q", cfg.Server.MatchKey, "env-key")
	}
	if cfg.Connection.BackoffFactor != 2 {
		t.Errorf("BackoffFactor = %v, want 2", cfg.Connection.BackoffFactor)
	}
	if cfg.Session.TickInterval != 50*time.Millisecond {
		t.Errorf("TickInterval = %v, want 50ms", cfg.Session.TickInterval)
	}
	if !cfg.Journal.Enabled {
		t.Error("Journal.Enabled = false, want true")
	}
	if cfg.Journal.Database.Host != "db.internal" {
		t.Errorf("Database.Host = %q, want %q", cfg.Journal.Database.Host, "db.internal")
	}
	// Not overridden.
	if cfg.Journal.Database.Name != "paco" {
		t.Errorf("Database.Name = %q, want %q", cfg.Journal.Database.Name, "paco")
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "warn")
	}
}

func TestEnvOverrideInvalid(t *testing.T) {
	t.Setenv("PACOSYNC_SESSION_INBOX_SIZE", "many")

	if _, err := LoadWithDefaults(""); err == nil {
		t.Error("LoadWithDefaults() expected error for unparsable env value")
	}
}

func validConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults",
			modify: func(c *Config) {},
		},
		{
			name:    "no strategies",
			modify:  func(c *Config) { c.Server.Strategies = nil },
			wantErr: "server.strategies must not be empty",
		},
		{
			name:    "missing url",
			modify:  func(c *Config) { c.Server.Strategies[0].URL = "" },
			wantErr: "server.strategies[0].url is required",
		},
		{
			name:    "http scheme",
			modify:  func(c *Config) { c.Server.Strategies[0].URL = "http://localhost/ws" },
			wantErr: "server.strategies[0].url scheme must be ws or wss",
		},
		{
			name:    "backoff factor below one",
			modify:  func(c *Config) { c.Connection.BackoffFactor = 0.5 },
			wantErr: "connection.backoff_factor must be >= 1",
		},
		{
			name: "max delay below base",
			modify: func(c *Config) {
				c.Connection.MaxReconnectDelay = 100 * time.Millisecond
			},
			wantErr: "connection.max_reconnect_delay cannot be below reconnect_base_delay",
		},
		{
			name:    "ping timeout below interval",
			modify:  func(c *Config) { c.Connection.PingTimeout = time.Second },
			wantErr: "connection.ping_timeout must be >= ping_interval",
		},
		{
			name:    "zero inbox",
			modify:  func(c *Config) { c.Session.InboxSize = 0 },
			wantErr: "session.inbox_size must be >= 1",
		},
		{
			name: "audit without api url",
			modify: func(c *Config) {
				c.Session.AuditInterval = time.Minute
				c.Server.APIURL = ""
			},
			wantErr: "session.audit_interval requires server.api_url",
		},
		{
			name: "journal disabled skips database",
			modify: func(c *Config) {
				c.Journal.Database.Host = ""
			},
		},
		{
			name:    "journal enabled needs host",
			modify:  func(c *Config) { c.Journal.Enabled = true },
			wantErr: "journal.database.host is required",
		},
		{
			name: "journal min conns above max",
			modify: func(c *Config) {
				c.Journal.Enabled = true
				c.Journal.Database = DBConfig{
					Host: "localhost", Name: "paco", User: "paco", Password: "secret",
					MaxConns: 2, MinConns: 3,
				}
			},
			wantErr: "journal.database.min_conns (3) cannot exceed max_conns (2)",
		},
		{
			name:    "bad log level",
			modify:  func(c *Config) { c.Log.Level = "verbose" },
			wantErr: "log.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() error = nil, want %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want containing %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoadAndValidate(t *testing.T) {
	content := `
connection:
  backoff_factor: 0.9
`
	_, err := LoadAndValidate(writeTempFile(t, content))
	if err == nil {
		t.Fatal("LoadAndValidate() expected error")
	}
	if !strings.Contains(err.Error(), "invalid config") {
		t.Errorf("error = %q, want prefix 'invalid config'", err.Error())
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := (LogConfig{Level: tt.level}).SlogLevel(); got != tt.want {
			t.Errorf("SlogLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestAPIURLFromWS(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ws://localhost:8090/ws", "http://localhost:8090"},
		{"wss://paco.example.com/api/ws", "https://paco.example.com"},
		{"not a url", ""},
	}
	for _, tt := range tests {
		if got := apiURLFromWS(tt.in); got != tt.want {
			t.Errorf("apiURLFromWS(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExampleConfig(t *testing.T) {
	cfg, err := LoadAndValidate(filepath.Join("..", "..", "configs", "matchview.example.yaml"))
	if err != nil {
		t.Fatalf("LoadAndValidate(example) error = %v", err)
	}
	if len(cfg.Server.Strategies) != 2 {
		t.Errorf("len(Strategies) = %d, want 2", len(cfg.Server.Strategies))
	}
	if cfg.Server.APIURL != "http://localhost:8090" {
		t.Errorf("APIURL = %q, want %q", cfg.Server.APIURL, "http://localhost:8090")
	}
}
