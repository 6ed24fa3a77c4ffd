package config

import (
	"log/slog"
	"strings"
	"time"
)

// Config is the root configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server" envPrefix:"SERVER_"`
	Connection ConnectionConfig `yaml:"connection" envPrefix:"CONNECTION_"`
	Session    SessionConfig    `yaml:"session" envPrefix:"SESSION_"`
	Journal    JournalConfig    `yaml:"journal" envPrefix:"JOURNAL_"`
	DevServer  DevServerConfig  `yaml:"devserver" envPrefix:"DEVSERVER_"`
	Log        LogConfig        `yaml:"log" envPrefix:"LOG_"`
}

// ServerConfig says where the match server is.
type ServerConfig struct {
	// Strategies are tried in order on every connection attempt.
	Strategies []StrategyConfig `yaml:"strategies" envPrefix:"STRATEGIES_"`
	MatchKey   string           `yaml:"match_key" env:"MATCH_KEY"`
	// APIURL is the REST base URL. Derived from the first strategy if unset.
	APIURL string `yaml:"api_url" env:"API_URL"`
}

// StrategyConfig is one way to reach the server.
type StrategyConfig struct {
	Name string `yaml:"name" env:"NAME"`
	URL  string `yaml:"url" env:"URL"`
}

// ConnectionConfig holds transport and reconnect settings.
type ConnectionConfig struct {
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay" env:"RECONNECT_BASE_DELAY"`
	BackoffFactor      float64       `yaml:"backoff_factor" env:"BACKOFF_FACTOR"`
	MaxReconnectDelay  time.Duration `yaml:"max_reconnect_delay" env:"MAX_RECONNECT_DELAY"` // 0 = unbounded
	PingInterval       time.Duration `yaml:"ping_interval" env:"PING_INTERVAL"`
	PingTimeout        time.Duration `yaml:"ping_timeout" env:"PING_TIMEOUT"`
	WriteTimeout       time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	HandshakeTimeout   time.Duration `yaml:"handshake_timeout" env:"HANDSHAKE_TIMEOUT"`
	BufferSize         int           `yaml:"buffer_size" env:"BUFFER_SIZE"`
}

// SessionConfig holds match view settings.
type SessionConfig struct {
	DriftCheckDelay time.Duration `yaml:"drift_check_delay" env:"DRIFT_CHECK_DELAY"`
	TickInterval    time.Duration `yaml:"tick_interval" env:"TICK_INTERVAL"`
	InboxSize       int           `yaml:"inbox_size" env:"INBOX_SIZE"`
	// AuditInterval enables a periodic REST comparison of the view. 0 = off.
	AuditInterval time.Duration `yaml:"audit_interval" env:"AUDIT_INTERVAL"`
}

// JournalConfig holds the diagnostics journal settings.
type JournalConfig struct {
	Enabled       bool          `yaml:"enabled" env:"ENABLED"`
	BatchSize     int           `yaml:"batch_size" env:"BATCH_SIZE"`
	FlushInterval time.Duration `yaml:"flush_interval" env:"FLUSH_INTERVAL"`
	Database      DBConfig      `yaml:"database" envPrefix:"DB_"`
}

// DBConfig holds database connection settings.
type DBConfig struct {
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	Name     string `yaml:"name" env:"NAME"`
	User     string `yaml:"user" env:"USER"`
	Password string `yaml:"password" env:"PASSWORD"`
	SSLMode  string `yaml:"ssl_mode" env:"SSL_MODE"`
	MaxConns int    `yaml:"max_conns" env:"MAX_CONNS"`
	MinConns int    `yaml:"min_conns" env:"MIN_CONNS"`
}

// DevServerConfig holds dev server settings.
type DevServerConfig struct {
	ListenAddr string `yaml:"listen_addr" env:"LISTEN_ADDR"`
	// StrictKeys rejects subscriptions to matches that were not created
	// through the API.
	StrictKeys bool `yaml:"strict_keys" env:"STRICT_KEYS"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level" env:"LEVEL"`
}

// SlogLevel maps Level onto slog. Unknown values mean info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
