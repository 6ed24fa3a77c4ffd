package config

import (
	"net/url"
	"time"
)

// Default values for optional configuration fields.
const (
	DefaultStrategyName       = "local"
	DefaultStrategyURL        = "ws://localhost:8090/ws"
	DefaultReconnectBaseDelay = 200 * time.Millisecond
	DefaultBackoffFactor      = 1.2
	DefaultPingInterval       = 30 * time.Second
	DefaultPingTimeout        = 60 * time.Second
	DefaultWriteTimeout       = 5 * time.Second
	DefaultHandshakeTimeout   = 10 * time.Second
	DefaultBufferSize         = 256
	DefaultDriftCheckDelay    = 1 * time.Second
	DefaultTickInterval       = 100 * time.Millisecond
	DefaultInboxSize          = 64
	DefaultJournalBatchSize   = 100
	DefaultJournalFlush       = 2 * time.Second
	DefaultDBPort             = 5432
	DefaultDBSSLMode          = "prefer"
	DefaultMaxConns           = 4
	DefaultMinConns           = 1
	DefaultListenAddr         = ":8090"
	DefaultLogLevel           = "info"
)

func (c *Config) applyDefaults() {
	if len(c.Server.Strategies) == 0 {
		c.Server.Strategies = []StrategyConfig{{Name: DefaultStrategyName, URL: DefaultStrategyURL}}
	}
	for i := range c.Server.Strategies {
		if c.Server.Strategies[i].Name == "" {
			c.Server.Strategies[i].Name = c.Server.Strategies[i].URL
		}
	}

	if c.Server.APIURL == "" {
		c.Server.APIURL = apiURLFromWS(c.Server.Strategies[0].URL)
	}

	// Connection defaults
	if c.Connection.ReconnectBaseDelay == 0 {
		c.Connection.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Connection.BackoffFactor == 0 {
		c.Connection.BackoffFactor = DefaultBackoffFactor
	}
	if c.Connection.PingInterval == 0 {
		c.Connection.PingInterval = DefaultPingInterval
	}
	if c.Connection.PingTimeout == 0 {
		c.Connection.PingTimeout = DefaultPingTimeout
	}
	if c.Connection.WriteTimeout == 0 {
		c.Connection.WriteTimeout = DefaultWriteTimeout
	}
	if c.Connection.HandshakeTimeout == 0 {
		c.Connection.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Connection.BufferSize == 0 {
		c.Connection.BufferSize = DefaultBufferSize
	}

	// Session defaults
	if c.Session.DriftCheckDelay == 0 {
		c.Session.DriftCheckDelay = DefaultDriftCheckDelay
	}
	if c.Session.TickInterval == 0 {
		c.Session.TickInterval = DefaultTickInterval
	}
	if c.Session.InboxSize == 0 {
		c.Session.InboxSize = DefaultInboxSize
	}

	// Journal defaults
	if c.Journal.BatchSize == 0 {
		c.Journal.BatchSize = DefaultJournalBatchSize
	}
	if c.Journal.FlushInterval == 0 {
		c.Journal.FlushInterval = DefaultJournalFlush
	}
	applyDBDefaults(&c.Journal.Database)

	if c.DevServer.ListenAddr == "" {
		c.DevServer.ListenAddr = DefaultListenAddr
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}

// apiURLFromWS maps ws://host/ws to http://host.
func apiURLFromWS(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	scheme := "http"
	if u.Scheme == "wss" {
		scheme = "https"
	}
	return scheme + "://" + u.Host
}
