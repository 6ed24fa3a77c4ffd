package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if len(c.Server.Strategies) == 0 {
		return errors.New("server.strategies must not be empty")
	}
	for i, s := range c.Server.Strategies {
		if err := s.validate(fmt.Sprintf("server.strategies[%d]", i)); err != nil {
			return err
		}
	}

	if c.Connection.ReconnectBaseDelay <= 0 {
		return errors.New("connection.reconnect_base_delay must be > 0")
	}
	if c.Connection.BackoffFactor < 1 {
		return errors.New("connection.backoff_factor must be >= 1")
	}
	if c.Connection.MaxReconnectDelay < 0 {
		return errors.New("connection.max_reconnect_delay must be >= 0")
	}
	if c.Connection.MaxReconnectDelay > 0 && c.Connection.MaxReconnectDelay < c.Connection.ReconnectBaseDelay {
		return errors.New("connection.max_reconnect_delay cannot be below reconnect_base_delay")
	}
	if c.Connection.PingTimeout < c.Connection.PingInterval {
		return errors.New("connection.ping_timeout must be >= ping_interval")
	}
	if c.Connection.BufferSize < 1 {
		return errors.New("connection.buffer_size must be >= 1")
	}

	if c.Session.DriftCheckDelay < 0 {
		return errors.New("session.drift_check_delay must be >= 0")
	}
	if c.Session.TickInterval < 0 {
		return errors.New("session.tick_interval must be >= 0")
	}
	if c.Session.InboxSize < 1 {
		return errors.New("session.inbox_size must be >= 1")
	}
	if c.Session.AuditInterval < 0 {
		return errors.New("session.audit_interval must be >= 0")
	}
	if c.Session.AuditInterval > 0 && c.Server.APIURL == "" {
		return errors.New("session.audit_interval requires server.api_url")
	}

	if c.Journal.Enabled {
		if c.Journal.BatchSize < 1 {
			return errors.New("journal.batch_size must be >= 1")
		}
		if err := c.Journal.Database.validate("journal.database"); err != nil {
			return err
		}
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}

	return nil
}

func (s StrategyConfig) validate(prefix string) error {
	if s.URL == "" {
		return fmt.Errorf("%s.url is required", prefix)
	}
	u, err := url.Parse(s.URL)
	if err != nil {
		return fmt.Errorf("%s.url: %w", prefix, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("%s.url scheme must be ws or wss, got %q", prefix, u.Scheme)
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
