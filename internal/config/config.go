// Package config provides configuration loading for the gatesession gateway
// and session service.
package config

import "time"

// Config is the top-level configuration. The gateway and sessiond commands
// each read their own section; log_level applies to both.
type Config struct {
	// LogLevel is one of debug, info, warn, error. Default: info.
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"oneof=debug info warn warning error"`

	Gateway  GatewayConfig  `yaml:"gateway" mapstructure:"gateway"`
	Sessiond SessiondConfig `yaml:"sessiond" mapstructure:"sessiond"`
}

// GatewayConfig configures the web front.
type GatewayConfig struct {
	// HTTPAddr is the listen address. Default: 127.0.0.1:8080.
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" validate:"required,hostname_port"`
	// ProfilesURL is the profiles collection of the profiles service.
	ProfilesURL     string        `yaml:"profiles_url" mapstructure:"profiles_url" validate:"required,http_url"`
	ProfilesTimeout time.Duration `yaml:"profiles_timeout" mapstructure:"profiles_timeout"`

	Session SessionConfig `yaml:"session" mapstructure:"session"`
}

// SessionConfig configures how the gateway resolves and persists sessions.
type SessionConfig struct {
	// StoreURL is the session collection of the session service.
	StoreURL string `yaml:"store_url" mapstructure:"store_url" validate:"required,http_url"`
	// ExpiresAfter is the maximum age of a session's last use. Default: 1h.
	ExpiresAfter time.Duration `yaml:"expires_after" mapstructure:"expires_after"`
	// Timeout bounds each session store call. Default: 2s.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// Attempts for fetch and update on transport failure. Default: 2.
	Attempts     int    `yaml:"attempts" mapstructure:"attempts" validate:"gte=1,lte=10"`
	CookieName   string `yaml:"cookie_name" mapstructure:"cookie_name" validate:"required,cookie_name"`
	CookieDomain string `yaml:"cookie_domain" mapstructure:"cookie_domain" validate:"omitempty,hostname"`
	// Secure is auto (follow the request's TLS state), always or never. Default: auto.
	Secure string `yaml:"secure" mapstructure:"secure" validate:"oneof=auto always never"`
	// SameSite is lax, strict or none. Default: lax.
	SameSite string `yaml:"same_site" mapstructure:"same_site" validate:"oneof=lax strict none"`
}

// SessiondConfig configures the session service.
type SessiondConfig struct {
	// HTTPAddr is the listen address. Default: 127.0.0.1:8090.
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" validate:"required,hostname_port"`
	// BasePath is the collection path. Default: /api/sessions.
	BasePath string `yaml:"base_path" mapstructure:"base_path" validate:"required,startswith=/"`
	// Backend is one of memory, sqlite, postgres, memcached, redis. Default: sqlite.
	Backend string `yaml:"backend" mapstructure:"backend" validate:"oneof=memory sqlite postgres memcached redis"`
	// DSN is the database for the sqlite and postgres backends.
	DSN string `yaml:"dsn" mapstructure:"dsn"`
	// MemcachedServers lists host:port pairs for the memcached backend.
	MemcachedServers []string `yaml:"memcached_servers" mapstructure:"memcached_servers" validate:"omitempty,dive,hostname_port"`

	Redis RedisConfig `yaml:"redis" mapstructure:"redis"`

	// Retention is how long an unused session is kept. Default: 24h.
	Retention time.Duration `yaml:"retention" mapstructure:"retention"`
	// CleanupInterval is the period of the cleanup worker. Default: 10m.
	CleanupInterval time.Duration `yaml:"cleanup_interval" mapstructure:"cleanup_interval"`
	// MaxSessionBytes caps the encoded session data; 0 means unlimited.
	MaxSessionBytes int `yaml:"max_session_bytes" mapstructure:"max_session_bytes" validate:"gte=0"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr" validate:"omitempty,hostname_port"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db" validate:"gte=0"`
	Prefix   string `yaml:"prefix" mapstructure:"prefix"`
}

// SetDefaults fills in defaults for unset fields.
func (c *Config) SetDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	// Gateway defaults: bind to localhost only.
	g := &c.Gateway
	if g.HTTPAddr == "" {
		g.HTTPAddr = "127.0.0.1:8080"
	}
	if g.ProfilesURL == "" {
		g.ProfilesURL = "http://127.0.0.1:8081/api/profiles"
	}
	if g.ProfilesTimeout == 0 {
		g.ProfilesTimeout = 5 * time.Second
	}

	s := &c.Gateway.Session
	if s.StoreURL == "" {
		s.StoreURL = "http://127.0.0.1:8090/api/sessions"
	}
	if s.ExpiresAfter == 0 {
		s.ExpiresAfter = time.Hour
	}
	if s.Timeout == 0 {
		s.Timeout = 2 * time.Second
	}
	if s.Attempts == 0 {
		s.Attempts = 2
	}
	if s.CookieName == "" {
		s.CookieName = "session_id"
	}
	if s.Secure == "" {
		s.Secure = "auto"
	}
	if s.SameSite == "" {
		s.SameSite = "lax"
	}

	d := &c.Sessiond
	if d.HTTPAddr == "" {
		d.HTTPAddr = "127.0.0.1:8090"
	}
	if d.BasePath == "" {
		d.BasePath = "/api/sessions"
	}
	if d.Backend == "" {
		d.Backend = "sqlite"
	}
	if d.Backend == "sqlite" && d.DSN == "" {
		d.DSN = "sessions.db"
	}
	if d.Retention == 0 {
		d.Retention = 24 * time.Hour
	}
	if d.CleanupInterval == 0 {
		d.CleanupInterval = 10 * time.Minute
	}
}
