package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "LogLevel"},
		{"bad store url", func(c *Config) { c.Gateway.Session.StoreURL = "sessions" }, "StoreURL"},
		{"bad cookie name", func(c *Config) { c.Gateway.Session.CookieName = "session id" }, "valid cookie name"},
		{"bad same site", func(c *Config) { c.Gateway.Session.SameSite = "sometimes" }, "SameSite"},
		{"none needs secure", func(c *Config) {
			c.Gateway.Session.SameSite = "none"
			c.Gateway.Session.Secure = "never"
		}, "same_site none"},
		{"unknown backend", func(c *Config) { c.Sessiond.Backend = "cassandra" }, "Backend"},
		{"base path", func(c *Config) { c.Sessiond.BasePath = "api/sessions" }, "BasePath"},
		{"postgres needs dsn", func(c *Config) {
			c.Sessiond.Backend = "postgres"
			c.Sessiond.DSN = ""
		}, "requires dsn"},
		{"memcached needs servers", func(c *Config) { c.Sessiond.Backend = "memcached" }, "memcached_servers"},
		{"memcached servers", func(c *Config) {
			c.Sessiond.Backend = "memcached"
			c.Sessiond.MemcachedServers = []string{"localhost:11211"}
		}, ""},
		{"redis needs addr", func(c *Config) { c.Sessiond.Backend = "redis" }, "redis.addr"},
		{"negative timeout", func(c *Config) { c.Gateway.Session.Timeout = -time.Second }, "must be positive"},
		{"retention shorter than expiry", func(c *Config) { c.Sessiond.Retention = 30 * time.Minute }, "must not be shorter"},
		{"too many attempts", func(c *Config) { c.Gateway.Session.Attempts = 50 }, "Attempts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}
