package cmd

import (
	"bytes"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Morditux/gatesession/internal/config"
	"github.com/Morditux/gatesession/storage"
)

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"chatty":  slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestCookieSettings(t *testing.T) {
	if secureSetting("auto") != nil {
		t.Error("auto should defer to the request's TLS state")
	}
	if s := secureSetting("always"); s == nil || !*s {
		t.Error("always should force Secure")
	}
	if s := secureSetting("never"); s == nil || *s {
		t.Error("never should disable Secure")
	}

	if sameSiteSetting("strict") != http.SameSiteStrictMode ||
		sameSiteSetting("none") != http.SameSiteNoneMode ||
		sameSiteSetting("lax") != http.SameSiteLaxMode {
		t.Error("unexpected SameSite mapping")
	}
}

func TestOpenBackend(t *testing.T) {
	backend, err := openBackend(config.SessiondConfig{Backend: "memory"})
	if err != nil {
		t.Fatalf("memory backend: %v", err)
	}
	if _, ok := backend.(*storage.MemoryStore); !ok {
		t.Errorf("expected *storage.MemoryStore, got %T", backend)
	}
	backend.Close()

	backend, err = openBackend(config.SessiondConfig{Backend: "sqlite", DSN: filepath.Join(t.TempDir(), "sessions.db")})
	if err != nil {
		t.Fatalf("sqlite backend: %v", err)
	}
	if _, ok := backend.(*storage.SQLiteStore); !ok {
		t.Errorf("expected *storage.SQLiteStore, got %T", backend)
	}
	backend.Close()

	if _, err := openBackend(config.SessiondConfig{Backend: "cassandra"}); err == nil {
		t.Error("expected an error for an unknown backend")
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	versionCmd.Run(versionCmd, nil)

	if !strings.HasPrefix(out.String(), "gatesession "+Version) {
		t.Errorf("unexpected version output %q", out.String())
	}
}
