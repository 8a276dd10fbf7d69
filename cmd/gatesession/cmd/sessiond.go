package cmd

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/Morditux/gatesession/internal/config"
	"github.com/Morditux/gatesession/server"
	"github.com/Morditux/gatesession/storage"
)

var sessiondCmd = &cobra.Command{
	Use:   "sessiond",
	Short: "Start the session service",
	Long: `Start the session service: a REST collection of session records backed by
memory, SQLite, PostgreSQL, Memcached or Redis.`,
	RunE: runSessiond,
}

func init() {
	rootCmd.AddCommand(sessiondCmd)
}

func runSessiond(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel, nil)
	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	backend, err := openBackend(cfg.Sessiond)
	if err != nil {
		return err
	}
	logger.Info("session backend ready", "backend", cfg.Sessiond.Backend)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	srv := server.New(backend, server.Config{
		BasePath:        cfg.Sessiond.BasePath,
		Retention:       cfg.Sessiond.Retention,
		CleanupInterval: cfg.Sessiond.CleanupInterval,
		Logger:          logger,
		Metrics:         server.NewMetrics(reg),
	})
	defer srv.Close()
	srv.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	ctx, stop := signalContext()
	defer stop()

	if err := serve(ctx, logger, "sessiond", cfg.Sessiond.HTTPAddr, srv); err != nil {
		return fmt.Errorf("sessiond: %w", err)
	}
	return nil
}

// openBackend creates the storage backend selected in the configuration.
func openBackend(cfg config.SessiondConfig) (storage.Backend, error) {
	switch cfg.Backend {
	case "memory":
		return storage.NewMemoryStore(cfg.MaxSessionBytes), nil
	case "sqlite":
		return storage.NewSQLiteStoreWithConfig(storage.SQLiteConfig{
			DSN:             cfg.DSN,
			MaxOpenConns:    16,
			MaxIdleConns:    16,
			MaxSessionBytes: cfg.MaxSessionBytes,
		})
	case "postgres":
		return storage.NewPostgreSQLStoreWithConfig(storage.PostgreSQLConfig{
			DSN:             cfg.DSN,
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			MaxSessionBytes: cfg.MaxSessionBytes,
		})
	case "memcached":
		return storage.NewMemcachedStoreWithConfig(storage.MemcachedConfig{
			Servers:         cfg.MemcachedServers,
			Retention:       cfg.Retention,
			MaxSessionBytes: cfg.MaxSessionBytes,
			Timeout:         time.Second,
		}), nil
	case "redis":
		return storage.NewRedisStore(storage.RedisConfig{
			Addr:            cfg.Redis.Addr,
			Password:        cfg.Redis.Password,
			DB:              cfg.Redis.DB,
			Prefix:          cfg.Redis.Prefix,
			Retention:       cfg.Retention,
			MaxSessionBytes: cfg.MaxSessionBytes,
		})
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}
