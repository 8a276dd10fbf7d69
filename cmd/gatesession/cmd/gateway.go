package cmd

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/Morditux/gatesession"
	"github.com/Morditux/gatesession/gateway"
	"github.com/Morditux/gatesession/internal/config"
)

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Start the web gateway",
	Long: `Start the web gateway. Every request is served within a session kept in
the session service; when that service is unreachable requests are still
answered with an anonymous, unpersisted session.`,
	RunE: runGateway,
}

func init() {
	rootCmd.AddCommand(gatewayCmd)
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.LogLevel, func(h slog.Handler) slog.Handler {
		return gateway.NewContextHandler(h)
	})
	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := gatesession.NewMetrics(reg)

	sc := cfg.Gateway.Session
	store, err := gatesession.NewHTTPStore(gatesession.HTTPStoreConfig{
		BaseURL:  sc.StoreURL,
		Timeout:  sc.Timeout,
		Attempts: sc.Attempts,
		Metrics:  metrics,
	})
	if err != nil {
		return err
	}

	profiles, err := gateway.NewProfilesClient(cfg.Gateway.ProfilesURL, cfg.Gateway.ProfilesTimeout)
	if err != nil {
		return err
	}

	sessions := gatesession.NewManager(gatesession.Config{
		Store:        store,
		ExpiresAfter: sc.ExpiresAfter,
		CookieName:   sc.CookieName,
		CookieDomain: sc.CookieDomain,
		Secure:       secureSetting(sc.Secure),
		SameSite:     sameSiteSetting(sc.SameSite),
		Logger:       logger,
		Metrics:      metrics,
	})

	gw := gateway.New(gateway.Config{
		Sessions: sessions,
		Profiles: profiles,
		Logger:   logger,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.Handle("/", gw)

	ctx, stop := signalContext()
	defer stop()

	if err := serve(ctx, logger, "gateway", cfg.Gateway.HTTPAddr, mux); err != nil {
		return fmt.Errorf("gateway: %w", err)
	}
	return nil
}

// secureSetting maps auto/always/never to the manager's Secure option.
func secureSetting(s string) *bool {
	var secure bool
	switch s {
	case "always":
		secure = true
	case "never":
		secure = false
	default:
		return nil
	}
	return &secure
}

func sameSiteSetting(s string) http.SameSite {
	switch s {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
