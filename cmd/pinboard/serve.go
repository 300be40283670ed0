package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/pinboard-go/pinboard/internal/config"
	"github.com/pinboard-go/pinboard/pkg/middleware"
	"github.com/pinboard-go/pinboard/pkg/server"
	"github.com/pinboard-go/pinboard/pkg/static"
)

func serveCmd() *cobra.Command {
	var (
		configPath string
		addr       string
		staticDir  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the pinboard server",
		Long: `Start the pinboard server.

Configuration is read from pinboard.json in the working directory (or the
file given with --config); flags override the file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if staticDir != "" {
				cfg.StaticDir = staticDir
			}

			setupLogging(cfg.LogLevel)

			srv := server.New(&server.Config{
				Address:           cfg.Address(),
				MaxSessions:       cfg.MaxSessions,
				MaxPins:           cfg.MaxPins,
				BroadcastInterval: cfg.BroadcastInterval(),
				PingInterval:      cfg.PingInterval(),
				PresenceTimeout:   cfg.PresenceTimeout(),
			})
			if addr != "" {
				srv.Config().Address = addr
			}

			srv.SetHandler(buildRouter(cfg, srv))

			slog.Info("starting pinboard",
				"name", cfg.Name,
				"address", srv.Config().Address,
				"static_dir", cfg.StaticDir)
			return srv.Run()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", config.FileName, "Path to the configuration file")
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (overrides the config file)")
	cmd.Flags().StringVarP(&staticDir, "static", "s", "", "Front-end asset directory (overrides the config file)")

	return cmd
}

// buildRouter assembles the non-WebSocket HTTP surface: health, metrics, and
// the static front end.
func buildRouter(cfg *config.Config, srv *server.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Prometheus(middleware.WithRegistry(srv.MetricsRegistry())))
	r.Use(middleware.OpenTelemetry())

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	r.Handle("/metrics", promhttp.HandlerFor(srv.MetricsRegistry(), promhttp.HandlerOpts{}))

	if cfg.StaticDir != "" {
		r.Handle("/*", static.Dir(cfg.StaticDir, static.CacheProduction))
	}

	return r
}

// setupLogging installs the default slog handler at the configured level.
func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})))
}
