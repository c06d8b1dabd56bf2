package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	v1 "github.com/pickrr/pickrr/internal/api/v1"
	"github.com/pickrr/pickrr/internal/arr"
	"github.com/pickrr/pickrr/internal/config"
	"github.com/pickrr/pickrr/internal/downloads"
	"github.com/pickrr/pickrr/internal/metadata"
	"github.com/pickrr/pickrr/internal/migrations"
	"github.com/pickrr/pickrr/internal/overseerr"
	"github.com/pickrr/pickrr/internal/qbit"
	"github.com/pickrr/pickrr/internal/reconcile"
	"github.com/pickrr/pickrr/internal/request"
	"github.com/pickrr/pickrr/internal/settings"
	"github.com/pickrr/pickrr/internal/webhook"
)

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 200 { // Only capture first WriteHeader call
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		log.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func runServer(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Server.LogLevel),
	}))

	dbDir := filepath.Dir(cfg.Database.Path)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.Exec(migrations.InitialSQL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	// === Stores (always created) ===
	store := request.NewStore(db)
	settingsStore := settings.NewStore(db)

	// === Clients ===
	tmdbClient := metadata.NewClient(cfg.TMDB.APIKey,
		metadata.WithImageBase(cfg.TMDB.ImageBase))

	var overseerrClient *overseerr.Client
	if cfg.Overseerr.URL != "" {
		overseerrClient = overseerr.NewClient(cfg.Overseerr.URL, cfg.Overseerr.APIKey)
	}

	var qbitClient *qbit.Client
	if cfg.QBittorrent.URL != "" {
		qbitClient = qbit.NewClient(cfg.QBittorrent.URL,
			cfg.QBittorrent.Username, cfg.QBittorrent.Password)
	}

	var radarrClient *arr.Radarr
	if cfg.Radarr != nil {
		radarrClient = arr.NewRadarr(cfg.Radarr.URL, cfg.Radarr.APIKey, nil)
	}
	var sonarrClient *arr.Sonarr
	if cfg.Sonarr != nil {
		sonarrClient = arr.NewSonarr(cfg.Sonarr.URL, cfg.Sonarr.APIKey, nil)
	}

	// === Services ===
	apiServer := v1.New(store, settingsStore, logger)

	if overseerrClient != nil && qbitClient != nil {
		// Library is an interface; a nil *Radarr must stay a nil Library.
		var movies, series downloads.Library
		if radarrClient != nil {
			movies = radarrClient
		}
		if sonarrClient != nil {
			series = sonarrClient
		}
		manager := downloads.NewManager(store, qbitClient, overseerrClient,
			movies, series, settingsStore, cfg.QBittorrent.Category, logger)
		apiServer.SetManager(manager)
	}

	queue := webhook.NewQueue(db, logger)
	ingester := webhook.NewIngester(store, tmdbClient, logger)
	apiServer.SetWebhookHandler(webhook.NewHandler(ingester, queue, settingsStore, logger))

	if overseerrClient != nil {
		apiServer.SetReconcileJob(reconcile.NewJob(store, overseerrClient, tmdbClient, logger))
		apiServer.AddHealthCheck("overseerr", overseerrClient)
	}
	if qbitClient != nil {
		apiServer.AddHealthCheck("qbittorrent", qbitClient)
	}
	if radarrClient != nil {
		apiServer.AddHealthCheck("radarr", radarrClient)
	}
	if sonarrClient != nil {
		apiServer.AddHealthCheck("sonarr", sonarrClient)
	}

	mux := http.NewServeMux()
	apiServer.RegisterRoutes(mux)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info("server starting",
		"addr", addr,
		"database", cfg.Database.Path,
		"overseerr", overseerrClient != nil,
		"qbittorrent", qbitClient != nil,
		"radarr", radarrClient != nil,
		"sonarr", sonarrClient != nil,
		"log_level", cfg.Server.LogLevel,
	)

	srv := &http.Server{Addr: addr, Handler: logRequests(mux, logger)}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return webhook.NewWorker(queue, ingester, logger).Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
