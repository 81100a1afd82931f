package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"

	"github.com/s1natex/lightly-tasks/internal/config"
	"github.com/s1natex/lightly-tasks/internal/identity"
	"github.com/s1natex/lightly-tasks/internal/middleware"
	"github.com/s1natex/lightly-tasks/internal/storage"
	"github.com/s1natex/lightly-tasks/internal/tasks"
	"github.com/s1natex/lightly-tasks/internal/telemetry"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to YAML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("config_error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := newLogger(cfg.SlogLevel())
	slog.SetDefault(logger) // for third-party packages that use slog

	if err := run(cfg, logger); err != nil {
		logger.Error("server_error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.TraceExporter, cfg.OTLPEndpoint, "lightly-tasks")
	if err != nil {
		return err
	}

	provider, closeStorage, err := storage.Open(ctx, storage.Options{
		Backend:     storage.Backend(cfg.Storage.Backend),
		SQLitePath:  cfg.Storage.SQLitePath,
		RedisAddr:   cfg.Storage.RedisAddr,
		RedisPrefix: cfg.Storage.RedisPrefix,
	})
	if err != nil {
		return err
	}
	defer closeStorage()

	store := tasks.NewStore(provider,
		tasks.WithLogger(logger),
		tasks.WithSeedCategories(cfg.SeedCategories),
		tasks.WithKeys(cfg.Storage.TasksKey, cfg.Storage.CategoriesKey),
	)
	store.Load(ctx)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           newRouter(store, logger, cfg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server_listen", slog.String("addr", cfg.HTTPAddr), slog.String("storage", cfg.Storage.Backend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("server_shutdown")

		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		// stop taking requests before the last store writes go out
		err := srv.Shutdown(sctx)
		if cerr := store.Close(sctx); cerr != nil {
			logger.Warn("store_close_failed", slog.String("error", cerr.Error()))
		}
		if terr := shutdownTracing(sctx); terr != nil {
			logger.Warn("tracing_shutdown_failed", slog.String("error", terr.Error()))
		}
		return err
	})
	return g.Wait()
}

// newRouter wires the health and metrics endpoints, task routes, and middleware stack
func newRouter(store *tasks.Store, logger *slog.Logger, cfg config.Config) *chi.Mux {
	r := chi.NewRouter()

	// ---- Middleware stack (order matters a bit) ----
	// RequestID first so downstream can include it (logger, errors, etc.)
	r.Use(chimw.RequestID)

	// Panic recovery: never crash the server; returns 500 on panics
	r.Use(chimw.Recoverer)

	// Timeouts: cancel handlers that exceed this duration
	r.Use(chimw.Timeout(15 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		ExposedHeaders:   []string{"X-Request-ID", "Trace-Id"},
		AllowCredentials: false,
		MaxAge:           300, // 5 minutes
	}))

	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.MetricsMiddleware)
	r.Use(middleware.TracingMiddleware)

	// Auth runs before the limiter so buckets can be keyed by subject
	r.Use(middleware.AuthMiddleware(authConfig(cfg)))
	r.Use(middleware.RateLimitMiddleware(middleware.NewClientLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)))

	// ---- Routes ----
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", middleware.MetricsHandler())

	tasks.RegisterRoutes(r, store)

	return r
}

func authConfig(cfg config.Config) middleware.AuthConfig {
	ac := middleware.AuthConfig{
		Mode:        middleware.AuthMode(strings.ToLower(cfg.Auth.Mode)),
		APIKey:      cfg.Auth.APIKey,
		BearerToken: cfg.Auth.BearerToken,
		SkipPaths:   []string{"/health", "/metrics"},
	}
	if ac.Mode == "" {
		ac.Mode = middleware.AuthNone
	}
	if ac.Mode == middleware.AuthJWT {
		ac.Verifier = identity.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
	}
	return ac
}

func newLogger(level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler)
}
