package server

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"bursar/internal/domain/audit"
	"bursar/internal/domain/auth"
	"bursar/internal/domain/payroll"
	"bursar/internal/platform/config"
	"bursar/internal/platform/db"
	"bursar/internal/platform/jobs"
	"bursar/internal/platform/logger"
	"bursar/internal/platform/metrics"
	"bursar/internal/transport/http/api"
	payrollhandler "bursar/internal/transport/http/handlers/payroll"
	"bursar/internal/transport/http/middleware"
)

// Deps is everything the router needs. Run builds it from the environment;
// tests build it around an in-memory store.
type Deps struct {
	Config  config.Config
	Log     zerolog.Logger
	Payroll *payroll.Service
	Jobs    payrollhandler.JobRunner
	Audit   audit.Log
	Metrics *metrics.Collector
	Ready   func(ctx context.Context) error
}

// Run loads configuration, connects to Postgres and serves until SIGINT or
// SIGTERM.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogFormat, cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.RunMigrations {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			log.Error().Err(err).Msg("migrations failed")
			return err
		}
		log.Info().Msg("migrations applied")
	}

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("db connect failed")
		return err
	}
	defer pool.Close()

	collector := metrics.New()
	jobService := jobs.New(jobs.PGRunStore{DB: pool}, log, 16)
	jobService.Start(ctx)

	service := payroll.NewService(payroll.NewStore(pool), payroll.DefaultCalculator(), payroll.Options{
		PayslipDir: cfg.PayslipDir,
		Header:     payroll.PayslipHeader{SchoolName: cfg.SchoolName, Currency: cfg.Currency},
		Recorder:   collector,
		Logger:     log,
	})

	router := NewRouter(Deps{
		Config:  cfg,
		Log:     log,
		Payroll: service,
		Jobs:    jobService,
		Audit:   audit.New(pool),
		Metrics: collector,
		Ready:   pool.Ping,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("env", cfg.Environment).Msg("bursar server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		log.Error().Err(err).Msg("server failed")
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
		return err
	}
	log.Info().Msg("shutdown complete")
	return nil
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(deps.Log, recorderOrNil(deps.Metrics)))
	router.Use(middleware.Recoverer(deps.Log))
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(cfg.JWTSecret))

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		api.Fail(w, http.StatusNotFound, "not_found", "route not found", middleware.GetRequestID(r.Context()))
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		api.Fail(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", middleware.GetRequestID(r.Context()))
	})

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if deps.Ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := deps.Ready(ctx); err != nil {
				deps.Log.Warn().Err(err).Msg("readiness check failed")
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled && deps.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
		r.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, time.Minute))

		payrollHandler := payrollhandler.NewHandler(deps.Payroll, deps.Jobs, deps.Audit, auth.StaticPermissions{}, deps.Log)
		payrollHandler.RegisterRoutes(r)
	})

	return router
}

// recorderOrNil keeps a nil collector from becoming a non-nil interface.
func recorderOrNil(c *metrics.Collector) middleware.RequestRecorder {
	if c == nil {
		return nil
	}
	return c
}
