package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boddenberg/wallet-reports-go/internal/config"
	"github.com/boddenberg/wallet-reports-go/internal/domain"
	"github.com/boddenberg/wallet-reports-go/internal/handler"
	"github.com/boddenberg/wallet-reports-go/internal/infra/cache"
	"github.com/boddenberg/wallet-reports-go/internal/infra/client"
	"github.com/boddenberg/wallet-reports-go/internal/infra/events"
	"github.com/boddenberg/wallet-reports-go/internal/infra/fonnte"
	"github.com/boddenberg/wallet-reports-go/internal/infra/ledger"
	"github.com/boddenberg/wallet-reports-go/internal/infra/observability"
	"github.com/boddenberg/wallet-reports-go/internal/infra/postgres"
	"github.com/boddenberg/wallet-reports-go/internal/infra/resilience"
	"github.com/boddenberg/wallet-reports-go/internal/infra/supabase"
	"github.com/boddenberg/wallet-reports-go/internal/port"
	"github.com/boddenberg/wallet-reports-go/internal/scheduler"
	"github.com/boddenberg/wallet-reports-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	loc, _ := cfg.Location()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("store_backend", cfg.StoreBackend),
		zap.String("report_timezone", loc.String()),
		zap.Duration("dispatch_interval", cfg.DispatchInterval),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Bool("scheduler_autostart", cfg.SchedulerAutostart),
		zap.Bool("reports_allow_get", cfg.ReportsAllowGET),
		zap.Bool("job_token", cfg.JobTokenSecret != ""),
		zap.Bool("ledger", cfg.LedgerPath != ""),
		zap.Bool("events", cfg.AMQPURL != ""),
	)
	if cfg.FonnteToken == "" {
		logger.Warn("FONNTE_TOKEN not set: every WhatsApp send will fail")
	}

	// --- Tracing ---
	shutdownTracer, err := observability.InitTracer(cfg.OTLPEndpoint, "wallet-reports")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdownTracer(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	// --- Store ---
	var store port.Store
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout)
		pg, err := postgres.Connect(ctx, cfg.DatabaseURL, resilience.NewCircuitBreaker("postgres"), resilienceCfg, logger)
		cancel()
		if err != nil {
			logger.Fatal("failed to connect to postgres", zap.Error(err))
		}
		defer pg.Close()
		store = pg
		logger.Info("using Postgres as data backend")
	default:
		if cfg.SupabaseURL == "" {
			logger.Warn("SUPABASE_URL not set: report jobs will fail until it is configured")
		}
		store = supabase.NewClient(
			httpClient,
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			resilience.NewCircuitBreaker("supabase"),
			resilienceCfg,
			logger,
		)
		logger.Info("using Supabase as data backend", zap.String("supabase_url", cfg.SupabaseURL))
	}

	// --- WhatsApp gateway ---
	dispatcher := fonnte.NewClient(
		httpClient,
		cfg.FonnteBaseURL,
		cfg.FonnteToken,
		cfg.FonnteCountryCode,
		resilience.NewCircuitBreaker("fonnte"),
		resilience.NewBulkhead(cfg.MaxConcurrency),
		logger,
	)
	deviceCache := cache.New[*domain.DeviceStatus](cfg.DeviceCacheTTL)
	defer deviceCache.Close()

	// --- Optional delivery ledger & events ---
	deps := service.JobDeps{
		Profiles:   store,
		Reports:    service.NewReportService(store, logger),
		Dispatcher: dispatcher,
		Throttle:   resilience.NewThrottle(cfg.DispatchInterval),
		Metrics:    metrics,
		Logger:     logger,
		Location:   loc,
	}

	var ledgerPing handler.Pinger
	if cfg.LedgerPath != "" {
		l, err := ledger.Open(cfg.LedgerPath, logger)
		if err != nil {
			logger.Fatal("failed to open delivery ledger", zap.Error(err))
		}
		defer l.Close()
		deps.Ledger = l
		ledgerPing = l
	}

	if cfg.AMQPURL != "" {
		pub, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			// Events are best effort; the reports still go out without them.
			logger.Error("dispatch events disabled", zap.Error(err))
		} else {
			defer pub.Close()
			deps.Events = pub
		}
	}

	jobs := service.NewJobRunner(deps)

	// --- Scheduler ---
	trigger := client.NewTriggerClient(
		&http.Client{Timeout: cfg.SchedulerTriggerTimeout},
		cfg.SelfBaseURL,
		cfg.JobTokenSecret,
	)
	sched := scheduler.New(trigger, loc, cfg.SchedulerTriggerTimeout, metrics, logger)

	// --- Router ---
	router := handler.NewRouter(handler.Deps{
		Jobs:           jobs,
		Reports:        deps.Reports,
		Scheduler:      sched,
		Dispatcher:     dispatcher,
		DeviceCache:    deviceCache,
		Store:          store,
		Ledger:         ledgerPing,
		Metrics:        metrics,
		Logger:         logger,
		Location:       loc,
		AllowGET:       cfg.ReportsAllowGET,
		JobTokenSecret: cfg.JobTokenSecret,
	})

	// --- Server ---
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		// A job answers only after the last recipient.
		WriteTimeout: cfg.SchedulerTriggerTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	if cfg.SchedulerAutostart {
		if _, err := sched.Start(); err != nil {
			logger.Error("scheduler autostart failed", zap.Error(err))
		}
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	sched.Shutdown(ctx)

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
