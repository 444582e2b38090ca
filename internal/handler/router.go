package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/boddenberg/wallet-reports-go/internal/domain"
	"github.com/boddenberg/wallet-reports-go/internal/infra/cache"
	"github.com/boddenberg/wallet-reports-go/internal/infra/observability"
	"github.com/boddenberg/wallet-reports-go/internal/port"
	"github.com/boddenberg/wallet-reports-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// JobRunner runs one report job.
type JobRunner interface {
	Run(ctx context.Context, kind domain.ReportKind) (*domain.JobResult, error)
}

// ReportBuilder builds a single user's report.
type ReportBuilder interface {
	Build(ctx context.Context, kind domain.ReportKind, userID string, window domain.DateWindow) (*service.Report, error)
}

// SchedulerControl is the scheduler surface exposed over HTTP.
type SchedulerControl interface {
	Start() ([]domain.ReportKind, error)
	Stop()
	Status() domain.SchedulerStatus
}

// Pinger is a dependency the health check can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of the router. Store and Ledger may be nil,
// which leaves them out of the health check.
type Deps struct {
	Jobs        JobRunner
	Reports     ReportBuilder
	Scheduler   SchedulerControl
	Dispatcher  port.Dispatcher
	DeviceCache *cache.InMemory[*domain.DeviceStatus]
	Store       port.Store
	Ledger      Pinger
	Metrics     *observability.Metrics
	Logger      *zap.Logger

	Location       *time.Location
	Now            func() time.Time
	AllowGET       bool
	JobTokenSecret string
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(d Deps) http.Handler {
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	logger := d.Logger

	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		handleServiceError(w, &domain.ErrNotFound{Resource: "route", ID: r.URL.Path}, logger)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(map[string]Pinger{"store": d.Store, "ledger": d.Ledger}, d.Metrics))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(d.Metrics.Registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {

		// =============================================
		// 📊 Report jobs, preview & export
		// =============================================
		r.Route("/reports", func(r chi.Router) {
			r.Use(JobTokenMiddleware(d.JobTokenSecret, logger))

			for _, kind := range []domain.ReportKind{domain.ReportWeekly, domain.ReportMonthly} {
				h := reportJobHandler(kind, d.Jobs, logger)
				r.Post("/"+string(kind), h)
				if d.AllowGET {
					r.Get("/"+string(kind), h)
				}
			}

			r.Get("/{kind}/preview", reportPreviewHandler(d.Reports, d.Location, d.Now, logger))
			r.Get("/{kind}/export", reportExportHandler(d.Reports, d.Location, d.Now, logger))
		})

		// =============================================
		// ⏰ Scheduler
		// =============================================
		r.Route("/scheduler", func(r chi.Router) {
			r.Use(JobTokenMiddleware(d.JobTokenSecret, logger))
			r.Get("/", schedulerStatusHandler(d.Scheduler, d.Metrics))
			r.Post("/", schedulerControlHandler(d.Scheduler, logger))
		})

		// =============================================
		// 💬 WhatsApp
		// =============================================
		r.Post("/whatsapp/send", whatsappSendHandler(d.Dispatcher, logger))
		r.Get("/whatsapp/device", whatsappDeviceHandler(d.Dispatcher, d.DeviceCache, d.Metrics, logger))
	})

	return r
}

// ============================================================
// Operational
// ============================================================

func healthzHandler(deps map[string]Pinger, metrics *observability.Metrics) http.HandlerFunc {
	names := make([]string, 0, len(deps))
	for name, p := range deps {
		if p != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "wallet-reports", Status: "healthy", LastChecked: now},
		}

		for _, name := range names {
			start := time.Now()
			status := "healthy"
			if err := deps[name].Ping(ctx); err != nil {
				status = "degraded"
			}
			services = append(services, domain.ServiceHealth{
				Name:        name,
				Status:      status,
				LatencyMs:   time.Since(start).Milliseconds(),
				LastChecked: now,
			})
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, struct {
			domain.HealthStatus
			Dispatch *domain.DispatchMetrics `json:"dispatch"`
		}{
			HealthStatus: domain.HealthStatus{Status: overallStatus, Services: services},
			Dispatch:     metrics.Snapshot(),
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
