package handler_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/wallet-reports-go/internal/domain"
	"github.com/boddenberg/wallet-reports-go/internal/handler"
	"github.com/boddenberg/wallet-reports-go/internal/infra/cache"
	"github.com/boddenberg/wallet-reports-go/internal/infra/fonnte"
	"github.com/boddenberg/wallet-reports-go/internal/infra/observability"
	"github.com/boddenberg/wallet-reports-go/internal/infra/resilience"
	"github.com/boddenberg/wallet-reports-go/internal/infra/supabase"
	"github.com/boddenberg/wallet-reports-go/internal/service"

	"go.uber.org/zap"
)

// TestWeeklyJob_EndToEnd drives POST /api/reports/weekly through the real
// job runner against fake PostgREST and gateway servers.
func TestWeeklyJob_EndToEnd(t *testing.T) {
	postgrest := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/rest/v1/profiles":
			w.Write([]byte(`[
				{"id":"u1","whatsapp_number":"081234567890","full_name":"Budi"},
				{"id":"u2","whatsapp_number":"628222","full_name":null},
				{"id":"u3","whatsapp_number":"  ","full_name":"Blank"}
			]`))
		case "/rest/v1/transactions":
			if r.URL.Query().Get("user_id") == "eq.u1" {
				w.Write([]byte(`[
					{"id":"t1","user_id":"u1","type":"expense","amount":50000,"category":"Food","date":"2024-06-05"}
				]`))
				return
			}
			w.Write([]byte(`[]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer postgrest.Close()

	var mu sync.Mutex
	sent := map[string]string{}
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "tok" {
			t.Errorf("missing gateway token")
		}
		r.ParseForm()
		target := r.PostForm.Get("target")
		mu.Lock()
		sent[target] = r.PostForm.Get("message")
		mu.Unlock()
		if target == "628222" {
			w.Write([]byte(`{"status":false,"reason":"target invalid"}`))
			return
		}
		w.Write([]byte(`{"status":true,"detail":"success! message in queue","id":["80367170"]}`))
	}))
	defer gateway.Close()

	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	rcfg := resilience.Config{MaxRetries: 1, InitialBackoff: time.Millisecond}

	store := supabase.NewClient(postgrest.Client(), postgrest.URL, "anon", "service", resilience.NewCircuitBreaker("supabase"), rcfg, logger)
	dispatcher := fonnte.NewClient(gateway.Client(), gateway.URL, "tok", "62", resilience.NewCircuitBreaker("fonnte"), resilience.NewBulkhead(2), logger)

	loc := time.FixedZone("WIB", 7*3600)
	now := func() time.Time { return time.Date(2024, 6, 9, 23, 59, 0, 0, loc) }
	reports := service.NewReportService(store, logger)
	jobs := service.NewJobRunner(service.JobDeps{
		Profiles:   store,
		Reports:    reports,
		Dispatcher: dispatcher,
		Throttle:   resilience.NewThrottle(time.Millisecond),
		Metrics:    metrics,
		Logger:     logger,
		Location:   loc,
		Now:        now,
	})

	devices := cache.New[*domain.DeviceStatus](time.Minute)
	defer devices.Close()

	router := handler.NewRouter(handler.Deps{
		Jobs:        jobs,
		Reports:     reports,
		Scheduler:   &mockScheduler{},
		Dispatcher:  dispatcher,
		DeviceCache: devices,
		Store:       store,
		Metrics:     metrics,
		Logger:      logger,
		Location:    loc,
		Now:         now,
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reports/weekly", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	res := decode[domain.JobResult](t, rec)
	if res.Summary != (domain.JobSummary{Total: 2, Sent: 1, Failed: 1}) {
		t.Errorf("unexpected summary: %+v", res.Summary)
	}
	if res.Window == nil || res.Window.Start != "2024-06-03" || res.Window.End != "2024-06-09" {
		t.Errorf("unexpected window: %+v", res.Window)
	}
	if res.Results[0].MessageID != "80367170" || res.Results[1].Error != "target invalid" {
		t.Errorf("unexpected results: %+v", res.Results)
	}

	msg, ok := sent["6281234567890"]
	if !ok {
		t.Fatalf("expected normalized target, got %v", sent)
	}
	for _, want := range []string{"Halo Budi!", "Pengeluaran: Rp 50.000", "1. Food: Rp 50.000 (1x)"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
	if !strings.Contains(sent["628222"], "Halo Kak!") {
		t.Errorf("expected default greeting for nameless profile:\n%s", sent["628222"])
	}

	if s := metrics.Snapshot(); s.Sent != 1 || s.Failed != 1 {
		t.Errorf("unexpected metrics snapshot: %+v", s)
	}
}

func TestWeeklyJob_EndToEnd_StoreDown(t *testing.T) {
	postgrest := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer postgrest.Close()

	logger := zap.NewNop()
	rcfg := resilience.Config{MaxRetries: 1, InitialBackoff: time.Millisecond}
	store := supabase.NewClient(postgrest.Client(), postgrest.URL, "anon", "", resilience.NewCircuitBreaker("supabase"), rcfg, logger)
	metrics := observability.NewMetrics()
	dispatcher := &mockDispatcher{}

	jobs := service.NewJobRunner(service.JobDeps{
		Profiles:   store,
		Reports:    service.NewReportService(store, logger),
		Dispatcher: dispatcher,
		Throttle:   resilience.NewThrottle(0),
		Metrics:    metrics,
		Logger:     logger,
	})

	router := handler.NewRouter(handler.Deps{
		Jobs:      jobs,
		Scheduler: &mockScheduler{},
		Metrics:   metrics,
		Logger:    logger,
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reports/monthly", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "list recipients") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
	if dispatcher.lastTarget != "" {
		t.Error("nothing should be sent when recipients cannot be listed")
	}
}
