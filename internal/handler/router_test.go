package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boddenberg/wallet-reports-go/internal/domain"
	"github.com/boddenberg/wallet-reports-go/internal/handler"
	"github.com/boddenberg/wallet-reports-go/internal/infra/cache"
	"github.com/boddenberg/wallet-reports-go/internal/infra/jobtoken"
	"github.com/boddenberg/wallet-reports-go/internal/infra/observability"
	"github.com/boddenberg/wallet-reports-go/internal/service"

	"go.uber.org/zap"
)

// --- Mocks ---

type mockJobs struct {
	result *domain.JobResult
	err    error
	calls  atomic.Int32
	ctxErr error
}

func (m *mockJobs) Run(ctx context.Context, kind domain.ReportKind) (*domain.JobResult, error) {
	m.calls.Add(1)
	m.ctxErr = ctx.Err()
	if m.err != nil {
		return nil, m.err
	}
	res := *m.result
	res.Kind = kind
	return &res, nil
}

type mockReports struct {
	window domain.DateWindow
	err    error
}

func (m *mockReports) Build(_ context.Context, kind domain.ReportKind, _ string, window domain.DateWindow) (*service.Report, error) {
	m.window = window
	if m.err != nil {
		return nil, m.err
	}
	txns := []domain.Transaction{
		{Type: domain.TransactionExpense, Amount: 50000, Category: "Food", Date: window.StartDate()},
	}
	if kind == domain.ReportMonthly {
		return &service.Report{Kind: kind, Monthly: service.BuildMonthlyReport(window, txns)}, nil
	}
	return &service.Report{Kind: kind, Weekly: service.BuildWeeklyReport(window, txns)}, nil
}

type mockScheduler struct {
	weekly, monthly bool
}

func (m *mockScheduler) Start() ([]domain.ReportKind, error) {
	var started []domain.ReportKind
	if !m.weekly {
		m.weekly = true
		started = append(started, domain.ReportWeekly)
	}
	if !m.monthly {
		m.monthly = true
		started = append(started, domain.ReportMonthly)
	}
	return started, nil
}

func (m *mockScheduler) Stop() { m.weekly, m.monthly = false, false }

func (m *mockScheduler) Status() domain.SchedulerStatus {
	return domain.SchedulerStatus{WeeklyJobActive: m.weekly, MonthlyJobActive: m.monthly, Timezone: "Asia/Jakarta"}
}

type mockDispatcher struct {
	result      *domain.SendResult
	err         error
	lastTarget  string
	lastMessage string
	deviceCalls atomic.Int32
}

func (m *mockDispatcher) Send(_ context.Context, target, message string) (*domain.SendResult, error) {
	m.lastTarget, m.lastMessage = target, message
	return m.result, m.err
}

func (m *mockDispatcher) Device(_ context.Context) (*domain.DeviceStatus, error) {
	m.deviceCalls.Add(1)
	return &domain.DeviceStatus{Status: true, Device: "628111", DeviceStatus: "connect"}, nil
}

type mockStore struct {
	pingErr error
}

func (m *mockStore) ListTransactions(context.Context, string, domain.DateWindow) ([]domain.Transaction, error) {
	return nil, nil
}
func (m *mockStore) ListRecipients(context.Context) ([]domain.Profile, error) { return nil, nil }
func (m *mockStore) Ping(context.Context) error { return m.pingErr }

type fixture struct {
	deps       handler.Deps
	jobs       *mockJobs
	reports    *mockReports
	sched      *mockScheduler
	dispatcher *mockDispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		jobs: &mockJobs{result: &domain.JobResult{
			Success: true,
			RunID:   "run-1",
			Summary: domain.JobSummary{Total: 2, Sent: 1, Failed: 1},
			Results: []domain.DispatchResult{
				{UserID: "u1", Status: domain.DispatchSent},
				{UserID: "u2", Status: domain.DispatchFailed, Error: "invalid number"},
			},
		}},
		reports:    &mockReports{},
		sched:      &mockScheduler{},
		dispatcher: &mockDispatcher{result: &domain.SendResult{Status: true, Message: "sent", ID: "42"}},
	}
	devices := cache.New[*domain.DeviceStatus](time.Minute)
	t.Cleanup(devices.Close)

	f.deps = handler.Deps{
		Jobs:        f.jobs,
		Reports:     f.reports,
		Scheduler:   f.sched,
		Dispatcher:  f.dispatcher,
		DeviceCache: devices,
		Store:       &mockStore{},
		Metrics:     observability.NewMetrics(),
		Logger:      zap.NewNop(),
		Location:    time.UTC,
		Now:         func() time.Time { return time.Date(2024, 6, 12, 9, 0, 0, 0, time.UTC) },
	}
	return f
}

func (f *fixture) do(method, target, body string, header ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	handler.NewRouter(f.deps).ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	return v
}

// --- Operational ---

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/healthz", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decode[map[string]any](t, rec)
	if body["status"] != "healthy" {
		t.Errorf("expected healthy, got %v", body["status"])
	}
	if _, ok := body["dispatch"]; !ok {
		t.Error("expected dispatch metrics in health body")
	}
}

func TestHealthz_DegradedStore(t *testing.T) {
	f := newFixture(t)
	f.deps.Store = &mockStore{pingErr: errors.New("down")}

	body := decode[map[string]any](t, f.do(http.MethodGet, "/healthz", ""))
	if body["status"] != "degraded" {
		t.Errorf("expected degraded, got %v", body["status"])
	}
}

func TestHealthz_ProbesLedger(t *testing.T) {
	f := newFixture(t)
	f.deps.Ledger = &mockStore{pingErr: errors.New("locked")}

	body := decode[domain.HealthStatus](t, f.do(http.MethodGet, "/healthz", ""))
	if body.Status != "degraded" || len(body.Services) != 3 {
		t.Fatalf("unexpected health: %+v", body)
	}
	if body.Services[1].Name != "ledger" || body.Services[1].Status != "degraded" {
		t.Errorf("expected degraded ledger entry, got %+v", body.Services[1])
	}
}

func TestReadyz(t *testing.T) {
	rec := newFixture(t).do(http.MethodGet, "/readyz", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestMetrics(t *testing.T) {
	f := newFixture(t)
	f.deps.Metrics.IncrDispatch("weekly", "sent")

	rec := f.do(http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "reports_dispatch_total") {
		t.Error("expected dispatch counter in exposition")
	}
}

func TestNotFound_JSON(t *testing.T) {
	rec := newFixture(t).do(http.MethodGet, "/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON, got %q", ct)
	}
}

// --- Report jobs ---

func TestReportJob_Post(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/api/reports/weekly", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	res := decode[domain.JobResult](t, rec)
	if !res.Success || res.Kind != domain.ReportWeekly || res.Summary.Sent != 1 || res.Summary.Failed != 1 {
		t.Errorf("unexpected body: %+v", res)
	}
	if f.jobs.ctxErr != nil {
		t.Errorf("job context should be live, got %v", f.jobs.ctxErr)
	}
}

func TestReportJob_GetRejectedByDefault(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/api/reports/monthly", "")

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
	if f.jobs.calls.Load() != 0 {
		t.Error("job must not run on GET")
	}
}

func TestReportJob_GetAllowed(t *testing.T) {
	f := newFixture(t)
	f.deps.AllowGET = true

	rec := f.do(http.MethodGet, "/api/reports/monthly", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestReportJob_FatalError(t *testing.T) {
	f := newFixture(t)
	f.jobs.err = errors.New("list recipients: supabase down")

	rec := f.do(http.MethodPost, "/api/reports/weekly", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	body := decode[map[string]string](t, rec)
	if !strings.Contains(body["error"], "supabase down") {
		t.Errorf("expected error message, got %v", body)
	}
}

func TestReportJob_JobToken(t *testing.T) {
	f := newFixture(t)
	f.deps.JobTokenSecret = "s3cret"

	if rec := f.do(http.MethodPost, "/api/reports/weekly", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}

	bad, _ := jobtoken.Sign("other", jobtoken.Subject, time.Minute)
	if rec := f.do(http.MethodPost, "/api/reports/weekly", "", "Authorization", "Bearer "+bad); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with foreign token, got %d", rec.Code)
	}

	good, err := jobtoken.Sign("s3cret", jobtoken.Subject, time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if rec := f.do(http.MethodPost, "/api/reports/weekly", "", "Authorization", "Bearer "+good); rec.Code != http.StatusOK {
		t.Errorf("expected 200 with token, got %d", rec.Code)
	}

	// The WhatsApp endpoints stay open.
	if rec := f.do(http.MethodGet, "/api/whatsapp/device", ""); rec.Code != http.StatusOK {
		t.Errorf("expected device endpoint unguarded, got %d", rec.Code)
	}
}

// --- Preview & export ---

func TestReportPreview(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/api/reports/weekly/preview?userId=u1&name=Budi", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decode[struct {
		Report  service.Report `json:"report"`
		Message string         `json:"message"`
	}](t, rec)
	if body.Report.Weekly == nil || body.Report.Weekly.WeekStart != "2024-06-03" {
		t.Errorf("unexpected report: %+v", body.Report)
	}
	if !strings.Contains(body.Message, "Halo Budi!") {
		t.Errorf("unexpected message: %s", body.Message)
	}
}

func TestReportPreview_DateParam(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/api/reports/monthly/preview?userId=u1&date=2025-01-15", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if f.reports.window.StartDate() != "2024-12-01" || f.reports.window.EndDate() != "2024-12-31" {
		t.Errorf("unexpected window %s", f.reports.window)
	}
	if !strings.Contains(rec.Body.String(), "Halo Kak!") {
		t.Error("expected default greeting name")
	}
}

func TestReportPreview_Validation(t *testing.T) {
	f := newFixture(t)
	tests := []string{
		"/api/reports/weekly/preview",
		"/api/reports/yearly/preview?userId=u1",
		"/api/reports/weekly/preview?userId=u1&date=12-06-2024",
	}
	for _, target := range tests {
		if rec := f.do(http.MethodGet, target, ""); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", target, rec.Code)
		}
	}
}

func TestReportPreview_StoreErrors(t *testing.T) {
	f := newFixture(t)

	f.reports.err = &domain.ErrCircuitOpen{Service: "supabase"}
	if rec := f.do(http.MethodGet, "/api/reports/weekly/preview?userId=u1", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}

	f.reports.err = &domain.ErrExternalService{Service: "supabase", Err: errors.New("500")}
	if rec := f.do(http.MethodGet, "/api/reports/weekly/preview?userId=u1", ""); rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", rec.Code)
	}

	f.reports.err = &domain.ErrConfiguration{Setting: "SUPABASE_URL"}
	if rec := f.do(http.MethodGet, "/api/reports/weekly/preview?userId=u1", ""); rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestReportExport(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/reports/weekly/export?userId=u1&format=csv", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("expected csv content type, got %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "laporan-weekly-2024-06-03_2024-06-09.csv") {
		t.Errorf("unexpected disposition %q", cd)
	}
	if !strings.HasPrefix(rec.Body.String(), "section,label,amount,count,share_pct") {
		t.Errorf("unexpected csv body: %s", rec.Body.String())
	}

	rec = f.do(http.MethodGet, "/api/reports/monthly/export?userId=u1", "")
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Body.String(), "%PDF") {
		t.Errorf("expected a PDF, got %d", rec.Code)
	}

	if rec := f.do(http.MethodGet, "/api/reports/weekly/export?userId=u1&format=xlsx", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown format, got %d", rec.Code)
	}
}

// --- Scheduler ---

func TestScheduler_Status(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/api/scheduler", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decode[struct {
		Status domain.SchedulerStatus `json:"status"`
	}](t, rec)
	if body.Status.WeeklyJobActive || body.Status.Timezone != "Asia/Jakarta" {
		t.Errorf("unexpected status: %+v", body.Status)
	}
}

func TestScheduler_StartStop(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/api/scheduler", `{"action":"start"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decode[struct {
		Success bool                   `json:"success"`
		Started []domain.ReportKind    `json:"started"`
		Status  domain.SchedulerStatus `json:"status"`
	}](t, rec)
	if !body.Success || len(body.Started) != 2 || !body.Status.WeeklyJobActive || !body.Status.MonthlyJobActive {
		t.Errorf("unexpected start body: %+v", body)
	}

	// Starting again registers nothing new.
	rec = f.do(http.MethodPost, "/api/scheduler", `{"action":"start"}`)
	again := decode[struct {
		Started []domain.ReportKind `json:"started"`
	}](t, rec)
	if len(again.Started) != 0 {
		t.Errorf("expected idempotent start, got %v", again.Started)
	}

	rec = f.do(http.MethodPost, "/api/scheduler", `{"action":"stop"}`)
	if rec.Code != http.StatusOK || f.sched.weekly || f.sched.monthly {
		t.Errorf("expected stopped scheduler, got %d %+v", rec.Code, f.sched)
	}
}

func TestScheduler_BadAction(t *testing.T) {
	f := newFixture(t)
	for _, body := range []string{`{"action":"restart"}`, `{}`, `not json`} {
		if rec := f.do(http.MethodPost, "/api/scheduler", body); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", body, rec.Code)
		}
	}
}

// --- WhatsApp ---

func TestWhatsAppSend(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/api/whatsapp/send", `{"target":"08123","message":"halo"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decode[map[string]any](t, rec)
	if body["success"] != true || body["id"] != "42" {
		t.Errorf("unexpected body: %v", body)
	}
	if f.dispatcher.lastTarget != "08123" || f.dispatcher.lastMessage != "halo" {
		t.Errorf("unexpected dispatch: %q %q", f.dispatcher.lastTarget, f.dispatcher.lastMessage)
	}
}

func TestWhatsAppSend_Template(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/api/whatsapp/send",
		`{"target":"08123","type":"transaction","data":{"type":"income","amount":1500000,"category":"Gaji","date":"2024-06-03"}}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(f.dispatcher.lastMessage, "Pemasukan: Rp 1.500.000") {
		t.Errorf("expected rendered template, got %q", f.dispatcher.lastMessage)
	}
}

func TestWhatsAppSend_Validation(t *testing.T) {
	f := newFixture(t)
	for _, body := range []string{
		`{"message":"halo"}`,
		`{"target":"08123"}`,
		`{"target":"08123","type":"weekly"}`,
		`{`,
	} {
		if rec := f.do(http.MethodPost, "/api/whatsapp/send", body); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestWhatsAppSend_Rejected(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.result = &domain.SendResult{Status: false, Message: "invalid token"}

	rec := f.do(http.MethodPost, "/api/whatsapp/send", `{"target":"08123","message":"halo"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	body := decode[map[string]any](t, rec)
	if body["success"] != false || body["message"] != "invalid token" {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestWhatsAppSend_Unconfigured(t *testing.T) {
	f := newFixture(t)
	f.dispatcher.err = &domain.ErrConfiguration{Setting: "FONNTE_TOKEN"}

	rec := f.do(http.MethodPost, "/api/whatsapp/send", `{"target":"08123","message":"halo"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestWhatsAppDevice_Cached(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 3; i++ {
		if rec := f.do(http.MethodGet, "/api/whatsapp/device", ""); rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	}
	if got := f.dispatcher.deviceCalls.Load(); got != 1 {
		t.Errorf("expected one provider call, got %d", got)
	}
}
