// Package scheduler fires the weekly and monthly report jobs on a cron
// schedule in the report timezone.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/boddenberg/wallet-reports-go/internal/domain"
	"github.com/boddenberg/wallet-reports-go/internal/infra/observability"
	"github.com/boddenberg/wallet-reports-go/internal/port"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Cron expressions (minute hour dom month dow).
const (
	WeeklySpec  = "59 23 * * 0" // Sunday 23:59
	MonthlySpec = "1 0 1 * *"   // 1st of the month 00:01
)

var specs = map[domain.ReportKind]string{
	domain.ReportWeekly:  WeeklySpec,
	domain.ReportMonthly: MonthlySpec,
}

// Scheduler owns the two cron entries. Start and Stop may be called from
// concurrent requests.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	entries map[domain.ReportKind]cron.EntryID

	trigger port.JobTrigger
	loc     *time.Location
	timeout time.Duration
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// New creates a stopped scheduler. timeout bounds a single fire.
func New(trigger port.JobTrigger, loc *time.Location, timeout time.Duration, metrics *observability.Metrics, logger *zap.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		entries: make(map[domain.ReportKind]cron.EntryID),
		trigger: trigger,
		loc:     loc,
		timeout: timeout,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
	s.cron.Start()
	return s
}

// Start registers whichever of the two jobs is not active yet and returns
// the kinds it registered. Calling it again is a no-op.
func (s *Scheduler) Start() ([]domain.ReportKind, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var started []domain.ReportKind
	for _, kind := range []domain.ReportKind{domain.ReportWeekly, domain.ReportMonthly} {
		if _, ok := s.entries[kind]; ok {
			continue
		}
		kind := kind
		id, err := s.cron.AddFunc(specs[kind], func() { s.fire(kind) })
		if err != nil {
			return started, err
		}
		s.entries[kind] = id
		started = append(started, kind)
		s.logger.Info("report job scheduled",
			zap.String("kind", string(kind)),
			zap.String("cron", specs[kind]),
			zap.String("timezone", s.loc.String()),
		)
	}
	return started, nil
}

// Stop removes both jobs. A fire already in progress runs to completion.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for kind, id := range s.entries {
		s.cron.Remove(id)
		delete(s.entries, kind)
		s.logger.Info("report job unscheduled", zap.String("kind", string(kind)))
	}
}

// Shutdown stops the cron engine and waits for running fires up to ctx.
func (s *Scheduler) Shutdown(ctx context.Context) {
	s.Stop()
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler shutdown: fire still running")
	}
}

// Status reports which jobs are active and when they fire next.
func (s *Scheduler) Status() domain.SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().In(s.loc)
	st := domain.SchedulerStatus{
		CurrentTime: now.Format(time.RFC3339),
		Timezone:    s.loc.String(),
	}
	if _, ok := s.entries[domain.ReportWeekly]; ok {
		st.WeeklyJobActive = true
		st.NextWeeklyRun = nextRun(WeeklySpec, now)
	}
	if _, ok := s.entries[domain.ReportMonthly]; ok {
		st.MonthlyJobActive = true
		st.NextMonthlyRun = nextRun(MonthlySpec, now)
	}
	return st
}

func nextRun(spec string, now time.Time) string {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return ""
	}
	return sched.Next(now).Format(time.RFC3339)
}

// fire triggers one job. Failures are logged and counted; there is no retry.
func (s *Scheduler) fire(kind domain.ReportKind) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	s.logger.Info("scheduled report job firing", zap.String("kind", string(kind)))

	res, err := s.trigger.Trigger(ctx, kind)
	if err != nil {
		s.metrics.IncrSchedulerFire(string(kind), "error")
		s.logger.Error("scheduled report job failed",
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		return
	}

	s.metrics.IncrSchedulerFire(string(kind), "ok")
	s.logger.Info("scheduled report job done",
		zap.String("kind", string(kind)),
		zap.String("run_id", res.RunID),
		zap.Int("total", res.Summary.Total),
		zap.Int("sent", res.Summary.Sent),
		zap.Int("failed", res.Summary.Failed),
		zap.Int("skipped", res.Summary.Skipped),
	)
}
