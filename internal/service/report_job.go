package service

import (
	"context"
	"fmt"
	"time"

	"github.com/boddenberg/wallet-reports-go/internal/domain"
	"github.com/boddenberg/wallet-reports-go/internal/infra/observability"
	"github.com/boddenberg/wallet-reports-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ============================================================
// Report job: fetch recipients → aggregate → format → dispatch → summarize
// ============================================================

// JobDeps are the collaborators of a JobRunner. Ledger and Events are optional.
type JobDeps struct {
	Profiles   port.ProfileStore
	Reports    *ReportService
	Dispatcher port.Dispatcher
	Throttle   port.Throttle
	Ledger     port.DeliveryLedger
	Events     port.EventPublisher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Location   *time.Location
	Now        func() time.Time
}

// JobRunner executes report jobs. Recipients are processed sequentially;
// one recipient's failure never aborts the batch.
type JobRunner struct {
	deps  JobDeps
	group singleflight.Group
}

// NewJobRunner creates a job runner, filling defaults for Location and Now.
func NewJobRunner(deps JobDeps) *JobRunner {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &JobRunner{deps: deps}
}

// Run executes one job of the given kind. Concurrent calls for the same kind
// share the in-flight run. The only returned error is a failure to list the
// recipients; every other failure is recorded per recipient.
func (j *JobRunner) Run(ctx context.Context, kind domain.ReportKind) (*domain.JobResult, error) {
	v, err, shared := j.group.Do(string(kind), func() (any, error) {
		return j.run(ctx, kind)
	})
	if shared {
		j.deps.Logger.Info("report job joined an in-flight run", zap.String("kind", string(kind)))
	}
	if err != nil {
		return nil, err
	}
	return v.(*domain.JobResult), nil
}

func (j *JobRunner) run(ctx context.Context, kind domain.ReportKind) (*domain.JobResult, error) {
	ctx, span := tracer.Start(ctx, "JobRunner.Run")
	defer span.End()

	runID := uuid.New().String()
	span.SetAttributes(
		attribute.String("job.kind", string(kind)),
		attribute.String("job.run_id", runID),
	)

	start := time.Now()
	defer func() {
		j.deps.Metrics.RecordJobDuration(string(kind), time.Since(start))
	}()

	log := j.deps.Logger.With(zap.String("kind", string(kind)), zap.String("run_id", runID))

	profiles, err := j.deps.Profiles.ListRecipients(ctx)
	if err != nil {
		log.Error("report job aborted: cannot list recipients", zap.Error(err))
		j.deps.Metrics.IncrJobRun(string(kind), "failed")
		return nil, fmt.Errorf("list recipients: %w", err)
	}

	window := WindowFor(kind, j.deps.Now().In(j.deps.Location))
	result := &domain.JobResult{
		Success: true,
		RunID:   runID,
		Kind:    kind,
		Window:  &domain.JobWindow{Start: window.StartDate(), End: window.EndDate()},
		Results: make([]domain.DispatchResult, 0, len(profiles)),
	}

	if len(profiles) == 0 {
		log.Info("report job: no recipients")
		result.Message = "no recipients with a registered WhatsApp number"
		j.deps.Metrics.IncrJobRun(string(kind), "empty")
		return result, nil
	}

	log.Info("report job started",
		zap.Int("recipients", len(profiles)),
		zap.String("window", window.String()),
	)

	periodKey := PeriodKey(kind, window)
	for _, p := range profiles {
		res := j.deliver(ctx, log, kind, p, window, periodKey)
		result.Results = append(result.Results, res)
		j.deps.Metrics.IncrDispatch(string(kind), string(res.Status))
		j.publish(ctx, log, runID, kind, periodKey, res)
	}

	result.Summary = domain.Summarize(result.Results)
	result.Message = fmt.Sprintf("%s reports processed", kind)
	j.deps.Metrics.IncrJobRun(string(kind), "completed")

	log.Info("report job finished",
		zap.Int("total", result.Summary.Total),
		zap.Int("sent", result.Summary.Sent),
		zap.Int("failed", result.Summary.Failed),
		zap.Int("skipped", result.Summary.Skipped),
		zap.Duration("elapsed", time.Since(start)),
	)

	return result, nil
}

// deliver handles one recipient end to end and never returns an error:
// failures become the result status.
func (j *JobRunner) deliver(ctx context.Context, log *zap.Logger, kind domain.ReportKind, p domain.Profile, window domain.DateWindow, periodKey string) domain.DispatchResult {
	res := domain.DispatchResult{UserID: p.ID, Phone: p.Phone()}
	log = log.With(zap.String("user_id", p.ID))

	if j.deps.Ledger != nil {
		delivered, err := j.deps.Ledger.WasDelivered(ctx, p.ID, periodKey)
		if err != nil {
			log.Warn("delivery ledger lookup failed, sending anyway", zap.Error(err))
		} else if delivered {
			res.Status = domain.DispatchSkipped
			return res
		}
	}

	report, err := j.deps.Reports.Build(ctx, kind, p.ID, window)
	if err != nil {
		log.Error("report aggregation failed", zap.Error(err))
		res.Status = domain.DispatchError
		res.Error = err.Error()
		return res
	}
	message := report.Message(p.DisplayName())

	if err := j.deps.Throttle.Wait(ctx); err != nil {
		res.Status = domain.DispatchError
		res.Error = fmt.Sprintf("throttle: %v", err)
		return res
	}

	sent, err := j.deps.Dispatcher.Send(ctx, p.Phone(), message)
	if err != nil {
		log.Error("report dispatch error", zap.Error(err))
		j.deps.Metrics.IncrExternalError("dispatcher")
		res.Status = domain.DispatchError
		res.Error = err.Error()
		return res
	}
	if !sent.Status {
		log.Warn("report dispatch rejected", zap.String("reason", sent.Message))
		res.Status = domain.DispatchFailed
		res.Error = sent.Message
		return res
	}

	res.Status = domain.DispatchSent
	res.MessageID = sent.ID

	if j.deps.Ledger != nil {
		if err := j.deps.Ledger.RecordDelivery(ctx, p.ID, periodKey, kind, sent.ID); err != nil {
			log.Warn("delivery ledger write failed", zap.Error(err))
		}
	}
	return res
}

func (j *JobRunner) publish(ctx context.Context, log *zap.Logger, runID string, kind domain.ReportKind, periodKey string, res domain.DispatchResult) {
	if j.deps.Events == nil {
		return
	}
	event := domain.DispatchEvent{
		EventID:    uuid.New().String(),
		RunID:      runID,
		Kind:       kind,
		PeriodKey:  periodKey,
		UserID:     res.UserID,
		Status:     res.Status,
		Error:      res.Error,
		MessageID:  res.MessageID,
		OccurredAt: time.Now().UTC(),
	}
	if err := j.deps.Events.PublishDispatch(ctx, event); err != nil {
		log.Warn("dispatch event not published", zap.String("user_id", res.UserID), zap.Error(err))
	}
}
