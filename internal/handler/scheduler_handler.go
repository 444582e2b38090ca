package handler

import (
	"encoding/json"
	"net/http"

	"github.com/boddenberg/wallet-reports-go/internal/domain"
	"github.com/boddenberg/wallet-reports-go/internal/infra/observability"

	"go.uber.org/zap"
)

// ============================================================
// Scheduler: GET/POST /api/scheduler
// ============================================================

type schedulerRequest struct {
	Action string `json:"action"`
}

type schedulerResponse struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Started []domain.ReportKind    `json:"started,omitempty"`
	Status  domain.SchedulerStatus `json:"status"`
}

type schedulerStatusResponse struct {
	Status  domain.SchedulerStatus  `json:"status"`
	Metrics *domain.DispatchMetrics `json:"metrics,omitempty"`
}

func schedulerStatusHandler(s SchedulerControl, metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, schedulerStatusResponse{
			Status:  s.Status(),
			Metrics: metrics.Snapshot(),
		})
	}
}

func schedulerControlHandler(s SchedulerControl, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "POST /api/scheduler")
		defer span.End()

		var req schedulerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		switch req.Action {
		case "start":
			started, err := s.Start()
			if err != nil {
				logger.Error("scheduler start failed", zap.Error(err))
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			logger.Info("scheduler started via API", zap.Int("registered", len(started)))
			writeJSON(w, http.StatusOK, schedulerResponse{
				Success: true,
				Message: "scheduler started",
				Started: started,
				Status:  s.Status(),
			})
		case "stop":
			s.Stop()
			logger.Info("scheduler stopped via API")
			writeJSON(w, http.StatusOK, schedulerResponse{
				Success: true,
				Message: "scheduler stopped",
				Status:  s.Status(),
			})
		default:
			writeError(w, http.StatusBadRequest, `invalid action: use "start" or "stop"`)
		}
	}
}
