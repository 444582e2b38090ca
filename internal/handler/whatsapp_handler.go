package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/boddenberg/wallet-reports-go/internal/domain"
	"github.com/boddenberg/wallet-reports-go/internal/infra/cache"
	"github.com/boddenberg/wallet-reports-go/internal/infra/observability"
	"github.com/boddenberg/wallet-reports-go/internal/port"
	"github.com/boddenberg/wallet-reports-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// WhatsApp: POST /api/whatsapp/send, GET /api/whatsapp/device
// ============================================================

const (
	templateTransaction = "transaction"
	templateDailyReport = "daily_report"

	deviceCacheKey = "device"
)

type sendRequest struct {
	Target  string          `json:"target"`
	Message string          `json:"message"`
	Type    string          `json:"type"`
	Data    json.RawMessage `json:"data"`
}

type sendResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}

// renderMessage resolves the text to send: a template when type is set,
// otherwise the raw message.
func renderMessage(req sendRequest) (string, error) {
	switch req.Type {
	case "":
		return req.Message, nil
	case templateTransaction:
		var n domain.TransactionNotice
		if err := json.Unmarshal(req.Data, &n); err != nil {
			return "", &domain.ErrValidation{Field: "data", Message: "invalid transaction payload"}
		}
		return service.FormatTransactionNotice(n), nil
	case templateDailyReport:
		var s domain.DailySummary
		if err := json.Unmarshal(req.Data, &s); err != nil {
			return "", &domain.ErrValidation{Field: "data", Message: "invalid daily report payload"}
		}
		return service.FormatDailyReport(s), nil
	}
	return "", &domain.ErrValidation{Field: "type", Message: "must be transaction or daily_report"}
}

func whatsappSendHandler(dispatcher port.Dispatcher, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/whatsapp/send")
		defer span.End()

		var req sendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		message, err := renderMessage(req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if strings.TrimSpace(req.Target) == "" || strings.TrimSpace(message) == "" {
			writeError(w, http.StatusBadRequest, "target and message are required")
			return
		}

		res, err := dispatcher.Send(ctx, req.Target, message)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if !res.Status {
			writeJSON(w, http.StatusBadGateway, sendResponse{Success: false, Message: res.Message})
			return
		}

		writeJSON(w, http.StatusOK, sendResponse{Success: true, Message: res.Message, ID: res.ID})
	}
}

func whatsappDeviceHandler(dispatcher port.Dispatcher, devices *cache.InMemory[*domain.DeviceStatus], metrics *observability.Metrics, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/whatsapp/device")
		defer span.End()

		status, hit, err := devices.Fetch(deviceCacheKey, func() (*domain.DeviceStatus, error) {
			return dispatcher.Device(ctx)
		})
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if hit {
			metrics.IncrCacheHit("device")
		} else {
			metrics.IncrCacheMiss("device")
		}

		writeJSON(w, http.StatusOK, status)
	}
}
