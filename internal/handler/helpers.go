package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/boddenberg/wallet-reports-go/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// referenceTime returns the "now" a report window is computed from: the
// optional ?date=YYYY-MM-DD in loc, or the current time.
func referenceTime(r *http.Request, loc *time.Location, now func() time.Time) (time.Time, error) {
	d := r.URL.Query().Get("date")
	if d == "" {
		return now().In(loc), nil
	}
	t, err := time.ParseInLocation(domain.DateLayout, d, loc)
	if err != nil {
		return time.Time{}, &domain.ErrValidation{Field: "date", Message: "must be YYYY-MM-DD"}
	}
	return t, nil
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var notFound *domain.ErrNotFound
	var circuitOpen *domain.ErrCircuitOpen
	var validation *domain.ErrValidation
	var configuration *domain.ErrConfiguration
	var unauthorized *domain.ErrUnauthorized
	var external *domain.ErrExternalService

	switch {
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &unauthorized):
		logger.Warn("unauthorized", zap.String("error", err.Error()))
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &configuration):
		logger.Error("missing configuration", zap.String("setting", configuration.Setting))
		writeError(w, http.StatusInternalServerError, err.Error())
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &external):
		logger.Error("external service error", zap.String("service", external.Service), zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
