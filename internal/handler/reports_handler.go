package handler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/boddenberg/wallet-reports-go/internal/domain"
	"github.com/boddenberg/wallet-reports-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Report jobs: POST /api/reports/{weekly,monthly}
// ============================================================

// reportJobHandler runs a whole job. The job keeps going if the caller
// disconnects; only a failure to list recipients is a 500.
func reportJobHandler(kind domain.ReportKind, jobs JobRunner, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), r.Method+" /api/reports/"+string(kind))
		defer span.End()

		res, err := jobs.Run(context.WithoutCancel(ctx), kind)
		if err != nil {
			logger.Error("report job failed", zap.String("kind", string(kind)), zap.Error(err))
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		span.SetAttributes(
			attribute.Int("job.total", res.Summary.Total),
			attribute.Int("job.sent", res.Summary.Sent),
		)
		writeJSON(w, http.StatusOK, res)
	}
}

// ============================================================
// Preview & export: one user's report without sending it
// ============================================================

type previewResponse struct {
	Report  *service.Report `json:"report"`
	Message string          `json:"message"`
}

// buildSingleReport parses kind, userId, date and name, then builds the report.
func buildSingleReport(r *http.Request, reports ReportBuilder, loc *time.Location, now func() time.Time) (*service.Report, string, error) {
	kind, err := domain.ParseReportKind(chi.URLParam(r, "kind"))
	if err != nil {
		return nil, "", err
	}
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		return nil, "", &domain.ErrValidation{Field: "userId", Message: "is required"}
	}
	ref, err := referenceTime(r, loc, now)
	if err != nil {
		return nil, "", err
	}

	report, err := reports.Build(r.Context(), kind, userID, service.WindowFor(kind, ref))
	if err != nil {
		return nil, "", err
	}

	name := r.URL.Query().Get("name")
	profile := domain.Profile{ID: userID}
	if name != "" {
		profile.FullName = &name
	}
	return report, profile.DisplayName(), nil
}

func reportPreviewHandler(reports ReportBuilder, loc *time.Location, now func() time.Time, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/reports/{kind}/preview")
		defer span.End()

		report, name, err := buildSingleReport(r.WithContext(ctx), reports, loc, now)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, previewResponse{
			Report:  report,
			Message: report.Message(name),
		})
	}
}

func reportExportHandler(reports ReportBuilder, loc *time.Location, now func() time.Time, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /api/reports/{kind}/export")
		defer span.End()

		format, err := service.ParseExportFormat(r.URL.Query().Get("format"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		report, name, err := buildSingleReport(r.WithContext(ctx), reports, loc, now)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		var buf bytes.Buffer
		if err := report.Export(&buf, name, format); err != nil {
			logger.Error("report export failed", zap.String("format", string(format)), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "export failed")
			return
		}

		w.Header().Set("Content-Type", format.ContentType())
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, report.FileName(format)))
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		w.WriteHeader(http.StatusOK)
		w.Write(buf.Bytes())
	}
}
