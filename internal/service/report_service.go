package service

import (
	"context"
	"fmt"

	"github.com/boddenberg/wallet-reports-go/internal/domain"
	"github.com/boddenberg/wallet-reports-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("service/reports")

// Report wraps whichever report kind was built.
type Report struct {
	Kind    domain.ReportKind     `json:"kind"`
	Weekly  *domain.WeeklyReport  `json:"weekly,omitempty"`
	Monthly *domain.MonthlyReport `json:"monthly,omitempty"`
}

// Totals returns the part shared by both kinds.
func (r *Report) Totals() *domain.WeeklyReport {
	if r.Monthly != nil {
		return &r.Monthly.WeeklyReport
	}
	return r.Weekly
}

// Message renders the WhatsApp text for the report.
func (r *Report) Message(name string) string {
	if r.Monthly != nil {
		return FormatMonthlyReport(name, r.Monthly)
	}
	return FormatWeeklyReport(name, r.Weekly)
}

// ReportService fetches a user's transactions and aggregates them.
type ReportService struct {
	store  port.TransactionStore
	logger *zap.Logger
}

// NewReportService creates the report service.
func NewReportService(store port.TransactionStore, logger *zap.Logger) *ReportService {
	return &ReportService{store: store, logger: logger}
}

// Build fetches the rows of userID inside window and aggregates them.
// Any store error aborts the aggregation for that user.
func (s *ReportService) Build(ctx context.Context, kind domain.ReportKind, userID string, window domain.DateWindow) (*Report, error) {
	ctx, span := tracer.Start(ctx, "ReportService.Build")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.String("report.kind", string(kind)),
		attribute.String("report.window", window.String()),
	)

	txns, err := s.store.ListTransactions(ctx, userID, window)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	txns = ownedBy(userID, txns)

	s.logger.Debug("transactions fetched for report",
		zap.String("user_id", userID),
		zap.String("kind", string(kind)),
		zap.String("window", window.String()),
		zap.Int("rows", len(txns)),
	)

	if kind == domain.ReportMonthly {
		return &Report{Kind: kind, Monthly: BuildMonthlyReport(window, txns)}, nil
	}
	return &Report{Kind: kind, Weekly: BuildWeeklyReport(window, txns)}, nil
}

// Weekly builds the weekly report of one user.
func (s *ReportService) Weekly(ctx context.Context, userID string, window domain.DateWindow) (*domain.WeeklyReport, error) {
	r, err := s.Build(ctx, domain.ReportWeekly, userID, window)
	if err != nil {
		return nil, err
	}
	return r.Weekly, nil
}

// Monthly builds the monthly report of one user.
func (s *ReportService) Monthly(ctx context.Context, userID string, window domain.DateWindow) (*domain.MonthlyReport, error) {
	r, err := s.Build(ctx, domain.ReportMonthly, userID, window)
	if err != nil {
		return nil, err
	}
	return r.Monthly, nil
}

// ownedBy drops rows that belong to another user. Rows without a user id
// are kept; the store already filtered on it.
func ownedBy(userID string, txns []domain.Transaction) []domain.Transaction {
	out := txns[:0:0]
	for _, tx := range txns {
		if tx.UserID != "" && tx.UserID != userID {
			continue
		}
		out = append(out, tx)
	}
	return out
}
