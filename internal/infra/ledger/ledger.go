// Package ledger remembers which report periods were already delivered to
// which user, so a re-triggered job does not message anyone twice.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/boddenberg/wallet-reports-go/internal/domain"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

var tracer = otel.Tracer("ledger")

// SQLite implements port.DeliveryLedger on a local SQLite file.
type SQLite struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// Open creates the database file if needed and migrates it.
func Open(dbPath string, logger *zap.Logger) (*SQLite, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger directory: %w", err)
		}
	}

	if err := runMigrations(dbPath); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open ledger database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping ledger database: %w", err)
	}

	logger.Info("delivery ledger opened", zap.String("path", dbPath))
	return &SQLite{db: db, logger: logger, now: time.Now}, nil
}

// Close closes the database.
func (l *SQLite) Close() error {
	return l.db.Close()
}

// WasDelivered reports whether userID already received the report for periodKey.
func (l *SQLite) WasDelivered(ctx context.Context, userID, periodKey string) (bool, error) {
	ctx, span := tracer.Start(ctx, "Ledger.WasDelivered")
	defer span.End()

	var n int
	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM report_deliveries WHERE user_id = ? AND period_key = ?`,
		userID, periodKey,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query delivery: %w", err)
	}
	return n > 0, nil
}

// RecordDelivery stores a successful send. Recording the same pair twice
// keeps the first row.
func (l *SQLite) RecordDelivery(ctx context.Context, userID, periodKey string, kind domain.ReportKind, messageID string) error {
	ctx, span := tracer.Start(ctx, "Ledger.RecordDelivery")
	defer span.End()

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO report_deliveries (user_id, period_key, kind, message_id, delivered_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, period_key) DO NOTHING`,
		userID, periodKey, string(kind), messageID, l.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert delivery: %w", err)
	}
	l.logger.Debug("delivery recorded",
		zap.String("user_id", userID),
		zap.String("period_key", periodKey),
	)
	return nil
}

// Ping checks the database handle.
func (l *SQLite) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}
