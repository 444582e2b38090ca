// Package postgres reads profiles and transactions straight from the
// database behind the hosted backend, for deployments that prefer a
// connection string over the REST API.
package postgres

import (
	"context"
	"fmt"

	"github.com/boddenberg/wallet-reports-go/internal/domain"
	"github.com/boddenberg/wallet-reports-go/internal/infra/resilience"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("postgres")

const listTransactionsSQL = `
	SELECT id::text,
	       user_id::text,
	       COALESCE(wallet_id::text, ''),
	       type,
	       ROUND(amount)::bigint,
	       COALESCE(category, ''),
	       COALESCE(note, ''),
	       to_char(date, 'YYYY-MM-DD'),
	       created_at
	FROM transactions
	WHERE user_id = $1
	  AND date BETWEEN $2::date AND $3::date
	ORDER BY date ASC`

const listRecipientsSQL = `
	SELECT id::text, whatsapp_number, full_name
	FROM profiles
	WHERE whatsapp_number IS NOT NULL
	  AND btrim(whatsapp_number) <> ''`

// Store implements port.Store over a pgx pool.
type Store struct {
	pool   *pgxpool.Pool
	cb     *gobreaker.CircuitBreaker
	cfg    resilience.Config
	logger *zap.Logger
}

// Connect opens a pool for dsn and verifies it.
func Connect(ctx context.Context, dsn string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) (*Store, error) {
	if dsn == "" {
		return nil, &domain.ErrConfiguration{Setting: "DATABASE_URL"}
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool, cb: cb, cfg: cfg, logger: logger}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) read(ctx context.Context, service string, fn func() error) error {
	_, err := s.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, s.cfg, fn)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return &domain.ErrCircuitOpen{Service: service}
		}
		return &domain.ErrExternalService{Service: service, Err: err}
	}
	return nil
}

// ListTransactions fetches the rows of userID whose date lies in window.
func (s *Store) ListTransactions(ctx context.Context, userID string, window domain.DateWindow) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListTransactions")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID), attribute.String("window", window.String()))

	var out []domain.Transaction
	err := s.read(ctx, "postgres/transactions", func() error {
		rows, err := s.pool.Query(ctx, listTransactionsSQL, userID, window.StartDate(), window.EndDate())
		if err != nil {
			return err
		}
		txns, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Transaction, error) {
			var t domain.Transaction
			var typ string
			err := row.Scan(&t.ID, &t.UserID, &t.WalletID, &typ, &t.Amount, &t.Category, &t.Note, &t.Date, &t.CreatedAt)
			t.Type = domain.TransactionType(typ)
			return t, err
		})
		if err != nil {
			return err
		}
		out = txns
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.Transaction{}
	}
	s.logger.Debug("postgres: transactions loaded", zap.String("user_id", userID), zap.Int("rows", len(out)))
	return out, nil
}

// ListRecipients returns the profiles that registered a WhatsApp number.
func (s *Store) ListRecipients(ctx context.Context) ([]domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListRecipients")
	defer span.End()

	var out []domain.Profile
	err := s.read(ctx, "postgres/profiles", func() error {
		rows, err := s.pool.Query(ctx, listRecipientsSQL)
		if err != nil {
			return err
		}
		profiles, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Profile, error) {
			var p domain.Profile
			err := row.Scan(&p.ID, &p.WhatsAppNumber, &p.FullName)
			return p, err
		})
		if err != nil {
			return err
		}
		out = profiles
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.Profile{}
	}
	return out, nil
}
