package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/boddenberg/wallet-reports-go/internal/domain"
	"github.com/boddenberg/wallet-reports-go/internal/infra/resilience"

	"go.uber.org/zap"
)

func TestConnect_RequiresDSN(t *testing.T) {
	_, err := Connect(context.Background(), "", resilience.NewCircuitBreaker("pg"), resilience.Config{}, zap.NewNop())
	var cfgErr *domain.ErrConfiguration
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

// Runs only against a database that has the profiles and transactions tables.
func TestStore_Live(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := Connect(ctx, dsn, resilience.NewCircuitBreaker("pg"), resilience.Config{}, zap.NewNop())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Close()

	profiles, err := s.ListRecipients(ctx)
	if err != nil {
		t.Fatalf("list recipients: %v", err)
	}
	for _, p := range profiles {
		if p.Phone() == "" {
			t.Errorf("profile %s has no number", p.ID)
		}
	}

	window := domain.DateWindow{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
	}
	if len(profiles) > 0 {
		txns, err := s.ListTransactions(ctx, profiles[0].ID, window)
		if err != nil {
			t.Fatalf("list transactions: %v", err)
		}
		for _, tx := range txns {
			if !window.Contains(tx.Date) {
				t.Errorf("transaction %s outside window: %s", tx.ID, tx.Date)
			}
		}
	}
}
