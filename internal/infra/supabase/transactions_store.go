package supabase

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/boddenberg/wallet-reports-go/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Transactions: read-only via PostgREST
// ============================================================

// transactionRow maps the transactions table columns.
type transactionRow struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	WalletID  string      `json:"wallet_id"`
	Type      string      `json:"type"`
	Amount    json.Number `json:"amount"`
	Category  *string     `json:"category"`
	Note      *string     `json:"note"`
	Date      string      `json:"date"`
	CreatedAt time.Time   `json:"created_at"`
}

// ListTransactions fetches the rows of userID whose date lies in window.
func (c *Client) ListTransactions(ctx context.Context, userID string, window domain.DateWindow) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListTransactions")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.String("window", window.String()),
	)

	params := url.Values{}
	params.Set("select", "id,user_id,wallet_id,type,amount,category,note,date,created_at")
	params.Set("user_id", "eq."+userID)
	params.Add("date", "gte."+window.StartDate())
	params.Add("date", "lte."+window.EndDate())
	params.Set("order", "date.asc")

	body, err := c.get(ctx, "supabase/transactions", query("transactions", params))
	if err != nil {
		return nil, err
	}

	rows, err := decodeRows[transactionRow](body, "transactions")
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/transactions", Err: err}
	}

	out := make([]domain.Transaction, 0, len(rows))
	for _, r := range rows {
		amount, err := minorUnits(r.Amount)
		if err != nil {
			c.logger.Warn("supabase: skipping transaction with bad amount",
				zap.String("id", r.ID),
				zap.Error(err),
			)
			continue
		}
		tx := domain.Transaction{
			ID:        r.ID,
			UserID:    r.UserID,
			WalletID:  r.WalletID,
			Type:      domain.TransactionType(r.Type),
			Amount:    amount,
			Date:      r.Date,
			CreatedAt: r.CreatedAt,
		}
		if r.Category != nil {
			tx.Category = *r.Category
		}
		if r.Note != nil {
			tx.Note = *r.Note
		}
		out = append(out, tx)
	}
	return out, nil
}
