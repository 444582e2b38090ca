package supabase

import (
	"context"
	"net/url"
	"strings"

	"github.com/boddenberg/wallet-reports-go/internal/domain"
)

// ListRecipients returns the profiles that registered a WhatsApp number.
// Blank numbers are filtered out here since PostgREST only excludes NULL.
func (c *Client) ListRecipients(ctx context.Context) ([]domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListRecipients")
	defer span.End()

	params := url.Values{}
	params.Set("select", "id,whatsapp_number,full_name")
	params.Set("whatsapp_number", "not.is.null")

	body, err := c.get(ctx, "supabase/profiles", query("profiles", params))
	if err != nil {
		return nil, err
	}

	rows, err := decodeRows[domain.Profile](body, "profiles")
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/profiles", Err: err}
	}

	out := rows[:0]
	for _, p := range rows {
		if strings.TrimSpace(p.Phone()) == "" {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}
