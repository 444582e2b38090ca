// Package client holds outbound HTTP clients that call this service's own API.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/boddenberg/wallet-reports-go/internal/domain"
	"github.com/boddenberg/wallet-reports-go/internal/infra/jobtoken"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

var tracer = otel.Tracer("client")

// TriggerClient fires report jobs through the public job endpoints so a
// scheduled run goes through the same handler path as a manual one.
type TriggerClient struct {
	httpClient *http.Client
	baseURL    string
	secret     string
}

// NewTriggerClient creates a loopback trigger. When secret is set, every
// request carries a freshly signed job token.
func NewTriggerClient(httpClient *http.Client, baseURL, secret string) *TriggerClient {
	return &TriggerClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		secret:     secret,
	}
}

// Trigger POSTs /api/reports/{kind} and decodes the job result. The call is
// never retried; a retry would message every recipient again.
func (c *TriggerClient) Trigger(ctx context.Context, kind domain.ReportKind) (*domain.JobResult, error) {
	ctx, span := tracer.Start(ctx, "TriggerClient.Trigger")
	defer span.End()
	span.SetAttributes(attribute.String("job.kind", string(kind)))

	url := fmt.Sprintf("%s/api/reports/%s", c.baseURL, kind)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	if c.secret != "" {
		tok, err := jobtoken.Sign(c.secret, jobtoken.Subject, jobtoken.DefaultTTL)
		if err != nil {
			return nil, fmt.Errorf("sign job token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "self", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "self", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(body, &e)
		if e.Error == "" {
			e.Error = strings.TrimSpace(string(body))
		}
		return nil, &domain.ErrExternalService{
			Service: "self",
			Err:     fmt.Errorf("report job returned status %d: %s", resp.StatusCode, e.Error),
		}
	}

	var result domain.JobResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode job result: %w", err)
	}
	return &result, nil
}
