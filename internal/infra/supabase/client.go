// Package supabase reads profiles and wallet transactions through the
// Supabase PostgREST API. It is the default data backend.
package supabase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/boddenberg/wallet-reports-go/internal/domain"
	"github.com/boddenberg/wallet-reports-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("supabase")

// Client is a read-only PostgREST client.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	serviceRoleKey string
	cb             *gobreaker.CircuitBreaker
	cfg            resilience.Config
	logger         *zap.Logger
}

// NewClient creates a Supabase client. The service role key bypasses
// row-level security, which the job needs to read every user's rows.
// Without one the anon key is sent in both headers.
func NewClient(httpClient *http.Client, baseURL, apiKey, serviceRoleKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	if serviceRoleKey == "" {
		serviceRoleKey = apiKey
	}
	return &Client{
		httpClient:     httpClient,
		baseURL:        strings.TrimRight(baseURL, "/"),
		apiKey:         apiKey,
		serviceRoleKey: serviceRoleKey,
		cb:             cb,
		cfg:            cfg,
		logger:         logger,
	}
}

// statusError is a non-2xx PostgREST reply.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("supabase returned status %d: %s", e.code, e.body)
}

// retryable reports whether another attempt may get a different answer.
func (e *statusError) retryable() bool {
	return e.code >= 500 || e.code == http.StatusRequestTimeout || e.code == http.StatusTooManyRequests
}

// fetch runs one authenticated GET against /rest/v1/<path>. Missing
// configuration and 4xx replies come back marked permanent.
func (c *Client) fetch(ctx context.Context, path string) ([]byte, error) {
	if c.baseURL == "" {
		return nil, resilience.Permanent(&domain.ErrConfiguration{Setting: "SUPABASE_URL"})
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/rest/v1/"+path, nil)
	if err != nil {
		return nil, resilience.Permanent(err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.serviceRoleKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("supabase: request failed", zap.String("path", path), zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return nil, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		c.logger.Debug("supabase: request OK", zap.String("path", path), zap.Int("bytes", len(body)))
		return body, nil
	}

	serr := &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(body))}
	c.logger.Warn("supabase: non-2xx response",
		zap.String("path", path),
		zap.Int("status", serr.code),
		zap.String("body", serr.body),
	)
	if !serr.retryable() {
		return nil, resilience.Permanent(serr)
	}
	return nil, serr
}

// get runs a read through the breaker with retries. Every failure comes
// back as a domain error naming service.
func (c *Client) get(ctx context.Context, service, path string) ([]byte, error) {
	var body []byte
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			b, err := c.fetch(ctx, path)
			body = b
			return err
		})
	})
	if err == nil {
		return body, nil
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &domain.ErrCircuitOpen{Service: service}
	}
	var cfgErr *domain.ErrConfiguration
	if errors.As(err, &cfgErr) {
		return nil, cfgErr
	}
	return nil, &domain.ErrExternalService{Service: service, Err: err}
}

// Ping checks that PostgREST answers for the profiles table.
func (c *Client) Ping(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Supabase.Ping")
	defer span.End()
	span.SetAttributes(attribute.String("db.system", "postgrest"))

	_, err := c.get(ctx, "supabase/profiles", "profiles?select=id&limit=1")
	return err
}
