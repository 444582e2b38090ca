// Package fonnte is the WhatsApp gateway client (Fonnte-compatible HTTP API).
package fonnte

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/boddenberg/wallet-reports-go/internal/domain"
	"github.com/boddenberg/wallet-reports-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("fonnte")

const serviceName = "fonnte"

// Client calls the gateway's /send and /device endpoints. Sends are never
// retried: a timed-out send may already have been delivered.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	token       string
	countryCode string
	cb          *gobreaker.CircuitBreaker
	bulkhead    *resilience.Bulkhead
	logger      *zap.Logger
}

// NewClient creates a gateway client. An empty token is accepted here and
// reported as ErrConfiguration on each call.
func NewClient(httpClient *http.Client, baseURL, token, countryCode string, cb *gobreaker.CircuitBreaker, bulkhead *resilience.Bulkhead, logger *zap.Logger) *Client {
	if countryCode == "" {
		countryCode = "62"
	}
	return &Client{
		httpClient:  httpClient,
		baseURL:     strings.TrimRight(baseURL, "/"),
		token:       token,
		countryCode: countryCode,
		cb:          cb,
		bulkhead:    bulkhead,
		logger:      logger,
	}
}

// NormalizePhone keeps digits only and swaps a leading trunk 0 for the
// country code: "0812-3456" becomes "628123456".
func NormalizePhone(phone, countryCode string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if strings.HasPrefix(digits, "0") {
		digits = countryCode + strings.TrimPrefix(digits, "0")
	}
	return digits
}

// sendResponse is the gateway reply. id comes back as an array of ids,
// a single string or a number depending on the endpoint version.
type sendResponse struct {
	Status bool            `json:"status"`
	Detail string          `json:"detail"`
	Reason string          `json:"reason"`
	ID     json.RawMessage `json:"id"`
}

type deviceResponse struct {
	Status       bool            `json:"status"`
	Device       string          `json:"device"`
	DeviceStatus string          `json:"device_status"`
	Quota        json.RawMessage `json:"quota"`
	Reason       string          `json:"reason"`
	Detail       string          `json:"detail"`
}

// Send delivers message to target. An explicit rejection comes back as
// SendResult.Status=false with the provider's reason; transport failures
// and unparsable replies are errors.
func (c *Client) Send(ctx context.Context, target, message string) (*domain.SendResult, error) {
	ctx, span := tracer.Start(ctx, "Fonnte.Send")
	defer span.End()

	if c.token == "" {
		return nil, &domain.ErrConfiguration{Setting: "FONNTE_TOKEN"}
	}

	phone := NormalizePhone(target, c.countryCode)
	span.SetAttributes(attribute.String("whatsapp.target", phone))

	form := url.Values{}
	form.Set("target", phone)
	form.Set("message", message)
	form.Set("countryCode", c.countryCode)

	var reply sendResponse
	if err := c.post(ctx, "/send", form, &reply); err != nil {
		return nil, err
	}

	result := &domain.SendResult{Status: reply.Status, ID: firstID(reply.ID)}
	if reply.Status {
		result.Message = reply.Detail
		if result.Message == "" {
			result.Message = "message sent"
		}
	} else {
		result.Message = firstNonEmpty(reply.Reason, reply.Detail, "rejected by provider")
		c.logger.Warn("fonnte: send rejected",
			zap.String("target", phone),
			zap.String("reason", result.Message),
		)
	}
	return result, nil
}

// Device reports the connection state of the gateway's WhatsApp device.
func (c *Client) Device(ctx context.Context) (*domain.DeviceStatus, error) {
	ctx, span := tracer.Start(ctx, "Fonnte.Device")
	defer span.End()

	if c.token == "" {
		return nil, &domain.ErrConfiguration{Setting: "FONNTE_TOKEN"}
	}

	var reply deviceResponse
	if err := c.post(ctx, "/device", url.Values{}, &reply); err != nil {
		return nil, err
	}

	return &domain.DeviceStatus{
		Status:       reply.Status,
		Device:       reply.Device,
		DeviceStatus: reply.DeviceStatus,
		Quota:        rawString(reply.Quota),
		Message:      firstNonEmpty(reply.Reason, reply.Detail),
	}, nil
}

// post runs one form request through the bulkhead and the breaker and
// decodes the JSON reply into out.
func (c *Client) post(ctx context.Context, path string, form url.Values, out any) error {
	if err := c.bulkhead.Acquire(ctx); err != nil {
		return &domain.ErrExternalService{Service: serviceName, Err: err}
	}
	defer c.bulkhead.Release()

	_, err := c.cb.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", c.token)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("fonnte returned status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
		}
		// 4xx replies still carry {status:false, reason}.
		if err := json.Unmarshal(body, out); err != nil {
			return nil, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
		}
		return nil, nil
	})

	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return &domain.ErrCircuitOpen{Service: serviceName}
		}
		c.logger.Error("fonnte: request failed", zap.String("path", path), zap.Error(err))
		return &domain.ErrExternalService{Service: serviceName, Err: err}
	}
	return nil
}

func firstID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var ids []json.RawMessage
	if err := json.Unmarshal(raw, &ids); err == nil {
		if len(ids) == 0 {
			return ""
		}
		return rawString(ids[0])
	}
	return rawString(raw)
}

// rawString renders a JSON string or number as plain text.
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
