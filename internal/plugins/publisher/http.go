package publisher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"marketchat/internal/core/contracts"
	"marketchat/internal/core/events"
)

const (
	// SecretHeader must match the gateway's handlers.InternalSecretHeader.
	SecretHeader   = "X-Chat-Internal-Secret"
	DefaultTimeout = 1200 * time.Millisecond
)

var (
	ErrNotConfigured = errors.New("publisher: internal url or secret not configured")
	tracer           = otel.Tracer("event-publisher")
)

// HTTPPublisher posts events to the gateway's internal publish endpoint. It never retries:
// a lost realtime event is repaired by the client's next poll or reconnect.
type HTTPPublisher struct {
	url     string
	secret  string
	timeout time.Duration
	client  *http.Client
}

var _ contracts.EventPublisher = (*HTTPPublisher)(nil)

func NewHTTPPublisher(url, secret string, timeout time.Duration) *HTTPPublisher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPPublisher{
		url:     url,
		secret:  secret,
		timeout: timeout,
		client:  &http.Client{},
	}
}

// WithClient replaces the HTTP client, e.g. with an httptest server's client.
func (p *HTTPPublisher) WithClient(c *http.Client) *HTTPPublisher {
	p.client = c
	return p
}

func (p *HTTPPublisher) Publish(ctx context.Context, ev events.Event) contracts.PublishResult {
	ctx, span := tracer.Start(ctx, "HTTPPublisher.Publish", trace.WithAttributes(
		attribute.String("event.type", string(ev.Type())),
	))
	defer span.End()

	if p.url == "" || p.secret == "" {
		return p.failed(span, ErrNotConfigured)
	}

	body, err := events.Encode(ev)
	if err != nil {
		return p.failed(span, fmt.Errorf("publisher: encode: %w", err))
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return p.failed(span, fmt.Errorf("publisher: request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SecretHeader, p.secret)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := p.client.Do(req)
	if err != nil {
		return p.failed(span, fmt.Errorf("publisher: post: %w", err))
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return p.failed(span, fmt.Errorf("publisher: gateway responded %d", resp.StatusCode))
	}
	return contracts.PublishResult{Delivered: true}
}

func (p *HTTPPublisher) failed(span trace.Span, err error) contracts.PublishResult {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return contracts.PublishResult{Err: err}
}
