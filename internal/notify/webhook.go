// Package notify delivers domain events to the configured webhook endpoint.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/storefront-checkout/internal/events"
)

// ErrRejected marks a delivery refused with a 4xx status. Retrying will not help.
var ErrRejected = errors.New("notify: endpoint rejected delivery")

// Doer sends HTTP requests. resilience.HTTPClient implements it.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Sender posts signed event envelopes to a single endpoint.
type Sender struct {
	URL       string
	Secret    string
	HTTP      Doer
	Replay    ReplayProtector
	ReplayTTL time.Duration
}

type envelope struct {
	EventID     string          `json:"eventId"`
	Topic       string          `json:"topic"`
	AggregateID string          `json:"aggregateId"`
	Data        json.RawMessage `json:"data"`
	OccurredAt  time.Time       `json:"occurredAt"`
}

// Send delivers ev. Events already delivered within the replay window are
// skipped and reported as sent.
func (s *Sender) Send(ctx context.Context, ev events.Event) (int, error) {
	if s == nil || s.HTTP == nil {
		return 0, errors.New("notify: sender not configured")
	}
	ctx, span := otel.Tracer("notify.Sender").Start(ctx, "Sender.Send")
	defer span.End()
	span.SetAttributes(
		attribute.String("webhook.event_id", ev.ID.String()),
		attribute.String("webhook.topic", ev.Topic),
	)
	if err := validateURL(s.URL); err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("%w: %v", ErrRejected, err)
	}
	body, err := json.Marshal(envelope{
		EventID:     ev.ID.String(),
		Topic:       ev.Topic,
		AggregateID: ev.AggregateID,
		Data:        ev.Payload,
		OccurredAt:  ev.OccurredAt,
	})
	if err != nil {
		return 0, err
	}

	key := replayKey(ev)
	if s.Replay != nil && s.ReplayTTL > 0 {
		ok, err := s.Replay.Acquire(ctx, key, s.ReplayTTL)
		if err != nil {
			span.RecordError(err)
			return 0, err
		}
		if !ok {
			span.AddEvent("delivery replay prevented")
			return http.StatusOK, nil
		}
	}
	status, err := s.post(ctx, ev, body)
	if err != nil && s.Replay != nil && s.ReplayTTL > 0 {
		_ = s.Replay.Release(ctx, key)
	}
	if err != nil {
		span.RecordError(err)
	}
	span.SetAttributes(attribute.Int("http.status_code", status))
	return status, err
}

func (s *Sender) post(ctx context.Context, ev events.Event, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	ts := time.Now().Unix()
	eventID := ev.ID.String()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "storefront-checkout-webhooks/1.0")
	req.Header.Set("X-Event-ID", eventID)
	req.Header.Set("X-Event-Topic", ev.Topic)
	req.Header.Set("X-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("X-Idempotency-Key", eventID)
	req.Header.Set("X-Signature", ComputeSignature(s.Secret, ts, eventID, body))

	resp, err := s.HTTP.Do(ctx, req)
	if err != nil {
		return 0, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	}
	return resp.StatusCode, nil
}

func validateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid endpoint url: %w", err)
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return errors.New("webhook url must be http or https")
	}
	if parsed.Host == "" {
		return errors.New("webhook url must include host")
	}
	if parsed.Scheme == "http" {
		host := parsed.Hostname()
		if host != "localhost" && host != "127.0.0.1" {
			return errors.New("http webhook only allowed for localhost")
		}
	}
	return nil
}

// ComputeSignature calculates the webhook signature for the provided payload. The
// format is HMAC-SHA256 over "<ts>.<eventID>.<body>" using the shared secret.
func ComputeSignature(secret string, ts int64, eventID string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(strconv.FormatInt(ts, 10)))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write([]byte(eventID))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a signature produced by ComputeSignature.
func VerifySignature(secret string, ts int64, eventID string, body []byte, signature string) bool {
	expected := ComputeSignature(secret, ts, eventID, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// NewHTTPClient returns an HTTP client configured for webhook delivery.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

func replayKey(ev events.Event) string {
	return "wh:out:" + ev.ID.String()
}
