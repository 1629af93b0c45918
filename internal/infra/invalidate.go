package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/attaboy/siteadmin/internal/domain"
	"github.com/attaboy/siteadmin/internal/guard"
)

// RevalidateSecretHeader carries the shared secret on webhook calls.
const RevalidateSecretHeader = "X-Revalidate-Secret"

// KafkaInvalidator publishes revalidation events, keyed by tag.
type KafkaInvalidator struct {
	producer *KafkaProducer
}

// NewKafkaInvalidator creates a KafkaInvalidator over producer.
func NewKafkaInvalidator(producer *KafkaProducer) *KafkaInvalidator {
	return &KafkaInvalidator{producer: producer}
}

// Invalidate publishes ev.
func (k *KafkaInvalidator) Invalidate(ctx context.Context, ev domain.RevalidationEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := k.producer.Publish(ctx, []byte(ev.Tag), payload); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Tag, err)
	}
	return nil
}

// WebhookInvalidator calls the site's revalidate endpoint directly.
type WebhookInvalidator struct {
	url    string
	secret string
	client *http.Client
}

// NewWebhookInvalidator creates a WebhookInvalidator posting to url.
func NewWebhookInvalidator(url, secret string) *WebhookInvalidator {
	return &WebhookInvalidator{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Invalidate posts {tag, path} for ev.
func (h *WebhookInvalidator) Invalidate(ctx context.Context, ev domain.RevalidationEvent) error {
	body, err := json.Marshal(map[string]string{"tag": ev.Tag, "path": ev.Path})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(RevalidateSecretHeader, h.secret)

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("revalidate call: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("revalidate returned %d", resp.StatusCode)
	}
	return nil
}

// LogInvalidator only records the event; used when no site hook is configured.
type LogInvalidator struct {
	logger *slog.Logger
}

// NewLogInvalidator creates a LogInvalidator.
func NewLogInvalidator(logger *slog.Logger) *LogInvalidator {
	return &LogInvalidator{logger: logger}
}

// Invalidate logs ev.
func (l *LogInvalidator) Invalidate(_ context.Context, ev domain.RevalidationEvent) error {
	l.logger.Info("revalidation skipped, no target configured", "tag", ev.Tag, "path", ev.Path, "reason", ev.Reason)
	return nil
}

// Invalidator is satisfied by every implementation in this file.
type Invalidator interface {
	Invalidate(ctx context.Context, ev domain.RevalidationEvent) error
}

// ErrCircuitOpen is returned while the breaker is short-circuiting calls.
var ErrCircuitOpen = errors.New("revalidation circuit open")

// BreakerInvalidator stops calling next after repeated failures until the
// breaker's reset timeout passes, so a dead site does not slow every mutation.
type BreakerInvalidator struct {
	next    Invalidator
	breaker *guard.CircuitBreaker
	key     string
	logger  *slog.Logger
}

// NewBreakerInvalidator wraps next with breaker under key.
func NewBreakerInvalidator(next Invalidator, breaker *guard.CircuitBreaker, key string, logger *slog.Logger) *BreakerInvalidator {
	return &BreakerInvalidator{next: next, breaker: breaker, key: key, logger: logger}
}

// Invalidate forwards ev unless the circuit is open.
func (b *BreakerInvalidator) Invalidate(ctx context.Context, ev domain.RevalidationEvent) error {
	if res := b.breaker.Check(ctx, b.key); !res.Allowed {
		return fmt.Errorf("%w: %s", ErrCircuitOpen, res.Reason)
	}
	if err := b.next.Invalidate(ctx, ev); err != nil {
		b.breaker.RecordFailure(b.key)
		if b.breaker.State(b.key) == guard.CircuitOpen {
			b.logger.Warn("revalidation circuit opened", "target", b.key)
		}
		return err
	}
	b.breaker.RecordSuccess(b.key)
	return nil
}

// NewInvalidator picks the event bus when Kafka is on, then the webhook, then logging.
func NewInvalidator(cfg *Config, producer *KafkaProducer, logger *slog.Logger) Invalidator {
	switch {
	case producer != nil && producer.Enabled():
		logger.Info("revalidation via kafka", "topic", producer.Topic())
		return NewKafkaInvalidator(producer)
	case cfg.RevalidateURL != "":
		logger.Info("revalidation via webhook", "url", cfg.RevalidateURL)
		breaker := guard.NewCircuitBreaker(cfg.RevalidateFailures, cfg.RevalidateBreakerReset)
		return NewBreakerInvalidator(NewWebhookInvalidator(cfg.RevalidateURL, cfg.RevalidateSecret), breaker, cfg.RevalidateURL, logger)
	default:
		return NewLogInvalidator(logger)
	}
}
