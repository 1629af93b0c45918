package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/attaboy/siteadmin/internal/domain"
	"github.com/attaboy/siteadmin/internal/guard"
	"github.com/attaboy/siteadmin/internal/infra"
	"github.com/segmentio/kafka-go"
)

const (
	maxForwardAttempts = 5
	// Redelivered events within this many recent IDs are dropped.
	dedupeWindow = 4096
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("revalidate consumer failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !cfg.KafkaEnabled {
		return errors.New("KAFKA_ENABLED must be true for the revalidate consumer")
	}
	if cfg.RevalidateURL == "" {
		return errors.New("REVALIDATE_URL is required")
	}

	consumer := infra.NewKafkaConsumer(cfg.KafkaBrokers, cfg.KafkaRevalidateTopic, cfg.KafkaConsumerGroup, cfg.KafkaEnabled, logger)
	defer consumer.Close()
	webhook := infra.NewWebhookInvalidator(cfg.RevalidateURL, cfg.RevalidateSecret)
	seen := guard.NewIdempotencyGuard(dedupeWindow)

	logger.Info("revalidate-consumer starting", "topic", cfg.KafkaRevalidateTopic, "group", cfg.KafkaConsumerGroup)

	for {
		msg, err := consumer.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("revalidate-consumer shutting down")
				return nil
			}
			return fmt.Errorf("fetch: %w", err)
		}

		forward(ctx, webhook, seen, msg, logger)

		if err := consumer.Commit(ctx, msg); err != nil && ctx.Err() == nil {
			logger.Error("commit failed", "offset", msg.Offset, "error", err)
		}
	}
}

// forward delivers one event to the site, retrying with backoff. Undeliverable
// events are logged and skipped so one bad message cannot stall the partition.
func forward(ctx context.Context, webhook infra.Invalidator, seen *guard.IdempotencyGuard, msg kafka.Message, logger *slog.Logger) {
	var ev domain.RevalidationEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil || ev.Tag == "" {
		logger.Warn("skipping malformed event", "partition", msg.Partition, "offset", msg.Offset, "error", err)
		return
	}
	key := ev.EventID.String()
	if res := seen.Check(ctx, key); !res.Allowed {
		logger.Info("skipping duplicate event", "event_id", ev.EventID, "offset", msg.Offset)
		return
	}

	backoff := 500 * time.Millisecond
	for attempt := 1; attempt <= maxForwardAttempts; attempt++ {
		err := webhook.Invalidate(ctx, ev)
		if err == nil {
			logger.Info("revalidated", "event_id", ev.EventID, "tag", ev.Tag, "reason", ev.Reason)
			return
		}
		logger.Warn("revalidate attempt failed", "event_id", ev.EventID, "attempt", attempt, "error", err)
		if attempt == maxForwardAttempts {
			break
		}

		select {
		case <-ctx.Done():
			// Not delivered and not committed; let the redelivery through.
			seen.Remove(key)
			return
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	logger.Error("giving up on event", "event_id", ev.EventID, "tag", ev.Tag)
}
