package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ftpledger/ledger-api/internal/platform/logger"
	"github.com/redis/go-redis/v9"
)

// LogHandler writes every event to the audit log.
type LogHandler struct {
	logger *slog.Logger
}

// NewLogHandler creates a LogHandler.
func NewLogHandler(l *slog.Logger) *LogHandler {
	if l == nil {
		l = slog.Default()
	}
	return &LogHandler{logger: l.With(slog.String("component", "audit"))}
}

// HandleEvent implements EventHandler.
func (h *LogHandler) HandleEvent(ctx context.Context, event *Event) error {
	logger.FromContextOrDefault(ctx, h.logger).Info("event",
		slog.String("event_id", event.ID.String()),
		slog.String("event_type", event.Type),
		slog.String("payload", string(event.Payload)))
	return nil
}

// RedisStreamPublisher appends events to a Redis stream so other services
// can consume them with XREAD or consumer groups.
type RedisStreamPublisher struct {
	client redis.Cmdable
	stream string
	logger *slog.Logger
}

// NewRedisStreamPublisher creates a publisher writing to stream.
func NewRedisStreamPublisher(client redis.Cmdable, stream string, l *slog.Logger) *RedisStreamPublisher {
	if l == nil {
		l = slog.Default()
	}
	return &RedisStreamPublisher{
		client: client,
		stream: stream,
		logger: l.With(slog.String("component", "redis_stream_publisher")),
	}
}

// HandleEvent implements EventHandler. The whole envelope is stored under
// the "event" field, with "type" duplicated for cheap filtering.
func (p *RedisStreamPublisher) HandleEvent(ctx context.Context, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]any{
			"type":  event.Type,
			"event": string(data),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to publish event to stream %s: %w", p.stream, err)
	}

	logger.FromContextOrDefault(ctx, p.logger).Debug("event published",
		slog.String("stream", p.stream),
		slog.String("stream_id", id),
		slog.String("event_type", event.Type))
	return nil
}
