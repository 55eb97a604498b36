package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Event types announced by the orchestrator.
const (
	EventQueued          = "queued"
	EventSucceeded       = "submission_successful"
	EventFailed          = "submission_failed"
	EventDeadlineWarning = "deadline_warning"
)

// Sink is the capability the orchestrator uses to announce submission
// events. Delivery is best-effort: a sink error never blocks or reverts
// the state transition that triggered it. Fan-out to operator channels
// (mail, chat) happens downstream of a sink.
type Sink interface {
	Notify(ctx context.Context, eventType string, payload map[string]string) error
}

// LogSink writes events to the structured log, the default for local runs.
type LogSink struct {
	logger *zap.SugaredLogger
}

func NewLogSink(logger *zap.SugaredLogger) *LogSink {
	return &LogSink{logger: logger.Named("notify")}
}

func (s *LogSink) Notify(_ context.Context, eventType string, payload map[string]string) error {
	fields := make([]any, 0, 2*len(payload)+2)
	fields = append(fields, "event", eventType)
	for k, v := range payload {
		fields = append(fields, k, v)
	}
	s.logger.Infow("submission event", fields...)
	return nil
}

// RedisSink publishes events on a Redis channel for downstream notifiers
// to fan out.
type RedisSink struct {
	client  *redis.Client
	channel string
}

func NewRedisSink(client *redis.Client, channel string) *RedisSink {
	if channel == "" {
		channel = "submissions:events"
	}
	return &RedisSink{client: client, channel: channel}
}

type redisEvent struct {
	Event   string            `json:"event"`
	Payload map[string]string `json:"payload"`
	At      time.Time         `json:"at"`
}

func (s *RedisSink) Notify(ctx context.Context, eventType string, payload map[string]string) error {
	body, err := json.Marshal(redisEvent{Event: eventType, Payload: payload, At: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := s.client.Publish(ctx, s.channel, body).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Multi sends to every sink; the first error is returned after all sinks
// have been attempted.
type Multi []Sink

func (m Multi) Notify(ctx context.Context, eventType string, payload map[string]string) error {
	var firstErr error
	for _, sink := range m {
		if err := sink.Notify(ctx, eventType, payload); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
