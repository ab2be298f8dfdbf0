package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/tournament-bracket/models"
	"github.com/redis/go-redis/v9"
)

const (
	redisChannelPrefix = "bracket:events:"
	redisPingTimeout   = 2 * time.Second
)

// RedisChannel is the pub/sub channel that carries a tournament's events.
func RedisChannel(tournamentID string) string {
	return redisChannelPrefix + tournamentID
}

// RedisPublisher publishes events as JSON on a per-tournament channel so other
// instances and services can follow the bracket.
type RedisPublisher struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedisPublisher(client *redis.Client, logger *slog.Logger) *RedisPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisPublisher{client: client, logger: logger}
}

// ConnectRedis parses a redis:// or rediss:// URL and checks the connection.
func ConnectRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func (p *RedisPublisher) Publish(ctx context.Context, events ...models.Event) {
	if len(events) == 0 {
		return
	}
	pipe := p.client.Pipeline()
	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			p.logger.Error("failed to encode event", slog.String("event_id", e.ID), slog.Any("error", err))
			continue
		}
		pipe.Publish(ctx, RedisChannel(e.TournamentID), payload)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		p.logger.Error("failed to publish events to redis",
			slog.String("tournament_id", events[0].TournamentID),
			slog.Int("events", len(events)),
			slog.Any("error", err))
	}
}
