package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/database"

	"github.com/redis/go-redis/v9"
)

const (
	userChannelPrefix = "user:"
	// UserChannelPattern matches every per-user realtime channel.
	UserChannelPattern = userChannelPrefix + "*"
)

// UserChannel is the pub/sub channel carrying userID's realtime events.
func UserChannel(userID string) string {
	return userChannelPrefix + userID
}

// UserIDFromChannel is the inverse of UserChannel.
func UserIDFromChannel(channel string) (string, bool) {
	if !strings.HasPrefix(channel, userChannelPrefix) {
		return "", false
	}
	id := strings.TrimPrefix(channel, userChannelPrefix)
	return id, id != ""
}

// Envelope is the wire shape of every realtime event.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type RedisService struct {
	client *database.RedisClient
}

func NewRedisService(client *database.RedisClient) *RedisService {
	return &RedisService{
		client: client,
	}
}

// =============================================================================
// PubSub Operations
// =============================================================================

// Publish sends event to the realtime channel of user id channel.
func (r *RedisService) Publish(ctx context.Context, channel, event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}
	envelope, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	if err := r.client.GetClient().Publish(ctx, UserChannel(channel), envelope).Err(); err != nil {
		slog.Error("Failed to publish realtime event", "userID", channel, "event", event, "error", err)
		return err
	}

	slog.Debug("Published realtime event", "userID", channel, "event", event)
	return nil
}

func (r *RedisService) PSubscribe(ctx context.Context, patterns ...string) *redis.PubSub {
	pubsub := r.client.GetClient().PSubscribe(ctx, patterns...)
	slog.Debug("Pattern subscribed to channels", "patterns", patterns)
	return pubsub
}

// =============================================================================
// Rate Limiting
// =============================================================================

// CheckRateLimit records a hit on key and reports whether the caller is still
// under limit within the sliding window.
func (r *RedisService) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now()
	windowStart := now.Add(-window).UnixNano()

	pipe := r.client.GetClient().Pipeline()

	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", windowStart))
	card := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: now.UnixNano()})
	pipe.Expire(ctx, key, window)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}

	return card.Val() < int64(limit), nil
}
