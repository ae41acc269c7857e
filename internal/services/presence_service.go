package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/database"
)

// PresenceService tracks which conversation screens a user has open. Every
// (user, conversation) pair owns a Redis set of the connection ids that have it
// open, on any instance. The set expires unless refreshed, so a crashed
// instance cannot pin a user as present forever.
type PresenceService struct {
	client *database.RedisClient
	ttl    time.Duration
}

func NewPresenceService(client *database.RedisClient, ttl time.Duration) *PresenceService {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &PresenceService{client: client, ttl: ttl}
}

func presenceKey(userID, conversationID string) string {
	return fmt.Sprintf("presence:%s:%s", userID, conversationID)
}

// Enter marks conversationID open on connection connID. Calling it again acts
// as a heartbeat.
func (p *PresenceService) Enter(ctx context.Context, userID, connID, conversationID string) error {
	key := presenceKey(userID, conversationID)
	pipe := p.client.GetClient().TxPipeline()
	pipe.SAdd(ctx, key, connID)
	pipe.Expire(ctx, key, p.ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		slog.Error("Failed to enter conversation", "userID", userID, "conversationID", conversationID, "error", err)
		return err
	}
	return nil
}

// Leave drops connID only; other connections of the user keep the
// conversation open.
func (p *PresenceService) Leave(ctx context.Context, userID, connID, conversationID string) error {
	return p.client.GetClient().SRem(ctx, presenceKey(userID, conversationID), connID).Err()
}

func (p *PresenceService) IsActive(ctx context.Context, userID, conversationID string) (bool, error) {
	n, err := p.client.GetClient().SCard(ctx, presenceKey(userID, conversationID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Refresh extends the TTL of every conversation connID has open.
func (p *PresenceService) Refresh(ctx context.Context, userID, connID string, conversationIDs []string) error {
	if len(conversationIDs) == 0 {
		return nil
	}
	pipe := p.client.GetClient().Pipeline()
	for _, convID := range conversationIDs {
		pipe.Expire(ctx, presenceKey(userID, convID), p.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Debug("Failed to refresh presence", "userID", userID, "connID", connID, "error", err)
		return err
	}
	return nil
}
