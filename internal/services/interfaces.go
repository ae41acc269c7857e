package services

import (
	"context"
	"io"
	"time"

	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/adapters/storage"
	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/models"
)

// Implemented by repositories/postgres.ConversationRepository.
type ConversationRepository interface {
	FindOrCreate(ctx context.Context, buyerID, sellerID, productID string) (*models.Conversation, bool, error)
	FindByID(ctx context.Context, id string) (*models.Conversation, error)
	ListForUser(ctx context.Context, userID string, role models.Role, offset, limit int) ([]models.Conversation, error)
	ApplyNewMessage(ctx context.Context, conversationID string, receiver models.Role, last models.LastMessage) error
	ResetUnread(ctx context.Context, conversationID string, slot models.Role) error
	MarkDeletedBy(ctx context.Context, conversationID string, slot models.Role) (bool, error)
	Revive(ctx context.Context, conversationID string) error
	ListReminderCandidates(ctx context.Context, cutoff time.Time, after *models.ReminderCursor, limit int) ([]models.Conversation, error)
	ClaimReminderStage(ctx context.Context, conversationID string, current, next int) (bool, error)
}

// Implemented by repositories/postgres.MessageRepository.
type MessageRepository interface {
	Create(ctx context.Context, msg *models.Message) error
	FindByID(ctx context.Context, id string) (*models.Message, error)
	ListForViewer(ctx context.Context, conversationID, viewerID string, slot models.Role, offset, limit int) ([]models.Message, error)
	Transition(ctx context.Context, id string, to models.MessageStatus) (bool, error)
	CompleteUpload(ctx context.Context, id string, content models.MessageContent) (bool, error)
	MarkConversationRead(ctx context.Context, conversationID, readerID string) (int64, error)
	MarkDeletedBy(ctx context.Context, id string, slot models.Role) (bool, error)
	MarkConversationDeletedBy(ctx context.Context, conversationID string, slot models.Role) error
	DeletedAttachmentKeys(ctx context.Context, conversationID string) ([]string, error)
	DeleteStalePending(ctx context.Context, before time.Time) (int64, error)
}

type UserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.User, error)
}

type DeviceRepository interface {
	Upsert(ctx context.Context, device *models.UserDevice) error
	ListActive(ctx context.Context, userID string) ([]models.UserDevice, error)
	Deactivate(ctx context.Context, tokens []string) (int64, error)
}

// BlobStore is the attachment store; adapters/storage.MinIOClient in production.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string, metadata map[string]string) (storage.StoredObject, error)
	Delete(ctx context.Context, key string) error
}

// PushGateway returns one result per notification, in order.
type PushGateway interface {
	Send(ctx context.Context, msgs []models.PushNotification) ([]models.PushResult, error)
}

type EventPublisher interface {
	PublishMessageEvent(ctx context.Context, event models.MessageEvent) error
}

// Publisher is the realtime transport: one channel per user id.
type Publisher interface {
	Publish(ctx context.Context, channel, event string, payload interface{}) error
}

// Presence answers whether a user currently has a conversation open.
type Presence interface {
	IsActive(ctx context.Context, userID, conversationID string) (bool, error)
}

// Runner executes detached side effects.
type Runner interface {
	Go(name string, task func(ctx context.Context))
}
