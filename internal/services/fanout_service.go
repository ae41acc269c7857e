package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/models"
)

// FanoutService pushes conversation events to both participants' realtime
// channels. Delivery is best effort; failures are logged and never returned.
type FanoutService struct {
	publisher Publisher
}

func NewFanoutService(publisher Publisher) *FanoutService {
	return &FanoutService{publisher: publisher}
}

func (f *FanoutService) MessageSent(ctx context.Context, conv *models.Conversation, msg *models.Message) {
	f.broadcast(ctx, conv, models.EventSendMessage, models.NewSendMessageEvent(conv, msg))
}

func (f *FanoutService) StatusChanged(ctx context.Context, conv *models.Conversation, msg *models.Message) {
	f.broadcast(ctx, conv, models.EventMessageStatus, models.MessageStatusEvent{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		Status:         msg.Status,
		Timestamp:      time.Now().UnixMilli(),
	})
}

func (f *FanoutService) MessagesRead(ctx context.Context, conv *models.Conversation, readerID string, count int64) {
	f.broadcast(ctx, conv, models.EventMessagesRead, models.MessagesReadEvent{
		ConversationID: conv.ID,
		ReaderID:       readerID,
		Count:          count,
		Timestamp:      time.Now().UnixMilli(),
	})
}

func (f *FanoutService) ConversationDeleted(ctx context.Context, conv *models.Conversation) {
	f.broadcast(ctx, conv, models.EventConversationGone, models.ConversationDeletedEvent{
		ConversationID: conv.ID,
		Timestamp:      time.Now().UnixMilli(),
	})
}

func (f *FanoutService) broadcast(ctx context.Context, conv *models.Conversation, event string, payload interface{}) {
	for _, userID := range conv.Participants() {
		if userID == "" {
			continue
		}
		if err := f.publisher.Publish(ctx, userID, event, payload); err != nil {
			slog.Warn("Realtime fan-out failed",
				"event", event,
				"conversationID", conv.ID,
				"userID", userID,
				"error", err)
		}
	}
}
