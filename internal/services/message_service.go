package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/models"

	"gorm.io/gorm"
)

// AttachRequest carries an uploaded file for a placeholder message.
type AttachRequest struct {
	SenderID     string
	Body         io.Reader
	Size         int64
	FileName     string
	MimeType     string
	DurationHint *float64
}

type MessageService struct {
	conversations ConversationRepository
	messages      MessageRepository
	uploads       *UploadService
	fanout        *FanoutService
	notifier      *NotificationService
	events        EventPublisher
	runner        Runner
}

func NewMessageService(
	conversations ConversationRepository,
	messages MessageRepository,
	uploads *UploadService,
	fanout *FanoutService,
	notifier *NotificationService,
	events EventPublisher,
	runner Runner,
) *MessageService {
	return &MessageService{
		conversations: conversations,
		messages:      messages,
		uploads:       uploads,
		fanout:        fanout,
		notifier:      notifier,
		events:        events,
		runner:        runner,
	}
}

// SendText persists a text message directly as sent.
func (s *MessageService) SendText(ctx context.Context, req models.SendTextRequest) (*models.Message, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, fmt.Errorf("%w: text is required", ErrValidation)
	}
	if utf8.RuneCountInString(text) > models.MaxTextRunes {
		return nil, fmt.Errorf("%w: text exceeds %d characters", ErrValidation, models.MaxTextRunes)
	}

	conv, err := loadConversation(ctx, s.conversations, req.ConversationID)
	if err != nil {
		return nil, err
	}
	role, err := ValidatePermission(conv, req.SenderID, nil)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	msg := &models.Message{
		ConversationID: conv.ID,
		SenderID:       req.SenderID,
		MessageType:    models.MessageTypeText,
		Content:        models.MessageContent{Text: text},
		Status:         models.MessageStatusSent,
		ReplyToID:      s.resolveReply(ctx, conv.ID, req.ReplyToMessageID),
		Metadata:       models.MessageMetadata{SenderRole: role, CreatedTimestamp: now.UnixMilli()},
		CreatedAt:      now,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}

	s.afterSend(ctx, conv, msg)
	return msg, nil
}

// CreatePlaceholder records a pending media message whose attachment follows.
func (s *MessageService) CreatePlaceholder(ctx context.Context, req models.CreatePlaceholderRequest) (*models.Message, error) {
	if !req.MessageType.IsMedia() {
		return nil, fmt.Errorf("%w: %q is not a media message type", ErrValidation, req.MessageType)
	}
	caption := strings.TrimSpace(req.Caption)
	if utf8.RuneCountInString(caption) > models.MaxCaptionRunes {
		return nil, fmt.Errorf("%w: caption exceeds %d characters", ErrValidation, models.MaxCaptionRunes)
	}

	conv, err := loadConversation(ctx, s.conversations, req.ConversationID)
	if err != nil {
		return nil, err
	}
	role, err := ValidatePermission(conv, req.SenderID, nil)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	msg := &models.Message{
		ConversationID: conv.ID,
		SenderID:       req.SenderID,
		MessageType:    req.MessageType,
		Content:        models.MessageContent{Caption: caption},
		Status:         models.MessageStatusPending,
		ReplyToID:      s.resolveReply(ctx, conv.ID, req.ReplyToMessageID),
		Metadata:       models.MessageMetadata{SenderRole: role, CreatedTimestamp: now.UnixMilli()},
		CreatedAt:      now,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to save placeholder: %w", err)
	}

	slog.Debug("Placeholder created", "messageID", msg.ID, "conversationID", conv.ID, "type", msg.MessageType)
	return msg, nil
}

// AttachContent uploads the attachment of a pending or failed placeholder and
// marks it sent. On a blob store failure the message is marked failed, the
// conversation is left untouched and the returned error wraps ErrUpload; the
// returned message is still non-nil so callers can report its state.
func (s *MessageService) AttachContent(ctx context.Context, messageID string, req AttachRequest) (*models.Message, error) {
	msg, err := s.load(ctx, messageID)
	if err != nil {
		return nil, err
	}
	conv, err := loadConversation(ctx, s.conversations, msg.ConversationID)
	if err != nil {
		return nil, err
	}
	if _, err := ValidatePermission(conv, req.SenderID, nil); err != nil {
		return nil, err
	}
	if msg.SenderID != req.SenderID {
		return nil, fmt.Errorf("%w: only the sender may upload content", ErrPermission)
	}

	switch msg.Status {
	case models.MessageStatusPending:
	case models.MessageStatusFailed:
		ok, err := s.messages.Transition(ctx, msg.ID, models.MessageStatusPending)
		if err != nil {
			return nil, fmt.Errorf("failed to retry message: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: message %s is no longer failed", ErrInvalidTransition, msg.ID)
		}
		msg.Status = models.MessageStatusPending
		slog.Info("Retrying failed upload", "messageID", msg.ID)
	default:
		return nil, fmt.Errorf("%w: message %s is %s", ErrInvalidTransition, msg.ID, msg.Status)
	}

	content, err := s.uploads.Upload(ctx, UploadRequest{
		ConversationID: conv.ID,
		MessageID:      msg.ID,
		MessageType:    msg.MessageType,
		Body:           req.Body,
		Size:           req.Size,
		FileName:       req.FileName,
		MimeType:       req.MimeType,
		Caption:        msg.Content.Caption,
		DurationHint:   req.DurationHint,
	})
	if err != nil {
		if errors.Is(err, ErrUpload) {
			if _, terr := s.messages.Transition(ctx, msg.ID, models.MessageStatusFailed); terr != nil {
				slog.Error("Failed to mark message failed", "messageID", msg.ID, "error", terr)
			}
			msg.Status = models.MessageStatusFailed
		}
		return msg, err
	}

	ok, err := s.messages.CompleteUpload(ctx, msg.ID, content)
	if err != nil {
		s.uploads.Delete(ctx, content.ObjectKey)
		return nil, fmt.Errorf("failed to save attachment: %w", err)
	}
	if !ok {
		s.uploads.Delete(ctx, content.ObjectKey)
		return nil, fmt.Errorf("%w: message %s changed during upload", ErrInvalidTransition, msg.ID)
	}

	msg.Content = content
	msg.Status = models.MessageStatusSent
	slog.Info("Attachment uploaded", "messageID", msg.ID, "type", msg.MessageType, "size", content.SizeLabel)

	s.afterSend(ctx, conv, msg)
	return msg, nil
}

// MarkDelivered acknowledges receipt on behalf of the receiver. Acks for
// messages already delivered or read are no-ops.
func (s *MessageService) MarkDelivered(ctx context.Context, messageID, userID string) (*models.Message, error) {
	msg, err := s.load(ctx, messageID)
	if err != nil {
		return nil, err
	}
	conv, err := loadConversation(ctx, s.conversations, msg.ConversationID)
	if err != nil {
		return nil, err
	}
	if _, err := ValidatePermission(conv, userID, nil); err != nil {
		return nil, err
	}
	if msg.SenderID == userID {
		return nil, fmt.Errorf("%w: only the receiver may acknowledge delivery", ErrPermission)
	}

	switch msg.Status {
	case models.MessageStatusDelivered, models.MessageStatusRead:
		return msg, nil
	}

	ok, err := s.messages.Transition(ctx, msg.ID, models.MessageStatusDelivered)
	if err != nil {
		return nil, fmt.Errorf("failed to mark message delivered: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: message %s is %s", ErrInvalidTransition, msg.ID, msg.Status)
	}
	msg.Status = models.MessageStatusDelivered

	convSnapshot, msgSnapshot := *conv, *msg
	s.runner.Go("fanout:message_status", func(ctx context.Context) {
		s.fanout.StatusChanged(ctx, &convSnapshot, &msgSnapshot)
	})
	return msg, nil
}

// Delete hides a message for userID. When both participants deleted it the
// attachment is purged.
func (s *MessageService) Delete(ctx context.Context, messageID, userID string) (bool, error) {
	msg, err := s.load(ctx, messageID)
	if err != nil {
		return false, err
	}
	conv, err := loadConversation(ctx, s.conversations, msg.ConversationID)
	if err != nil {
		return false, err
	}
	if _, err := ValidatePermission(conv, userID, nil); err != nil {
		return false, err
	}

	fully, err := s.messages.MarkDeletedBy(ctx, msg.ID, conv.SlotOf(userID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, fmt.Errorf("%w: message %s", ErrNotFound, messageID)
		}
		return false, fmt.Errorf("failed to delete message: %w", err)
	}

	if fully && msg.Content.ObjectKey != "" {
		key := msg.Content.ObjectKey
		s.runner.Go("purge:"+msg.ID, func(ctx context.Context) {
			s.uploads.Delete(ctx, key)
		})
	}
	return fully, nil
}

// List returns one page of history for userID, oldest first.
func (s *MessageService) List(ctx context.Context, conversationID string, q models.MessageListQuery) ([]models.Message, error) {
	conv, err := loadConversation(ctx, s.conversations, conversationID)
	if err != nil {
		return nil, err
	}
	if _, err := ValidatePermission(conv, q.UserID, nil); err != nil {
		return nil, err
	}

	offset, limit := models.Pagination(q.Page, q.Limit)
	msgs, err := s.messages.ListForViewer(ctx, conv.ID, q.UserID, conv.SlotOf(q.UserID), offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return msgs, nil
}

// ReapPlaceholders deletes pending placeholders older than maxAge.
func (s *MessageService) ReapPlaceholders(ctx context.Context, maxAge time.Duration) (int64, error) {
	count, err := s.messages.DeleteStalePending(ctx, time.Now().UTC().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("failed to reap placeholders: %w", err)
	}
	if count > 0 {
		slog.Info("Reaped abandoned placeholders", "count", count)
	}
	return count, nil
}

// resolveReply keeps replyTo only when it names a message of the same conversation.
func (s *MessageService) resolveReply(ctx context.Context, conversationID string, replyTo *string) *string {
	if replyTo == nil || strings.TrimSpace(*replyTo) == "" {
		return nil
	}
	target, err := s.messages.FindByID(ctx, *replyTo)
	if err != nil || target.ConversationID != conversationID {
		slog.Debug("Dropping reply reference", "replyTo", *replyTo, "conversationID", conversationID)
		return nil
	}
	id := target.ID
	return &id
}

// afterSend runs once msg is durably sent: updates the conversation aggregate
// then schedules realtime fan-out, push and the outbound event.
func (s *MessageService) afterSend(ctx context.Context, conv *models.Conversation, msg *models.Message) {
	now := time.Now().UTC()
	receiver := conv.SlotOf(msg.SenderID).Opposite()
	last := models.LastMessage{
		Text:        msg.Preview(),
		SenderID:    msg.SenderID,
		Timestamp:   &now,
		MessageType: msg.MessageType,
	}

	if err := s.conversations.ApplyNewMessage(ctx, conv.ID, receiver, last); err != nil {
		// the message is durable; the aggregate is repaired by the next message or markRead
		slog.Error("Conversation aggregate update failed",
			"conversationID", conv.ID,
			"messageID", msg.ID,
			"error", err)
	} else {
		conv.LastMessage = last
	}

	convSnapshot, msgSnapshot := *conv, *msg
	event := models.MessageEvent{
		Type:           models.MessageEventSent,
		MessageID:      msg.ID,
		ConversationID: conv.ID,
		SenderID:       msg.SenderID,
		ReceiverID:     conv.OtherParticipant(msg.SenderID),
		ProductID:      conv.ProductID,
		MessageType:    msg.MessageType,
		SentAt:         now,
	}

	s.runner.Go("fanout:send_message", func(ctx context.Context) {
		s.fanout.MessageSent(ctx, &convSnapshot, &msgSnapshot)
	})
	s.runner.Go("push:new_message", func(ctx context.Context) {
		s.notifier.NotifyNewMessage(ctx, &convSnapshot, &msgSnapshot)
	})
	s.runner.Go("event:message_sent", func(ctx context.Context) {
		if err := s.events.PublishMessageEvent(ctx, event); err != nil {
			slog.Warn("Failed to publish message event", "messageID", event.MessageID, "error", err)
		}
	})
}

func (s *MessageService) load(ctx context.Context, id string) (*models.Message, error) {
	msg, err := s.messages.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: message %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to load message: %w", err)
	}
	return msg, nil
}
