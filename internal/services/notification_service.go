package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize/english"

	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/models"
)

const (
	pushTypeNewMessage     = "new_message"
	pushTypeUnreadReminder = "unread_reminder"
	pushSound              = "default"
)

// NotificationService decides whether a receiver needs a push and sends it to
// every active device they registered.
type NotificationService struct {
	devices  DeviceRepository
	users    UserRepository
	presence Presence
	gateway  PushGateway
}

func NewNotificationService(devices DeviceRepository, users UserRepository, presence Presence, gateway PushGateway) *NotificationService {
	return &NotificationService{
		devices:  devices,
		users:    users,
		presence: presence,
		gateway:  gateway,
	}
}

// NotifyNewMessage pushes msg to the other participant unless they are looking
// at the conversation right now. Errors are logged only.
func (n *NotificationService) NotifyNewMessage(ctx context.Context, conv *models.Conversation, msg *models.Message) {
	receiverID := conv.OtherParticipant(msg.SenderID)
	if receiverID == "" {
		return
	}

	active, err := n.presence.IsActive(ctx, receiverID, conv.ID)
	if err != nil {
		// unknown presence: prefer a duplicate push over a missed one
		slog.Warn("Presence lookup failed", "userID", receiverID, "conversationID", conv.ID, "error", err)
	}
	if active {
		slog.Debug("Receiver in conversation, push suppressed", "userID", receiverID, "conversationID", conv.ID)
		return
	}

	title := n.displayName(ctx, msg.SenderID)
	data := map[string]string{
		"type":           pushTypeNewMessage,
		"conversationId": conv.ID,
		"senderId":       msg.SenderID,
		"messageType":    string(msg.MessageType),
	}
	if _, err := n.deliver(ctx, receiverID, title, msg.Preview(), data); err != nil {
		slog.Error("Push notification failed", "userID", receiverID, "messageID", msg.ID, "error", err)
	}
}

// SendReminder nudges receiverID about unread messages from otherID.
func (n *NotificationService) SendReminder(ctx context.Context, conv *models.Conversation, receiverID, otherID string, unread, hours int) error {
	name := n.displayName(ctx, otherID)
	body := fmt.Sprintf("You have %s from %s waiting for %s",
		english.Plural(unread, "unread message", "unread messages"),
		name,
		english.Plural(hours, "hour", "hours"))

	data := map[string]string{
		"type":           pushTypeUnreadReminder,
		"conversationId": conv.ID,
		"senderId":       otherID,
		"hours":          fmt.Sprintf("%d", hours),
	}
	_, err := n.deliver(ctx, receiverID, name, body, data)
	return err
}

// deliver sends to every active device of userID, deactivates tokens the
// gateway rejects and returns how many pushes were accepted.
func (n *NotificationService) deliver(ctx context.Context, userID, title, body string, data map[string]string) (int, error) {
	devices, err := n.devices.ListActive(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to list devices: %w", err)
	}
	if len(devices) == 0 {
		slog.Debug("No active devices", "userID", userID)
		return 0, nil
	}

	msgs := make([]models.PushNotification, 0, len(devices))
	for _, d := range devices {
		msgs = append(msgs, models.PushNotification{
			To:    d.PushToken,
			Title: title,
			Body:  body,
			Data:  data,
			Sound: pushSound,
		})
	}

	results, sendErr := n.gateway.Send(ctx, msgs)

	accepted := 0
	var invalid []string
	for _, r := range results {
		if r.OK {
			accepted++
		}
		if r.InvalidToken {
			invalid = append(invalid, r.Token)
		}
	}
	if len(invalid) > 0 {
		if count, err := n.devices.Deactivate(ctx, invalid); err != nil {
			slog.Error("Failed to deactivate push tokens", "userID", userID, "error", err)
		} else {
			slog.Info("Deactivated invalid push tokens", "userID", userID, "count", count)
		}
	}

	if sendErr != nil {
		return accepted, fmt.Errorf("push gateway: %w", sendErr)
	}
	return accepted, nil
}

func (n *NotificationService) displayName(ctx context.Context, userID string) string {
	user, err := n.users.FindByID(ctx, userID)
	if err != nil {
		return (&models.User{}).DisplayName()
	}
	return user.DisplayName()
}
