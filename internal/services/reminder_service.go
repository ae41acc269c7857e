package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/models"
)

type ReminderReport struct {
	Checked       int `json:"checked"`
	RemindersSent int `json:"remindersSent"`
}

// DueThreshold maps hours since the last message to the latest reminder
// threshold passed: 1, then every multiple of 24. Zero means none yet.
func DueThreshold(hours int) int {
	switch {
	case hours < 1:
		return 0
	case hours < 24:
		return 1
	default:
		return hours / 24 * 24
	}
}

type ReminderService struct {
	conversations ConversationRepository
	notifier      *NotificationService
	batch         int
	now           func() time.Time
}

func NewReminderService(conversations ConversationRepository, notifier *NotificationService, batch int) *ReminderService {
	if batch <= 0 {
		batch = 500
	}
	return &ReminderService{
		conversations: conversations,
		notifier:      notifier,
		batch:         batch,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// CheckUnresolved runs one reminder pass over every candidate, a page of batch
// rows at a time. Each threshold is claimed on the row before anything is
// sent, so a conversation gets at most one reminder per threshold however
// often the pass runs.
func (s *ReminderService) CheckUnresolved(ctx context.Context) (ReminderReport, error) {
	var report ReminderReport
	now := s.now()
	cutoff := now.Add(-time.Hour)

	var after *models.ReminderCursor
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		candidates, err := s.conversations.ListReminderCandidates(ctx, cutoff, after, s.batch)
		if err != nil {
			return report, fmt.Errorf("failed to list reminder candidates: %w", err)
		}

		for i := range candidates {
			report.Checked++
			report.RemindersSent += s.remind(ctx, now, &candidates[i])
		}

		if len(candidates) < s.batch {
			break
		}
		last := candidates[len(candidates)-1]
		if last.LastMessage.Timestamp == nil {
			break
		}
		after = &models.ReminderCursor{Timestamp: *last.LastMessage.Timestamp, ID: last.ID}
	}

	slog.Info("Unresolved conversation check finished", "checked", report.Checked, "remindersSent", report.RemindersSent)
	return report, nil
}

// remind claims the due threshold of conv and pushes to each participant with
// unread messages. Returns how many reminders went out.
func (s *ReminderService) remind(ctx context.Context, now time.Time, conv *models.Conversation) int {
	if conv.LastMessage.Timestamp == nil {
		return 0
	}

	hours := int(now.Sub(*conv.LastMessage.Timestamp) / time.Hour)
	threshold := DueThreshold(hours)
	if threshold <= conv.ReminderStage {
		return 0
	}

	claimed, err := s.conversations.ClaimReminderStage(ctx, conv.ID, conv.ReminderStage, threshold)
	if err != nil {
		slog.Error("Failed to claim reminder stage", "conversationID", conv.ID, "error", err)
		return 0
	}
	if !claimed {
		return 0
	}

	sent := 0
	for _, slot := range []models.Role{models.RoleBuyer, models.RoleSeller} {
		unread := conv.UnreadFor(slot)
		if unread == 0 {
			continue
		}
		receiverID, otherID := conv.BuyerID, conv.SellerID
		if slot == models.RoleSeller {
			receiverID, otherID = conv.SellerID, conv.BuyerID
		}

		if err := s.notifier.SendReminder(ctx, conv, receiverID, otherID, unread, hours); err != nil {
			slog.Error("Failed to send reminder", "conversationID", conv.ID, "userID", receiverID, "error", err)
			continue
		}
		sent++
	}
	return sent
}
