package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/models"

	"gorm.io/gorm"
)

type ConversationService struct {
	conversations ConversationRepository
	messages      MessageRepository
	users         UserRepository
	uploads       *UploadService
	fanout        *FanoutService
	runner        Runner
}

func NewConversationService(
	conversations ConversationRepository,
	messages MessageRepository,
	users UserRepository,
	uploads *UploadService,
	fanout *FanoutService,
	runner Runner,
) *ConversationService {
	return &ConversationService{
		conversations: conversations,
		messages:      messages,
		users:         users,
		uploads:       uploads,
		fanout:        fanout,
		runner:        runner,
	}
}

// GetOrCreate returns the conversation for (buyer, seller, product), creating
// it on first contact. The bool is true when a new row was inserted. A
// conversation both sides deleted is revived rather than duplicated.
func (s *ConversationService) GetOrCreate(ctx context.Context, req models.CreateConversationRequest) (*models.Conversation, bool, error) {
	buyerID := strings.TrimSpace(req.BuyerID)
	sellerID := strings.TrimSpace(req.SellerID)
	productID := strings.TrimSpace(req.ProductID)

	if buyerID == "" || sellerID == "" {
		return nil, false, fmt.Errorf("%w: buyerId and sellerId are required", ErrValidation)
	}
	if buyerID == sellerID {
		return nil, false, fmt.Errorf("%w: buyer and seller must be different users", ErrValidation)
	}

	users, err := s.users.FindByIDs(ctx, []string{buyerID, sellerID})
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up users: %w", err)
	}
	known := make(map[string]bool, len(users))
	for _, u := range users {
		known[u.ID] = true
	}
	for _, id := range []string{buyerID, sellerID} {
		if !known[id] {
			return nil, false, fmt.Errorf("%w: unknown user %s", ErrValidation, id)
		}
	}

	conv, created, err := s.conversations.FindOrCreate(ctx, buyerID, sellerID, productID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to find or create conversation: %w", err)
	}

	if !created && conv.IsDeleted {
		if err := s.conversations.Revive(ctx, conv.ID); err != nil {
			return nil, false, fmt.Errorf("failed to revive conversation: %w", err)
		}
		conv.DeletedByBuyer, conv.DeletedBySeller, conv.IsDeleted = false, false, false
		slog.Info("Conversation revived", "conversationID", conv.ID)
	}

	if created {
		slog.Info("Conversation created", "conversationID", conv.ID, "buyerID", buyerID, "sellerID", sellerID, "productID", productID)
	}
	return conv, created, nil
}

// ListForUser lists the conversations where userID holds role, hiding the
// ones userID deleted, most recent first.
func (s *ConversationService) ListForUser(ctx context.Context, q models.ConversationListQuery) ([]models.ConversationSummary, error) {
	role, ok := models.ParseListingRole(q.Role)
	if !ok {
		return nil, fmt.Errorf("%w: role must be buyer or seller", ErrValidation)
	}
	if strings.TrimSpace(q.UserID) == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrValidation)
	}

	offset, limit := models.Pagination(q.Page, q.Limit)
	convs, err := s.conversations.ListForUser(ctx, q.UserID, role, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	otherIDs := make([]string, 0, len(convs))
	for i := range convs {
		otherIDs = append(otherIDs, convs[i].OtherParticipant(q.UserID))
	}
	users, err := s.users.FindByIDs(ctx, otherIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to look up participants: %w", err)
	}
	names := make(map[string]string, len(users))
	for i := range users {
		names[users[i].ID] = users[i].DisplayName()
	}

	summaries := make([]models.ConversationSummary, 0, len(convs))
	for i := range convs {
		c := &convs[i]
		otherID := c.OtherParticipant(q.UserID)
		name, found := names[otherID]
		if !found {
			name = (&models.User{}).DisplayName()
		}

		summary := models.ConversationSummary{
			ID:              c.ID,
			ProductID:       c.ProductID,
			OtherUser:       models.ParticipantSummary{ID: otherID, DisplayName: name},
			UnreadCount:     c.UnreadFor(c.SlotOf(q.UserID)),
			CurrentUserRole: RoleOf(c, q.UserID),
			OtherUserRole:   RoleOf(c, otherID),
			Status:          c.Status,
			UpdatedAt:       c.UpdatedAt,
		}
		if c.LastMessage.Timestamp != nil {
			last := c.LastMessage
			summary.LastMessage = &last
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// MarkRead zeroes userID's unread counter and moves the messages userID
// received to read. Returns how many messages were marked.
func (s *ConversationService) MarkRead(ctx context.Context, conversationID, userID string) (int64, error) {
	conv, err := s.load(ctx, conversationID)
	if err != nil {
		return 0, err
	}
	if _, err := ValidatePermission(conv, userID, nil); err != nil {
		return 0, err
	}

	if err := s.conversations.ResetUnread(ctx, conv.ID, conv.SlotOf(userID)); err != nil {
		return 0, fmt.Errorf("failed to reset unread count: %w", err)
	}
	count, err := s.messages.MarkConversationRead(ctx, conv.ID, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark messages read: %w", err)
	}

	if count > 0 {
		snapshot := *conv
		s.runner.Go("fanout:messages_read", func(ctx context.Context) {
			s.fanout.MessagesRead(ctx, &snapshot, userID, count)
		})
	}
	return count, nil
}

// Delete hides the conversation and its messages for userID. Once both
// participants deleted it the conversation is flagged deleted and attachments
// nobody can see anymore are purged.
func (s *ConversationService) Delete(ctx context.Context, conversationID, userID string) (bool, error) {
	conv, err := s.load(ctx, conversationID)
	if err != nil {
		return false, err
	}
	if _, err := ValidatePermission(conv, userID, nil); err != nil {
		return false, err
	}
	slot := conv.SlotOf(userID)

	if err := s.messages.MarkConversationDeletedBy(ctx, conv.ID, slot); err != nil {
		return false, fmt.Errorf("failed to delete messages: %w", err)
	}
	fully, err := s.conversations.MarkDeletedBy(ctx, conv.ID, slot)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, fmt.Errorf("%w: conversation %s", ErrNotFound, conversationID)
		}
		return false, fmt.Errorf("failed to delete conversation: %w", err)
	}

	keys, err := s.messages.DeletedAttachmentKeys(ctx, conv.ID)
	if err != nil {
		slog.Error("Failed to list attachments to purge", "conversationID", conv.ID, "error", err)
	} else if len(keys) > 0 {
		s.runner.Go("purge:"+conv.ID, func(ctx context.Context) {
			for _, key := range keys {
				s.uploads.Delete(ctx, key)
			}
			slog.Info("Purged conversation attachments", "conversationID", conv.ID, "count", len(keys))
		})
	}

	if fully {
		snapshot := *conv
		s.runner.Go("fanout:conversation_deleted", func(ctx context.Context) {
			s.fanout.ConversationDeleted(ctx, &snapshot)
		})
	}

	slog.Info("Conversation deleted for user", "conversationID", conv.ID, "userID", userID, "fullyDeleted", fully)
	return fully, nil
}

func (s *ConversationService) load(ctx context.Context, id string) (*models.Conversation, error) {
	return loadConversation(ctx, s.conversations, id)
}

func loadConversation(ctx context.Context, repo ConversationRepository, id string) (*models.Conversation, error) {
	conv, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: conversation %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	return conv, nil
}
