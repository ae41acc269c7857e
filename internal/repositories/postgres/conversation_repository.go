package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db}
}

func unreadColumn(slot models.Role) (string, error) {
	switch slot {
	case models.RoleBuyer:
		return "buyer_unread", nil
	case models.RoleSeller:
		return "seller_unread", nil
	}
	return "", fmt.Errorf("no unread column for role %q", slot)
}

func deletedColumns(slot models.Role) (own, other string, err error) {
	switch slot {
	case models.RoleBuyer:
		return "deleted_by_buyer", "deleted_by_seller", nil
	case models.RoleSeller:
		return "deleted_by_seller", "deleted_by_buyer", nil
	}
	return "", "", fmt.Errorf("no deleted column for role %q", slot)
}

// FindOrCreate inserts the (buyer, seller, product) row unless it already exists
// and returns the stored row. Concurrent first contacts converge on one row via
// the unique key.
func (r *ConversationRepository) FindOrCreate(ctx context.Context, buyerID, sellerID, productID string) (*models.Conversation, bool, error) {
	conv := &models.Conversation{
		BuyerID:       buyerID,
		SellerID:      sellerID,
		ProductID:     productID,
		Status:        models.ConversationStatusActive,
		RolesAssigned: true,
	}
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(conv)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 1 {
		return conv, true, nil
	}

	var existing models.Conversation
	err := r.db.WithContext(ctx).
		Where("buyer_id = ? AND seller_id = ? AND product_id = ?", buyerID, sellerID, productID).
		First(&existing).Error
	if err != nil {
		return nil, false, err
	}
	return &existing, false, nil
}

func (r *ConversationRepository) FindByID(ctx context.Context, id string) (*models.Conversation, error) {
	var conv models.Conversation
	if err := r.db.WithContext(ctx).First(&conv, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListForUser returns the conversations where userID holds role and has not
// hidden them, most recently active first.
func (r *ConversationRepository) ListForUser(ctx context.Context, userID string, role models.Role, offset, limit int) ([]models.Conversation, error) {
	var column string
	switch role {
	case models.RoleBuyer:
		column = "buyer_id"
	case models.RoleSeller:
		column = "seller_id"
	default:
		return nil, fmt.Errorf("cannot list conversations for role %q", role)
	}
	own, _, err := deletedColumns(role)
	if err != nil {
		return nil, err
	}

	var convs []models.Conversation
	err = r.db.WithContext(ctx).
		Where(column+" = ? AND "+own+" = ?", userID, false).
		Order("updated_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&convs).Error
	return convs, err
}

// ApplyNewMessage records last as the conversation preview and increments the
// receiver's unread counter in a single statement. A new message resurfaces the
// conversation for a participant who hid it and restarts the reminder ladder.
func (r *ConversationRepository) ApplyNewMessage(ctx context.Context, conversationID string, receiver models.Role, last models.LastMessage) error {
	unread, err := unreadColumn(receiver)
	if err != nil {
		return err
	}

	res := r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		Updates(map[string]interface{}{
			"last_message_text":         last.Text,
			"last_message_sender_id":    last.SenderID,
			"last_message_timestamp":    last.Timestamp,
			"last_message_message_type": last.MessageType,
			unread:                      gorm.Expr(unread+" + ?", 1),
			"deleted_by_buyer":          false,
			"deleted_by_seller":         false,
			"is_deleted":                false,
			"reminder_stage":            0,
			"updated_at":                time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *ConversationRepository) ResetUnread(ctx context.Context, conversationID string, slot models.Role) error {
	unread, err := unreadColumn(slot)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		UpdateColumn(unread, 0).Error
}

// MarkDeletedBy hides the conversation for slot and reports whether both
// participants have now hidden it.
func (r *ConversationRepository) MarkDeletedBy(ctx context.Context, conversationID string, slot models.Role) (bool, error) {
	own, other, err := deletedColumns(slot)
	if err != nil {
		return false, err
	}

	db := r.db.WithContext(ctx)
	res := db.Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		UpdateColumns(map[string]interface{}{
			own:          true,
			"is_deleted": gorm.Expr(other),
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, gorm.ErrRecordNotFound
	}

	var conv models.Conversation
	if err := db.Select("id", "is_deleted").First(&conv, "id = ?", conversationID).Error; err != nil {
		return false, err
	}
	return conv.IsDeleted, nil
}

// Revive clears every deleted flag.
func (r *ConversationRepository) Revive(ctx context.Context, conversationID string) error {
	return r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		Updates(map[string]interface{}{
			"deleted_by_buyer":  false,
			"deleted_by_seller": false,
			"is_deleted":        false,
		}).Error
}

// ListReminderCandidates returns one page of live conversations whose last
// message is at or before cutoff and where someone still has unread messages.
// Pages are keyed on (last_message_timestamp, id); pass the last row of the
// previous page as after, nil for the first page.
func (r *ConversationRepository) ListReminderCandidates(ctx context.Context, cutoff time.Time, after *models.ReminderCursor, limit int) ([]models.Conversation, error) {
	query := r.db.WithContext(ctx).
		Where("is_deleted = ?", false).
		Where("last_message_timestamp IS NOT NULL AND last_message_timestamp <= ?", cutoff).
		Where("(buyer_unread > 0 OR seller_unread > 0)")
	if after != nil {
		query = query.Where("(last_message_timestamp > ? OR (last_message_timestamp = ? AND id > ?))",
			after.Timestamp, after.Timestamp, after.ID)
	}

	var convs []models.Conversation
	err := query.
		Order("last_message_timestamp ASC").
		Order("id ASC").
		Limit(limit).
		Find(&convs).Error
	return convs, err
}

// ClaimReminderStage moves reminder_stage from current to next. False means
// another tick or a new message got there first.
func (r *ConversationRepository) ClaimReminderStage(ctx context.Context, conversationID string, current, next int) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Conversation{}).
		Where("id = ? AND reminder_stage = ?", conversationID, current).
		UpdateColumn("reminder_stage", next)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
