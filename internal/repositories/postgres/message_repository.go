package postgres

import (
	"context"
	"time"

	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/models"

	"gorm.io/gorm"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db}
}

func (r *MessageRepository) Create(ctx context.Context, msg *models.Message) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *MessageRepository) FindByID(ctx context.Context, id string) (*models.Message, error) {
	var msg models.Message
	if err := r.db.WithContext(ctx).First(&msg, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListForViewer pages backwards from the newest message and returns each page
// oldest first. Messages the viewer deleted and the other participant's
// unfinished uploads are excluded.
func (r *MessageRepository) ListForViewer(ctx context.Context, conversationID, viewerID string, slot models.Role, offset, limit int) ([]models.Message, error) {
	own, _, err := deletedColumns(slot)
	if err != nil {
		return nil, err
	}

	var msgs []models.Message
	err = r.db.WithContext(ctx).
		Where("conversation_id = ? AND "+own+" = ?", conversationID, false).
		Where("(status NOT IN ? OR sender_id = ?)",
			[]models.MessageStatus{models.MessageStatusPending, models.MessageStatusFailed}, viewerID).
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// Transition moves a message to status `to` only if its current status may
// legally precede it. False means the row was not in a source status.
func (r *MessageRepository) Transition(ctx context.Context, id string, to models.MessageStatus) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ? AND status IN ?", id, models.SourcesOf(to)).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// CompleteUpload stores content and flips pending -> sent in one statement.
func (r *MessageRepository) CompleteUpload(ctx context.Context, id string, content models.MessageContent) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("id = ? AND status = ?", id, models.MessageStatusPending).
		Select("status", "content", "updated_at").
		Updates(&models.Message{
			Status:    models.MessageStatusSent,
			Content:   content,
			UpdatedAt: time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkConversationRead walks the reader's incoming messages through
// sent -> delivered -> read and returns how many reached read.
func (r *MessageRepository) MarkConversationRead(ctx context.Context, conversationID, readerID string) (int64, error) {
	var read int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		err := tx.Model(&models.Message{}).
			Where("conversation_id = ? AND sender_id <> ? AND status = ?", conversationID, readerID, models.MessageStatusSent).
			Updates(map[string]interface{}{"status": models.MessageStatusDelivered, "updated_at": now}).Error
		if err != nil {
			return err
		}

		res := tx.Model(&models.Message{}).
			Where("conversation_id = ? AND sender_id <> ? AND status = ?", conversationID, readerID, models.MessageStatusDelivered).
			Updates(map[string]interface{}{"status": models.MessageStatusRead, "updated_at": now})
		if res.Error != nil {
			return res.Error
		}
		read = res.RowsAffected
		return nil
	})
	return read, err
}

// MarkDeletedBy hides one message for slot and reports whether both
// participants have now deleted it.
func (r *MessageRepository) MarkDeletedBy(ctx context.Context, id string, slot models.Role) (bool, error) {
	own, other, err := deletedColumns(slot)
	if err != nil {
		return false, err
	}

	db := r.db.WithContext(ctx)
	res := db.Model(&models.Message{}).
		Where("id = ?", id).
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

	var msg models.Message
	if err := db.Select("id", "is_deleted").First(&msg, "id = ?", id).Error; err != nil {
		return false, err
	}
	return msg.IsDeleted, nil
}

// MarkConversationDeletedBy hides every current message of the conversation for slot.
func (r *MessageRepository) MarkConversationDeletedBy(ctx context.Context, conversationID string, slot models.Role) error {
	own, other, err := deletedColumns(slot)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Model(&models.Message{}).
		Where("conversation_id = ?", conversationID).
		UpdateColumns(map[string]interface{}{
			own:          true,
			"is_deleted": gorm.Expr(other),
		}).Error
}

// DeletedAttachmentKeys returns the blob keys of fully deleted media messages.
func (r *MessageRepository) DeletedAttachmentKeys(ctx context.Context, conversationID string) ([]string, error) {
	var msgs []models.Message
	err := r.db.WithContext(ctx).
		Select("id", "content").
		Where("conversation_id = ? AND is_deleted = ? AND message_type <> ?", conversationID, true, models.MessageTypeText).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Content.ObjectKey != "" {
			keys = append(keys, m.Content.ObjectKey)
		}
	}
	return keys, nil
}

// DeleteStalePending removes placeholders whose upload never completed.
func (r *MessageRepository) DeleteStalePending(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", models.MessageStatusPending, before).
		Delete(&models.Message{})
	return res.RowsAffected, res.Error
}
