package database

import (
	"fmt"
	"log/slog"

	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/models"

	"gorm.io/gorm"
)

// OwnedModels are the tables this service creates and migrates. users and the
// legacy participants table belong to other systems.
func OwnedModels() []interface{} {
	return []interface{}{
		&models.Conversation{},
		&models.Message{},
		&models.UserDevice{},
	}
}

// Migrate runs database migrations for all owned models
func Migrate(db *gorm.DB) error {
	if err := prepareLegacySchema(db); err != nil {
		return fmt.Errorf("failed to prepare legacy schema: %w", err)
	}

	for _, model := range OwnedModels() {
		if err := db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate model: %w", err)
		}
	}

	return nil
}

// prepareLegacySchema adds the role columns to a participants-only conversations
// table so existing rows can be backfilled before the unique key is created.
func prepareLegacySchema(db *gorm.DB) error {
	m := db.Migrator()
	if !m.HasTable(&models.Conversation{}) || m.HasColumn(&models.Conversation{}, "BuyerID") {
		return nil
	}

	slog.Info("Legacy conversations table detected, adding role columns")
	statements := []string{
		"ALTER TABLE conversations ADD COLUMN buyer_id VARCHAR(64) NOT NULL DEFAULT ''",
		"ALTER TABLE conversations ADD COLUMN seller_id VARCHAR(64) NOT NULL DEFAULT ''",
		"ALTER TABLE conversations ADD COLUMN product_id VARCHAR(64) NOT NULL DEFAULT ''",
		"ALTER TABLE conversations ADD COLUMN roles_assigned BOOLEAN NOT NULL DEFAULT FALSE",
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}

	if !m.HasTable(&models.LegacyParticipant{}) {
		return nil
	}
	_, err := BackfillLegacyRoles(db)
	return err
}

// BackfillLegacyRoles assigns buyer/seller columns to conversations that only
// recorded participants, in join order, and flags them roles_assigned=false so
// permission checks treat both sides as unassigned. Conversations without two
// participants get placeholder ids no user can match.
func BackfillLegacyRoles(db *gorm.DB) (int, error) {
	var ids []string
	err := db.Model(&models.Conversation{}).
		Where("buyer_id = '' OR seller_id = ''").
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}

	filled := 0
	for _, id := range ids {
		var participants []models.LegacyParticipant
		err := db.Where("conversation_id = ?", id).
			Order("joined_at ASC").
			Find(&participants).Error
		if err != nil {
			return filled, err
		}

		updates := map[string]interface{}{"roles_assigned": false}
		if len(participants) >= 2 && participants[0].UserID != participants[1].UserID {
			updates["buyer_id"] = participants[0].UserID
			updates["seller_id"] = participants[1].UserID
		} else {
			slog.Warn("Legacy conversation without two participants", "conversationID", id, "participants", len(participants))
			updates["buyer_id"] = "legacy:" + id + ":a"
			updates["seller_id"] = "legacy:" + id + ":b"
		}

		if err := db.Model(&models.Conversation{}).Where("id = ?", id).UpdateColumns(updates).Error; err != nil {
			return filled, err
		}
		filled++
	}

	slog.Info("Legacy conversation backfill finished", "conversations", filled)
	return filled, nil
}
