package postgres

import (
	"context"
	"time"

	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DeviceRepository struct {
	db *gorm.DB
}

func NewDeviceRepository(db *gorm.DB) *DeviceRepository {
	return &DeviceRepository{db}
}

// Upsert registers a push token. A token seen again moves to its latest owner
// and is reactivated.
func (r *DeviceRepository) Upsert(ctx context.Context, device *models.UserDevice) error {
	device.IsActive = true
	device.LastSeenAt = time.Now().UTC()
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "push_token"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "platform", "is_active", "last_seen_at", "updated_at"}),
	}).Create(device).Error
}

func (r *DeviceRepository) ListActive(ctx context.Context, userID string) ([]models.UserDevice, error) {
	var devices []models.UserDevice
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("last_seen_at DESC").
		Find(&devices).Error
	return devices, err
}

// Deactivate flags tokens the push gateway rejected.
func (r *DeviceRepository) Deactivate(ctx context.Context, tokens []string) (int64, error) {
	if len(tokens) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Model(&models.UserDevice{}).
		Where("push_token IN ?", tokens).
		Updates(map[string]interface{}{"is_active": false, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}
