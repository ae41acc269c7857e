package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DevicePlatform string

const (
	PlatformIOS     DevicePlatform = "ios"
	PlatformAndroid DevicePlatform = "android"
	PlatformWeb     DevicePlatform = "web"
)

/** --------------------ENTITIES-------------------- */
// UserDevice is a push-capable installation. Invalid tokens are deactivated, never deleted.
type UserDevice struct {
	ID         string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID     string         `gorm:"type:varchar(64);not null;index" json:"userId"`
	PushToken  string         `gorm:"type:varchar(255);not null;uniqueIndex" json:"pushToken"`
	Platform   DevicePlatform `gorm:"type:varchar(16);not null" json:"platform"`
	IsActive   bool           `gorm:"not null;default:true" json:"isActive"`
	LastSeenAt time.Time      `json:"lastSeenAt"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

func (UserDevice) TableName() string {
	return "user_devices"
}

func (d *UserDevice) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

/** -------------------- DTOs -------------------- */
// Request
type RegisterDeviceRequest struct {
	UserID    string         `json:"userId" binding:"required,max=64"`
	PushToken string         `json:"pushToken" binding:"required,max=255"`
	Platform  DevicePlatform `json:"platform" binding:"required,oneof=ios android web"`
}

// PushNotification is one gateway message addressed to a single device token.
type PushNotification struct {
	To    string            `json:"to"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
	Sound string            `json:"sound,omitempty"`
}

// PushResult is the gateway verdict for one PushNotification, in request order.
type PushResult struct {
	Token        string `json:"token"`
	OK           bool   `json:"ok"`
	InvalidToken bool   `json:"invalidToken"`
	Error        string `json:"error,omitempty"`
}
