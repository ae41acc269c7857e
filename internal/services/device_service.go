package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/adapters/push"
	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/models"
)

type DeviceService struct {
	devices DeviceRepository
}

func NewDeviceService(devices DeviceRepository) *DeviceService {
	return &DeviceService{devices: devices}
}

// Register stores a push token for userID, reactivating it if it was
// previously deactivated or moving it from another account.
func (s *DeviceService) Register(ctx context.Context, req models.RegisterDeviceRequest) (*models.UserDevice, error) {
	token := strings.TrimSpace(req.PushToken)
	if !push.IsExpoToken(token) {
		return nil, fmt.Errorf("%w: malformed push token", ErrValidation)
	}

	device := &models.UserDevice{
		UserID:    req.UserID,
		PushToken: token,
		Platform:  req.Platform,
	}
	if err := s.devices.Upsert(ctx, device); err != nil {
		return nil, fmt.Errorf("failed to register device: %w", err)
	}

	slog.Info("Device registered", "userID", req.UserID, "platform", req.Platform)
	return device, nil
}
