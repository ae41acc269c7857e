package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/models"
	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/services"
)

type NotificationHandler struct {
	devices   *services.DeviceService
	reminders *services.ReminderService
}

func NewNotificationHandler(devices *services.DeviceService, reminders *services.ReminderService) *NotificationHandler {
	return &NotificationHandler{devices: devices, reminders: reminders}
}

// RegisterDevice godoc
// @Summary Register a push device
// @Description Upserts an Expo push token for the user and re-activates it if it was disabled
// @Tags notifications
// @Accept json
// @Produce json
// @Param request body models.RegisterDeviceRequest true "Device"
// @Success 200 {object} models.UserDevice
// @Failure 400 {object} models.ErrorResponse "Invalid token"
// @Router /devices [post]
func (h *NotificationHandler) RegisterDevice(c *gin.Context) {
	var req models.RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	device, err := h.devices.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, "Failed to register device")
		return
	}
	c.JSON(http.StatusOK, device)
}

// CheckUnresolved godoc
// @Summary Run the unread reminder pass
// @Description Sends reminders for conversations with unread messages; the same pass the scheduler runs
// @Tags notifications
// @Produce json
// @Success 200 {object} services.ReminderReport
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /notifications/check-unresolved [post]
func (h *NotificationHandler) CheckUnresolved(c *gin.Context) {
	report, err := h.reminders.CheckUnresolved(c.Request.Context())
	if err != nil {
		respondError(c, err, "Failed to check unresolved conversations")
		return
	}
	c.JSON(http.StatusOK, report)
}
