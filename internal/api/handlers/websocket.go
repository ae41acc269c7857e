package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	gws "github.com/gorilla/websocket"

	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/models"
	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/websocket"
)

type WSHandler struct {
	hub      *websocket.Hub
	upgrader gws.Upgrader
}

func NewWSHandler(hub *websocket.Hub, allowedOrigins []string) *WSHandler {
	return &WSHandler{hub: hub, upgrader: websocket.NewUpgrader(allowedOrigins)}
}

// HandleWebSocket godoc
// @Summary WebSocket connection
// @Description Establish a WebSocket connection for realtime conversation events
// @Tags websocket
// @Param userId query string true "User ID for WebSocket connection"
// @Success 101 "Switching Protocols - WebSocket connection established"
// @Failure 400 {object} models.ErrorResponse "Missing userId parameter"
// @Router /ws [get]
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		slog.Warn("WebSocket connection rejected: missing userId")
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Code: http.StatusBadRequest, Message: "userId parameter is required"})
		return
	}

	websocket.ServeWS(h.hub, &h.upgrader, c.Writer, c.Request, userID)
}
