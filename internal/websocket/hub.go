package websocket

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/models"
	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/services"
)

var ErrClientDisconnected = errors.New("client disconnected")

// PresenceTracker records which conversations each connection has open.
type PresenceTracker interface {
	Enter(ctx context.Context, userID, connID, conversationID string) error
	Leave(ctx context.Context, userID, connID, conversationID string) error
	Refresh(ctx context.Context, userID, connID string, conversationIDs []string) error
}

// DeliveryAcker moves a message to delivered on behalf of its receiver.
type DeliveryAcker interface {
	MarkDelivered(ctx context.Context, messageID, userID string) (*models.Message, error)
}

// Subscriber is the Redis side of the fan-out; nil keeps the hub local-only.
type Subscriber interface {
	PSubscribe(ctx context.Context, patterns ...string) *redis.PubSub
}

type ClientMessage struct {
	Client  *Client
	Message *Message
}

// Hub tracks live connections per user and forwards the per-user Redis
// events published by the services to every connection of that user.
type Hub struct {
	userClients map[string]map[*Client]bool

	register      chan *Client
	unregister    chan *Client
	handleMessage chan *ClientMessage

	presence PresenceTracker
	acker    DeliveryAcker
	pubsub   *redis.PubSub

	opTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.RWMutex
	// stopping is guarded by mu; once set no new goroutine joins wg
	stopping bool
	wg       sync.WaitGroup
}

func NewHub(subscriber Subscriber, presence PresenceTracker, acker DeliveryAcker) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		userClients:   make(map[string]map[*Client]bool),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		handleMessage: make(chan *ClientMessage, 256),
		presence:      presence,
		acker:         acker,
		opTimeout:     5 * time.Second,
		ctx:           ctx,
		cancel:        cancel,
	}
	if subscriber != nil {
		h.pubsub = subscriber.PSubscribe(ctx, services.UserChannelPattern)
	}
	return h
}

// Run processes hub events until Stop is called.
func (h *Hub) Run() {
	if h.pubsub != nil && h.track() {
		go h.listenRedis()
	}

	slog.Info("WebSocket hub started")
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case cm := <-h.handleMessage:
			// acks hit the database; keep the loop free for (un)registration
			if !h.track() {
				continue
			}
			go func() {
				defer h.wg.Done()
				h.handleClientMessage(cm)
			}()

		case <-h.ctx.Done():
			slog.Info("WebSocket hub stopped")
			return
		}
	}
}

// track adds one goroutine to wg unless the hub is stopping.
func (h *Hub) track() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopping {
		return false
	}
	h.wg.Add(1)
	return true
}

// Stop closes every connection and the Redis subscription.
func (h *Hub) Stop() {
	h.cancel()
	if h.pubsub != nil {
		if err := h.pubsub.Close(); err != nil {
			slog.Warn("Error closing Redis subscription", "error", err)
		}
	}

	h.mu.Lock()
	h.stopping = true
	for _, clients := range h.userClients {
		for c := range clients {
			c.close()
			c.closeSendChannel()
			if c.conn != nil {
				c.conn.Close()
			}
		}
	}
	h.userClients = make(map[string]map[*Client]bool)
	h.mu.Unlock()

	h.wg.Wait()
}

func (h *Hub) listenRedis() {
	defer h.wg.Done()
	ch := h.pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			userID, ok := services.UserIDFromChannel(msg.Channel)
			if !ok {
				continue
			}
			h.Deliver(userID, []byte(msg.Payload))
		case <-h.ctx.Done():
			return
		}
	}
}

// Deliver writes payload to every connection of userID and returns how many
// connections accepted it.
func (h *Hub) Deliver(userID string, payload []byte) int {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.userClients[userID]))
	for c := range h.userClients[userID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	sent := 0
	for _, c := range clients {
		if err := c.sendRaw(payload); err != nil {
			slog.Debug("Dropped event for client", "clientID", c.id, "userID", userID, "error", err)
			continue
		}
		sent++
	}
	return sent
}

// ConnectionCount returns the number of live connections for userID.
func (h *Hub) ConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.userClients[userID])
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.userClients[client.userID] == nil {
		h.userClients[client.userID] = make(map[*Client]bool)
	}
	h.userClients[client.userID][client] = true

	slog.Debug("Client registered", "clientID", client.id, "userID", client.userID,
		"userConnections", len(h.userClients[client.userID]))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	clients, ok := h.userClients[client.userID]
	if !ok || !clients[client] {
		h.mu.Unlock()
		return
	}
	delete(clients, client)
	last := len(clients) == 0
	if last {
		delete(h.userClients, client.userID)
	}
	h.mu.Unlock()

	client.close()
	client.closeSendChannel()

	// only this connection leaves; others, here or on another instance, keep theirs
	ctx, cancel := context.WithTimeout(context.Background(), h.opTimeout)
	defer cancel()
	for _, convID := range client.Conversations() {
		if err := h.presence.Leave(ctx, client.userID, client.id, convID); err != nil {
			slog.Warn("Failed to leave conversation", "userID", client.userID, "conversationID", convID, "error", err)
		}
	}

	slog.Debug("Client unregistered", "clientID", client.id, "userID", client.userID, "lastConnection", last)
}

func (h *Hub) handleClientMessage(cm *ClientMessage) {
	client, msg := cm.Client, cm.Message
	ctx, cancel := context.WithTimeout(h.ctx, h.opTimeout)
	defer cancel()

	switch msg.Type {
	case MessageTypePing:
		if err := h.presence.Refresh(ctx, client.userID, client.id, client.Conversations()); err != nil {
			slog.Debug("Failed to refresh presence", "userID", client.userID, "error", err)
		}
		client.SendMessage(NewMessage(msg.ID, MessageTypePong, client.userID, nil))

	case MessageTypeJoinConversation:
		convID, ok := msg.StringField("conversationId")
		if !ok {
			client.sendError("INVALID_MESSAGE", "conversationId is required")
			return
		}
		client.AddConversation(convID)
		if err := h.presence.Enter(ctx, client.userID, client.id, convID); err != nil {
			slog.Warn("Failed to record presence", "userID", client.userID, "conversationID", convID, "error", err)
			client.sendError("PRESENCE_ERROR", "Failed to join conversation")
			return
		}
		client.SendMessage(NewAckMessage(msg.ID, client.userID, map[string]interface{}{"conversationId": convID}))

	case MessageTypeLeaveConversation:
		convID, ok := msg.StringField("conversationId")
		if !ok {
			client.sendError("INVALID_MESSAGE", "conversationId is required")
			return
		}
		client.RemoveConversation(convID)
		if err := h.presence.Leave(ctx, client.userID, client.id, convID); err != nil {
			slog.Warn("Failed to leave conversation", "userID", client.userID, "conversationID", convID, "error", err)
		}
		client.SendMessage(NewAckMessage(msg.ID, client.userID, map[string]interface{}{"conversationId": convID}))

	case MessageTypeDelivered:
		messageID, ok := msg.StringField("messageId")
		if !ok {
			client.sendError("INVALID_MESSAGE", "messageId is required")
			return
		}
		updated, err := h.acker.MarkDelivered(ctx, messageID, client.userID)
		if err != nil {
			code := "DELIVERY_FAILED"
			switch {
			case errors.Is(err, services.ErrNotFound):
				code = "NOT_FOUND"
			case errors.Is(err, services.ErrPermission):
				code = "FORBIDDEN"
			}
			client.sendError(code, err.Error())
			return
		}
		client.SendMessage(NewAckMessage(msg.ID, client.userID, map[string]interface{}{
			"messageId": updated.ID,
			"status":    string(updated.Status),
		}))

	default:
		client.sendError("INVALID_MESSAGE", "unsupported message type")
	}
}
