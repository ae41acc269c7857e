package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ConversationStatus string

const (
	ConversationStatusActive   ConversationStatus = "active"
	ConversationStatusArchived ConversationStatus = "archived"
)

/** --------------------ENTITIES-------------------- */

// LastMessage is the denormalized preview shown in conversation lists.
type LastMessage struct {
	Text        string      `gorm:"type:text" json:"text"`
	SenderID    string      `gorm:"type:varchar(64)" json:"senderId"`
	Timestamp   *time.Time  `gorm:"index" json:"timestamp"`
	MessageType MessageType `gorm:"type:varchar(16)" json:"messageType"`
}

// Conversation is a single buyer/seller thread, optionally scoped to a product.
// ProductID is stored as an empty string when absent so the composite unique key never sees NULL.
type Conversation struct {
	ID        string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	BuyerID   string `gorm:"type:varchar(64);not null;uniqueIndex:idx_conversation_key,priority:1;index:idx_conversation_buyer" json:"buyerId"`
	SellerID  string `gorm:"type:varchar(64);not null;uniqueIndex:idx_conversation_key,priority:2;index:idx_conversation_seller" json:"sellerId"`
	ProductID string `gorm:"type:varchar(64);not null;default:'';uniqueIndex:idx_conversation_key,priority:3" json:"productId,omitempty"`

	LastMessage LastMessage `gorm:"embedded;embeddedPrefix:last_message_" json:"lastMessage"`

	BuyerUnread     int                `gorm:"not null;default:0" json:"-"`
	SellerUnread    int                `gorm:"not null;default:0" json:"-"`
	DeletedByBuyer  bool               `gorm:"not null;default:false" json:"-"`
	DeletedBySeller bool               `gorm:"not null;default:false" json:"-"`
	IsDeleted       bool               `gorm:"not null;default:false;index" json:"isDeleted"`
	Status          ConversationStatus `gorm:"type:varchar(16);not null;default:'active'" json:"status"`
	RolesAssigned   bool               `gorm:"not null;default:true" json:"-"`
	ReminderStage   int                `gorm:"not null;default:0" json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `gorm:"index" json:"updatedAt"`
}

// ReminderCursor is the keyset position of a reminder scan: the last row seen,
// ordered by last message time then id.
type ReminderCursor struct {
	Timestamp time.Time
	ID        string
}

func (Conversation) TableName() string {
	return "conversations"
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = ConversationStatusActive
	}
	return nil
}

// Participants returns buyer then seller.
func (c *Conversation) Participants() []string {
	return []string{c.BuyerID, c.SellerID}
}

// SlotOf reports which participant column belongs to userID, ignoring whether
// roles were ever assigned. RoleNone for outsiders.
func (c *Conversation) SlotOf(userID string) Role {
	switch {
	case userID == "":
		return RoleNone
	case userID == c.BuyerID:
		return RoleBuyer
	case userID == c.SellerID:
		return RoleSeller
	default:
		return RoleNone
	}
}

// OtherParticipant returns the counterpart of userID, or "" for outsiders.
func (c *Conversation) OtherParticipant(userID string) string {
	switch c.SlotOf(userID) {
	case RoleBuyer:
		return c.SellerID
	case RoleSeller:
		return c.BuyerID
	default:
		return ""
	}
}

func (c *Conversation) UnreadFor(slot Role) int {
	switch slot {
	case RoleBuyer:
		return c.BuyerUnread
	case RoleSeller:
		return c.SellerUnread
	default:
		return 0
	}
}

// UnreadCounts exposes the unread columns keyed by user id, nonzero entries only.
func (c *Conversation) UnreadCounts() map[string]int {
	counts := make(map[string]int, 2)
	if c.BuyerUnread > 0 {
		counts[c.BuyerID] = c.BuyerUnread
	}
	if c.SellerUnread > 0 {
		counts[c.SellerID] = c.SellerUnread
	}
	return counts
}

func (c *Conversation) DeletedFor(slot Role) bool {
	switch slot {
	case RoleBuyer:
		return c.DeletedByBuyer
	case RoleSeller:
		return c.DeletedBySeller
	default:
		return false
	}
}

// DeletedBy lists the participants that hid this conversation.
func (c *Conversation) DeletedBy() []string {
	var ids []string
	if c.DeletedByBuyer {
		ids = append(ids, c.BuyerID)
	}
	if c.DeletedBySeller {
		ids = append(ids, c.SellerID)
	}
	return ids
}

// LegacyParticipant is a row of the participants-only schema that predates
// buyer/seller columns. Read once by the backfill, never written.
type LegacyParticipant struct {
	ConversationID string    `gorm:"type:varchar(36);primaryKey"`
	UserID         string    `gorm:"type:varchar(64);primaryKey"`
	JoinedAt       time.Time `gorm:"not null"`
}

func (LegacyParticipant) TableName() string {
	return "conversation_participants"
}

/** -------------------- DTOs -------------------- */

// Request
type CreateConversationRequest struct {
	BuyerID   string `json:"buyerId" binding:"required,max=64"`
	SellerID  string `json:"sellerId" binding:"required,max=64,nefield=BuyerID"`
	ProductID string `json:"productId,omitempty" binding:"omitempty,max=64"`
}

type ConversationListQuery struct {
	UserID string `form:"userId" binding:"required"`
	Role   string `form:"role" binding:"required,oneof=buyer seller"`
	Page   int    `form:"page" binding:"omitempty,min=1"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=100"`
}

type UserActionRequest struct {
	UserID string `json:"userId" binding:"required"`
}

// Response
type ParticipantSummary struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

type ConversationSummary struct {
	ID              string             `json:"id"`
	ProductID       string             `json:"productId,omitempty"`
	OtherUser       ParticipantSummary `json:"otherUser"`
	LastMessage     *LastMessage       `json:"lastMessage,omitempty"`
	UnreadCount     int                `json:"unreadCount"`
	CurrentUserRole Role               `json:"currentUserRole"`
	OtherUserRole   Role               `json:"otherUserRole"`
	Status          ConversationStatus `json:"status"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}

type ConversationResponse struct {
	ID           string             `json:"id"`
	BuyerID      string             `json:"buyerId"`
	SellerID     string             `json:"sellerId"`
	ProductID    string             `json:"productId,omitempty"`
	Participants []string           `json:"participants"`
	LastMessage  *LastMessage       `json:"lastMessage,omitempty"`
	UnreadCounts map[string]int     `json:"unreadCounts"`
	DeletedBy    []string           `json:"deletedBy"`
	IsDeleted    bool               `json:"isDeleted"`
	Status       ConversationStatus `json:"status"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

func NewConversationResponse(c *Conversation) ConversationResponse {
	resp := ConversationResponse{
		ID:           c.ID,
		BuyerID:      c.BuyerID,
		SellerID:     c.SellerID,
		ProductID:    c.ProductID,
		Participants: c.Participants(),
		UnreadCounts: c.UnreadCounts(),
		DeletedBy:    c.DeletedBy(),
		IsDeleted:    c.IsDeleted,
		Status:       c.Status,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
	if resp.DeletedBy == nil {
		resp.DeletedBy = []string{}
	}
	if c.LastMessage.Timestamp != nil {
		last := c.LastMessage
		resp.LastMessage = &last
	}
	return resp
}

type DeleteConversationResponse struct {
	Success      bool `json:"success"`
	FullyDeleted bool `json:"fullyDeleted"`
}
