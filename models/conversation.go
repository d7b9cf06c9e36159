package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ConversationPrivate = "private"
	ConversationGroup   = "group"
)

const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Conversation is a private or group chat. Group-only fields (Name, Avatar,
// Description) stay empty for private conversations.
type Conversation struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Kind          string         `gorm:"column:kind;index;default:private" json:"kind"`
	Name          string         `json:"name,omitempty"`
	Avatar        string         `json:"avatar,omitempty"`
	Description   string         `json:"description,omitempty"`
	CreatedBy     uint           `gorm:"index" json:"created_by"`
	LastMessageAt *time.Time     `gorm:"index" json:"last_message_at"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`

	Members []ConversationMember `gorm:"foreignKey:ConversationID" json:"members,omitempty"`
}

func (c *Conversation) IsPrivate() bool {
	return c.Kind == ConversationPrivate
}

func (c *Conversation) IsGroup() bool {
	return c.Kind == ConversationGroup
}

// ConversationMember is the (conversation, user) membership row. A departed
// member keeps the row with LeftAt set; the unique index spans only rows kept
// active by the application (one active row per pair is enforced on write).
type ConversationMember struct {
	Model
	ConversationID    uuid.UUID  `gorm:"type:uuid;uniqueIndex:uniq_conversation_member,where:left_at IS NULL;not null" json:"conversation_id"`
	UserID            uint       `gorm:"uniqueIndex:uniq_conversation_member,where:left_at IS NULL;not null" json:"user_id"`
	Role              string     `gorm:"default:member" json:"role"`
	IsMuted           bool       `gorm:"default:false" json:"is_muted"`
	IsArchived        bool       `gorm:"default:false" json:"is_archived"`
	LastReadMessageID *uuid.UUID `gorm:"type:uuid" json:"last_read_message_id"`
	JoinedAt          time.Time  `json:"joined_at"`
	LeftAt            *time.Time `json:"left_at"`

	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (m *ConversationMember) IsActive() bool {
	return m.LeftAt == nil
}

// ConversationResponse is the listing/detail projection.
type ConversationResponse struct {
	ID            uuid.UUID      `json:"id"`
	Kind          string         `json:"kind"`
	Name          string         `json:"name,omitempty"`
	Avatar        string         `json:"avatar,omitempty"`
	Description   string         `json:"description,omitempty"`
	CreatedBy     uint           `json:"created_by"`
	LastMessageAt *time.Time     `json:"last_message_at"`
	CreatedAt     time.Time      `json:"created_at"`
	Members       []UserResponse `json:"members"`
	UnreadCount   int64          `json:"unread_count"`
	IsMuted       bool           `json:"is_muted"`
	IsArchived    bool           `json:"is_archived"`
}

// CreateConversationRequest covers both kinds: UserID for private,
// Name/UserIDs for group.
type CreateConversationRequest struct {
	Kind        string `json:"kind" form:"kind" binding:"required,oneof=private group"`
	UserID      uint   `json:"user_id" form:"user_id"`
	Name        string `json:"name" form:"name" conform:"trim"`
	Description string `json:"description" form:"description" conform:"trim"`
	UserIDs     []uint `json:"user_ids" form:"user_ids"`
}

type UpdateConversationRequest struct {
	Name        string `json:"name" form:"name" conform:"trim"`
	Description string `json:"description" form:"description" conform:"trim"`
}

type MemberRequest struct {
	UserID uint `json:"user_id" binding:"required"`
}
