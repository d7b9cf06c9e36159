package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message kinds. Non-text kinds carry the media reference instead of a body.
const (
	MessageText  = "text"
	MessageImage = "image"
	MessageVideo = "video"
	MessageFile  = "file"
	MessageAudio = "audio"
)

func ValidMessageKind(kind string) bool {
	switch kind {
	case MessageText, MessageImage, MessageVideo, MessageFile, MessageAudio:
		return true
	}
	return false
}

// Message belongs to a conversation. Exactly one of Body or the media
// reference triple is populated, depending on Kind.
type Message struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID uuid.UUID      `gorm:"type:uuid;index:idx_conversation_created;not null" json:"conversation_id"`
	SenderID       uint           `gorm:"index;not null" json:"sender_id"`
	Kind           string         `gorm:"default:text" json:"kind"`
	Body           string         `json:"body,omitempty"`
	MediaRef       string         `json:"media_ref,omitempty"`
	MediaName      string         `json:"media_name,omitempty"`
	MediaType      string         `json:"media_type,omitempty"`
	MediaSize      int64          `json:"media_size,omitempty"`
	ReplyTo        *uuid.UUID     `gorm:"type:uuid;index" json:"reply_to"`
	IsEdited       bool           `gorm:"default:false" json:"is_edited"`
	EditedAt       *time.Time     `json:"edited_at"`
	CreatedAt      time.Time      `gorm:"index:idx_conversation_created" json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`

	Sender User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}

func (m *Message) IsText() bool {
	return m.Kind == MessageText
}

func (m *Message) HasMedia() bool {
	return m.MediaRef != ""
}

// MessageReaction is the unique (message, user, emoji) triple.
type MessageReaction struct {
	Model
	MessageID uuid.UUID `gorm:"type:uuid;uniqueIndex:uniq_message_reaction;not null" json:"message_id"`
	UserID    uint      `gorm:"uniqueIndex:uniq_message_reaction;not null" json:"user_id"`
	Emoji     string    `gorm:"uniqueIndex:uniq_message_reaction;size:32;not null" json:"emoji"`

	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// MessageRead is the unique (message, user) receipt. Never created for the
// sender, never updated once written.
type MessageRead struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	MessageID uuid.UUID `gorm:"type:uuid;uniqueIndex:uniq_message_read;not null" json:"message_id"`
	UserID    uint      `gorm:"uniqueIndex:uniq_message_read;not null" json:"user_id"`
	ReadAt    time.Time `json:"read_at"`

	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// TypingIndicator is overwritten on every typing signal. A row counts as
// active only while last_typed_at falls inside the presence window, so stale
// rows expire without a sweeper.
type TypingIndicator struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ConversationID uuid.UUID `gorm:"type:uuid;uniqueIndex:uniq_typing;index:idx_typing_window;not null" json:"conversation_id"`
	UserID         uint      `gorm:"uniqueIndex:uniq_typing;not null" json:"user_id"`
	LastTypedAt    time.Time `gorm:"index:idx_typing_window" json:"last_typed_at"`

	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// GroupedReaction is the emoji -> {count, users} projection for display.
type GroupedReaction struct {
	Emoji string         `json:"emoji"`
	Count int            `json:"count"`
	Users []UserResponse `json:"users"`
}

// ReadStatus reports per-member read state for a message, sender excluded.
type ReadStatus struct {
	UserID uint       `json:"user_id"`
	IsRead bool       `json:"is_read"`
	ReadAt *time.Time `json:"read_at"`
}

// MessageResponse is the full message projection broadcast with
// message.sent / message.updated.
type MessageResponse struct {
	ID             uuid.UUID    `json:"id"`
	ConversationID uuid.UUID    `json:"conversation_id"`
	SenderID       uint         `json:"sender_id"`
	Sender         UserResponse `json:"sender"`
	Kind           string       `json:"kind"`
	Body           string       `json:"body,omitempty"`
	MediaRef       string       `json:"media_ref,omitempty"`
	MediaName      string       `json:"media_name,omitempty"`
	MediaType      string       `json:"media_type,omitempty"`
	MediaSize      int64        `json:"media_size,omitempty"`
	ReplyTo        *uuid.UUID   `json:"reply_to"`
	IsEdited       bool         `json:"is_edited"`
	EditedAt       *time.Time   `json:"edited_at"`
	CreatedAt      time.Time    `json:"created_at"`
}

func (m *Message) Response() MessageResponse {
	return MessageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Sender:         m.Sender.Response(),
		Kind:           m.Kind,
		Body:           m.Body,
		MediaRef:       m.MediaRef,
		MediaName:      m.MediaName,
		MediaType:      m.MediaType,
		MediaSize:      m.MediaSize,
		ReplyTo:        m.ReplyTo,
		IsEdited:       m.IsEdited,
		EditedAt:       m.EditedAt,
		CreatedAt:      m.CreatedAt,
	}
}

// SendMessageRequest is the multipart/JSON body for sending a message; media
// itself arrives as a form file and is resolved to the reference triple
// before the engine is called.
type SendMessageRequest struct {
	ConversationID uuid.UUID  `json:"conversation_id" form:"conversation_id" binding:"required"`
	Kind           string     `json:"kind" form:"kind" binding:"required"`
	Body           string     `json:"body" form:"body" conform:"trim"`
	ReplyTo        *uuid.UUID `json:"reply_to" form:"reply_to"`
}

type EditMessageRequest struct {
	Body string `json:"body" binding:"required,max=10000" conform:"trim"`
}

type ToggleReactionRequest struct {
	Emoji string `json:"emoji" binding:"required,max=10"`
}

type MarkReadRequest struct {
	MessageIDs []uuid.UUID `json:"message_ids" binding:"required,min=1"`
}
