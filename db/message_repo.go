package db

import (
	"time"

	apiError "github.com/chatterng/chatterx/errors"
	"github.com/chatterng/chatterx/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// MessageRepository persists messages, reactions and read receipts.
type MessageRepository interface {
	CreateMessage(message *models.Message) error
	FindMessageByID(id uuid.UUID) (*models.Message, error)
	UpdateMessage(message *models.Message) error
	SoftDeleteMessage(id uuid.UUID) error
	ListMessages(conversationID uuid.UUID, limit, offset int) ([]models.Message, error)
	CountMessages(conversationID uuid.UUID) (int64, error)
	UnreadCount(userID uint, conversationID *uuid.UUID) (int64, error)

	ToggleReaction(messageID uuid.UUID, userID uint, emoji string) (bool, error)
	ReactionsForMessage(messageID uuid.UUID) ([]models.MessageReaction, error)

	CreateRead(read *models.MessageRead) error
	HasRead(messageID uuid.UUID, userID uint) (bool, error)
	ReadsForMessage(messageID uuid.UUID) ([]models.MessageRead, error)
}

type messageRepo struct {
	DB *gorm.DB
}

func NewMessageRepo(db *GormDB) MessageRepository {
	return &messageRepo{db.DB}
}

// CreateMessage inserts the message and advances the conversation's
// last_message_at in the same transaction, so the activity cursor can never
// trail the insert it belongs to.
func (r *messageRepo) CreateMessage(message *models.Message) error {
	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}

	tx := r.DB.Begin()
	if err := tx.Create(message).Error; err != nil {
		tx.Rollback()
		return errors.Wrap(err, "failed to create message")
	}
	if err := tx.Model(&models.Conversation{}).
		Where("id = ?", message.ConversationID).
		Update("last_message_at", message.CreatedAt).Error; err != nil {
		tx.Rollback()
		return errors.Wrap(err, "failed to update conversation activity")
	}
	return tx.Commit().Error
}

func (r *messageRepo) FindMessageByID(id uuid.UUID) (*models.Message, error) {
	var message models.Message
	if err := r.DB.Preload("Sender").Where("id = ?", id).First(&message).Error; err != nil {
		return nil, err
	}
	return &message, nil
}

func (r *messageRepo) UpdateMessage(message *models.Message) error {
	return r.DB.Save(message).Error
}

func (r *messageRepo) SoftDeleteMessage(id uuid.UUID) error {
	return r.DB.Where("id = ?", id).Delete(&models.Message{}).Error
}

// ListMessages returns a page ordered newest first; within one conversation
// ties on created_at break by id so the order is stable.
func (r *messageRepo) ListMessages(conversationID uuid.UUID, limit, offset int) ([]models.Message, error) {
	var messages []models.Message
	err := r.DB.
		Preload("Sender").
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list messages")
	}
	return messages, nil
}

func (r *messageRepo) CountMessages(conversationID uuid.UUID) (int64, error) {
	var count int64
	err := r.DB.Model(&models.Message{}).
		Where("conversation_id = ?", conversationID).
		Count(&count).Error
	return count, err
}

// UnreadCount recomputes on demand: non-self, non-deleted messages in the
// user's active conversations with no receipt by the user. No counter is
// stored, so the result cannot drift.
func (r *messageRepo) UnreadCount(userID uint, conversationID *uuid.UUID) (int64, error) {
	var count int64
	q := r.DB.Model(&models.Message{}).
		Where("conversation_id IN (SELECT conversation_id FROM conversation_members WHERE user_id = ? AND left_at IS NULL)", userID).
		Where("sender_id <> ?", userID).
		Where("NOT EXISTS (SELECT 1 FROM message_reads mr WHERE mr.message_id = messages.id AND mr.user_id = ?)", userID)
	if conversationID != nil {
		q = q.Where("conversation_id = ?", *conversationID)
	}
	err := q.Count(&count).Error
	return count, err
}

// ToggleReaction removes the (message, user, emoji) row if present, inserts
// it otherwise, inside one transaction. A concurrent writer losing the insert
// race hits the unique constraint; that is reported as added=true since the
// triple exists, which is what the caller asked for.
func (r *messageRepo) ToggleReaction(messageID uuid.UUID, userID uint, emoji string) (bool, error) {
	tx := r.DB.Begin()

	res := tx.Where("message_id = ? AND user_id = ? AND emoji = ?", messageID, userID, emoji).
		Delete(&models.MessageReaction{})
	if res.Error != nil {
		tx.Rollback()
		return false, errors.Wrap(res.Error, "failed to remove reaction")
	}
	if res.RowsAffected > 0 {
		return false, tx.Commit().Error
	}

	reaction := models.MessageReaction{MessageID: messageID, UserID: userID, Emoji: emoji}
	if err := tx.Create(&reaction).Error; err != nil {
		tx.Rollback()
		if apiError.IsUniqueConstraint(err) {
			return true, nil
		}
		return false, errors.Wrap(err, "failed to add reaction")
	}
	return true, tx.Commit().Error
}

func (r *messageRepo) ReactionsForMessage(messageID uuid.UUID) ([]models.MessageReaction, error) {
	var reactions []models.MessageReaction
	err := r.DB.
		Preload("User").
		Where("message_id = ?", messageID).
		Order("created_at ASC").
		Find(&reactions).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to load reactions")
	}
	return reactions, nil
}

func (r *messageRepo) CreateRead(read *models.MessageRead) error {
	if read.ReadAt.IsZero() {
		read.ReadAt = time.Now()
	}
	return r.DB.Create(read).Error
}

func (r *messageRepo) HasRead(messageID uuid.UUID, userID uint) (bool, error) {
	var count int64
	err := r.DB.Model(&models.MessageRead{}).
		Where("message_id = ? AND user_id = ?", messageID, userID).
		Count(&count).Error
	return count > 0, err
}

func (r *messageRepo) ReadsForMessage(messageID uuid.UUID) ([]models.MessageRead, error) {
	var reads []models.MessageRead
	err := r.DB.
		Where("message_id = ?", messageID).
		Find(&reads).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to load reads")
	}
	return reads, nil
}
