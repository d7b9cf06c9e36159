package db

import (
	"time"

	apiError "github.com/chatterng/chatterx/errors"
	"github.com/chatterng/chatterx/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// TypingRepository persists the ephemeral (conversation, user) typing rows.
type TypingRepository interface {
	UpsertTyping(conversationID uuid.UUID, userID uint, at time.Time) error
	ClearTyping(conversationID uuid.UUID, userID uint) error
	ActiveTypers(conversationID uuid.UUID, since time.Time) ([]models.TypingIndicator, error)
}

type typingRepo struct {
	DB *gorm.DB
}

func NewTypingRepo(db *GormDB) TypingRepository {
	return &typingRepo{db.DB}
}

// UpsertTyping overwrites last_typed_at for the pair, inserting the row on
// first signal. A concurrent first-signal race loses to the unique constraint
// and retries as an update.
func (r *typingRepo) UpsertTyping(conversationID uuid.UUID, userID uint, at time.Time) error {
	res := r.DB.Model(&models.TypingIndicator{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Update("last_typed_at", at)
	if res.Error != nil {
		return errors.Wrap(res.Error, "failed to update typing state")
	}
	if res.RowsAffected > 0 {
		return nil
	}

	indicator := models.TypingIndicator{
		ConversationID: conversationID,
		UserID:         userID,
		LastTypedAt:    at,
	}
	if err := r.DB.Create(&indicator).Error; err != nil {
		if apiError.IsUniqueConstraint(err) {
			return r.DB.Model(&models.TypingIndicator{}).
				Where("conversation_id = ? AND user_id = ?", conversationID, userID).
				Update("last_typed_at", at).Error
		}
		return errors.Wrap(err, "failed to create typing state")
	}
	return nil
}

func (r *typingRepo) ClearTyping(conversationID uuid.UUID, userID uint) error {
	return r.DB.
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Delete(&models.TypingIndicator{}).Error
}

func (r *typingRepo) ActiveTypers(conversationID uuid.UUID, since time.Time) ([]models.TypingIndicator, error) {
	var indicators []models.TypingIndicator
	err := r.DB.
		Preload("User").
		Where("conversation_id = ? AND last_typed_at > ?", conversationID, since).
		Find(&indicators).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to load typing state")
	}
	return indicators, nil
}
