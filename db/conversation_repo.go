package db

import (
	"time"

	"github.com/chatterng/chatterx/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// ConversationRepository persists conversations and their memberships.
type ConversationRepository interface {
	CreateConversation(conversation *models.Conversation, members []models.ConversationMember) error
	FindConversationByID(id uuid.UUID) (*models.Conversation, error)
	FindPrivateConversationBetween(userA, userB uint) (*models.Conversation, error)
	ListConversationsForUser(userID uint) ([]models.Conversation, error)
	UpdateConversation(conversation *models.Conversation) error
	SoftDeleteConversation(id uuid.UUID) error

	FindActiveMembership(conversationID uuid.UUID, userID uint) (*models.ConversationMember, error)
	ActiveMembers(conversationID uuid.UUID) ([]models.ConversationMember, error)
	CountActiveMembers(conversationID uuid.UUID) (int64, error)
	CreateMembership(member *models.ConversationMember) error
	CloseMembership(conversationID uuid.UUID, userID uint, at time.Time) (int64, error)
	UpdateMembership(member *models.ConversationMember) error
}

type conversationRepo struct {
	DB *gorm.DB
}

func NewConversationRepo(db *GormDB) ConversationRepository {
	return &conversationRepo{db.DB}
}

func (r *conversationRepo) CreateConversation(conversation *models.Conversation, members []models.ConversationMember) error {
	if conversation.ID == uuid.Nil {
		conversation.ID = uuid.New()
	}

	tx := r.DB.Begin()
	if err := tx.Create(conversation).Error; err != nil {
		tx.Rollback()
		return errors.Wrap(err, "failed to create conversation")
	}
	for i := range members {
		members[i].ConversationID = conversation.ID
		if err := tx.Create(&members[i]).Error; err != nil {
			tx.Rollback()
			return errors.Wrap(err, "failed to create membership")
		}
	}
	return tx.Commit().Error
}

func (r *conversationRepo) FindConversationByID(id uuid.UUID) (*models.Conversation, error) {
	var conversation models.Conversation
	if err := r.DB.Where("id = ?", id).First(&conversation).Error; err != nil {
		return nil, err
	}
	return &conversation, nil
}

// FindPrivateConversationBetween returns the private conversation both users
// actively belong to, if one exists.
func (r *conversationRepo) FindPrivateConversationBetween(userA, userB uint) (*models.Conversation, error) {
	var conversation models.Conversation
	err := r.DB.
		Where("kind = ?", models.ConversationPrivate).
		Where("id IN (SELECT conversation_id FROM conversation_members WHERE user_id = ? AND left_at IS NULL)", userA).
		Where("id IN (SELECT conversation_id FROM conversation_members WHERE user_id = ? AND left_at IS NULL)", userB).
		First(&conversation).Error
	if err != nil {
		return nil, err
	}
	return &conversation, nil
}

func (r *conversationRepo) ListConversationsForUser(userID uint) ([]models.Conversation, error) {
	var conversations []models.Conversation
	err := r.DB.
		Where("id IN (SELECT conversation_id FROM conversation_members WHERE user_id = ? AND left_at IS NULL)", userID).
		Order("COALESCE(last_message_at, created_at) DESC").
		Find(&conversations).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list conversations")
	}
	return conversations, nil
}

func (r *conversationRepo) UpdateConversation(conversation *models.Conversation) error {
	return r.DB.Save(conversation).Error
}

func (r *conversationRepo) SoftDeleteConversation(id uuid.UUID) error {
	return r.DB.Where("id = ?", id).Delete(&models.Conversation{}).Error
}

func (r *conversationRepo) FindActiveMembership(conversationID uuid.UUID, userID uint) (*models.ConversationMember, error) {
	var member models.ConversationMember
	err := r.DB.
		Where("conversation_id = ? AND user_id = ? AND left_at IS NULL", conversationID, userID).
		First(&member).Error
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *conversationRepo) ActiveMembers(conversationID uuid.UUID) ([]models.ConversationMember, error) {
	var members []models.ConversationMember
	err := r.DB.
		Preload("User").
		Where("conversation_id = ? AND left_at IS NULL", conversationID).
		Order("joined_at ASC").
		Find(&members).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to load members")
	}
	return members, nil
}

func (r *conversationRepo) CountActiveMembers(conversationID uuid.UUID) (int64, error) {
	var count int64
	err := r.DB.Model(&models.ConversationMember{}).
		Where("conversation_id = ? AND left_at IS NULL", conversationID).
		Count(&count).Error
	return count, err
}

func (r *conversationRepo) CreateMembership(member *models.ConversationMember) error {
	return r.DB.Create(member).Error
}

// CloseMembership stamps left_at on the active row and reports how many rows
// it touched; zero means the user was not an active member.
func (r *conversationRepo) CloseMembership(conversationID uuid.UUID, userID uint, at time.Time) (int64, error) {
	res := r.DB.Model(&models.ConversationMember{}).
		Where("conversation_id = ? AND user_id = ? AND left_at IS NULL", conversationID, userID).
		Update("left_at", at)
	return res.RowsAffected, res.Error
}

func (r *conversationRepo) UpdateMembership(member *models.ConversationMember) error {
	return r.DB.Save(member).Error
}
