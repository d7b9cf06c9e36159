package services

import (
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/chatterng/chatterx/db"
	apiError "github.com/chatterng/chatterx/errors"
	"github.com/chatterng/chatterx/models"
	"github.com/google/uuid"
	"gorm.io/gorm"

	goerrors "errors"
)

// MembershipService is the authorization gate: every write elsewhere in the
// engine checks IsActiveMember first, and role-gated operations check RoleOf.
type MembershipService interface {
	IsActiveMember(conversationID uuid.UUID, userID uint) bool
	RoleOf(conversationID uuid.UUID, userID uint) (string, bool)
	RequireActiveMember(conversationID uuid.UUID, userID uint) *apiError.Error
	RequireAdmin(conversationID uuid.UUID, userID uint) *apiError.Error
	AddMember(conversationID uuid.UUID, requesterID, userID uint, role string) *apiError.Error
	RemoveMember(conversationID uuid.UUID, requesterID, userID uint) *apiError.Error
	Promote(conversationID uuid.UUID, requesterID, userID uint) *apiError.Error
	Leave(conversationID uuid.UUID, userID uint) *apiError.Error

	AuthorizeSubscribe(channel string, userID uint) bool
}

type membershipService struct {
	conversationRepo db.ConversationRepository
}

func NewMembershipService(conversationRepo db.ConversationRepository) MembershipService {
	return &membershipService{conversationRepo: conversationRepo}
}

func (m *membershipService) IsActiveMember(conversationID uuid.UUID, userID uint) bool {
	_, err := m.conversationRepo.FindActiveMembership(conversationID, userID)
	return err == nil
}

func (m *membershipService) RoleOf(conversationID uuid.UUID, userID uint) (string, bool) {
	member, err := m.conversationRepo.FindActiveMembership(conversationID, userID)
	if err != nil {
		return "", false
	}
	return member.Role, true
}

func (m *membershipService) RequireActiveMember(conversationID uuid.UUID, userID uint) *apiError.Error {
	if !m.IsActiveMember(conversationID, userID) {
		return apiError.Forbidden("you are not part of this conversation")
	}
	return nil
}

func (m *membershipService) RequireAdmin(conversationID uuid.UUID, userID uint) *apiError.Error {
	role, ok := m.RoleOf(conversationID, userID)
	if !ok || role != models.RoleAdmin {
		return apiError.Forbidden("only admins may perform this operation")
	}
	return nil
}

// AddMember is an idempotent join: a user with an active row is left alone.
// Membership of a private conversation is fixed at creation.
func (m *membershipService) AddMember(conversationID uuid.UUID, requesterID, userID uint, role string) *apiError.Error {
	conversation, err := m.conversationRepo.FindConversationByID(conversationID)
	if err != nil {
		return apiError.NotFound("conversation not found")
	}
	if conversation.IsPrivate() {
		return apiError.InvalidOperation("can only add users to group conversations")
	}
	if apiErr := m.RequireAdmin(conversationID, requesterID); apiErr != nil {
		return apiErr
	}

	if m.IsActiveMember(conversationID, userID) {
		return nil
	}
	if role == "" {
		role = models.RoleMember
	}
	member := &models.ConversationMember{
		ConversationID: conversationID,
		UserID:         userID,
		Role:           role,
		JoinedAt:       time.Now(),
	}
	if err := m.conversationRepo.CreateMembership(member); err != nil {
		// A racing join already inserted the active row; that is the
		// outcome we wanted.
		if apiError.IsUniqueConstraint(err) {
			return nil
		}
		log.Printf("failed to add member %d to conversation %s: %v", userID, conversationID, err)
		return apiError.ErrInternalServerError
	}
	return nil
}

func (m *membershipService) RemoveMember(conversationID uuid.UUID, requesterID, userID uint) *apiError.Error {
	conversation, err := m.conversationRepo.FindConversationByID(conversationID)
	if err != nil {
		return apiError.NotFound("conversation not found")
	}
	if conversation.IsPrivate() {
		return apiError.InvalidOperation("can only remove users from group conversations")
	}
	if apiErr := m.RequireAdmin(conversationID, requesterID); apiErr != nil {
		return apiErr
	}
	return m.closeMembership(conversation, userID)
}

// Leave closes the caller's own membership; no role is required.
func (m *membershipService) Leave(conversationID uuid.UUID, userID uint) *apiError.Error {
	conversation, err := m.conversationRepo.FindConversationByID(conversationID)
	if err != nil {
		return apiError.NotFound("conversation not found")
	}
	return m.closeMembership(conversation, userID)
}

func (m *membershipService) closeMembership(conversation *models.Conversation, userID uint) *apiError.Error {
	affected, err := m.conversationRepo.CloseMembership(conversation.ID, userID, time.Now())
	if err != nil {
		log.Printf("failed to close membership %d in conversation %s: %v", userID, conversation.ID, err)
		return apiError.ErrInternalServerError
	}
	if affected == 0 {
		return apiError.Forbidden("you are not part of this conversation")
	}

	if conversation.IsGroup() {
		count, err := m.conversationRepo.CountActiveMembers(conversation.ID)
		if err != nil {
			log.Printf("failed to count members of conversation %s: %v", conversation.ID, err)
			return nil
		}
		if count == 0 {
			if err := m.conversationRepo.SoftDeleteConversation(conversation.ID); err != nil {
				log.Printf("failed to delete empty conversation %s: %v", conversation.ID, err)
			}
		}
	}
	return nil
}

func (m *membershipService) Promote(conversationID uuid.UUID, requesterID, userID uint) *apiError.Error {
	conversation, err := m.conversationRepo.FindConversationByID(conversationID)
	if err != nil {
		return apiError.NotFound("conversation not found")
	}
	if conversation.IsPrivate() {
		return apiError.InvalidOperation("admin role only applies to groups")
	}
	if apiErr := m.RequireAdmin(conversationID, requesterID); apiErr != nil {
		return apiErr
	}

	member, err := m.conversationRepo.FindActiveMembership(conversationID, userID)
	if err != nil {
		if goerrors.Is(err, gorm.ErrRecordNotFound) {
			return apiError.NotFound("user is not a member of this conversation")
		}
		return apiError.ErrInternalServerError
	}
	member.Role = models.RoleAdmin
	if err := m.conversationRepo.UpdateMembership(member); err != nil {
		log.Printf("failed to promote member %d in conversation %s: %v", userID, conversationID, err)
		return apiError.ErrInternalServerError
	}
	return nil
}

// AuthorizeSubscribe implements the transport callback: conversation channels
// require active membership, the global users channel any authenticated user,
// and a user channel only its owner.
func (m *membershipService) AuthorizeSubscribe(channel string, userID uint) bool {
	switch {
	case channel == "users":
		return userID != 0
	case strings.HasPrefix(channel, "conversation."):
		conversationID, err := uuid.Parse(strings.TrimPrefix(channel, "conversation."))
		if err != nil {
			return false
		}
		return m.IsActiveMember(conversationID, userID)
	case strings.HasPrefix(channel, "user."):
		id, err := strconv.ParseUint(strings.TrimPrefix(channel, "user."), 10, 64)
		if err != nil {
			return false
		}
		return uint(id) == userID
	}
	return false
}
