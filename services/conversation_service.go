package services

import (
	"log"
	"time"

	"github.com/chatterng/chatterx/config"
	"github.com/chatterng/chatterx/db"
	apiError "github.com/chatterng/chatterx/errors"
	"github.com/chatterng/chatterx/models"
	"github.com/google/uuid"
	"gorm.io/gorm"

	goerrors "errors"
)

// ConversationService drives conversation lifecycle and per-member settings.
type ConversationService interface {
	Create(requesterID uint, req *models.CreateConversationRequest) (*models.ConversationResponse, *apiError.Error)
	Get(conversationID uuid.UUID, requesterID uint) (*models.ConversationResponse, *apiError.Error)
	List(requesterID uint) ([]models.ConversationResponse, *apiError.Error)
	UpdateGroup(conversationID uuid.UUID, requesterID uint, req *models.UpdateConversationRequest, avatarRef string) (*models.ConversationResponse, *apiError.Error)
	ToggleMute(conversationID uuid.UUID, requesterID uint) (bool, *apiError.Error)
	ToggleArchive(conversationID uuid.UUID, requesterID uint) (bool, *apiError.Error)
}

type conversationService struct {
	Config           *config.Config
	conversationRepo db.ConversationRepository
	messageRepo      db.MessageRepository
	membership       MembershipService
	storage          StorageService
}

func NewConversationService(conversationRepo db.ConversationRepository, messageRepo db.MessageRepository, membership MembershipService, storage StorageService, conf *config.Config) ConversationService {
	return &conversationService{
		Config:           conf,
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		membership:       membership,
		storage:          storage,
	}
}

// Create builds a private conversation (two fixed members, deduplicated
// against an existing pair) or a group (creator admin, at least two members
// at creation).
func (s *conversationService) Create(requesterID uint, req *models.CreateConversationRequest) (*models.ConversationResponse, *apiError.Error) {
	now := time.Now()

	switch req.Kind {
	case models.ConversationPrivate:
		if req.UserID == 0 || req.UserID == requesterID {
			return nil, apiError.Validation("private conversation needs one other user")
		}
		if existing, err := s.conversationRepo.FindPrivateConversationBetween(requesterID, req.UserID); err == nil {
			return s.buildResponse(existing, requesterID)
		} else if !goerrors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("failed to look up private conversation: %v", err)
			return nil, apiError.ErrInternalServerError
		}

		conversation := &models.Conversation{
			Kind:      models.ConversationPrivate,
			CreatedBy: requesterID,
		}
		members := []models.ConversationMember{
			{UserID: requesterID, Role: models.RoleMember, JoinedAt: now},
			{UserID: req.UserID, Role: models.RoleMember, JoinedAt: now},
		}
		if err := s.conversationRepo.CreateConversation(conversation, members); err != nil {
			log.Printf("failed to create private conversation: %v", err)
			return nil, apiError.ErrInternalServerError
		}
		return s.buildResponse(conversation, requesterID)

	case models.ConversationGroup:
		memberIDs := dedupeMemberIDs(req.UserIDs, requesterID)
		if len(memberIDs) < 1 {
			return nil, apiError.Validation("a group needs at least two members at creation")
		}

		conversation := &models.Conversation{
			Kind:        models.ConversationGroup,
			Name:        req.Name,
			Description: req.Description,
			CreatedBy:   requesterID,
		}
		members := []models.ConversationMember{
			{UserID: requesterID, Role: models.RoleAdmin, JoinedAt: now},
		}
		for _, id := range memberIDs {
			members = append(members, models.ConversationMember{UserID: id, Role: models.RoleMember, JoinedAt: now})
		}
		if err := s.conversationRepo.CreateConversation(conversation, members); err != nil {
			log.Printf("failed to create group conversation: %v", err)
			return nil, apiError.ErrInternalServerError
		}
		return s.buildResponse(conversation, requesterID)
	}

	return nil, apiError.Validation("kind must be private or group")
}

func dedupeMemberIDs(ids []uint, excludeID uint) []uint {
	seen := map[uint]bool{excludeID: true}
	var out []uint
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func (s *conversationService) Get(conversationID uuid.UUID, requesterID uint) (*models.ConversationResponse, *apiError.Error) {
	if apiErr := s.membership.RequireActiveMember(conversationID, requesterID); apiErr != nil {
		return nil, apiErr
	}
	conversation, err := s.conversationRepo.FindConversationByID(conversationID)
	if err != nil {
		return nil, apiError.NotFound("conversation not found")
	}
	return s.buildResponse(conversation, requesterID)
}

func (s *conversationService) List(requesterID uint) ([]models.ConversationResponse, *apiError.Error) {
	conversations, err := s.conversationRepo.ListConversationsForUser(requesterID)
	if err != nil {
		log.Printf("failed to list conversations for user %d: %v", requesterID, err)
		return nil, apiError.ErrInternalServerError
	}

	out := make([]models.ConversationResponse, 0, len(conversations))
	for i := range conversations {
		resp, apiErr := s.buildResponse(&conversations[i], requesterID)
		if apiErr != nil {
			return nil, apiErr
		}
		out = append(out, *resp)
	}
	return out, nil
}

// UpdateGroup replaces group metadata; admin-only, groups only. A replaced
// avatar's old object is released best-effort.
func (s *conversationService) UpdateGroup(conversationID uuid.UUID, requesterID uint, req *models.UpdateConversationRequest, avatarRef string) (*models.ConversationResponse, *apiError.Error) {
	conversation, err := s.conversationRepo.FindConversationByID(conversationID)
	if err != nil {
		return nil, apiError.NotFound("conversation not found")
	}
	if !conversation.IsGroup() {
		return nil, apiError.InvalidOperation("only group conversations can be updated")
	}
	if apiErr := s.membership.RequireAdmin(conversationID, requesterID); apiErr != nil {
		return nil, apiErr
	}

	if req.Name != "" {
		conversation.Name = req.Name
	}
	if req.Description != "" {
		conversation.Description = req.Description
	}
	if avatarRef != "" {
		if conversation.Avatar != "" && s.storage != nil {
			old := conversation.Avatar
			go func() {
				if err := s.storage.DeleteObject(old); err != nil {
					log.Printf("failed to release old avatar %s: %v", old, err)
				}
			}()
		}
		conversation.Avatar = avatarRef
	}

	if err := s.conversationRepo.UpdateConversation(conversation); err != nil {
		log.Printf("failed to update conversation %s: %v", conversationID, err)
		return nil, apiError.ErrInternalServerError
	}
	return s.buildResponse(conversation, requesterID)
}

func (s *conversationService) ToggleMute(conversationID uuid.UUID, requesterID uint) (bool, *apiError.Error) {
	return s.toggleMembershipFlag(conversationID, requesterID, func(m *models.ConversationMember) bool {
		m.IsMuted = !m.IsMuted
		return m.IsMuted
	})
}

func (s *conversationService) ToggleArchive(conversationID uuid.UUID, requesterID uint) (bool, *apiError.Error) {
	return s.toggleMembershipFlag(conversationID, requesterID, func(m *models.ConversationMember) bool {
		m.IsArchived = !m.IsArchived
		return m.IsArchived
	})
}

func (s *conversationService) toggleMembershipFlag(conversationID uuid.UUID, requesterID uint, flip func(*models.ConversationMember) bool) (bool, *apiError.Error) {
	member, err := s.conversationRepo.FindActiveMembership(conversationID, requesterID)
	if err != nil {
		return false, apiError.Forbidden("you are not part of this conversation")
	}
	state := flip(member)
	if err := s.conversationRepo.UpdateMembership(member); err != nil {
		log.Printf("failed to update membership settings: %v", err)
		return false, apiError.ErrInternalServerError
	}
	return state, nil
}

func (s *conversationService) buildResponse(conversation *models.Conversation, requesterID uint) (*models.ConversationResponse, *apiError.Error) {
	members, err := s.conversationRepo.ActiveMembers(conversation.ID)
	if err != nil {
		log.Printf("failed to load members of conversation %s: %v", conversation.ID, err)
		return nil, apiError.ErrInternalServerError
	}

	resp := &models.ConversationResponse{
		ID:            conversation.ID,
		Kind:          conversation.Kind,
		Name:          conversation.Name,
		Avatar:        conversation.Avatar,
		Description:   conversation.Description,
		CreatedBy:     conversation.CreatedBy,
		LastMessageAt: conversation.LastMessageAt,
		CreatedAt:     conversation.CreatedAt,
	}
	for i := range members {
		resp.Members = append(resp.Members, members[i].User.Response())
		if members[i].UserID == requesterID {
			resp.IsMuted = members[i].IsMuted
			resp.IsArchived = members[i].IsArchived
		}
	}

	cid := conversation.ID
	unread, err := s.messageRepo.UnreadCount(requesterID, &cid)
	if err != nil {
		log.Printf("failed to compute unread count for conversation %s: %v", conversation.ID, err)
	}
	resp.UnreadCount = unread

	return resp, nil
}
