package services

import (
	"log"
	"time"

	"github.com/chatterng/chatterx/config"
	"github.com/chatterng/chatterx/db"
	apiError "github.com/chatterng/chatterx/errors"
	"github.com/chatterng/chatterx/models"
	"github.com/chatterng/chatterx/realtime"
	"github.com/google/uuid"
)

// TypingService tracks the short-lived typing state. A signal is a timestamp
// overwrite; the state expires by falling out of the window, so a client that
// vanishes mid-typing needs no cleanup.
type TypingService interface {
	Signal(conversationID uuid.UUID, userID uint) *apiError.Error
	Clear(conversationID uuid.UUID, userID uint) *apiError.Error
	ActiveTypers(conversationID uuid.UUID, requesterID uint) ([]models.UserResponse, *apiError.Error)
}

type typingService struct {
	Config      *config.Config
	typingRepo  db.TypingRepository
	authRepo    db.AuthRepository
	membership  MembershipService
	broadcaster realtime.Broadcaster
}

func NewTypingService(typingRepo db.TypingRepository, authRepo db.AuthRepository, membership MembershipService, broadcaster realtime.Broadcaster, conf *config.Config) TypingService {
	return &typingService{
		Config:      conf,
		typingRepo:  typingRepo,
		authRepo:    authRepo,
		membership:  membership,
		broadcaster: broadcaster,
	}
}

func (s *typingService) Signal(conversationID uuid.UUID, userID uint) *apiError.Error {
	if apiErr := s.membership.RequireActiveMember(conversationID, userID); apiErr != nil {
		return apiErr
	}
	if err := s.typingRepo.UpsertTyping(conversationID, userID, time.Now()); err != nil {
		log.Printf("failed to record typing in conversation %s: %v", conversationID, err)
		return apiError.ErrInternalServerError
	}
	s.announce(conversationID, userID, true)
	return nil
}

// Clear removes the state immediately (message sent, input emptied) instead
// of waiting out the window.
func (s *typingService) Clear(conversationID uuid.UUID, userID uint) *apiError.Error {
	if apiErr := s.membership.RequireActiveMember(conversationID, userID); apiErr != nil {
		return apiErr
	}
	if err := s.typingRepo.ClearTyping(conversationID, userID); err != nil {
		log.Printf("failed to clear typing in conversation %s: %v", conversationID, err)
		return apiError.ErrInternalServerError
	}
	s.announce(conversationID, userID, false)
	return nil
}

// ActiveTypers lists users whose last signal falls inside the window, the
// requester excluded from their own view.
func (s *typingService) ActiveTypers(conversationID uuid.UUID, requesterID uint) ([]models.UserResponse, *apiError.Error) {
	if apiErr := s.membership.RequireActiveMember(conversationID, requesterID); apiErr != nil {
		return nil, apiErr
	}
	indicators, err := s.typingRepo.ActiveTypers(conversationID, time.Now().Add(-s.Config.TypingWindow()))
	if err != nil {
		log.Printf("failed to load typers in conversation %s: %v", conversationID, err)
		return nil, apiError.ErrInternalServerError
	}

	out := make([]models.UserResponse, 0, len(indicators))
	for i := range indicators {
		if indicators[i].UserID == requesterID {
			continue
		}
		out = append(out, indicators[i].User.Response())
	}
	return out, nil
}

func (s *typingService) announce(conversationID uuid.UUID, userID uint, isTyping bool) {
	user, err := s.authRepo.FindUserByID(userID)
	if err != nil {
		log.Printf("failed to load user %d for typing event: %v", userID, err)
		return
	}
	s.broadcaster.Publish(realtime.UserTyping(conversationID, user.Response(), isTyping).ToOthers(userID))
}
