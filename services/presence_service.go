package services

import (
	"log"
	"time"

	"github.com/chatterng/chatterx/config"
	"github.com/chatterng/chatterx/db"
	apiError "github.com/chatterng/chatterx/errors"
	"github.com/chatterng/chatterx/models"
	"github.com/chatterng/chatterx/realtime"
)

// PresenceService keeps user status and the last-seen clock, and announces
// changes on the global presence channel.
type PresenceService interface {
	SetStatus(userID uint, status string) *apiError.Error
	Heartbeat(userID uint) *apiError.Error
	OnlineUsers() ([]models.UserResponse, *apiError.Error)
	MarkOffline(userID uint)
}

type presenceService struct {
	Config      *config.Config
	authRepo    db.AuthRepository
	broadcaster realtime.Broadcaster
}

func NewPresenceService(authRepo db.AuthRepository, broadcaster realtime.Broadcaster, conf *config.Config) PresenceService {
	return &presenceService{
		Config:      conf,
		authRepo:    authRepo,
		broadcaster: broadcaster,
	}
}

func (s *presenceService) SetStatus(userID uint, status string) *apiError.Error {
	switch status {
	case models.StatusOnline, models.StatusOffline, models.StatusAway:
	default:
		return apiError.Validation("status must be online, offline or away")
	}

	if err := s.authRepo.UpdateUserStatus(userID, status, time.Now()); err != nil {
		log.Printf("failed to update status of user %d: %v", userID, err)
		return apiError.ErrInternalServerError
	}
	s.announce(userID)
	return nil
}

// Heartbeat refreshes last_seen_at without announcing anything; it only keeps
// an online user from going stale.
func (s *presenceService) Heartbeat(userID uint) *apiError.Error {
	if err := s.authRepo.Heartbeat(userID, time.Now()); err != nil {
		log.Printf("failed to record heartbeat of user %d: %v", userID, err)
		return apiError.ErrInternalServerError
	}
	return nil
}

func (s *presenceService) OnlineUsers() ([]models.UserResponse, *apiError.Error) {
	users, err := s.authRepo.OnlineUsers()
	if err != nil {
		log.Printf("failed to list online users: %v", err)
		return nil, apiError.ErrInternalServerError
	}

	out := make([]models.UserResponse, 0, len(users))
	for i := range users {
		out = append(out, users[i].Response())
	}
	return out, nil
}

// MarkOffline is the disconnect path (logout, last websocket closed). Errors
// are logged only; the caller is already past the point of reporting them.
func (s *presenceService) MarkOffline(userID uint) {
	if err := s.authRepo.UpdateUserStatus(userID, models.StatusOffline, time.Now()); err != nil {
		log.Printf("failed to mark user %d offline: %v", userID, err)
		return
	}
	s.announce(userID)
}

func (s *presenceService) announce(userID uint) {
	user, err := s.authRepo.FindUserByID(userID)
	if err != nil {
		log.Printf("failed to load user %d for status event: %v", userID, err)
		return
	}
	s.broadcaster.Publish(realtime.UserStatusChanged(user))
	s.broadcaster.Publish(realtime.UserStatusChangedFor(user))
}
