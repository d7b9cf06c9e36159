package services

import (
	"log"

	"github.com/chatterng/chatterx/db"
	apiError "github.com/chatterng/chatterx/errors"
	"github.com/chatterng/chatterx/models"
	"github.com/chatterng/chatterx/realtime"
	"github.com/google/uuid"
)

// ReactionService toggles emoji reactions and serves the grouped projection.
type ReactionService interface {
	Toggle(messageID uuid.UUID, userID uint, emoji string) (bool, []models.GroupedReaction, *apiError.Error)
	GroupedReactions(messageID uuid.UUID, requesterID uint) ([]models.GroupedReaction, *apiError.Error)
}

type reactionService struct {
	messageRepo db.MessageRepository
	authRepo    db.AuthRepository
	membership  MembershipService
	broadcaster realtime.Broadcaster
}

func NewReactionService(messageRepo db.MessageRepository, authRepo db.AuthRepository, membership MembershipService, broadcaster realtime.Broadcaster) ReactionService {
	return &reactionService{
		messageRepo: messageRepo,
		authRepo:    authRepo,
		membership:  membership,
		broadcaster: broadcaster,
	}
}

// Toggle flips the (message, user, emoji) triple: absent becomes present,
// present becomes absent. The returned bool reports whether the reaction now
// exists. A second identical call undoes the first.
func (s *reactionService) Toggle(messageID uuid.UUID, userID uint, emoji string) (bool, []models.GroupedReaction, *apiError.Error) {
	if emoji == "" {
		return false, nil, apiError.Validation("emoji is required")
	}
	message, err := s.messageRepo.FindMessageByID(messageID)
	if err != nil {
		return false, nil, apiError.NotFound("message not found")
	}
	if apiErr := s.membership.RequireActiveMember(message.ConversationID, userID); apiErr != nil {
		return false, nil, apiErr
	}

	added, err := s.messageRepo.ToggleReaction(messageID, userID, emoji)
	if err != nil {
		log.Printf("failed to toggle reaction on message %s: %v", messageID, err)
		return false, nil, apiError.ErrInternalServerError
	}

	reactions, apiErr := s.loadGrouped(messageID)
	if apiErr != nil {
		return added, nil, apiErr
	}

	user, err := s.authRepo.FindUserByID(userID)
	if err != nil {
		log.Printf("failed to load user %d for reaction event: %v", userID, err)
		return added, reactions, nil
	}
	s.broadcaster.Publish(
		realtime.MessageReactionToggled(message.ConversationID, messageID, user.Response(), emoji, added, reactions).
			ToOthers(userID))
	return added, reactions, nil
}

func (s *reactionService) GroupedReactions(messageID uuid.UUID, requesterID uint) ([]models.GroupedReaction, *apiError.Error) {
	message, err := s.messageRepo.FindMessageByID(messageID)
	if err != nil {
		return nil, apiError.NotFound("message not found")
	}
	if apiErr := s.membership.RequireActiveMember(message.ConversationID, requesterID); apiErr != nil {
		return nil, apiErr
	}
	return s.loadGrouped(messageID)
}

func (s *reactionService) loadGrouped(messageID uuid.UUID) ([]models.GroupedReaction, *apiError.Error) {
	reactions, err := s.messageRepo.ReactionsForMessage(messageID)
	if err != nil {
		log.Printf("failed to load reactions for message %s: %v", messageID, err)
		return nil, apiError.ErrInternalServerError
	}
	return groupReactions(reactions), nil
}

// groupReactions folds raw reaction rows into the emoji -> {count, users}
// projection, emojis ordered by first use.
func groupReactions(reactions []models.MessageReaction) []models.GroupedReaction {
	index := make(map[string]int)
	grouped := make([]models.GroupedReaction, 0)
	for i := range reactions {
		emoji := reactions[i].Emoji
		at, ok := index[emoji]
		if !ok {
			at = len(grouped)
			index[emoji] = at
			grouped = append(grouped, models.GroupedReaction{Emoji: emoji})
		}
		grouped[at].Count++
		grouped[at].Users = append(grouped[at].Users, reactions[i].User.Response())
	}
	return grouped
}
