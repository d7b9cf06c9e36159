package services

import (
	"log"
	"time"

	"github.com/chatterng/chatterx/db"
	apiError "github.com/chatterng/chatterx/errors"
	"github.com/chatterng/chatterx/models"
	"github.com/chatterng/chatterx/realtime"
	"github.com/google/uuid"
)

// ReceiptService records read receipts. Receipts are write-once: a message is
// read or it is not, and re-reading never moves read_at.
type ReceiptService interface {
	MarkRead(messageID uuid.UUID, userID uint) *apiError.Error
	MarkManyRead(conversationID uuid.UUID, messageIDs []uuid.UUID, userID uint) *apiError.Error
	IsReadBy(messageID uuid.UUID, userID uint) (bool, *apiError.Error)
}

type receiptService struct {
	messageRepo db.MessageRepository
	authRepo    db.AuthRepository
	membership  MembershipService
	broadcaster realtime.Broadcaster
}

func NewReceiptService(messageRepo db.MessageRepository, authRepo db.AuthRepository, membership MembershipService, broadcaster realtime.Broadcaster) ReceiptService {
	return &receiptService{
		messageRepo: messageRepo,
		authRepo:    authRepo,
		membership:  membership,
		broadcaster: broadcaster,
	}
}

func (s *receiptService) MarkRead(messageID uuid.UUID, userID uint) *apiError.Error {
	message, err := s.messageRepo.FindMessageByID(messageID)
	if err != nil {
		return apiError.NotFound("message not found")
	}
	if apiErr := s.membership.RequireActiveMember(message.ConversationID, userID); apiErr != nil {
		return apiErr
	}

	readAt := time.Now()
	created, apiErr := s.record(message, userID, readAt)
	if apiErr != nil {
		return apiErr
	}
	if created {
		s.announce(message.ConversationID, []uuid.UUID{messageID}, userID, readAt)
	}
	return nil
}

// MarkManyRead is the catch-up batch: every listed message in the
// conversation gets a receipt, skipping the caller's own messages and ones
// already read. One message.read event covers the newly read set.
func (s *receiptService) MarkManyRead(conversationID uuid.UUID, messageIDs []uuid.UUID, userID uint) *apiError.Error {
	if apiErr := s.membership.RequireActiveMember(conversationID, userID); apiErr != nil {
		return apiErr
	}

	readAt := time.Now()
	var marked []uuid.UUID
	for _, id := range messageIDs {
		message, err := s.messageRepo.FindMessageByID(id)
		if err != nil {
			continue
		}
		if message.ConversationID != conversationID {
			continue
		}
		created, apiErr := s.record(message, userID, readAt)
		if apiErr != nil {
			return apiErr
		}
		if created {
			marked = append(marked, id)
		}
	}

	if len(marked) > 0 {
		s.announce(conversationID, marked, userID, readAt)
	}
	return nil
}

// record writes one receipt. Self-reads are silent no-ops, as is a receipt
// that already exists, whether found up front or lost to a racing insert.
func (s *receiptService) record(message *models.Message, userID uint, readAt time.Time) (bool, *apiError.Error) {
	if message.SenderID == userID {
		return false, nil
	}
	read, err := s.messageRepo.HasRead(message.ID, userID)
	if err != nil {
		log.Printf("failed to check receipt for message %s: %v", message.ID, err)
		return false, apiError.ErrInternalServerError
	}
	if read {
		return false, nil
	}

	receipt := &models.MessageRead{
		MessageID: message.ID,
		UserID:    userID,
		ReadAt:    readAt,
	}
	if err := s.messageRepo.CreateRead(receipt); err != nil {
		if apiError.IsUniqueConstraint(err) {
			return false, nil
		}
		log.Printf("failed to record receipt for message %s: %v", message.ID, err)
		return false, apiError.ErrInternalServerError
	}
	return true, nil
}

func (s *receiptService) announce(conversationID uuid.UUID, messageIDs []uuid.UUID, userID uint, readAt time.Time) {
	user, err := s.authRepo.FindUserByID(userID)
	if err != nil {
		log.Printf("failed to load user %d for read event: %v", userID, err)
		return
	}
	s.broadcaster.Publish(realtime.MessageRead(conversationID, messageIDs, user.Response(), readAt).ToOthers(userID))
}

func (s *receiptService) IsReadBy(messageID uuid.UUID, userID uint) (bool, *apiError.Error) {
	read, err := s.messageRepo.HasRead(messageID, userID)
	if err != nil {
		log.Printf("failed to check receipt for message %s: %v", messageID, err)
		return false, apiError.ErrInternalServerError
	}
	return read, nil
}
