package services

import (
	"log"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/chatterng/chatterx/config"
	"github.com/chatterng/chatterx/db"
	apiError "github.com/chatterng/chatterx/errors"
	"github.com/chatterng/chatterx/models"
	"github.com/chatterng/chatterx/realtime"
	"github.com/google/uuid"
)

// MessageService drives the message lifecycle: send, edit, delete, history
// and unread accounting.
type MessageService interface {
	Send(senderID uint, req *models.SendMessageRequest, mediaFile *multipart.FileHeader) (*models.MessageResponse, *apiError.Error)
	Edit(messageID uuid.UUID, requesterID uint, newBody string) (*models.MessageResponse, *apiError.Error)
	Delete(messageID uuid.UUID, requesterID uint) *apiError.Error
	Get(messageID uuid.UUID, requesterID uint) (*models.MessageResponse, *apiError.Error)
	List(conversationID uuid.UUID, requesterID uint, page, perPage int) ([]models.MessageResponse, int64, *apiError.Error)
	ReadStatus(messageID uuid.UUID, requesterID uint) ([]models.ReadStatus, *apiError.Error)
	UnreadCount(userID uint, conversationID *uuid.UUID) (int64, *apiError.Error)
}

type messageService struct {
	Config           *config.Config
	messageRepo      db.MessageRepository
	conversationRepo db.ConversationRepository
	membership       MembershipService
	storage          StorageService
	broadcaster      realtime.Broadcaster
}

func NewMessageService(messageRepo db.MessageRepository, conversationRepo db.ConversationRepository, membership MembershipService, storage StorageService, broadcaster realtime.Broadcaster, conf *config.Config) MessageService {
	return &messageService{
		Config:           conf,
		messageRepo:      messageRepo,
		conversationRepo: conversationRepo,
		membership:       membership,
		storage:          storage,
		broadcaster:      broadcaster,
	}
}

// Send validates the kind/body/media exclusivity rule and the reply target,
// persists the message (advancing the conversation's activity cursor in the
// same transaction) and broadcasts message.sent. The media file is only
// uploaded once every gate has passed, so a rejected send never leaves an
// orphaned object in storage.
func (s *messageService) Send(senderID uint, req *models.SendMessageRequest, mediaFile *multipart.FileHeader) (*models.MessageResponse, *apiError.Error) {
	if apiErr := s.membership.RequireActiveMember(req.ConversationID, senderID); apiErr != nil {
		return nil, apiErr
	}
	if !models.ValidMessageKind(req.Kind) {
		return nil, apiError.Validation("unknown message kind")
	}

	if req.Kind == models.MessageText {
		if req.Body == "" {
			return nil, apiError.Validation("text messages need a body")
		}
		if mediaFile != nil {
			return nil, apiError.Validation("text messages cannot carry media")
		}
	} else {
		if mediaFile == nil {
			return nil, apiError.Validation("media messages need a file")
		}
		if req.Body != "" {
			return nil, apiError.Validation("media messages cannot carry a body")
		}
	}

	if req.ReplyTo != nil {
		target, err := s.messageRepo.FindMessageByID(*req.ReplyTo)
		if err != nil {
			return nil, apiError.Validation("reply target not found")
		}
		if target.ConversationID != req.ConversationID {
			return nil, apiError.Validation("reply target belongs to another conversation")
		}
	}

	var media *MediaUpload
	if mediaFile != nil {
		upload, err := s.storage.UploadMessageMedia(mediaFile, req.Kind, senderID)
		if err != nil {
			return nil, apiError.New(err.Error(), http.StatusBadRequest)
		}
		media = upload
	}

	message := &models.Message{
		ConversationID: req.ConversationID,
		SenderID:       senderID,
		Kind:           req.Kind,
		Body:           req.Body,
		ReplyTo:        req.ReplyTo,
		CreatedAt:      time.Now(),
	}
	if media != nil {
		message.MediaRef = media.StorageRef
		message.MediaName = media.OriginalName
		message.MediaType = media.MimeType
		message.MediaSize = media.SizeBytes
	}

	if err := s.messageRepo.CreateMessage(message); err != nil {
		log.Printf("failed to create message in conversation %s: %v", req.ConversationID, err)
		return nil, apiError.ErrInternalServerError
	}

	full, err := s.messageRepo.FindMessageByID(message.ID)
	if err != nil {
		log.Printf("failed to reload message %s: %v", message.ID, err)
		return nil, apiError.ErrInternalServerError
	}
	resp := full.Response()
	s.broadcaster.Publish(realtime.MessageSent(resp).ToOthers(senderID))
	return &resp, nil
}

// Edit replaces the body in place; no version history is kept. Text only,
// sender only.
func (s *messageService) Edit(messageID uuid.UUID, requesterID uint, newBody string) (*models.MessageResponse, *apiError.Error) {
	message, err := s.messageRepo.FindMessageByID(messageID)
	if err != nil {
		return nil, apiError.NotFound("message not found")
	}
	if message.SenderID != requesterID {
		return nil, apiError.Forbidden("you can only edit your own messages")
	}
	if !message.IsText() {
		return nil, apiError.InvalidOperation("only text messages can be edited")
	}
	if newBody == "" {
		return nil, apiError.Validation("text messages need a body")
	}

	now := time.Now()
	message.Body = newBody
	message.IsEdited = true
	message.EditedAt = &now
	if err := s.messageRepo.UpdateMessage(message); err != nil {
		log.Printf("failed to edit message %s: %v", messageID, err)
		return nil, apiError.ErrInternalServerError
	}

	resp := message.Response()
	s.broadcaster.Publish(realtime.MessageUpdated(resp).ToOthers(requesterID))
	return &resp, nil
}

// Delete soft-deletes the message. Its reactions and receipts stay in place
// for audit but drop out of every aggregate query with the message. The media
// object is released fire-and-forget: the state transition stands whether or
// not storage cleanup succeeds.
func (s *messageService) Delete(messageID uuid.UUID, requesterID uint) *apiError.Error {
	message, err := s.messageRepo.FindMessageByID(messageID)
	if err != nil {
		return apiError.NotFound("message not found")
	}
	if message.SenderID != requesterID {
		return apiError.Forbidden("you can only delete your own messages")
	}

	if err := s.messageRepo.SoftDeleteMessage(messageID); err != nil {
		log.Printf("failed to delete message %s: %v", messageID, err)
		return apiError.ErrInternalServerError
	}

	if message.HasMedia() && s.storage != nil {
		ref := message.MediaRef
		go func() {
			if err := s.storage.DeleteObject(ref); err != nil {
				log.Printf("failed to release media %s: %v", ref, err)
			}
		}()
	}

	s.broadcaster.Publish(realtime.MessageDeleted(messageID, message.ConversationID).ToOthers(requesterID))
	return nil
}

func (s *messageService) Get(messageID uuid.UUID, requesterID uint) (*models.MessageResponse, *apiError.Error) {
	message, err := s.messageRepo.FindMessageByID(messageID)
	if err != nil {
		return nil, apiError.NotFound("message not found")
	}
	if apiErr := s.membership.RequireActiveMember(message.ConversationID, requesterID); apiErr != nil {
		return nil, apiErr
	}
	resp := message.Response()
	return &resp, nil
}

func (s *messageService) List(conversationID uuid.UUID, requesterID uint, page, perPage int) ([]models.MessageResponse, int64, *apiError.Error) {
	if apiErr := s.membership.RequireActiveMember(conversationID, requesterID); apiErr != nil {
		return nil, 0, apiErr
	}
	if perPage <= 0 || perPage > 100 {
		perPage = 50
	}
	if page <= 0 {
		page = 1
	}

	messages, err := s.messageRepo.ListMessages(conversationID, perPage, (page-1)*perPage)
	if err != nil {
		log.Printf("failed to list messages in conversation %s: %v", conversationID, err)
		return nil, 0, apiError.ErrInternalServerError
	}
	total, err := s.messageRepo.CountMessages(conversationID)
	if err != nil {
		log.Printf("failed to count messages in conversation %s: %v", conversationID, err)
		return nil, 0, apiError.ErrInternalServerError
	}

	out := make([]models.MessageResponse, 0, len(messages))
	for i := range messages {
		out = append(out, messages[i].Response())
	}
	return out, total, nil
}

// ReadStatus reports is_read/read_at per active member, sender excluded.
func (s *messageService) ReadStatus(messageID uuid.UUID, requesterID uint) ([]models.ReadStatus, *apiError.Error) {
	message, err := s.messageRepo.FindMessageByID(messageID)
	if err != nil {
		return nil, apiError.NotFound("message not found")
	}
	if apiErr := s.membership.RequireActiveMember(message.ConversationID, requesterID); apiErr != nil {
		return nil, apiErr
	}

	members, err := s.conversationRepo.ActiveMembers(message.ConversationID)
	if err != nil {
		log.Printf("failed to load members for read status: %v", err)
		return nil, apiError.ErrInternalServerError
	}
	reads, err := s.messageRepo.ReadsForMessage(messageID)
	if err != nil {
		log.Printf("failed to load reads for message %s: %v", messageID, err)
		return nil, apiError.ErrInternalServerError
	}
	readBy := make(map[uint]time.Time, len(reads))
	for _, r := range reads {
		readBy[r.UserID] = r.ReadAt
	}

	var out []models.ReadStatus
	for _, member := range members {
		if member.UserID == message.SenderID {
			continue
		}
		status := models.ReadStatus{UserID: member.UserID}
		if at, ok := readBy[member.UserID]; ok {
			status.IsRead = true
			readAt := at
			status.ReadAt = &readAt
		}
		out = append(out, status)
	}
	return out, nil
}

func (s *messageService) UnreadCount(userID uint, conversationID *uuid.UUID) (int64, *apiError.Error) {
	count, err := s.messageRepo.UnreadCount(userID, conversationID)
	if err != nil {
		log.Printf("failed to compute unread count for user %d: %v", userID, err)
		return 0, apiError.ErrInternalServerError
	}
	return count, nil
}
