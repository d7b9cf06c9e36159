package server

import (
	"net/http"
	"strconv"

	errs "github.com/chatterng/chatterx/errors"
	"github.com/chatterng/chatterx/models"
	"github.com/chatterng/chatterx/server/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// handleSendMessage accepts multipart form data; a non-text kind must carry
// the file under "media". The file is handed to the service untouched so the
// upload only happens after the send gates pass.
func (s *Server) handleSendMessage() gin.HandlerFunc {
	return func(c *gin.Context) {
		var request models.SendMessageRequest
		if err := c.ShouldBind(&request); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.New(err.Error(), http.StatusBadRequest))
			return
		}

		mediaFile, err := c.FormFile("media")
		if err != nil {
			mediaFile = nil
		}

		message, apiErr := s.MessageService.Send(currentUserID(c), &request, mediaFile)
		if apiErr != nil {
			response.JSON(c, "", apiErr.Status, nil, apiErr)
			return
		}
		response.JSON(c, "message sent", http.StatusCreated, message, nil)
	}
}

func (s *Server) handleGetMessage() gin.HandlerFunc {
	return func(c *gin.Context) {
		messageID, ok := parseUUIDParam(c, "messageID")
		if !ok {
			return
		}
		message, apiErr := s.MessageService.Get(messageID, currentUserID(c))
		if apiErr != nil {
			response.JSON(c, "", apiErr.Status, nil, apiErr)
			return
		}
		response.JSON(c, "message retrieved", http.StatusOK, message, nil)
	}
}

func (s *Server) handleListMessages() gin.HandlerFunc {
	return func(c *gin.Context) {
		conversationID, ok := parseUUIDParam(c, "conversationID")
		if !ok {
			return
		}
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "50"))

		messages, total, apiErr := s.MessageService.List(conversationID, currentUserID(c), page, perPage)
		if apiErr != nil {
			response.JSON(c, "", apiErr.Status, nil, apiErr)
			return
		}
		response.JSON(c, "messages retrieved", http.StatusOK, gin.H{
			"messages": messages,
			"total":    total,
			"page":     page,
		}, nil)
	}
}

func (s *Server) handleEditMessage() gin.HandlerFunc {
	return func(c *gin.Context) {
		messageID, ok := parseUUIDParam(c, "messageID")
		if !ok {
			return
		}
		var request models.EditMessageRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.New(err.Error(), http.StatusBadRequest))
			return
		}
		message, apiErr := s.MessageService.Edit(messageID, currentUserID(c), request.Body)
		if apiErr != nil {
			response.JSON(c, "", apiErr.Status, nil, apiErr)
			return
		}
		response.JSON(c, "message updated", http.StatusOK, message, nil)
	}
}

func (s *Server) handleDeleteMessage() gin.HandlerFunc {
	return func(c *gin.Context) {
		messageID, ok := parseUUIDParam(c, "messageID")
		if !ok {
			return
		}
		if apiErr := s.MessageService.Delete(messageID, currentUserID(c)); apiErr != nil {
			response.JSON(c, "", apiErr.Status, nil, apiErr)
			return
		}
		response.JSON(c, "message deleted", http.StatusOK, nil, nil)
	}
}

func (s *Server) handleToggleReaction() gin.HandlerFunc {
	return func(c *gin.Context) {
		messageID, ok := parseUUIDParam(c, "messageID")
		if !ok {
			return
		}
		var request models.ToggleReactionRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.New(err.Error(), http.StatusBadRequest))
			return
		}

		added, reactions, apiErr := s.ReactionService.Toggle(messageID, currentUserID(c), request.Emoji)
		if apiErr != nil {
			response.JSON(c, "", apiErr.Status, nil, apiErr)
			return
		}
		response.JSON(c, "reaction toggled", http.StatusOK, gin.H{
			"added":     added,
			"reactions": reactions,
		}, nil)
	}
}

func (s *Server) handleGetReactions() gin.HandlerFunc {
	return func(c *gin.Context) {
		messageID, ok := parseUUIDParam(c, "messageID")
		if !ok {
			return
		}
		reactions, apiErr := s.ReactionService.GroupedReactions(messageID, currentUserID(c))
		if apiErr != nil {
			response.JSON(c, "", apiErr.Status, nil, apiErr)
			return
		}
		response.JSON(c, "reactions retrieved", http.StatusOK, reactions, nil)
	}
}

func (s *Server) handleMarkRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		messageID, ok := parseUUIDParam(c, "messageID")
		if !ok {
			return
		}
		if apiErr := s.ReceiptService.MarkRead(messageID, currentUserID(c)); apiErr != nil {
			response.JSON(c, "", apiErr.Status, nil, apiErr)
			return
		}
		response.JSON(c, "message marked read", http.StatusOK, nil, nil)
	}
}

func (s *Server) handleMarkManyRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		conversationID, ok := parseUUIDParam(c, "conversationID")
		if !ok {
			return
		}
		var request models.MarkReadRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.New(err.Error(), http.StatusBadRequest))
			return
		}
		if apiErr := s.ReceiptService.MarkManyRead(conversationID, request.MessageIDs, currentUserID(c)); apiErr != nil {
			response.JSON(c, "", apiErr.Status, nil, apiErr)
			return
		}
		response.JSON(c, "messages marked read", http.StatusOK, nil, nil)
	}
}

func (s *Server) handleReadStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		messageID, ok := parseUUIDParam(c, "messageID")
		if !ok {
			return
		}
		statuses, apiErr := s.MessageService.ReadStatus(messageID, currentUserID(c))
		if apiErr != nil {
			response.JSON(c, "", apiErr.Status, nil, apiErr)
			return
		}
		response.JSON(c, "read status retrieved", http.StatusOK, statuses, nil)
	}
}

// handleUnreadCount reports the total across the user's conversations, or a
// single conversation's count when conversation_id is supplied.
func (s *Server) handleUnreadCount() gin.HandlerFunc {
	return func(c *gin.Context) {
		var conversationID *uuid.UUID
		if raw := c.Query("conversation_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				response.JSON(c, "", http.StatusBadRequest, nil, errs.New("invalid conversation_id", http.StatusBadRequest))
				return
			}
			conversationID = &id
		}

		count, apiErr := s.MessageService.UnreadCount(currentUserID(c), conversationID)
		if apiErr != nil {
			response.JSON(c, "", apiErr.Status, nil, apiErr)
			return
		}
		response.JSON(c, "unread count retrieved", http.StatusOK, gin.H{"unread_count": count}, nil)
	}
}
