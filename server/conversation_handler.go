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

// parseUUIDParam reads a path parameter as a UUID; ok is false after the
// error response has been written.
func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.JSON(c, "", http.StatusBadRequest, nil, errs.New("invalid "+name, http.StatusBadRequest))
		return uuid.Nil, false
	}
	return id, true
}

func parseUintParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		response.JSON(c, "", http.StatusBadRequest, nil, errs.New("invalid "+name, http.StatusBadRequest))
		return 0, false
	}
	return uint(id), true
}

func (s *Server) handleCreateConversation() gin.HandlerFunc {
	return func(c *gin.Context) {
		var request models.CreateConversationRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.New(err.Error(), http.StatusBadRequest))
			return
		}

		conversation, apiErr := s.ConversationService.Create(currentUserID(c), &request)
		if apiErr != nil {
			response.JSON(c, "", apiErr.Status, nil, apiErr)
			return
		}
		response.JSON(c, "conversation created", http.StatusCreated, conversation, nil)
	}
}

func (s *Server) handleListConversations() gin.HandlerFunc {
	return func(c *gin.Context) {
		conversations, apiErr := s.ConversationService.List(currentUserID(c))
		if apiErr != nil {
			response.JSON(c, "", apiErr.Status, nil, apiErr)
			return
		}
		response.JSON(c, "conversations retrieved", http.StatusOK, conversations, nil)
	}
}

func (s *Server) handleGetConversation() gin.HandlerFunc {
	return func(c *gin.Context) {
		conversationID, ok := parseUUIDParam(c, "conversationID")
		if !ok {
			return
		}
		conversation, apiErr := s.ConversationService.Get(conversationID, currentUserID(c))
		if apiErr != nil {
			response.JSON(c, "", apiErr.Status, nil, apiErr)
			return
		}
		response.JSON(c, "conversation retrieved", http.StatusOK, conversation, nil)
	}
}

// handleUpdateConversation takes multipart form data so a group avatar can be
// replaced together with name and description.
func (s *Server) handleUpdateConversation() gin.HandlerFunc {
	return func(c *gin.Context) {
		conversationID, ok := parseUUIDParam(c, "conversationID")
		if !ok {
			return
		}
		var request models.UpdateConversationRequest
		if err := c.ShouldBind(&request); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.New(err.Error(), http.StatusBadRequest))
			return
		}

		avatarRef := ""
		if avatar, err := c.FormFile("avatar"); err == nil {
			ref, err := s.StorageService.UploadAvatar(avatar, currentUserID(c))
			if err != nil {
				response.JSON(c, "", http.StatusBadRequest, nil, errs.New("failed to upload avatar", http.StatusBadRequest))
				return
			}
			avatarRef = ref
		}

		conversation, apiErr := s.ConversationService.UpdateGroup(conversationID, currentUserID(c), &request, avatarRef)
		if apiErr != nil {
			response.JSON(c, "", apiErr.Status, nil, apiErr)
			return
		}
		response.JSON(c, "conversation updated", http.StatusOK, conversation, nil)
	}
}

func (s *Server) handleLeaveConversation() gin.HandlerFunc {
	return func(c *gin.Context) {
		conversationID, ok := parseUUIDParam(c, "conversationID")
		if !ok {
			return
		}
		if apiErr := s.MembershipService.Leave(conversationID, currentUserID(c)); apiErr != nil {
			response.JSON(c, "", apiErr.Status, nil, apiErr)
			return
		}
		response.JSON(c, "left conversation", http.StatusOK, nil, nil)
	}
}

func (s *Server) handleToggleMute() gin.HandlerFunc {
	return func(c *gin.Context) {
		conversationID, ok := parseUUIDParam(c, "conversationID")
		if !ok {
			return
		}
		muted, apiErr := s.ConversationService.ToggleMute(conversationID, currentUserID(c))
		if apiErr != nil {
			response.JSON(c, "", apiErr.Status, nil, apiErr)
			return
		}
		response.JSON(c, "mute toggled", http.StatusOK, gin.H{"is_muted": muted}, nil)
	}
}

func (s *Server) handleToggleArchive() gin.HandlerFunc {
	return func(c *gin.Context) {
		conversationID, ok := parseUUIDParam(c, "conversationID")
		if !ok {
			return
		}
		archived, apiErr := s.ConversationService.ToggleArchive(conversationID, currentUserID(c))
		if apiErr != nil {
			response.JSON(c, "", apiErr.Status, nil, apiErr)
			return
		}
		response.JSON(c, "archive toggled", http.StatusOK, gin.H{"is_archived": archived}, nil)
	}
}

func (s *Server) handleAddMember() gin.HandlerFunc {
	return func(c *gin.Context) {
		conversationID, ok := parseUUIDParam(c, "conversationID")
		if !ok {
			return
		}
		var request models.MemberRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.New(err.Error(), http.StatusBadRequest))
			return
		}
		if apiErr := s.MembershipService.AddMember(conversationID, currentUserID(c), request.UserID, models.RoleMember); apiErr != nil {
			response.JSON(c, "", apiErr.Status, nil, apiErr)
			return
		}
		response.JSON(c, "member added", http.StatusOK, nil, nil)
	}
}

func (s *Server) handleRemoveMember() gin.HandlerFunc {
	return func(c *gin.Context) {
		conversationID, ok := parseUUIDParam(c, "conversationID")
		if !ok {
			return
		}
		userID, ok := parseUintParam(c, "userID")
		if !ok {
			return
		}
		if apiErr := s.MembershipService.RemoveMember(conversationID, currentUserID(c), userID); apiErr != nil {
			response.JSON(c, "", apiErr.Status, nil, apiErr)
			return
		}
		response.JSON(c, "member removed", http.StatusOK, nil, nil)
	}
}

func (s *Server) handlePromoteMember() gin.HandlerFunc {
	return func(c *gin.Context) {
		conversationID, ok := parseUUIDParam(c, "conversationID")
		if !ok {
			return
		}
		userID, ok := parseUintParam(c, "userID")
		if !ok {
			return
		}
		if apiErr := s.MembershipService.Promote(conversationID, currentUserID(c), userID); apiErr != nil {
			response.JSON(c, "", apiErr.Status, nil, apiErr)
			return
		}
		response.JSON(c, "member promoted", http.StatusOK, nil, nil)
	}
}
