package server

import (
	"net/http"

	errs "github.com/chatterng/chatterx/errors"
	"github.com/chatterng/chatterx/models"
	"github.com/chatterng/chatterx/server/response"
	"github.com/gin-gonic/gin"
)

func (s *Server) handleListUsers() gin.HandlerFunc {
	return func(c *gin.Context) {
		users, apiErr := s.AuthService.ListUsers(currentUserID(c))
		if apiErr != nil {
			response.JSON(c, "", apiErr.Status, nil, apiErr)
			return
		}
		response.JSON(c, "users retrieved", http.StatusOK, users, nil)
	}
}

func (s *Server) handleSearchUsers() gin.HandlerFunc {
	return func(c *gin.Context) {
		users, apiErr := s.AuthService.SearchUsers(c.Query("q"), currentUserID(c))
		if apiErr != nil {
			response.JSON(c, "", apiErr.Status, nil, apiErr)
			return
		}
		response.JSON(c, "users retrieved", http.StatusOK, users, nil)
	}
}

func (s *Server) handleGetOnlineUsers() gin.HandlerFunc {
	return func(c *gin.Context) {
		users, apiErr := s.PresenceService.OnlineUsers()
		if apiErr != nil {
			response.JSON(c, "", apiErr.Status, nil, apiErr)
			return
		}
		response.JSON(c, "online users retrieved", http.StatusOK, users, nil)
	}
}

func (s *Server) handleUpdateStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		var request models.UpdateStatusRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.New(err.Error(), http.StatusBadRequest))
			return
		}
		if apiErr := s.PresenceService.SetStatus(currentUserID(c), request.Status); apiErr != nil {
			response.JSON(c, "", apiErr.Status, nil, apiErr)
			return
		}
		response.JSON(c, "status updated", http.StatusOK, nil, nil)
	}
}

func (s *Server) handleHeartbeat() gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiErr := s.PresenceService.Heartbeat(currentUserID(c)); apiErr != nil {
			response.JSON(c, "", apiErr.Status, nil, apiErr)
			return
		}
		response.JSON(c, "heartbeat recorded", http.StatusOK, nil, nil)
	}
}
