package server

import (
	"net/http"

	"github.com/chatterng/chatterx/server/response"
	"github.com/gin-gonic/gin"
)

func (s *Server) handleTypingSignal() gin.HandlerFunc {
	return func(c *gin.Context) {
		conversationID, ok := parseUUIDParam(c, "conversationID")
		if !ok {
			return
		}
		if apiErr := s.TypingService.Signal(conversationID, currentUserID(c)); apiErr != nil {
			response.JSON(c, "", apiErr.Status, nil, apiErr)
			return
		}
		response.JSON(c, "typing recorded", http.StatusOK, nil, nil)
	}
}

func (s *Server) handleTypingClear() gin.HandlerFunc {
	return func(c *gin.Context) {
		conversationID, ok := parseUUIDParam(c, "conversationID")
		if !ok {
			return
		}
		if apiErr := s.TypingService.Clear(conversationID, currentUserID(c)); apiErr != nil {
			response.JSON(c, "", apiErr.Status, nil, apiErr)
			return
		}
		response.JSON(c, "typing cleared", http.StatusOK, nil, nil)
	}
}

func (s *Server) handleActiveTypers() gin.HandlerFunc {
	return func(c *gin.Context) {
		conversationID, ok := parseUUIDParam(c, "conversationID")
		if !ok {
			return
		}
		typers, apiErr := s.TypingService.ActiveTypers(conversationID, currentUserID(c))
		if apiErr != nil {
			response.JSON(c, "", apiErr.Status, nil, apiErr)
			return
		}
		response.JSON(c, "typers retrieved", http.StatusOK, typers, nil)
	}
}
