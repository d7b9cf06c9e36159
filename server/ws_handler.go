package server

import (
	"log"
	"net/http"

	errs "github.com/chatterng/chatterx/errors"
	"github.com/chatterng/chatterx/models"
	"github.com/chatterng/chatterx/realtime"
	"github.com/chatterng/chatterx/server/response"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Cross-origin browser clients are allowed; auth happens on the token.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleWebSocket upgrades the authenticated connection and attaches it to
// the hub. The user goes online on first connect.
func (s *Server) handleWebSocket() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := currentUserID(c)
		if userID == 0 {
			response.JSON(c, "", http.StatusUnauthorized, nil, errs.New("Unauthorized", http.StatusUnauthorized))
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("websocket upgrade failed for user %d: %v", userID, err)
			return
		}

		client := realtime.NewClient(s.Hub, conn, userID)
		s.Hub.Register <- client

		if apiErr := s.PresenceService.SetStatus(userID, models.StatusOnline); apiErr != nil {
			log.Printf("failed to mark user %d online: %s", userID, apiErr.Message)
		}

		go client.WritePump()
		go client.ReadPump()
	}
}
