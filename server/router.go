package server

import (
	"fmt"
	"os"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func (s *Server) setupRouter() *gin.Engine {
	ginMode := os.Getenv("GIN_MODE")
	if ginMode == "test" {
		r := gin.New()
		s.defineRoutes(r)
		return r
	}

	r := gin.New()

	// LoggerWithFormatter middleware will write the logs to gin.DefaultWriter
	// By default gin.DefaultWriter = os.Stdout
	r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
			param.ClientIP,
			param.TimeStamp.Format(time.RFC1123),
			param.Method,
			param.Path,
			param.Request.Proto,
			param.StatusCode,
			param.Latency,
			param.Request.UserAgent(),
			param.ErrorMessage,
		)
	}))
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.MaxMultipartMemory = 32 << 20
	s.defineRoutes(r)

	return r
}

func (s *Server) defineRoutes(router *gin.Engine) {
	store := ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{
		Rate:  time.Minute,
		Limit: 10,
	})
	limitLogin := limitRateForLogin(store)

	apirouter := router.Group("/api/v1")
	apirouter.POST("/auth/signup", s.handleSignup())
	apirouter.POST("/auth/login", limitLogin, s.handleLogin())
	apirouter.POST("/auth/refresh", s.handleRefreshToken())

	authorized := apirouter.Group("/")
	authorized.Use(s.Authorize())

	authorized.GET("/logout", s.handleLogout())
	authorized.GET("/me", s.handleShowProfile())
	authorized.PUT("/me", s.handleUpdateProfile())
	authorized.DELETE("/me/avatar", s.handleRemoveAvatar())
	authorized.PUT("/me/status", s.handleUpdateStatus())
	authorized.POST("/me/heartbeat", s.handleHeartbeat())

	authorized.GET("/users", s.handleListUsers())
	authorized.GET("/users/search", s.handleSearchUsers())
	authorized.GET("/users/online", s.handleGetOnlineUsers())

	authorized.POST("/conversations", s.handleCreateConversation())
	authorized.GET("/conversations", s.handleListConversations())
	authorized.GET("/conversations/:conversationID", s.handleGetConversation())
	authorized.PUT("/conversations/:conversationID", s.handleUpdateConversation())
	authorized.POST("/conversations/:conversationID/leave", s.handleLeaveConversation())
	authorized.PUT("/conversations/:conversationID/mute", s.handleToggleMute())
	authorized.PUT("/conversations/:conversationID/archive", s.handleToggleArchive())

	authorized.POST("/conversations/:conversationID/members", s.handleAddMember())
	authorized.DELETE("/conversations/:conversationID/members/:userID", s.handleRemoveMember())
	authorized.PUT("/conversations/:conversationID/members/:userID/promote", s.handlePromoteMember())

	authorized.GET("/conversations/:conversationID/messages", s.handleListMessages())
	authorized.POST("/conversations/:conversationID/read", s.handleMarkManyRead())

	authorized.POST("/conversations/:conversationID/typing", s.handleTypingSignal())
	authorized.DELETE("/conversations/:conversationID/typing", s.handleTypingClear())
	authorized.GET("/conversations/:conversationID/typing", s.handleActiveTypers())

	authorized.POST("/messages", s.handleSendMessage())
	authorized.GET("/messages/:messageID", s.handleGetMessage())
	authorized.PUT("/messages/:messageID", s.handleEditMessage())
	authorized.DELETE("/messages/:messageID", s.handleDeleteMessage())
	authorized.POST("/messages/:messageID/reactions", s.handleToggleReaction())
	authorized.GET("/messages/:messageID/reactions", s.handleGetReactions())
	authorized.POST("/messages/:messageID/read", s.handleMarkRead())
	authorized.GET("/messages/:messageID/read-status", s.handleReadStatus())

	authorized.GET("/unread/count", s.handleUnreadCount())

	authorized.GET("/ws", s.handleWebSocket())
}
