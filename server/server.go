package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chatterng/chatterx/config"
	"github.com/chatterng/chatterx/db"
	"github.com/chatterng/chatterx/realtime"
	"github.com/chatterng/chatterx/services"
)

// Server wires the HTTP surface to the service layer.
type Server struct {
	Config              *config.Config
	AuthRepository      db.AuthRepository
	AuthService         services.AuthService
	ConversationService services.ConversationService
	MembershipService   services.MembershipService
	MessageService      services.MessageService
	ReactionService     services.ReactionService
	ReceiptService      services.ReceiptService
	TypingService       services.TypingService
	PresenceService     services.PresenceService
	StorageService      services.StorageService
	Hub                 *realtime.Hub
}

// Start serves until SIGINT/SIGTERM, then drains in-flight requests.
func (s *Server) Start() {
	r := s.setupRouter()

	port := s.Config.Port
	if port == 0 {
		port = 8080
	}
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}

	go func() {
		log.Printf("server listening on :%d", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}
	log.Println("server exiting")
}
