package main

import (
	"log"

	"github.com/chatterng/chatterx/config"
	"github.com/chatterng/chatterx/db"
	"github.com/chatterng/chatterx/realtime"
	"github.com/chatterng/chatterx/server"
	"github.com/chatterng/chatterx/services"
)

func main() {
	conf, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	gormDB := db.GetDB(conf)
	authRepo := db.NewAuthRepo(gormDB)
	conversationRepo := db.NewConversationRepo(gormDB)
	messageRepo := db.NewMessageRepo(gormDB)
	typingRepo := db.NewTypingRepo(gormDB)

	membershipService := services.NewMembershipService(conversationRepo)

	hub := realtime.NewHub(membershipService)
	go hub.Run()

	storageService := services.NewStorageService(conf)
	authService := services.NewAuthService(authRepo, storageService, conf)
	conversationService := services.NewConversationService(conversationRepo, messageRepo, membershipService, storageService, conf)
	messageService := services.NewMessageService(messageRepo, conversationRepo, membershipService, storageService, hub, conf)
	reactionService := services.NewReactionService(messageRepo, authRepo, membershipService, hub)
	receiptService := services.NewReceiptService(messageRepo, authRepo, membershipService, hub)
	typingService := services.NewTypingService(typingRepo, authRepo, membershipService, hub, conf)
	presenceService := services.NewPresenceService(authRepo, hub, conf)

	s := &server.Server{
		Config:              conf,
		AuthRepository:      authRepo,
		AuthService:         authService,
		ConversationService: conversationService,
		MembershipService:   membershipService,
		MessageService:      messageService,
		ReactionService:     reactionService,
		ReceiptService:      receiptService,
		TypingService:       typingService,
		PresenceService:     presenceService,
		StorageService:      storageService,
		Hub:                 hub,
	}

	s.Start()
}
