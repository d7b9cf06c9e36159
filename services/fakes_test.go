package services

import (
	"fmt"
	"mime/multipart"
	"sort"
	"sync"
	"time"

	"github.com/chatterng/chatterx/config"
	"github.com/chatterng/chatterx/models"
	"github.com/chatterng/chatterx/realtime"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:           "test-secret",
		TypingWindowSeconds: 3,
		PresenceTTLSeconds:  60,
	}
}

// In-memory stand-ins for the repositories, mirroring the persistence rules
// the real ones rely on (unique constraints, soft deletes, active-row
// filters).

type memberKey struct {
	conversationID uuid.UUID
	userID         uint
}

type fakeConversationRepo struct {
	mu            sync.Mutex
	conversations map[uuid.UUID]*models.Conversation
	deleted       map[uuid.UUID]bool
	members       []*models.ConversationMember
	users         map[uint]*models.User
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{
		conversations: make(map[uuid.UUID]*models.Conversation),
		deleted:       make(map[uuid.UUID]bool),
		users:         make(map[uint]*models.User),
	}
}

func (f *fakeConversationRepo) CreateConversation(conversation *models.Conversation, members []models.ConversationMember) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if conversation.ID == uuid.Nil {
		conversation.ID = uuid.New()
	}
	if conversation.CreatedAt.IsZero() {
		conversation.CreatedAt = time.Now()
	}
	f.conversations[conversation.ID] = conversation
	for i := range members {
		m := members[i]
		m.ConversationID = conversation.ID
		f.members = append(f.members, &m)
	}
	return nil
}

func (f *fakeConversationRepo) FindConversationByID(id uuid.UUID) (*models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conversation, ok := f.conversations[id]
	if !ok || f.deleted[id] {
		return nil, gorm.ErrRecordNotFound
	}
	return conversation, nil
}

func (f *fakeConversationRepo) FindPrivateConversationBetween(userA, userB uint) (*models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, conversation := range f.conversations {
		if conversation.Kind != models.ConversationPrivate || f.deleted[id] {
			continue
		}
		if f.isActiveLocked(id, userA) && f.isActiveLocked(id, userB) {
			return conversation, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeConversationRepo) ListConversationsForUser(userID uint) ([]models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Conversation
	for id, conversation := range f.conversations {
		if f.deleted[id] || !f.isActiveLocked(id, userID) {
			continue
		}
		out = append(out, *conversation)
	}
	sort.Slice(out, func(i, j int) bool {
		return activityOf(out[i]).After(activityOf(out[j]))
	})
	return out, nil
}

func activityOf(c models.Conversation) time.Time {
	if c.LastMessageAt != nil {
		return *c.LastMessageAt
	}
	return c.CreatedAt
}

func (f *fakeConversationRepo) UpdateConversation(conversation *models.Conversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.conversations[conversation.ID] = conversation
	return nil
}

func (f *fakeConversationRepo) SoftDeleteConversation(id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted[id] = true
	return nil
}

func (f *fakeConversationRepo) FindActiveMembership(conversationID uuid.UUID, userID uint) (*models.ConversationMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.members {
		if m.ConversationID == conversationID && m.UserID == userID && m.LeftAt == nil {
			return m, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeConversationRepo) ActiveMembers(conversationID uuid.UUID) ([]models.ConversationMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ConversationMember
	for _, m := range f.members {
		if m.ConversationID == conversationID && m.LeftAt == nil {
			member := *m
			if user, ok := f.users[m.UserID]; ok {
				member.User = *user
			}
			out = append(out, member)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

func (f *fakeConversationRepo) CountActiveMembers(conversationID uuid.UUID) (int64, error) {
	members, _ := f.ActiveMembers(conversationID)
	return int64(len(members)), nil
}

func (f *fakeConversationRepo) CreateMembership(member *models.ConversationMember) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.isActiveLocked(member.ConversationID, member.UserID) {
		return fmt.Errorf("duplicate key value violates unique constraint %q", "uniq_conversation_member")
	}
	f.members = append(f.members, member)
	return nil
}

func (f *fakeConversationRepo) CloseMembership(conversationID uuid.UUID, userID uint, at time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.members {
		if m.ConversationID == conversationID && m.UserID == userID && m.LeftAt == nil {
			left := at
			m.LeftAt = &left
			return 1, nil
		}
	}
	return 0, nil
}

func (f *fakeConversationRepo) UpdateMembership(member *models.ConversationMember) error {
	return nil
}

func (f *fakeConversationRepo) isActiveLocked(conversationID uuid.UUID, userID uint) bool {
	for _, m := range f.members {
		if m.ConversationID == conversationID && m.UserID == userID && m.LeftAt == nil {
			return true
		}
	}
	return false
}

type reactionKey struct {
	messageID uuid.UUID
	userID    uint
	emoji     string
}

type fakeMessageRepo struct {
	mu        sync.Mutex
	convRepo  *fakeConversationRepo
	messages  map[uuid.UUID]*models.Message
	deleted   map[uuid.UUID]bool
	reactions []models.MessageReaction
	reads     []models.MessageRead
	nextID    uint
}

func newFakeMessageRepo(convRepo *fakeConversationRepo) *fakeMessageRepo {
	return &fakeMessageRepo{
		convRepo: convRepo,
		messages: make(map[uuid.UUID]*models.Message),
		deleted:  make(map[uuid.UUID]bool),
	}
}

func (f *fakeMessageRepo) CreateMessage(message *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}
	f.messages[message.ID] = message

	f.convRepo.mu.Lock()
	if conversation, ok := f.convRepo.conversations[message.ConversationID]; ok {
		at := message.CreatedAt
		conversation.LastMessageAt = &at
	}
	f.convRepo.mu.Unlock()
	return nil
}

func (f *fakeMessageRepo) FindMessageByID(id uuid.UUID) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	message, ok := f.messages[id]
	if !ok || f.deleted[id] {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *message
	f.convRepo.mu.Lock()
	if user, ok := f.convRepo.users[message.SenderID]; ok {
		copied.Sender = *user
	}
	f.convRepo.mu.Unlock()
	return &copied, nil
}

func (f *fakeMessageRepo) UpdateMessage(message *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[message.ID] = message
	return nil
}

func (f *fakeMessageRepo) SoftDeleteMessage(id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted[id] = true
	return nil
}

func (f *fakeMessageRepo) ListMessages(conversationID uuid.UUID, limit, offset int) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Message
	for id, message := range f.messages {
		if message.ConversationID == conversationID && !f.deleted[id] {
			out = append(out, *message)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeMessageRepo) CountMessages(conversationID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for id, message := range f.messages {
		if message.ConversationID == conversationID && !f.deleted[id] {
			count++
		}
	}
	return count, nil
}

func (f *fakeMessageRepo) UnreadCount(userID uint, conversationID *uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for id, message := range f.messages {
		if f.deleted[id] || message.SenderID == userID {
			continue
		}
		if conversationID != nil && message.ConversationID != *conversationID {
			continue
		}
		f.convRepo.mu.Lock()
		active := f.convRepo.isActiveLocked(message.ConversationID, userID)
		f.convRepo.mu.Unlock()
		if !active {
			continue
		}
		if !f.hasReadLocked(id, userID) {
			count++
		}
	}
	return count, nil
}

func (f *fakeMessageRepo) ToggleReaction(messageID uuid.UUID, userID uint, emoji string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.reactions {
		if r.MessageID == messageID && r.UserID == userID && r.Emoji == emoji {
			f.reactions = append(f.reactions[:i], f.reactions[i+1:]...)
			return false, nil
		}
	}
	f.nextID++
	reaction := models.MessageReaction{MessageID: messageID, UserID: userID, Emoji: emoji}
	reaction.ID = f.nextID
	reaction.CreatedAt = time.Now()
	f.reactions = append(f.reactions, reaction)
	return true, nil
}

func (f *fakeMessageRepo) ReactionsForMessage(messageID uuid.UUID) ([]models.MessageReaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.MessageReaction
	for _, r := range f.reactions {
		if r.MessageID == messageID {
			f.convRepo.mu.Lock()
			if user, ok := f.convRepo.users[r.UserID]; ok {
				r.User = *user
			}
			f.convRepo.mu.Unlock()
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeMessageRepo) CreateRead(read *models.MessageRead) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hasReadLocked(read.MessageID, read.UserID) {
		return fmt.Errorf("duplicate key value violates unique constraint %q", "uniq_message_read")
	}
	if read.ReadAt.IsZero() {
		read.ReadAt = time.Now()
	}
	f.reads = append(f.reads, *read)
	return nil
}

func (f *fakeMessageRepo) HasRead(messageID uuid.UUID, userID uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hasReadLocked(messageID, userID), nil
}

func (f *fakeMessageRepo) ReadsForMessage(messageID uuid.UUID) ([]models.MessageRead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.MessageRead
	for _, r := range f.reads {
		if r.MessageID == messageID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeMessageRepo) hasReadLocked(messageID uuid.UUID, userID uint) bool {
	for _, r := range f.reads {
		if r.MessageID == messageID && r.UserID == userID {
			return true
		}
	}
	return false
}

type fakeTypingRepo struct {
	mu    sync.Mutex
	state map[memberKey]time.Time
}

func newFakeTypingRepo() *fakeTypingRepo {
	return &fakeTypingRepo{state: make(map[memberKey]time.Time)}
}

func (f *fakeTypingRepo) UpsertTyping(conversationID uuid.UUID, userID uint, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state[memberKey{conversationID, userID}] = at
	return nil
}

func (f *fakeTypingRepo) ClearTyping(conversationID uuid.UUID, userID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.state, memberKey{conversationID, userID})
	return nil
}

func (f *fakeTypingRepo) ActiveTypers(conversationID uuid.UUID, since time.Time) ([]models.TypingIndicator, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.TypingIndicator
	for key, at := range f.state {
		if key.conversationID == conversationID && at.After(since) {
			out = append(out, models.TypingIndicator{
				ConversationID: key.conversationID,
				UserID:         key.userID,
				LastTypedAt:    at,
				User:           models.User{Model: models.Model{ID: key.userID}},
			})
		}
	}
	return out, nil
}

type fakeAuthRepo struct {
	mu        sync.Mutex
	users     map[uint]*models.User
	blacklist map[string]bool
}

func newFakeAuthRepo() *fakeAuthRepo {
	return &fakeAuthRepo{
		users:     make(map[uint]*models.User),
		blacklist: make(map[string]bool),
	}
}

func (f *fakeAuthRepo) CreateUser(user *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user.ID == 0 {
		user.ID = uint(len(f.users) + 1)
	}
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeAuthRepo) IsEmailExist(email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return fmt.Errorf("email already in use")
		}
	}
	return nil
}

func (f *fakeAuthRepo) IsUsernameExist(username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Username == username {
			return fmt.Errorf("username already in use")
		}
	}
	return nil
}

func (f *fakeAuthRepo) FindUserByEmail(email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeAuthRepo) FindUserByID(id uint) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (f *fakeAuthRepo) FindUsersByIDs(ids []uint) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.User
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f *fakeAuthRepo) ListUsers(excludeUserID uint) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.User
	for _, u := range f.users {
		if u.ID != excludeUserID {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f *fakeAuthRepo) SearchUsers(query string, excludeUserID uint) ([]models.User, error) {
	return f.ListUsers(excludeUserID)
}

func (f *fakeAuthRepo) UpdateUser(user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[user.ID] = user
	return nil
}

func (f *fakeAuthRepo) UpdateUserStatus(userID uint, status string, lastSeen time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user, ok := f.users[userID]; ok {
		user.Status = status
		at := lastSeen
		user.LastSeenAt = &at
	}
	return nil
}

func (f *fakeAuthRepo) Heartbeat(userID uint, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user, ok := f.users[userID]; ok {
		seen := at
		user.LastSeenAt = &seen
	}
	return nil
}

func (f *fakeAuthRepo) OnlineUsers() ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.User
	for _, u := range f.users {
		if u.IsOnline() {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f *fakeAuthRepo) AddToBlackList(blacklist *models.Blacklist) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blacklist[blacklist.Token] = true
	return nil
}

func (f *fakeAuthRepo) IsTokenInBlacklist(token string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blacklist[token]
}

// fakeBroadcaster records every published event for assertions.
type fakeBroadcaster struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (f *fakeBroadcaster) Publish(event realtime.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *fakeBroadcaster) byName(name string) []realtime.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []realtime.Event
	for _, e := range f.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

type fakeStorage struct {
	mu      sync.Mutex
	uploads []string
	deleted []string
}

func (f *fakeStorage) UploadMessageMedia(mediaFile *multipart.FileHeader, kind string, userID uint) (*MediaUpload, error) {
	f.mu.Lock()
	f.uploads = append(f.uploads, mediaFile.Filename)
	f.mu.Unlock()
	return &MediaUpload{
		StorageRef:   "https://example.test/" + uuid.NewString(),
		OriginalName: mediaFile.Filename,
		MimeType:     "application/octet-stream",
		SizeBytes:    mediaFile.Size,
	}, nil
}

func (f *fakeStorage) uploadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}

func (f *fakeStorage) deletedRefs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

func (f *fakeStorage) UploadAvatar(mediaFile *multipart.FileHeader, userID uint) (string, error) {
	return "https://example.test/avatars/" + uuid.NewString(), nil
}

func (f *fakeStorage) DeleteObject(ref string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ref)
	return nil
}

// fixture bundles the fakes and the services wired over them.
type fixture struct {
	convRepo    *fakeConversationRepo
	messageRepo *fakeMessageRepo
	typingRepo  *fakeTypingRepo
	authRepo    *fakeAuthRepo
	broadcaster *fakeBroadcaster
	storage     *fakeStorage

	membership    MembershipService
	conversations ConversationService
	messages      MessageService
	reactions     ReactionService
	receipts      ReceiptService
	typing        TypingService
	presence      PresenceService
}

func newFixture() *fixture {
	conf := testConfig()
	convRepo := newFakeConversationRepo()
	messageRepo := newFakeMessageRepo(convRepo)
	typingRepo := newFakeTypingRepo()
	authRepo := newFakeAuthRepo()
	broadcaster := &fakeBroadcaster{}
	storage := &fakeStorage{}

	membership := NewMembershipService(convRepo)
	return &fixture{
		convRepo:      convRepo,
		messageRepo:   messageRepo,
		typingRepo:    typingRepo,
		authRepo:      authRepo,
		broadcaster:   broadcaster,
		storage:       storage,
		membership:    membership,
		conversations: NewConversationService(convRepo, messageRepo, membership, storage, conf),
		messages:      NewMessageService(messageRepo, convRepo, membership, storage, broadcaster, conf),
		reactions:     NewReactionService(messageRepo, authRepo, membership, broadcaster),
		receipts:      NewReceiptService(messageRepo, authRepo, membership, broadcaster),
		typing:        NewTypingService(typingRepo, authRepo, membership, broadcaster, conf),
		presence:      NewPresenceService(authRepo, broadcaster, conf),
	}
}

func (f *fixture) addUser(id uint, name string) *models.User {
	user := &models.User{
		Fullname: name,
		Username: name,
		Email:    name + "@example.test",
		Status:   models.StatusOffline,
	}
	user.ID = id
	f.authRepo.mu.Lock()
	f.authRepo.users[id] = user
	f.authRepo.mu.Unlock()
	f.convRepo.mu.Lock()
	f.convRepo.users[id] = user
	f.convRepo.mu.Unlock()
	return user
}

// addGroup creates a group conversation with the first user as admin.
func (f *fixture) addGroup(userIDs ...uint) uuid.UUID {
	conversation := &models.Conversation{Kind: models.ConversationGroup, Name: "g", CreatedBy: userIDs[0]}
	var members []models.ConversationMember
	for i, id := range userIDs {
		role := models.RoleMember
		if i == 0 {
			role = models.RoleAdmin
		}
		members = append(members, models.ConversationMember{
			UserID:   id,
			Role:     role,
			JoinedAt: time.Now().Add(time.Duration(i) * time.Millisecond),
		})
	}
	if err := f.convRepo.CreateConversation(conversation, members); err != nil {
		panic(err)
	}
	return conversation.ID
}

func (f *fixture) addPrivate(userA, userB uint) uuid.UUID {
	conversation := &models.Conversation{Kind: models.ConversationPrivate, CreatedBy: userA}
	members := []models.ConversationMember{
		{UserID: userA, Role: models.RoleMember, JoinedAt: time.Now()},
		{UserID: userB, Role: models.RoleMember, JoinedAt: time.Now()},
	}
	if err := f.convRepo.CreateConversation(conversation, members); err != nil {
		panic(err)
	}
	return conversation.ID
}

func (f *fixture) addMessage(conversationID uuid.UUID, senderID uint, body string) *models.Message {
	message := &models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Kind:           models.MessageText,
		Body:           body,
	}
	if err := f.messageRepo.CreateMessage(message); err != nil {
		panic(err)
	}
	return message
}
