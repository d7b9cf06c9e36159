package realtime

import (
	"fmt"
	"time"

	"github.com/chatterng/chatterx/models"
	"github.com/google/uuid"
)

// Event is an addressed, payload-complete broadcast intent. Builders here
// never perform I/O; delivery belongs to a Broadcaster.
type Event struct {
	Channel string                 `json:"channel"`
	Name    string                 `json:"event"`
	Payload map[string]interface{} `json:"payload"`

	// originUserID marks the acting user so their own connection is skipped
	// during fan-out; zero means deliver to everyone.
	originUserID uint
}

// ToOthers excludes the acting user's own connections from delivery.
func (e Event) ToOthers(userID uint) Event {
	e.originUserID = userID
	return e
}

// Broadcaster delivers events to subscribed connections. Publishing is
// best-effort and must not block the request path.
type Broadcaster interface {
	Publish(event Event)
}

// Channel names. Conversation-scoped events go to conversation.{id};
// user status goes to the global users channel and the user's own channel.
const (
	GlobalUsersChannel = "users"
)

func ConversationChannel(conversationID uuid.UUID) string {
	return "conversation." + conversationID.String()
}

func UserChannel(userID uint) string {
	return fmt.Sprintf("user.%d", userID)
}

func MessageSent(message models.MessageResponse) Event {
	return Event{
		Channel: ConversationChannel(message.ConversationID),
		Name:    "message.sent",
		Payload: map[string]interface{}{
			"message": message,
		},
	}
}

func MessageUpdated(message models.MessageResponse) Event {
	return Event{
		Channel: ConversationChannel(message.ConversationID),
		Name:    "message.updated",
		Payload: map[string]interface{}{
			"message": message,
		},
	}
}

func MessageDeleted(messageID, conversationID uuid.UUID) Event {
	return Event{
		Channel: ConversationChannel(conversationID),
		Name:    "message.deleted",
		Payload: map[string]interface{}{
			"message_id":      messageID,
			"conversation_id": conversationID,
		},
	}
}

func MessageReactionToggled(conversationID, messageID uuid.UUID, user models.UserResponse, emoji string, added bool, reactions []models.GroupedReaction) Event {
	return Event{
		Channel: ConversationChannel(conversationID),
		Name:    "message.reaction",
		Payload: map[string]interface{}{
			"message_id": messageID,
			"user_id":    user.ID,
			"user_name":  user.Fullname,
			"emoji":      emoji,
			"added":      added,
			"reactions":  reactions,
		},
	}
}

func MessageRead(conversationID uuid.UUID, messageIDs []uuid.UUID, user models.UserResponse, readAt time.Time) Event {
	return Event{
		Channel: ConversationChannel(conversationID),
		Name:    "message.read",
		Payload: map[string]interface{}{
			"message_ids":     messageIDs,
			"user_id":         user.ID,
			"user_name":       user.Fullname,
			"conversation_id": conversationID,
			"read_at":         readAt,
		},
	}
}

func UserTyping(conversationID uuid.UUID, user models.UserResponse, isTyping bool) Event {
	return Event{
		Channel: ConversationChannel(conversationID),
		Name:    "user.typing",
		Payload: map[string]interface{}{
			"conversation_id": conversationID,
			"user_id":         user.ID,
			"user_name":       user.Fullname,
			"is_typing":       isTyping,
		},
	}
}

// UserStatusChanged targets the global presence channel.
func UserStatusChanged(user *models.User) Event {
	return Event{
		Channel: GlobalUsersChannel,
		Name:    "user.status.changed",
		Payload: map[string]interface{}{
			"user_id":      user.ID,
			"status":       user.Status,
			"last_seen_at": user.LastSeenAt,
		},
	}
}

// UserStatusChangedFor addresses the same payload to the user's own private
// channel.
func UserStatusChangedFor(user *models.User) Event {
	e := UserStatusChanged(user)
	e.Channel = UserChannel(user.ID)
	return e
}
