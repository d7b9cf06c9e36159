package realtime

import (
	"testing"
	"time"

	"github.com/chatterng/chatterx/models"
	"github.com/google/uuid"
)

func TestChannelNames(t *testing.T) {
	conversationID := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	if got := ConversationChannel(conversationID); got != "conversation.11111111-2222-3333-4444-555555555555" {
		t.Fatalf("unexpected conversation channel: %s", got)
	}
	if got := UserChannel(7); got != "user.7" {
		t.Fatalf("unexpected user channel: %s", got)
	}
	if GlobalUsersChannel != "users" {
		t.Fatalf("unexpected global channel: %s", GlobalUsersChannel)
	}
}

func TestMessageEvents(t *testing.T) {
	message := models.MessageResponse{
		ID:             uuid.New(),
		ConversationID: uuid.New(),
		SenderID:       1,
		Kind:           models.MessageText,
		Body:           "hi",
	}

	sent := MessageSent(message)
	if sent.Name != "message.sent" {
		t.Fatalf("unexpected event name: %s", sent.Name)
	}
	if sent.Channel != ConversationChannel(message.ConversationID) {
		t.Fatalf("unexpected channel: %s", sent.Channel)
	}
	if _, ok := sent.Payload["message"]; !ok {
		t.Fatal("message.sent payload should carry the message")
	}

	updated := MessageUpdated(message)
	if updated.Name != "message.updated" {
		t.Fatalf("unexpected event name: %s", updated.Name)
	}

	deleted := MessageDeleted(message.ID, message.ConversationID)
	if deleted.Name != "message.deleted" {
		t.Fatalf("unexpected event name: %s", deleted.Name)
	}
	if deleted.Payload["message_id"] != message.ID || deleted.Payload["conversation_id"] != message.ConversationID {
		t.Fatal("message.deleted payload should carry both ids")
	}
}

func TestReactionAndReadEvents(t *testing.T) {
	conversationID := uuid.New()
	messageID := uuid.New()
	user := models.UserResponse{ID: 2, Fullname: "Ben"}

	reaction := MessageReactionToggled(conversationID, messageID, user, "👍", true, nil)
	if reaction.Name != "message.reaction" {
		t.Fatalf("unexpected event name: %s", reaction.Name)
	}
	for _, key := range []string{"message_id", "user_id", "user_name", "emoji", "added", "reactions"} {
		if _, ok := reaction.Payload[key]; !ok {
			t.Fatalf("reaction payload missing %s", key)
		}
	}

	readAt := time.Now()
	read := MessageRead(conversationID, []uuid.UUID{messageID}, user, readAt)
	if read.Name != "message.read" {
		t.Fatalf("unexpected event name: %s", read.Name)
	}
	if read.Payload["read_at"] != readAt {
		t.Fatal("read payload should carry read_at")
	}
}

func TestTypingAndStatusEvents(t *testing.T) {
	conversationID := uuid.New()
	typing := UserTyping(conversationID, models.UserResponse{ID: 3, Fullname: "Chi"}, true)
	if typing.Name != "user.typing" {
		t.Fatalf("unexpected event name: %s", typing.Name)
	}
	if typing.Payload["is_typing"] != true {
		t.Fatal("typing payload should carry is_typing")
	}

	user := &models.User{Status: models.StatusAway}
	user.ID = 3
	status := UserStatusChanged(user)
	if status.Channel != GlobalUsersChannel || status.Name != "user.status.changed" {
		t.Fatalf("unexpected status event: %+v", status)
	}
	own := UserStatusChangedFor(user)
	if own.Channel != "user.3" {
		t.Fatalf("unexpected private status channel: %s", own.Channel)
	}
}

func TestToOthersMarksOrigin(t *testing.T) {
	event := UserTyping(uuid.New(), models.UserResponse{ID: 4}, true)
	if event.originUserID != 0 {
		t.Fatal("events deliver to everyone by default")
	}
	scoped := event.ToOthers(4)
	if scoped.originUserID != 4 {
		t.Fatal("ToOthers should record the acting user")
	}
	if event.originUserID != 0 {
		t.Fatal("ToOthers must not mutate the original event")
	}
}
