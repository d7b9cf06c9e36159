package services

import (
	"testing"
	"time"

	"github.com/chatterng/chatterx/models"
)

func TestCreatePrivateConversationDeduplicates(t *testing.T) {
	f := newFixture()
	f.addUser(1, "ada")
	f.addUser(2, "ben")

	first, apiErr := f.conversations.Create(1, &models.CreateConversationRequest{
		Kind:   models.ConversationPrivate,
		UserID: 2,
	})
	if apiErr != nil {
		t.Fatalf("unexpected error: %v", apiErr)
	}
	if len(first.Members) != 2 {
		t.Fatalf("expected two members, got %d", len(first.Members))
	}

	second, apiErr := f.conversations.Create(2, &models.CreateConversationRequest{
		Kind:   models.ConversationPrivate,
		UserID: 1,
	})
	if apiErr != nil {
		t.Fatalf("unexpected error: %v", apiErr)
	}
	if first.ID != second.ID {
		t.Fatal("the same pair should resolve to one private conversation")
	}
}

func TestCreatePrivateConversationRejectsSelf(t *testing.T) {
	f := newFixture()
	f.addUser(1, "ada")

	_, apiErr := f.conversations.Create(1, &models.CreateConversationRequest{
		Kind:   models.ConversationPrivate,
		UserID: 1,
	})
	if apiErr == nil || apiErr.Status != 422 {
		t.Fatalf("expected validation error, got %v", apiErr)
	}
}

func TestCreateGroupConversation(t *testing.T) {
	f := newFixture()
	f.addUser(1, "ada")
	f.addUser(2, "ben")
	f.addUser(3, "chi")

	group, apiErr := f.conversations.Create(1, &models.CreateConversationRequest{
		Kind:    models.ConversationGroup,
		Name:    "team",
		UserIDs: []uint{2, 3, 3, 1},
	})
	if apiErr != nil {
		t.Fatalf("unexpected error: %v", apiErr)
	}
	if len(group.Members) != 3 {
		t.Fatalf("duplicate and self ids should collapse, got %d members", len(group.Members))
	}
	role, ok := f.membership.RoleOf(group.ID, 1)
	if !ok || role != models.RoleAdmin {
		t.Fatal("creator should be the group admin")
	}

	_, apiErr = f.conversations.Create(1, &models.CreateConversationRequest{
		Kind:    models.ConversationGroup,
		Name:    "solo",
		UserIDs: []uint{1},
	})
	if apiErr == nil || apiErr.Status != 422 {
		t.Fatalf("a group with only the creator should be rejected, got %v", apiErr)
	}
}

func TestListConversationsOrderedByActivity(t *testing.T) {
	f := newFixture()
	f.addUser(1, "ada")
	f.addUser(2, "ben")
	older := f.addGroup(1, 2)
	newer := f.addGroup(1, 2)

	// Activity on the older conversation should float it to the top.
	f.convRepo.mu.Lock()
	f.convRepo.conversations[older].CreatedAt = time.Now().Add(-2 * time.Hour)
	f.convRepo.conversations[newer].CreatedAt = time.Now().Add(-1 * time.Hour)
	f.convRepo.mu.Unlock()
	f.addMessage(older, 2, "ping")

	list, apiErr := f.conversations.List(1)
	if apiErr != nil {
		t.Fatalf("unexpected error: %v", apiErr)
	}
	if len(list) != 2 {
		t.Fatalf("expected two conversations, got %d", len(list))
	}
	if list[0].ID != older {
		t.Fatal("conversation with newer activity should come first")
	}
	if list[0].UnreadCount != 1 {
		t.Fatalf("expected unread count 1 on the active conversation, got %d", list[0].UnreadCount)
	}
}

func TestDepartedMemberCannotSeeConversation(t *testing.T) {
	f := newFixture()
	f.addUser(1, "ada")
	f.addUser(2, "ben")
	f.addUser(3, "chi")
	conversationID := f.addGroup(1, 2, 3)

	if apiErr := f.membership.Leave(conversationID, 2); apiErr != nil {
		t.Fatalf("unexpected error: %v", apiErr)
	}
	if _, apiErr := f.conversations.Get(conversationID, 2); apiErr == nil || apiErr.Status != 403 {
		t.Fatalf("departed member should be forbidden, got %v", apiErr)
	}
	list, _ := f.conversations.List(2)
	if len(list) != 0 {
		t.Fatalf("departed member should not list the conversation, got %d", len(list))
	}
}

func TestUpdateGroupRules(t *testing.T) {
	f := newFixture()
	f.addUser(1, "ada")
	f.addUser(2, "ben")
	groupID := f.addGroup(1, 2)
	privateID := f.addPrivate(1, 2)

	if _, apiErr := f.conversations.UpdateGroup(privateID, 1, &models.UpdateConversationRequest{Name: "x"}, ""); apiErr == nil || apiErr.Status != 400 {
		t.Fatalf("expected invalid operation updating private conversation, got %v", apiErr)
	}
	if _, apiErr := f.conversations.UpdateGroup(groupID, 2, &models.UpdateConversationRequest{Name: "x"}, ""); apiErr == nil || apiErr.Status != 403 {
		t.Fatalf("expected forbidden for non-admin update, got %v", apiErr)
	}

	updated, apiErr := f.conversations.UpdateGroup(groupID, 1, &models.UpdateConversationRequest{Name: "renamed"}, "")
	if apiErr != nil {
		t.Fatalf("unexpected error: %v", apiErr)
	}
	if updated.Name != "renamed" {
		t.Fatalf("expected renamed group, got %q", updated.Name)
	}
}

func TestToggleMuteAndArchive(t *testing.T) {
	f := newFixture()
	f.addUser(1, "ada")
	f.addUser(2, "ben")
	conversationID := f.addGroup(1, 2)

	muted, apiErr := f.conversations.ToggleMute(conversationID, 2)
	if apiErr != nil {
		t.Fatalf("unexpected error: %v", apiErr)
	}
	if !muted {
		t.Fatal("first toggle should mute")
	}
	muted, _ = f.conversations.ToggleMute(conversationID, 2)
	if muted {
		t.Fatal("second toggle should unmute")
	}

	archived, apiErr := f.conversations.ToggleArchive(conversationID, 2)
	if apiErr != nil {
		t.Fatalf("unexpected error: %v", apiErr)
	}
	if !archived {
		t.Fatal("first toggle should archive")
	}
}
