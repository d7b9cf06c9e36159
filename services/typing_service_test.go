package services

import (
	"testing"
	"time"
)

func TestTypingSignalAndWindowExpiry(t *testing.T) {
	f := newFixture()
	f.addUser(1, "ada")
	f.addUser(2, "ben")
	conversationID := f.addGroup(1, 2)

	if apiErr := f.typing.Signal(conversationID, 1); apiErr != nil {
		t.Fatalf("unexpected error: %v", apiErr)
	}

	typers, apiErr := f.typing.ActiveTypers(conversationID, 2)
	if apiErr != nil {
		t.Fatalf("unexpected error: %v", apiErr)
	}
	if len(typers) != 1 || typers[0].ID != 1 {
		t.Fatalf("expected user 1 typing, got %+v", typers)
	}

	// Age the signal past the window.
	key := memberKey{conversationID, 1}
	f.typingRepo.mu.Lock()
	f.typingRepo.state[key] = time.Now().Add(-testConfig().TypingWindow() - time.Second)
	f.typingRepo.mu.Unlock()

	typers, _ = f.typing.ActiveTypers(conversationID, 2)
	if len(typers) != 0 {
		t.Fatalf("expected stale signal to expire, got %+v", typers)
	}
}

func TestTypingSelfExcludedFromView(t *testing.T) {
	f := newFixture()
	f.addUser(1, "ada")
	f.addUser(2, "ben")
	conversationID := f.addGroup(1, 2)

	if apiErr := f.typing.Signal(conversationID, 1); apiErr != nil {
		t.Fatalf("unexpected error: %v", apiErr)
	}
	typers, _ := f.typing.ActiveTypers(conversationID, 1)
	if len(typers) != 0 {
		t.Fatal("a user should not see themselves typing")
	}
}

func TestTypingClear(t *testing.T) {
	f := newFixture()
	f.addUser(1, "ada")
	f.addUser(2, "ben")
	conversationID := f.addGroup(1, 2)

	if apiErr := f.typing.Signal(conversationID, 1); apiErr != nil {
		t.Fatalf("unexpected error: %v", apiErr)
	}
	if apiErr := f.typing.Clear(conversationID, 1); apiErr != nil {
		t.Fatalf("unexpected error: %v", apiErr)
	}

	typers, _ := f.typing.ActiveTypers(conversationID, 2)
	if len(typers) != 0 {
		t.Fatalf("expected no typers after clear, got %+v", typers)
	}

	events := f.broadcaster.byName("user.typing")
	if len(events) != 2 {
		t.Fatalf("expected typing start and stop events, got %d", len(events))
	}
	if events[0].Payload["is_typing"] != true || events[1].Payload["is_typing"] != false {
		t.Fatal("typing events should report is_typing true then false")
	}
}

func TestTypingRequiresMembership(t *testing.T) {
	f := newFixture()
	f.addUser(1, "ada")
	f.addUser(2, "ben")
	f.addUser(9, "zoe")
	conversationID := f.addGroup(1, 2)

	if apiErr := f.typing.Signal(conversationID, 9); apiErr == nil || apiErr.Status != 403 {
		t.Fatalf("expected forbidden, got %v", apiErr)
	}
}
