package realtime

import (
	"log"
	"os"
	"sync"
)

// SubscribeAuthorizer re-derives, at subscribe time, whether a user may join
// a channel. The transport rejects non-members so conversation payloads never
// leak, even though event builders trust their callers.
type SubscribeAuthorizer interface {
	AuthorizeSubscribe(channel string, userID uint) bool
}

// Hub fans events out to subscribed websocket clients. Delivery is
// best-effort: a slow client's events are dropped, never waited on.
type Hub struct {
	clients    map[*Client]bool
	channels   map[string]map[*Client]bool
	Register   chan *Client
	Unregister chan *Client
	events     chan Event
	authorizer SubscribeAuthorizer
	mu         sync.RWMutex
	logger     *log.Logger
}

func NewHub(authorizer SubscribeAuthorizer) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		channels:   make(map[string]map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		events:     make(chan Event, 256),
		authorizer: authorizer,
		logger:     log.New(os.Stdout, "[REALTIME] ", log.LstdFlags),
	}
}

// Publish hands an event to the hub without blocking the caller. If the hub's
// buffer is full the event is dropped and logged; there is no delivery
// guarantee.
func (h *Hub) Publish(event Event) {
	select {
	case h.events <- event:
	default:
		h.logger.Printf("event buffer full, dropping %s on %s", event.Name, event.Channel)
	}
}

func (h *Hub) Run() {
	h.logger.Println("hub started")
	for {
		select {
		case client := <-h.Register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Printf("client connected: user %d, total %d", client.userID, h.clientCount())

		case client := <-h.Unregister:
			h.removeClient(client)

		case event := <-h.events:
			h.deliver(event)
		}
	}
}

// Subscribe joins the client to a channel after re-checking authorization.
func (h *Hub) Subscribe(client *Client, channel string) bool {
	if !h.authorizer.AuthorizeSubscribe(channel, client.userID) {
		h.logger.Printf("subscribe denied: user %d channel %s", client.userID, channel)
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.channels[channel] == nil {
		h.channels[channel] = make(map[*Client]bool)
	}
	h.channels[channel][client] = true
	return true
}

func (h *Hub) Unsubscribe(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.channels[channel]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.channels, channel)
		}
	}
}

func (h *Hub) deliver(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.channels[event.Channel] {
		// Skip the connection that triggered the event.
		if client.userID == event.originUserID && event.originUserID != 0 {
			continue
		}
		select {
		case client.send <- event:
		default:
			h.logger.Printf("send buffer full, dropping %s for user %d", event.Name, client.userID)
		}
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	for channel, subs := range h.channels {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.channels, channel)
		}
	}
	close(client.send)
	h.logger.Printf("client disconnected: user %d, remaining %d", client.userID, len(h.clients))
}

func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
