package ws

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/blipchat/blip-backend/internal/metrics"
)

// Hub is the process-wide registry of live connections, one binding per
// user. Every mutation and the presence broadcast that follows it happen
// under a single lock, so a register and a racing unregister for the same
// user cannot interleave.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client // userID -> client
	log     zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		log:     log.With().Str("component", "ws").Logger(),
	}
}

// Register binds a client to its user id. A newer connection for the same
// user supersedes the old one; the superseded client's send channel is
// closed so its write pump shuts the socket down.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.clients[client.UserID]; ok {
		close(old.Send)
	}
	h.clients[client.UserID] = client
	metrics.ConnectedClients.Set(float64(len(h.clients)))
	h.log.Info().Str("user_id", client.UserID).Msg("client connected")
	h.broadcastPresenceLocked()
}

// Unregister removes the binding only if this client still owns it. A
// stale disconnect arriving after a newer reconnect is a no-op and does
// not broadcast.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	current, ok := h.clients[client.UserID]
	if !ok || current != client {
		return
	}
	delete(h.clients, client.UserID)
	close(client.Send)
	metrics.ConnectedClients.Set(float64(len(h.clients)))
	h.log.Info().Str("user_id", client.UserID).Msg("client disconnected")
	h.broadcastPresenceLocked()
}

// Lookup returns the client currently bound to the user, if any.
func (h *Hub) Lookup(userID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.clients[userID]
	return client, ok
}

// Push delivers an event to one user's connection, if any. Best effort:
// reports false when the user is offline or the client's buffer is full.
func (h *Hub) Push(userID string, event Event) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[userID]
	if !ok {
		return false
	}
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error().Err(err).Str("event", event.Event).Msg("failed to encode event")
		return false
	}
	select {
	case client.Send <- data:
		return true
	default:
		h.log.Debug().Str("user_id", userID).Str("event", event.Event).Msg("client buffer full, event dropped")
		return false
	}
}

// OnlineUserIDs returns a sorted snapshot of currently bound user ids.
func (h *Hub) OnlineUserIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.onlineLocked()
}

func (h *Hub) onlineLocked() []string {
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// broadcastPresenceLocked pushes the full online set to every connection.
// Caller holds h.mu.
func (h *Hub) broadcastPresenceLocked() {
	data, err := json.Marshal(PresenceChanged(h.onlineLocked()))
	if err != nil {
		h.log.Error().Err(err).Msg("failed to encode presence event")
		return
	}
	for _, client := range h.clients {
		select {
		case client.Send <- data:
		default:
			// Slow client; it will catch up on the next change.
		}
	}
}
