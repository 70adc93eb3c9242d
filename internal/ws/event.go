package ws

import "github.com/blipchat/blip-backend/internal/models"

// Event names pushed to clients.
const (
	EventPresenceChanged = "presenceChanged"
	EventNewMessage      = "newMessage"
)

// Event is the envelope for every server-to-client push.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// PresenceChanged carries the full set of online user ids.
func PresenceChanged(online []string) Event {
	return Event{Event: EventPresenceChanged, Data: online}
}

// NewMessage carries a freshly persisted message to its recipient.
func NewMessage(msg *models.Message) Event {
	return Event{Event: EventNewMessage, Data: msg}
}
