package chat

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/blipchat/blip-backend/internal/metrics"
	"github.com/blipchat/blip-backend/internal/models"
	"github.com/blipchat/blip-backend/internal/storage"
	"github.com/blipchat/blip-backend/internal/ws"
)

// Roster is the sidebar payload: every other user plus the viewer's
// unseen-message count per counterpart.
type Roster struct {
	Users       []models.User  `json:"users"`
	UnseenCount map[string]int `json:"unseenCount"`
}

// Service orchestrates the send path and seen-state reconciliation on top
// of the message store and the connection hub.
type Service struct {
	store storage.MessageStore
	users storage.UserDirectory
	hub   *ws.Hub
	log   zerolog.Logger
}

func NewService(store storage.MessageStore, users storage.UserDirectory, hub *ws.Hub, log zerolog.Logger) *Service {
	return &Service{
		store: store,
		users: users,
		hub:   hub,
		log:   log.With().Str("component", "chat").Logger(),
	}
}

// Send persists the message, then best-effort pushes it to the recipient's
// live connection. The persist must succeed before any push is attempted;
// a failed or impossible push is not an error, delivery falls back to the
// recipient's next history fetch.
func (s *Service) Send(ctx context.Context, senderID, receiverID, content, imageURL string) (*models.Message, error) {
	msg, err := s.store.Insert(ctx, senderID, receiverID, content, imageURL)
	if err != nil {
		return nil, err
	}
	metrics.MessagesSent.Inc()

	if s.hub.Push(receiverID, ws.NewMessage(msg)) {
		metrics.PushesDelivered.Inc()
	} else {
		metrics.PushesDropped.Inc()
		s.log.Debug().
			Str("message_id", msg.ID).
			Str("receiver_id", receiverID).
			Msg("recipient offline, delivery deferred to history fetch")
	}
	return msg, nil
}

// History returns the conversation between viewer and counterpart, then
// bulk-marks the counterpart's messages to the viewer as seen. The
// returned slice is the state captured before this call's own mark, so
// messages being marked right now still read seen=false.
func (s *Service) History(ctx context.Context, viewerID, counterpartID string) ([]models.Message, error) {
	msgs, err := s.store.Between(ctx, viewerID, counterpartID)
	if err != nil {
		return nil, err
	}
	if err := s.store.MarkSeenBulk(ctx, counterpartID, viewerID); err != nil {
		return nil, err
	}
	metrics.MessagesSeen.WithLabelValues("bulk").Inc()
	return msgs, nil
}

// MarkSeen marks a single live-delivered message as seen.
func (s *Service) MarkSeen(ctx context.Context, messageID string) error {
	if err := s.store.MarkSeenOne(ctx, messageID); err != nil {
		return err
	}
	metrics.MessagesSeen.WithLabelValues("single").Inc()
	return nil
}

// RosterFor lists every other user together with the viewer's unseen
// counts, the source of truth for the sidebar at this instant.
func (s *Service) RosterFor(ctx context.Context, viewerID string) (*Roster, error) {
	users, err := s.users.List(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.UnseenCounts(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []models.User{}
	}
	return &Roster{Users: users, UnseenCount: counts}, nil
}
