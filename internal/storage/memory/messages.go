package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/blipchat/blip-backend/internal/models"
	"github.com/blipchat/blip-backend/internal/storage"
)

// MessageStore is the in-memory storage.MessageStore backend, used in
// development and tests.
type MessageStore struct {
	mu    sync.RWMutex
	byID  map[string]*models.Message
	pairs map[string][]*models.Message // pairKey -> messages, insertion order
}

func NewMessageStore() *MessageStore {
	return &MessageStore{
		byID:  make(map[string]*models.Message),
		pairs: make(map[string][]*models.Message),
	}
}

// pairKey is order-independent so both directions land in one slice.
func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

func (s *MessageStore) Insert(_ context.Context, senderID, receiverID, content, imageURL string) (*models.Message, error) {
	if content == "" && imageURL == "" {
		return nil, storage.ErrEmptyMessage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	msg := &models.Message{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		Image:      imageURL,
		Seen:       false,
		Timestamp:  time.Now().UTC(),
	}
	s.byID[msg.ID] = msg
	key := pairKey(senderID, receiverID)
	s.pairs[key] = append(s.pairs[key], msg)

	out := *msg
	return &out, nil
}

func (s *MessageStore) Between(_ context.Context, userA, userB string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.pairs[pairKey(userA, userB)]
	msgs := make([]models.Message, 0, len(stored))
	for _, m := range stored {
		msgs = append(msgs, *m)
	}
	// Insertion order already matches send order; the sort keeps the
	// ascending-timestamp contract explicit and stable.
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})
	return msgs, nil
}

func (s *MessageStore) MarkSeenBulk(_ context.Context, fromID, toID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.pairs[pairKey(fromID, toID)] {
		if m.SenderID == fromID && m.ReceiverID == toID {
			m.Seen = true
		}
	}
	return nil
}

func (s *MessageStore) MarkSeenOne(_ context.Context, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.byID[messageID]
	if !ok {
		return storage.ErrNotFound
	}
	m.Seen = true
	return nil
}

func (s *MessageStore) UnseenCounts(_ context.Context, viewerID string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, m := range s.byID {
		if m.ReceiverID == viewerID && !m.Seen {
			counts[m.SenderID]++
		}
	}
	return counts, nil
}
