package valkey

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"

	"github.com/blipchat/blip-backend/internal/models"
	"github.com/blipchat/blip-backend/internal/storage"
)

// MessageStore implements storage.MessageStore on Valkey.
//
// Keyspace:
//
//	msg:<id>                      message JSON
//	conv:<a>|<b>                  zset of message ids scored by unix-milli timestamp
//	unseen:<viewer>:<counterpart> set of unseen message ids addressed to viewer
type MessageStore struct {
	client valkey.Client
}

// NewMessageStore connects to the given address (host:port).
func NewMessageStore(ctx context.Context, addr string) (*MessageStore, error) {
	client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{addr}})
	if err != nil {
		return nil, fmt.Errorf("connect valkey: %w", err)
	}
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping valkey: %w", err)
	}
	return &MessageStore{client: client}, nil
}

// Close releases the client.
func (s *MessageStore) Close() {
	s.client.Close()
}

func msgKey(id string) string {
	return "msg:" + id
}

// convKey is order-independent so both directions share one index.
func convKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return "conv:" + a + "|" + b
}

func unseenKey(viewerID, counterpartID string) string {
	return "unseen:" + viewerID + ":" + counterpartID
}

func (s *MessageStore) Insert(ctx context.Context, senderID, receiverID, content, imageURL string) (*models.Message, error) {
	if content == "" && imageURL == "" {
		return nil, storage.ErrEmptyMessage
	}

	msg := &models.Message{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		Image:      imageURL,
		Seen:       false,
		Timestamp:  time.Now().UTC(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}

	if err := s.client.Do(ctx, s.client.B().Set().Key(msgKey(msg.ID)).Value(string(data)).Build()).Error(); err != nil {
		return nil, fmt.Errorf("store message: %w", err)
	}
	score := float64(msg.Timestamp.UnixMilli())
	if err := s.client.Do(ctx, s.client.B().Zadd().Key(convKey(senderID, receiverID)).
		ScoreMember().ScoreMember(score, msg.ID).Build()).Error(); err != nil {
		return nil, fmt.Errorf("index message: %w", err)
	}
	if err := s.client.Do(ctx, s.client.B().Sadd().Key(unseenKey(receiverID, senderID)).
		Member(msg.ID).Build()).Error(); err != nil {
		return nil, fmt.Errorf("track unseen: %w", err)
	}
	return msg, nil
}

func (s *MessageStore) getMessage(ctx context.Context, id string) (*models.Message, error) {
	raw, err := s.client.Do(ctx, s.client.B().Get().Key(msgKey(id)).Build()).ToString()
	if valkey.IsValkeyNil(err) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch message %s: %w", id, err)
	}
	var msg models.Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return nil, fmt.Errorf("decode message %s: %w", id, err)
	}
	return &msg, nil
}

func (s *MessageStore) putMessage(ctx context.Context, msg *models.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := s.client.Do(ctx, s.client.B().Set().Key(msgKey(msg.ID)).Value(string(data)).Build()).Error(); err != nil {
		return fmt.Errorf("store message: %w", err)
	}
	return nil
}

func (s *MessageStore) Between(ctx context.Context, userA, userB string) ([]models.Message, error) {
	ids, err := s.client.Do(ctx, s.client.B().Zrange().Key(convKey(userA, userB)).
		Min("0").Max("-1").Build()).AsStrSlice()
	if err != nil {
		return nil, fmt.Errorf("range conversation: %w", err)
	}

	msgs := make([]models.Message, 0, len(ids))
	for _, id := range ids {
		msg, err := s.getMessage(ctx, id)
		if err == storage.ErrNotFound {
			continue // index entry outlived its message
		}
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *msg)
	}
	return msgs, nil
}

func (s *MessageStore) MarkSeenBulk(ctx context.Context, fromID, toID string) error {
	key := unseenKey(toID, fromID)
	ids, err := s.client.Do(ctx, s.client.B().Smembers().Key(key).Build()).AsStrSlice()
	if err != nil {
		return fmt.Errorf("list unseen: %w", err)
	}

	for _, id := range ids {
		msg, err := s.getMessage(ctx, id)
		if err == storage.ErrNotFound {
			continue
		}
		if err != nil {
			return err
		}
		msg.Seen = true
		if err := s.putMessage(ctx, msg); err != nil {
			return err
		}
	}
	if err := s.client.Do(ctx, s.client.B().Del().Key(key).Build()).Error(); err != nil {
		return fmt.Errorf("clear unseen: %w", err)
	}
	return nil
}

func (s *MessageStore) MarkSeenOne(ctx context.Context, messageID string) error {
	msg, err := s.getMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.Seen {
		return nil
	}
	msg.Seen = true
	if err := s.putMessage(ctx, msg); err != nil {
		return err
	}
	if err := s.client.Do(ctx, s.client.B().Srem().Key(unseenKey(msg.ReceiverID, msg.SenderID)).
		Member(msg.ID).Build()).Error(); err != nil {
		return fmt.Errorf("untrack unseen: %w", err)
	}
	return nil
}

func (s *MessageStore) UnseenCounts(ctx context.Context, viewerID string) (map[string]int, error) {
	counts := make(map[string]int)
	prefix := "unseen:" + viewerID + ":"

	var cursor uint64
	for {
		entry, err := s.client.Do(ctx, s.client.B().Scan().Cursor(cursor).
			Match(prefix+"*").Count(100).Build()).AsScanEntry()
		if err != nil {
			return nil, fmt.Errorf("scan unseen keys: %w", err)
		}
		for _, key := range entry.Elements {
			n, err := s.client.Do(ctx, s.client.B().Scard().Key(key).Build()).AsInt64()
			if err != nil {
				return nil, fmt.Errorf("count unseen %s: %w", key, err)
			}
			if n > 0 {
				counts[strings.TrimPrefix(key, prefix)] = int(n)
			}
		}
		cursor = entry.Cursor
		if cursor == 0 {
			break
		}
	}
	return counts, nil
}
