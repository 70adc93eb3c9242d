package storage

import (
	"context"
	"errors"

	"github.com/blipchat/blip-backend/internal/models"
)

var (
	// ErrNotFound is returned when a message or user id does not exist.
	ErrNotFound = errors.New("not found")

	// ErrEmptyMessage is returned by Insert when neither content nor an
	// image reference is present.
	ErrEmptyMessage = errors.New("message needs content or an image")
)

// MessageStore is the durable log of messages between user pairs.
// All backends implement the same interface.
type MessageStore interface {
	// Insert persists a new message with a server-side timestamp and
	// seen=false. At least one of content or imageURL must be non-empty.
	Insert(ctx context.Context, senderID, receiverID, content, imageURL string) (*models.Message, error)

	// Between returns every message exchanged between the two users, in
	// either direction, ascending by timestamp.
	Between(ctx context.Context, userA, userB string) ([]models.Message, error)

	// MarkSeenBulk marks every unseen message from fromID to toID as seen.
	// Idempotent.
	MarkSeenBulk(ctx context.Context, fromID, toID string) error

	// MarkSeenOne marks a single message as seen. Marking an already-seen
	// message is a no-op success; an unknown id is ErrNotFound.
	MarkSeenOne(ctx context.Context, messageID string) error

	// UnseenCounts aggregates unseen messages addressed to viewerID,
	// grouped by sender.
	UnseenCounts(ctx context.Context, viewerID string) (map[string]int, error)
}

// UserDirectory is a read-only view onto the auth-owned user table, just
// enough to render a roster.
type UserDirectory interface {
	// List returns every known user except excludeID.
	List(ctx context.Context, excludeID string) ([]models.User, error)

	// Get returns a single user or ErrNotFound.
	Get(ctx context.Context, id string) (*models.User, error)
}
