package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/blipchat/blip-backend/internal/models"
	"github.com/blipchat/blip-backend/internal/storage"
)

// MessageStore implements storage.MessageStore on PostgreSQL.
//
// Expected schema:
//
//	CREATE TABLE messages (
//	    id          UUID PRIMARY KEY,
//	    sender_id   TEXT NOT NULL,
//	    receiver_id TEXT NOT NULL,
//	    content     TEXT NOT NULL DEFAULT '',
//	    image       TEXT NOT NULL DEFAULT '',
//	    seen        BOOLEAN NOT NULL DEFAULT FALSE,
//	    ts          TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
//	CREATE INDEX messages_receiver_unseen_idx ON messages (receiver_id, sender_id) WHERE NOT seen;
//	CREATE INDEX messages_pair_idx ON messages (sender_id, receiver_id, ts);
type MessageStore struct {
	db *sql.DB
}

// NewMessageStore opens a pooled connection to the given DSN.
func NewMessageStore(dataSourceName string) (*MessageStore, error) {
	db, err := sql.Open("postgres", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &MessageStore{db: db}, nil
}

func (s *MessageStore) Insert(ctx context.Context, senderID, receiverID, content, imageURL string) (*models.Message, error) {
	if content == "" && imageURL == "" {
		return nil, storage.ErrEmptyMessage
	}

	msg := &models.Message{}
	query := `
		INSERT INTO messages (id, sender_id, receiver_id, content, image)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, sender_id, receiver_id, content, image, seen, ts
	`
	err := s.db.QueryRowContext(ctx, query, uuid.NewString(), senderID, receiverID, content, imageURL).Scan(
		&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.Content, &msg.Image, &msg.Seen, &msg.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

func (s *MessageStore) Between(ctx context.Context, userA, userB string) ([]models.Message, error) {
	query := `
		SELECT id, sender_id, receiver_id, content, image, seen, ts
		FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2)
		   OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY ts ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userA, userB)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(
			&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.Content, &msg.Image, &msg.Seen, &msg.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate message rows: %w", err)
	}
	return msgs, nil
}

func (s *MessageStore) MarkSeenBulk(ctx context.Context, fromID, toID string) error {
	query := `
		UPDATE messages SET seen = TRUE
		WHERE sender_id = $1 AND receiver_id = $2 AND NOT seen
	`
	if _, err := s.db.ExecContext(ctx, query, fromID, toID); err != nil {
		return fmt.Errorf("mark seen bulk: %w", err)
	}
	return nil
}

func (s *MessageStore) MarkSeenOne(ctx context.Context, messageID string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE messages SET seen = TRUE WHERE id = $1`, messageID)
	if err != nil {
		return fmt.Errorf("mark seen: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark seen result: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *MessageStore) UnseenCounts(ctx context.Context, viewerID string) (map[string]int, error) {
	query := `
		SELECT sender_id, COUNT(*)
		FROM messages
		WHERE receiver_id = $1 AND NOT seen
		GROUP BY sender_id
	`
	rows, err := s.db.QueryContext(ctx, query, viewerID)
	if err != nil {
		return nil, fmt.Errorf("query unseen counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var senderID string
		var n int
		if err := rows.Scan(&senderID, &n); err != nil {
			return nil, fmt.Errorf("scan unseen count row: %w", err)
		}
		counts[senderID] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unseen count rows: %w", err)
	}
	return counts, nil
}

// Close closes the database connection.
func (s *MessageStore) Close() error {
	return s.db.Close()
}
