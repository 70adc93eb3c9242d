package models

import "time"

// Message is a single chat message between two users. Everything except
// Seen is immutable after creation; Seen only ever flips false -> true.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Content    string    `json:"content,omitempty"`
	Image      string    `json:"image,omitempty"`
	Seen       bool      `json:"seen"`
	Timestamp  time.Time `json:"timestamp"`
}
