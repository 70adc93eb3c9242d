package models

// User is the roster-facing view of an identity owned by the auth
// subsystem. This service only ever reads it.
type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}
