package state

import "time"

// Identity is the verified user behind a connection. Immutable once
// resolved; the registry stores it as a read-only value at join time.
type Identity struct {
	UserID   string
	Username string
	// Info carries optional display metadata (presence member payload).
	Info map[string]any
}

// Message is one chat message in a room's bounded history.
type Message struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"roomId"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// RoomInfo is a point-in-time view of one room for listings.
type RoomInfo struct {
	ID        string `json:"id"`
	UserCount int    `json:"userCount"`
}
