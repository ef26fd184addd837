package gateway

import (
	"encoding/json"
	"time"

	"github.com/othnielvtf/livechat/pkg/state"
)

// Inbound event names.
const (
	EventJoinRoom       = "join_room"
	EventLeaveRoom      = "leave_room"
	EventSendMessage    = "send_message"
	EventTyping         = "typing"
	EventGetActiveRooms = "get_active_rooms"
	EventGetRoomUsers   = "get_room_users"
)

// Outbound event names.
const (
	EventUserJoined  = "user_joined"
	EventUserLeft    = "user_left"
	EventNewMessage  = "new_message"
	EventUserTyping  = "user_typing"
	EventRoomHistory = "room_history"
	EventActiveRooms = "active_rooms"
	EventRoomUsers   = "room_users"
	EventError       = "error"
)

// envelope frames every message in both directions.
type envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

type presencePayload struct {
	Username  string    `json:"username"`
	RoomID    string    `json:"roomId"`
	Timestamp time.Time `json:"timestamp"`
}

type typingPayload struct {
	Username string `json:"username"`
	RoomID   string `json:"roomId"`
	IsTyping bool   `json:"isTyping"`
}

type historyPayload struct {
	RoomID   string          `json:"roomId"`
	Messages []state.Message `json:"messages"`
}

type roomsPayload struct {
	Rooms []state.RoomInfo `json:"rooms"`
}

type roomUser struct {
	Username string `json:"username"`
}

type roomUsersPayload struct {
	RoomID string     `json:"roomId"`
	Users  []roomUser `json:"users"`
}

type errorPayload struct {
	Event   string `json:"event,omitempty"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}
