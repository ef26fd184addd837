package gateway

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/othnielvtf/livechat/internal/auth"
	"github.com/othnielvtf/livechat/internal/gate"
	"github.com/othnielvtf/livechat/pkg/state"
)

func now() time.Time {
	return time.Now().UTC()
}

// permit runs the connection gate for one operation against a channel.
func (d *Dispatcher) permit(s *session, roomID, authSig, channelData string) error {
	return d.gate.Permit(s.identity, gate.Op{
		ConnID:      s.id,
		Channel:     roomID,
		Auth:        authSig,
		ChannelData: channelData,
		Member:      d.registry.IsMember(s.id, roomID),
	})
}

func (d *Dispatcher) handleJoin(s *session, payload json.RawMessage) error {
	body := string(payload)
	roomID := gjson.Get(body, "roomId").String()
	if roomID == "" {
		return auth.NewError(auth.KindInvalidRequest, "roomId is required")
	}
	authSig := gjson.Get(body, "auth").String()
	channelData := gjson.Get(body, "channel_data").String()

	if err := d.permit(s, roomID, authSig, channelData); err != nil {
		return err
	}

	// Identity handed to the registry: the resolved one, or the username
	// the legacy anonymous path offers in the join payload.
	identity := s.identity
	if identity == nil {
		if username := gjson.Get(body, "username").String(); username != "" {
			identity = &state.Identity{Username: username}
		}
	}
	if identity != nil && channelData != "" {
		// Presence member metadata rides along with the verified payload.
		if info, ok := gjson.Get(channelData, "user_info").Value().(map[string]any); ok {
			id := *identity
			id.Info = info
			identity = &id
		}
	}

	if err := d.registry.Join(s.id, roomID, identity); err != nil {
		return auth.WrapError(auth.KindInternalInconsistency, "join failed", err)
	}

	username, _ := d.username(s)
	d.broadcast(roomID, EventUserJoined, presencePayload{
		Username:  username,
		RoomID:    roomID,
		Timestamp: now(),
	}, "")

	// History goes to the joining connection only.
	messages := d.registry.Messages(roomID)
	if messages == nil {
		messages = []state.Message{}
	}
	return d.send(s, EventRoomHistory, historyPayload{RoomID: roomID, Messages: messages})
}

func (d *Dispatcher) handleLeave(s *session, payload json.RawMessage) error {
	roomID := gjson.Get(string(payload), "roomId").String()
	if roomID == "" {
		return auth.NewError(auth.KindInvalidRequest, "roomId is required")
	}

	if err := d.permit(s, roomID, "", ""); err != nil {
		return err
	}

	username, _ := d.username(s)
	if !d.registry.Leave(s.id, roomID) {
		return nil
	}

	d.broadcast(roomID, EventUserLeft, presencePayload{
		Username:  username,
		RoomID:    roomID,
		Timestamp: now(),
	}, "")
	return nil
}

func (d *Dispatcher) handleSendMessage(s *session, payload json.RawMessage) error {
	body := string(payload)
	roomID := gjson.Get(body, "roomId").String()
	content := gjson.Get(body, "content").String()
	if roomID == "" || content == "" {
		return auth.NewError(auth.KindInvalidRequest, "roomId and content are required")
	}

	if err := d.permit(s, roomID, "", ""); err != nil {
		return err
	}

	username, ok := d.username(s)
	if !ok {
		return auth.NewError(auth.KindInvalidRequest, "join a room before sending messages")
	}

	msg := state.Message{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		Username:  username,
		Content:   content,
		Timestamp: now(),
	}
	if err := d.registry.AppendMessage(roomID, msg); err != nil {
		if errors.Is(err, state.ErrRoomNotFound) {
			return auth.NewError(auth.KindInvalidRequest, "room does not exist")
		}
		return auth.WrapError(auth.KindInternalInconsistency, "append message failed", err)
	}

	d.broadcast(roomID, EventNewMessage, msg, "")
	return nil
}

func (d *Dispatcher) handleTyping(s *session, payload json.RawMessage) error {
	body := string(payload)
	roomID := gjson.Get(body, "roomId").String()
	isTyping := gjson.Get(body, "isTyping")
	if roomID == "" || !isTyping.Exists() {
		return auth.NewError(auth.KindInvalidRequest, "roomId and isTyping are required")
	}

	if err := d.permit(s, roomID, "", ""); err != nil {
		return err
	}

	username, _ := d.username(s)
	// The sender already knows it is typing.
	d.broadcast(roomID, EventUserTyping, typingPayload{
		Username: username,
		RoomID:   roomID,
		IsTyping: isTyping.Bool(),
	}, s.id)
	return nil
}

func (d *Dispatcher) handleGetActiveRooms(s *session) error {
	rooms := d.registry.Rooms()
	if rooms == nil {
		rooms = []state.RoomInfo{}
	}
	return d.send(s, EventActiveRooms, roomsPayload{Rooms: rooms})
}

func (d *Dispatcher) handleGetRoomUsers(s *session, payload json.RawMessage) error {
	roomID := gjson.Get(string(payload), "roomId").String()
	if roomID == "" {
		return auth.NewError(auth.KindInvalidRequest, "roomId is required")
	}

	if err := d.permit(s, roomID, "", ""); err != nil {
		return err
	}

	users := make([]roomUser, 0)
	for _, username := range d.registry.Members(roomID) {
		users = append(users, roomUser{Username: username})
	}
	return d.send(s, EventRoomUsers, roomUsersPayload{RoomID: roomID, Users: users})
}
