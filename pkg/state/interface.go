package state

import "errors"

var ErrRoomNotFound = errors.New("room not found")

// Registry owns the connection↔room↔identity relationships. It is the
// single writer for membership state; all operations are safe for
// concurrent use from independent connections.
type Registry interface {
	// Join adds a connection to a room, creating the room lazily. The
	// identity is recorded for the connection on its first join only; nil
	// means the connection stays unresolved. Joining a room already joined
	// is a no-op.
	Join(connID, roomID string, identity *Identity) error

	// Leave removes a connection from a room. An emptied room is deleted
	// immediately, history included. A connection left with zero rooms has
	// its identity released. Reports whether the connection was a member.
	Leave(connID, roomID string) bool

	// LeaveAll leaves every room the connection belongs to and returns the
	// room ids left. Safe to call from a disconnect handler racing an
	// in-flight Join for the same connection.
	LeaveAll(connID string) []string

	// IsMember reports current membership of a connection in a room.
	IsMember(connID, roomID string) bool

	// Identity returns the identity recorded for a connection, if any.
	Identity(connID string) (Identity, bool)

	// AppendMessage appends to a room's bounded history, evicting the
	// oldest entry beyond the cap. Fails with ErrRoomNotFound for rooms
	// that do not exist.
	AppendMessage(roomID string, msg Message) error

	// Messages returns a room's history in arrival order.
	Messages(roomID string) []Message

	// Rooms returns a snapshot of all live rooms.
	Rooms() []RoomInfo

	// Members returns the usernames of a room's current members; members
	// with no recorded identity are omitted.
	Members(roomID string) []string

	// MemberConns returns the connection ids of a room's current members.
	MemberConns(roomID string) []string
}
