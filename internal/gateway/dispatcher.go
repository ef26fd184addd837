// Package gateway routes inbound connection events through the connection
// gate and the room registry, and fans resulting notifications back out to
// affected connections.
package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/othnielvtf/livechat/internal/auth"
	"github.com/othnielvtf/livechat/internal/gate"
	"github.com/othnielvtf/livechat/pkg/state"
)

// Conn is the transport surface the dispatcher needs. Satisfied by
// *transport.Connection.
type Conn interface {
	ID() uuid.UUID
	Send(msg []byte)
	Close(err error)
}

// Repeated authorization failures from one connection before the
// dispatcher closes it.
const maxAuthFailures = 5

type session struct {
	conn      Conn
	id        string
	createdAt time.Time
	// identity is resolved at most once, at handshake; nil means the
	// connection is anonymous.
	identity *state.Identity

	mu           sync.Mutex
	authFailures int
}

type Dispatcher struct {
	logger   *slog.Logger
	registry state.Registry
	gate     *gate.Gate

	mu       sync.RWMutex
	sessions map[string]*session
}

func NewDispatcher(logger *slog.Logger, registry state.Registry, g *gate.Gate) *Dispatcher {
	return &Dispatcher{
		logger:   logger.With(slog.String("component", "gateway_dispatcher")),
		registry: registry,
		gate:     g,
		sessions: make(map[string]*session),
	}
}

// Register attaches a connection with its (possibly nil) resolved
// identity.
func (d *Dispatcher) Register(conn Conn, identity *state.Identity) {
	s := &session{conn: conn, id: conn.ID().String(), createdAt: time.Now(), identity: identity}
	d.mu.Lock()
	d.sessions[s.id] = s
	d.mu.Unlock()
}

// UserConnectionCount reports live connections resolved to a user.
func (d *Dispatcher) UserConnectionCount(userID string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n := 0
	for _, s := range d.sessions {
		if s.identity != nil && s.identity.UserID == userID {
			n++
		}
	}
	return n
}

// CloseOldestUserConnection cycles a user's oldest live connection out to
// make room for a new one.
func (d *Dispatcher) CloseOldestUserConnection(userID string) {
	d.mu.RLock()
	var oldest *session
	for _, s := range d.sessions {
		if s.identity == nil || s.identity.UserID != userID {
			continue
		}
		if oldest == nil || s.createdAt.Before(oldest.createdAt) {
			oldest = s
		}
	}
	d.mu.RUnlock()
	if oldest != nil {
		d.logger.Info("cycling oldest user connection",
			slog.String("userID", userID),
			slog.String("connID", oldest.id),
		)
		oldest.conn.Close(auth.NewError(auth.KindInvalidRequest, "connection cycled by a newer connection"))
	}
}

// HandleMessage is the transport's inbound callback. Events from one
// connection arrive here in order.
func (d *Dispatcher) HandleMessage(_ context.Context, connID uuid.UUID, msg []byte) {
	d.mu.RLock()
	s := d.sessions[connID.String()]
	d.mu.RUnlock()
	if s == nil {
		d.logger.Error("message from unregistered connection", slog.String("connID", connID.String()))
		return
	}

	var env envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		d.sendError(s, "", auth.WrapError(auth.KindInvalidRequest, "malformed event envelope", err))
		return
	}

	var err error
	switch env.Event {
	case EventJoinRoom:
		err = d.handleJoin(s, env.Payload)
	case EventLeaveRoom:
		err = d.handleLeave(s, env.Payload)
	case EventSendMessage:
		err = d.handleSendMessage(s, env.Payload)
	case EventTyping:
		err = d.handleTyping(s, env.Payload)
	case EventGetActiveRooms:
		err = d.handleGetActiveRooms(s)
	case EventGetRoomUsers:
		err = d.handleGetRoomUsers(s, env.Payload)
	default:
		err = auth.NewError(auth.KindInvalidRequest, "unknown event "+env.Event)
	}
	if err != nil {
		d.sendError(s, env.Event, err)
	}
}

// HandleClose is the transport's close callback; the transport guarantees
// exactly one invocation per terminated connection.
func (d *Dispatcher) HandleClose(connID uuid.UUID, err error) {
	id := connID.String()
	d.mu.Lock()
	s := d.sessions[id]
	delete(d.sessions, id)
	d.mu.Unlock()
	if s == nil {
		return
	}

	username, _ := d.username(s)
	for _, roomID := range d.registry.LeaveAll(id) {
		d.broadcast(roomID, EventUserLeft, presencePayload{
			Username:  username,
			RoomID:    roomID,
			Timestamp: now(),
		}, "")
	}
	d.logger.Info("connection cleaned up", slog.String("connID", id), slog.Any("reason", err))
}

// CloseAll force-closes every live connection, for shutdown.
func (d *Dispatcher) CloseAll(err error) {
	d.mu.RLock()
	conns := make([]Conn, 0, len(d.sessions))
	for _, s := range d.sessions {
		conns = append(conns, s.conn)
	}
	d.mu.RUnlock()
	for _, c := range conns {
		c.Close(err)
	}
}

// username resolves the name to attribute to this session: the handshake
// identity, falling back to the identity recorded at join time.
func (d *Dispatcher) username(s *session) (string, bool) {
	if s.identity != nil {
		return s.identity.Username, true
	}
	if id, ok := d.registry.Identity(s.id); ok {
		return id.Username, true
	}
	return "", false
}

func (d *Dispatcher) send(s *session, event string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return auth.WrapError(auth.KindInternalInconsistency, "marshal outbound payload", err)
	}
	msg, err := json.Marshal(envelope{Event: event, Payload: raw})
	if err != nil {
		return auth.WrapError(auth.KindInternalInconsistency, "marshal outbound envelope", err)
	}
	s.conn.Send(msg)
	return nil
}

// broadcast fans an event out to every member of a room, optionally
// excluding one connection.
func (d *Dispatcher) broadcast(roomID, event string, payload any, excludeConnID string) {
	raw, err := json.Marshal(payload)
	if err != nil {
		d.logger.Error("marshal broadcast payload", slog.Any("error", err))
		return
	}
	msg, err := json.Marshal(envelope{Event: event, Payload: raw})
	if err != nil {
		d.logger.Error("marshal broadcast envelope", slog.Any("error", err))
		return
	}

	members := d.registry.MemberConns(roomID)
	d.mu.RLock()
	targets := make([]Conn, 0, len(members))
	for _, connID := range members {
		if connID == excludeConnID {
			continue
		}
		if s, ok := d.sessions[connID]; ok {
			targets = append(targets, s.conn)
		}
	}
	d.mu.RUnlock()

	for _, c := range targets {
		c.Send(msg)
	}
}

// sendError reports a failure to the originating connection. Repeated
// authentication failures close the connection; every other kind is
// terminal for its operation only.
func (d *Dispatcher) sendError(s *session, event string, err error) {
	kind := auth.KindOf(err)
	if kind == auth.KindInternalInconsistency {
		d.logger.Error("operation failed",
			slog.String("connID", s.id),
			slog.String("event", event),
			slog.Any("error", err),
		)
	} else {
		d.logger.Warn("operation rejected",
			slog.String("connID", s.id),
			slog.String("event", event),
			slog.String("kind", kind.String()),
		)
	}

	d.send(s, EventError, errorPayload{Event: event, Kind: kind.String(), Message: err.Error()})

	if kind == auth.KindInvalidSignature || kind == auth.KindInvalidCredential {
		s.mu.Lock()
		s.authFailures++
		failures := s.authFailures
		s.mu.Unlock()
		if failures >= maxAuthFailures {
			d.logger.Warn("closing connection after repeated auth failures", slog.String("connID", s.id))
			s.conn.Close(auth.NewError(auth.KindInvalidSignature, "too many authorization failures"))
		}
	}
}
