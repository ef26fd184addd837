// Package registry is the in-memory implementation of state.Registry.
//
// Lock discipline: each connection and each room carries its own mutex so
// independent rooms progress concurrently; the registry mutex only guards
// the two lookup maps. Lock order is connection, then room, with the map
// mutex taken briefly at any point but never held while waiting on an
// entity lock. LeaveAll and Join for the same connection serialize on the
// connection mutex, which keeps the membership symmetry invariant intact
// under disconnect races.
package registry

import (
	"log/slog"
	"sync"
	"time"

	"github.com/othnielvtf/livechat/pkg/state"
)

const DefaultHistoryLimit = 100

type Registry struct {
	mu    sync.RWMutex
	conns map[string]*connState
	rooms map[string]*roomState

	historyLimit int
	logger       *slog.Logger
}

type connState struct {
	mu       sync.Mutex
	id       string
	identity *state.Identity
	rooms    map[string]struct{}
}

type roomState struct {
	mu        sync.Mutex
	id        string
	members   map[string]struct{}
	history   *history
	createdAt time.Time
}

// compile-time check to ensure Registry implements state.Registry.
var _ state.Registry = (*Registry)(nil)

func New(logger *slog.Logger, historyLimit int) *Registry {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Registry{
		conns:        make(map[string]*connState),
		rooms:        make(map[string]*roomState),
		historyLimit: historyLimit,
		logger:       logger.With(slog.String("component", "room_registry")),
	}
}

// lockConn returns the connection entry with its mutex held, creating it
// when asked. The re-check after locking guards against the entry being
// dropped from the map by a concurrent LeaveAll between lookup and lock.
func (r *Registry) lockConn(connID string, create bool) *connState {
	for {
		r.mu.RLock()
		c := r.conns[connID]
		r.mu.RUnlock()

		if c == nil {
			if !create {
				return nil
			}
			r.mu.Lock()
			c = r.conns[connID]
			if c == nil {
				c = &connState{id: connID, rooms: make(map[string]struct{})}
				r.conns[connID] = c
			}
			r.mu.Unlock()
		}

		c.mu.Lock()
		r.mu.RLock()
		current := r.conns[connID]
		r.mu.RUnlock()
		if current == c {
			return c
		}
		c.mu.Unlock()
	}
}

// lockRoom is the room counterpart of lockConn. Callers mutating
// membership hold the connection mutex first.
func (r *Registry) lockRoom(roomID string, create bool) *roomState {
	for {
		r.mu.RLock()
		rm := r.rooms[roomID]
		r.mu.RUnlock()

		if rm == nil {
			if !create {
				return nil
			}
			r.mu.Lock()
			rm = r.rooms[roomID]
			if rm == nil {
				rm = &roomState{
					id:        roomID,
					members:   make(map[string]struct{}),
					history:   newHistory(r.historyLimit),
					createdAt: time.Now(),
				}
				r.rooms[roomID] = rm
			}
			r.mu.Unlock()
		}

		rm.mu.Lock()
		r.mu.RLock()
		current := r.rooms[roomID]
		r.mu.RUnlock()
		if current == rm {
			return rm
		}
		rm.mu.Unlock()
	}
}

func (r *Registry) Join(connID, roomID string, identity *state.Identity) error {
	c := r.lockConn(connID, true)
	defer c.mu.Unlock()

	if c.identity == nil && identity != nil {
		id := *identity
		c.identity = &id
	}
	if _, ok := c.rooms[roomID]; ok {
		return nil
	}

	rm := r.lockRoom(roomID, true)
	rm.members[connID] = struct{}{}
	rm.mu.Unlock()

	c.rooms[roomID] = struct{}{}
	r.logger.Debug("connection joined room", slog.String("connID", connID), slog.String("roomID", roomID))
	return nil
}

func (r *Registry) Leave(connID, roomID string) bool {
	c := r.lockConn(connID, false)
	if c == nil {
		return false
	}
	defer c.mu.Unlock()

	if _, ok := c.rooms[roomID]; !ok {
		return false
	}
	r.unlink(c, roomID)
	r.releaseIfIdle(c)
	return true
}

func (r *Registry) LeaveAll(connID string) []string {
	c := r.lockConn(connID, false)
	if c == nil {
		return nil
	}
	defer c.mu.Unlock()

	left := make([]string, 0, len(c.rooms))
	for roomID := range c.rooms {
		r.unlink(c, roomID)
		left = append(left, roomID)
	}
	r.releaseIfIdle(c)
	return left
}

// unlink removes one membership edge from both sides. Caller holds c.mu.
func (r *Registry) unlink(c *connState, roomID string) {
	rm := r.lockRoom(roomID, false)
	if rm != nil {
		delete(rm.members, c.id)
		if len(rm.members) == 0 {
			// Immediate eviction: an empty room must not outlive the
			// leave that emptied it, history included.
			r.mu.Lock()
			if r.rooms[roomID] == rm {
				delete(r.rooms, roomID)
			}
			r.mu.Unlock()
			r.logger.Debug("removed empty room", slog.String("roomID", roomID))
		}
		rm.mu.Unlock()
	}
	delete(c.rooms, roomID)
	r.logger.Debug("connection left room", slog.String("connID", c.id), slog.String("roomID", roomID))
}

// releaseIfIdle drops the connection entry, identity included, once it
// belongs to zero rooms. Caller holds c.mu.
func (r *Registry) releaseIfIdle(c *connState) {
	if len(c.rooms) != 0 {
		return
	}
	c.identity = nil
	r.mu.Lock()
	if r.conns[c.id] == c {
		delete(r.conns, c.id)
	}
	r.mu.Unlock()
}

func (r *Registry) IsMember(connID, roomID string) bool {
	c := r.lockConn(connID, false)
	if c == nil {
		return false
	}
	defer c.mu.Unlock()
	_, ok := c.rooms[roomID]
	return ok
}

func (r *Registry) Identity(connID string) (state.Identity, bool) {
	c := r.lockConn(connID, false)
	if c == nil {
		return state.Identity{}, false
	}
	defer c.mu.Unlock()
	if c.identity == nil {
		return state.Identity{}, false
	}
	return *c.identity, true
}

func (r *Registry) AppendMessage(roomID string, msg state.Message) error {
	rm := r.lockRoom(roomID, false)
	if rm == nil {
		return state.ErrRoomNotFound
	}
	defer rm.mu.Unlock()
	rm.history.append(msg)
	return nil
}

func (r *Registry) Messages(roomID string) []state.Message {
	rm := r.lockRoom(roomID, false)
	if rm == nil {
		return nil
	}
	defer rm.mu.Unlock()
	return rm.history.list()
}

func (r *Registry) Rooms() []state.RoomInfo {
	r.mu.RLock()
	snapshot := make([]*roomState, 0, len(r.rooms))
	for _, rm := range r.rooms {
		snapshot = append(snapshot, rm)
	}
	r.mu.RUnlock()

	infos := make([]state.RoomInfo, 0, len(snapshot))
	for _, rm := range snapshot {
		rm.mu.Lock()
		n := len(rm.members)
		rm.mu.Unlock()
		if n > 0 {
			infos = append(infos, state.RoomInfo{ID: rm.id, UserCount: n})
		}
	}
	return infos
}

func (r *Registry) Members(roomID string) []string {
	names := make([]string, 0)
	for _, connID := range r.MemberConns(roomID) {
		if id, ok := r.Identity(connID); ok && id.Username != "" {
			names = append(names, id.Username)
		}
	}
	return names
}

func (r *Registry) MemberConns(roomID string) []string {
	rm := r.lockRoom(roomID, false)
	if rm == nil {
		return nil
	}
	ids := make([]string, 0, len(rm.members))
	for connID := range rm.members {
		ids = append(ids, connID)
	}
	rm.mu.Unlock()
	return ids
}
