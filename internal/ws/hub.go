package ws

import (
	"encoding/json"
	"sync"

	"github.com/kesav2807/SocialMediaApplication/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Server-pushed event names.
const (
	EvtNewMessage    = "newMessage"
	EvtMessageSent   = "messageSent"
	EvtMessageError  = "messageError"
	EvtMessageStatus = "messageStatus"
	EvtUserTyping    = "userTyping"
	EvtUserOnline    = "userOnline"
	EvtUserOffline   = "userOffline"
)

// Envelope is the wire frame for both directions: an event name plus its
// JSON payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode marshals an outbound frame. Encoding failures are logged and
// produce nil, which sessions drop.
func Encode(event string, data interface{}) []byte {
	raw, err := json.Marshal(data)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("encode event payload")
		return nil
	}
	b, err := json.Marshal(Envelope{Event: event, Data: raw})
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("encode event frame")
		return nil
	}
	return b
}

// Hub is the process-wide live connection registry, room multiplexer and
// presence broadcaster. One user maps to at most one session; a second
// admission for the same user replaces the first (last-connection-wins)
// and the replaced socket is closed. All maps share one lock because
// presence and direct delivery cut across rooms.
type Hub struct {
	mu           sync.RWMutex
	sessions     map[string]*Session          // sessionID -> session
	users        map[uint]*Session            // userID -> current session
	rooms        map[uint]map[string]*Session // roomID -> sessionID -> session
	sessionRooms map[string]map[uint]struct{} // sessionID -> joined roomIDs
}

func NewHub() *Hub {
	return &Hub{
		sessions:     make(map[string]*Session),
		users:        make(map[uint]*Session),
		rooms:        make(map[uint]map[string]*Session),
		sessionRooms: make(map[string]map[uint]struct{}),
	}
}

// Admit registers a session for its user, closing any prior session for
// the same user after the swap. Every other live session learns the user
// came online; the prior session's rooms are not inherited.
func (h *Hub) Admit(s *Session) {
	var replaced *Session

	h.mu.Lock()
	if prev, ok := h.users[s.userID]; ok && prev != nil {
		replaced = prev
		h.detachLocked(prev)
	}
	h.sessions[s.id] = s
	h.users[s.userID] = s
	h.sessionRooms[s.id] = make(map[uint]struct{})
	h.mu.Unlock()

	metrics.WsConnections.Inc()
	s.start()

	if replaced != nil {
		replaced.close(closeSessionReplaced, "session replaced")
	}

	h.broadcastAll(EvtUserOnline, s.userID, s.userID)
	log.Info().Uint("user_id", s.userID).Str("session_id", s.id).Msg("ws admit")
}

// Revoke removes a session if it is still the one on record. A revoke
// racing behind a replacing admit is a no-op, so the newer session
// survives and no spurious offline presence is announced.
func (h *Hub) Revoke(s *Session) {
	h.mu.Lock()
	if _, tracked := h.sessions[s.id]; !tracked {
		h.mu.Unlock()
		return
	}
	h.detachLocked(s)
	h.mu.Unlock()

	h.broadcastAll(EvtUserOffline, s.userID, s.userID)
	log.Info().Uint("user_id", s.userID).Str("session_id", s.id).Msg("ws revoke")
}

// detachLocked untracks a session and decrements the connection gauge.
// Pairing the gauge with removal from h.sessions keeps it exact on both
// the revoke path and the replacement path, where the displaced socket's
// later Revoke is the untracked no-op.
func (h *Hub) detachLocked(s *Session) {
	for roomID := range h.sessionRooms[s.id] {
		h.leaveLocked(roomID, s.id)
	}
	delete(h.sessionRooms, s.id)
	delete(h.sessions, s.id)
	if cur, ok := h.users[s.userID]; ok && cur != nil && cur.id == s.id {
		delete(h.users, s.userID)
	}
	metrics.WsConnections.Dec()
}

// Join subscribes the session to a room. Idempotent; joining an untracked
// session is ignored.
func (h *Hub) Join(s *Session, roomID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, tracked := h.sessions[s.id]; !tracked {
		return
	}
	room := h.rooms[roomID]
	if room == nil {
		room = make(map[string]*Session)
		h.rooms[roomID] = room
	}
	room[s.id] = s
	h.sessionRooms[s.id][roomID] = struct{}{}
}

// Leave unsubscribes the session from a room. Idempotent.
func (h *Hub) Leave(s *Session, roomID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(roomID, s.id)
	if set, ok := h.sessionRooms[s.id]; ok {
		delete(set, roomID)
	}
}

func (h *Hub) leaveLocked(roomID uint, sessionID string) {
	if room, ok := h.rooms[roomID]; ok {
		delete(room, sessionID)
		if len(room) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// BroadcastRoom pushes an event to every session joined to the room,
// optionally excluding one user. Returns the delivery count.
func (h *Hub) BroadcastRoom(roomID uint, event string, data interface{}, excludeUserID uint) int {
	payload := Encode(event, data)
	if payload == nil {
		return 0
	}
	h.mu.RLock()
	room := h.rooms[roomID]
	targets := make([]*Session, 0, len(room))
	for _, s := range room {
		if excludeUserID != 0 && s.userID == excludeUserID {
			continue
		}
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, s := range targets {
		if s.send(payload) {
			delivered++
		}
	}
	if delivered > 0 {
		metrics.FanoutDeliveries.Add(float64(delivered))
	}
	return delivered
}

// NotifyUser pushes an event to the user's current session, if any.
func (h *Hub) NotifyUser(userID uint, event string, data interface{}) bool {
	h.mu.RLock()
	s := h.users[userID]
	h.mu.RUnlock()
	if s == nil {
		return false
	}
	payload := Encode(event, data)
	if payload == nil {
		return false
	}
	if s.send(payload) {
		metrics.FanoutDeliveries.Inc()
		return true
	}
	return false
}

// IsOnline reports whether the user has a live session.
func (h *Hub) IsOnline(userID uint) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.users[userID] != nil
}

// RoomOnline returns the number of sessions joined to a room.
func (h *Hub) RoomOnline(roomID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// broadcastAll pushes an event to every session except one user's.
func (h *Hub) broadcastAll(event string, data interface{}, excludeUserID uint) {
	payload := Encode(event, data)
	if payload == nil {
		return
	}
	h.mu.RLock()
	targets := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		if s.userID == excludeUserID {
			continue
		}
		targets = append(targets, s)
	}
	h.mu.RUnlock()
	for _, s := range targets {
		s.send(payload)
	}
}
