package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/kesav2807/SocialMediaApplication/internal/apperr"
	"github.com/kesav2807/SocialMediaApplication/internal/auth"
	"github.com/kesav2807/SocialMediaApplication/internal/config"
	"github.com/kesav2807/SocialMediaApplication/internal/metrics"
	"github.com/kesav2807/SocialMediaApplication/internal/models"
	"github.com/kesav2807/SocialMediaApplication/internal/service"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Client-sent event names.
const (
	evtJoinRoom      = "joinRoom"
	evtLeaveRoom     = "leaveRoom"
	evtSendMessage   = "sendMessage"
	evtTyping        = "typing"
	evtMarkDelivered = "markDelivered"
	evtMarkSeen      = "markSeen"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	maxFrame   = 1 << 20 // 1MB

	// Close code sent to a socket displaced by a newer admission for the
	// same user.
	closeSessionReplaced = 4001
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Deps are the services the socket event loop dispatches into. Both
// transports share the same ingest and authorization code paths.
type Deps struct {
	Messages *service.MessageService
	Rooms    *service.RoomService
}

// Session is one authenticated websocket. Outbound frames go through a
// buffered channel so fanout never blocks on a slow client; a client that
// falls a full buffer behind is disconnected.
type Session struct {
	id       string
	userID   uint
	username string

	hub  *Hub
	deps Deps
	conn *websocket.Conn

	out    chan []byte
	closed chan struct{}
	once   sync.Once
}

func newSession(hub *Hub, deps Deps, conn *websocket.Conn, userID uint, username string) *Session {
	return &Session{
		id:       uuid.NewString(),
		userID:   userID,
		username: username,
		hub:      hub,
		deps:     deps,
		conn:     conn,
		out:      make(chan []byte, 256),
		closed:   make(chan struct{}),
	}
}

// Serve authenticates the handshake and hands the socket to the hub. A
// missing or invalid credential closes the transport before any event is
// processed.
func Serve(hub *Hub, db *gorm.DB, cfg config.Config, deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.TokenFromRequest(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		user, err := auth.Authenticate(db, cfg, token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		s := newSession(hub, deps, conn, user.ID, user.Username)
		hub.Admit(s)
		s.readPump()
	}
}

func (s *Session) start() {
	if s.conn == nil {
		return
	}
	go s.writePump()
}

// send enqueues a frame without blocking. Reports whether the frame was
// accepted; a full buffer closes the session.
func (s *Session) send(payload []byte) bool {
	if payload == nil {
		return false
	}
	select {
	case <-s.closed:
		return false
	default:
	}
	select {
	case s.out <- payload:
		return true
	default:
		s.close(websocket.CloseGoingAway, "send buffer full")
		return false
	}
}

func (s *Session) push(event string, data interface{}) {
	s.send(Encode(event, data))
}

func (s *Session) close(code int, reason string) {
	s.once.Do(func() {
		close(s.closed)
		if s.conn == nil {
			return
		}
		_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
		_ = s.conn.Close()
	})
}

func (s *Session) readPump() {
	defer func() {
		s.hub.Revoke(s)
		s.close(websocket.CloseNormalClosure, "")
	}()
	s.conn.SetReadLimit(maxFrame)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		s.dispatch(env)
	}
}

type roomPayload struct {
	RoomID uint `json:"roomId"`
}

type markPayload struct {
	MessageID uint `json:"messageId"`
}

func (s *Session) dispatch(env Envelope) {
	switch env.Event {
	case evtJoinRoom:
		var p roomPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.RoomID == 0 {
			return
		}
		if err := s.deps.Rooms.CheckAccess(p.RoomID, s.userID, service.ActionRead); err != nil {
			s.push(EvtMessageError, gin.H{"error": "not a room member"})
			return
		}
		s.hub.Join(s, p.RoomID)
	case evtLeaveRoom:
		var p roomPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.RoomID == 0 {
			return
		}
		s.hub.Leave(s, p.RoomID)
	case evtSendMessage:
		var in service.SendInput
		if err := json.Unmarshal(env.Data, &in); err != nil {
			s.push(EvtMessageError, gin.H{"error": "invalid payload"})
			return
		}
		metrics.WsMessagesTotal.Inc()
		msg, err := s.deps.Messages.Send(s.userID, in)
		if err != nil {
			s.push(EvtMessageError, gin.H{"error": apperr.Message(err)})
			return
		}
		s.push(EvtMessageSent, msg)
	case evtTyping:
		var in service.TypingInput
		if err := json.Unmarshal(env.Data, &in); err != nil {
			return
		}
		// Relay failures are dropped by contract, not reported.
		if err := s.deps.Messages.RelayTyping(s.userID, in); err != nil {
			log.Debug().Err(err).Uint("user_id", s.userID).Msg("typing relay dropped")
		}
	case evtMarkDelivered:
		s.advance(env.Data, models.StatusDelivered)
	case evtMarkSeen:
		s.advance(env.Data, models.StatusSeen)
	}
}

func (s *Session) advance(data json.RawMessage, status string) {
	var p markPayload
	if err := json.Unmarshal(data, &p); err != nil || p.MessageID == 0 {
		return
	}
	if err := s.deps.Messages.AdvanceStatus(s.userID, p.MessageID, status); err != nil {
		s.push(EvtMessageError, gin.H{"error": apperr.Message(err)})
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.close(websocket.CloseNormalClosure, "")
	}()
	for {
		select {
		case <-s.closed:
			return
		case payload := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
