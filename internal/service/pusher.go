package service

// Push event names emitted by the service layer.
const (
	evtNewMessage    = "newMessage"
	evtUserTyping    = "userTyping"
	evtMessageStatus = "messageStatus"
)

// Pusher delivers events to live connections. The websocket hub is the
// production implementation; services only need fanout and lookup, so
// they stay decoupled from the transport.
type Pusher interface {
	// BroadcastRoom pushes to every connection joined to the room,
	// optionally excluding one user. Returns the delivery count.
	BroadcastRoom(roomID uint, event string, data interface{}, excludeUserID uint) int
	// NotifyUser pushes to the user's live connection if there is one.
	NotifyUser(userID uint, event string, data interface{}) bool
	// IsOnline reports whether the user has a live connection.
	IsOnline(userID uint) bool
}

// NopPusher drops everything; used when no hub is wired (tests, CLI use).
type NopPusher struct{}

func (NopPusher) BroadcastRoom(roomID uint, event string, data interface{}, excludeUserID uint) int {
	return 0
}

func (NopPusher) NotifyUser(userID uint, event string, data interface{}) bool { return false }

func (NopPusher) IsOnline(userID uint) bool { return false }
