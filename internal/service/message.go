package service

import (
	"errors"
	"strings"
	"time"

	"github.com/kesav2807/SocialMediaApplication/internal/apperr"
	"github.com/kesav2807/SocialMediaApplication/internal/metrics"
	"github.com/kesav2807/SocialMediaApplication/internal/models"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var statusRank = map[string]int{
	models.StatusSent:      0,
	models.StatusDelivered: 1,
	models.StatusSeen:      2,
}

// SendInput is the transport-independent payload of a new message.
// Exactly one of Receiver or ChatRoom must be set.
type SendInput struct {
	Content     string `json:"content"`
	Receiver    *uint  `json:"receiver,omitempty"`
	ChatRoom    *uint  `json:"chatRoom,omitempty"`
	MessageType string `json:"messageType,omitempty"`
	Mentions    []uint `json:"mentions,omitempty"`
}

// TypingInput is the ephemeral typing signal; same targeting rule as
// SendInput, never persisted.
type TypingInput struct {
	Typing   bool  `json:"typing"`
	Receiver *uint `json:"receiver,omitempty"`
	ChatRoom *uint `json:"chatRoom,omitempty"`
}

// MessageService is the single ingest pipeline for both transports, plus
// message reads and the delivery-status state machine.
type MessageService struct {
	db       *gorm.DB
	push     Pusher
	rooms    *RoomService
	mentions *MentionService
}

func NewMessageService(db *gorm.DB, push Pusher, rooms *RoomService, mentions *MentionService) *MessageService {
	if push == nil {
		push = NopPusher{}
	}
	return &MessageService{db: db, push: push, rooms: rooms, mentions: mentions}
}

// Send validates, persists and fans out one message. The persist step is
// transactional with the room's lastMessage bump, so a stored message and
// its room pointer never diverge. Fanout and the offline receiver case
// are best-effort and never undo the persisted message.
func (s *MessageService) Send(senderID uint, in SendInput) (*MessageDTO, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, apperr.Validation("Message content is required")
	}
	if (in.Receiver == nil) == (in.ChatRoom == nil) {
		return nil, apperr.Validation("exactly one of receiver or chatRoom is required")
	}
	msgType := in.MessageType
	if msgType == "" {
		msgType = models.TypeText
	}
	switch msgType {
	case models.TypeText, models.TypeImage, models.TypeVideo, models.TypeFile:
	default:
		return nil, apperr.Validation("unknown message type %q", msgType)
	}

	var room *models.Room
	if in.ChatRoom != nil {
		var err error
		room, err = s.rooms.Get(*in.ChatRoom)
		if err != nil {
			return nil, err
		}
		if d := Authorize(room, senderID, ActionSend); !d.Allowed {
			return nil, apperr.Forbidden("%s", d.Reason)
		}
	} else {
		var count int64
		if err := s.db.Model(&models.User{}).Where("id = ?", *in.Receiver).Count(&count).Error; err != nil {
			return nil, apperr.Storage(err)
		}
		if count == 0 {
			return nil, apperr.NotFound("receiver not found")
		}
	}

	var sender models.User
	if err := s.db.First(&sender, senderID).Error; err != nil {
		return nil, apperr.Storage(err)
	}

	msg := models.Message{
		SenderID:    senderID,
		ReceiverID:  in.Receiver,
		RoomID:      in.ChatRoom,
		Content:     content,
		MessageType: msgType,
		Status:      models.StatusSent,
		Mentions:    s.mentions.ResolveAll(content, in.Mentions, room),
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Mentions.*").Create(&msg).Error; err != nil {
			return err
		}
		if in.ChatRoom != nil {
			updates := map[string]interface{}{"last_message_id": msg.ID, "updated_at": time.Now()}
			return tx.Model(&models.Room{}).Where("id = ?", *in.ChatRoom).Updates(updates).Error
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Storage(err)
	}

	msg.Sender = sender
	dto := toMessageDTO(msg)

	if in.ChatRoom != nil {
		metrics.MessagesPersistedTotal.WithLabelValues("room").Inc()
		s.push.BroadcastRoom(*in.ChatRoom, evtNewMessage, dto, 0)
	} else {
		metrics.MessagesPersistedTotal.WithLabelValues("direct").Inc()
		if !s.push.NotifyUser(*in.Receiver, evtNewMessage, dto) {
			// Offline receiver: delivery-on-reconnect is not implemented.
			log.Debug().Uint("receiver", *in.Receiver).Uint("message_id", msg.ID).Msg("receiver offline, push skipped")
		}
	}
	return &dto, nil
}

// RelayTyping forwards a typing edge to the room's subscribers or the
// direct peer. Nothing is stored; an offline target drops the signal.
func (s *MessageService) RelayTyping(userID uint, in TypingInput) error {
	if (in.Receiver == nil) == (in.ChatRoom == nil) {
		return apperr.Validation("exactly one of receiver or chatRoom is required")
	}
	event := struct {
		UserID uint `json:"userId"`
		Typing bool `json:"typing"`
	}{UserID: userID, Typing: in.Typing}

	if in.ChatRoom != nil {
		if err := s.rooms.CheckAccess(*in.ChatRoom, userID, ActionSend); err != nil {
			return err
		}
		s.push.BroadcastRoom(*in.ChatRoom, evtUserTyping, event, userID)
		return nil
	}
	s.push.NotifyUser(*in.Receiver, evtUserTyping, event)
	return nil
}

// AdvanceStatus moves a message along sent -> delivered -> seen. Only the
// direct receiver, or a room member other than the sender, may advance;
// regressions and repeats are no-ops. The sender's live connection is
// told about the transition.
func (s *MessageService) AdvanceStatus(userID, messageID uint, status string) error {
	rank, ok := statusRank[status]
	if !ok || status == models.StatusSent {
		return apperr.Validation("unknown status %q", status)
	}
	var msg models.Message
	err := s.db.First(&msg, messageID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("message not found")
	}
	if err != nil {
		return apperr.Storage(err)
	}

	switch {
	case msg.ReceiverID != nil:
		if *msg.ReceiverID != userID {
			return apperr.Forbidden("only the receiver can update message status")
		}
	case msg.RoomID != nil:
		if msg.SenderID == userID {
			return apperr.Forbidden("sender cannot update message status")
		}
		if err := s.rooms.CheckAccess(*msg.RoomID, userID, ActionRead); err != nil {
			return err
		}
	}

	if rank <= statusRank[msg.Status] {
		return nil
	}
	if err := s.db.Model(&models.Message{}).Where("id = ?", messageID).Update("status", status).Error; err != nil {
		return apperr.Storage(err)
	}

	s.push.NotifyUser(msg.SenderID, evtMessageStatus, struct {
		MessageID uint   `json:"messageId"`
		Status    string `json:"status"`
	}{MessageID: messageID, Status: status})
	return nil
}

// ListRoomMessages returns one page of a room's history, member-only,
// newest page first but each page in chronological order.
func (s *MessageService) ListRoomMessages(roomID, userID uint, page, limit int) ([]MessageDTO, error) {
	room, err := s.rooms.Get(roomID)
	if err != nil {
		return nil, err
	}
	if d := Authorize(room, userID, ActionRead); !d.Allowed {
		return nil, apperr.Forbidden("Not a member of this chat room")
	}
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var msgs []models.Message
	err = s.db.
		Preload("Sender").
		Preload("Mentions").
		Where("room_id = ?", roomID).
		Order("created_at DESC, id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, apperr.Storage(err)
	}
	reverseMessages(msgs)
	return toMessageDTOs(msgs), nil
}

// DirectHistory returns the full two-party history in chronological order.
func (s *MessageService) DirectHistory(userID, peerID uint) ([]MessageDTO, error) {
	var msgs []models.Message
	err := s.db.
		Preload("Sender").
		Where("room_id IS NULL AND ((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?))",
			userID, peerID, peerID, userID).
		Order("created_at ASC, id ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return toMessageDTOs(msgs), nil
}

// DirectConversationShape is the existing-or-empty conversation returned
// when a client opens a direct chat.
type DirectConversationShape struct {
	ID          uint        `json:"id"`
	Type        string      `json:"type"`
	Peer        UserRef     `json:"peer"`
	LastMessage *MessageDTO `json:"lastMessage"`
}

// StartDirect resolves the peer and returns the conversation shape plus
// its history; an empty history is a valid, empty conversation.
func (s *MessageService) StartDirect(userID, peerID uint) (*DirectConversationShape, []MessageDTO, error) {
	var peer models.User
	err := s.db.First(&peer, peerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, apperr.NotFound("User not found")
	}
	if err != nil {
		return nil, nil, apperr.Storage(err)
	}
	history, err := s.DirectHistory(userID, peerID)
	if err != nil {
		return nil, nil, err
	}
	shape := &DirectConversationShape{ID: peer.ID, Type: "direct", Peer: toUserRef(peer)}
	if len(history) > 0 {
		last := history[len(history)-1]
		shape.LastMessage = &last
	}
	return shape, history, nil
}

func reverseMessages(msgs []models.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}

func toMessageDTOs(msgs []models.Message) []MessageDTO {
	out := make([]MessageDTO, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageDTO(m))
	}
	return out
}
