package service

import (
	"time"

	"github.com/kesav2807/SocialMediaApplication/internal/models"
)

// UserRef is the populated user shape embedded in messages, members and
// conversations.
type UserRef struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
	IsOnline *bool  `json:"isOnline,omitempty"`
}

func toUserRef(u models.User) UserRef {
	return UserRef{ID: u.ID, Username: u.Username, Avatar: u.Avatar}
}

// MessageDTO is the wire shape of a persisted message with its sender and
// mentions resolved.
type MessageDTO struct {
	ID          uint      `json:"id"`
	Sender      UserRef   `json:"sender"`
	Receiver    *uint     `json:"receiver,omitempty"`
	ChatRoom    *uint     `json:"chatRoom,omitempty"`
	Content     string    `json:"content"`
	MessageType string    `json:"messageType"`
	Status      string    `json:"status"`
	Mentions    []UserRef `json:"mentions,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toMessageDTO(m models.Message) MessageDTO {
	dto := MessageDTO{
		ID:          m.ID,
		Sender:      toUserRef(m.Sender),
		Receiver:    m.ReceiverID,
		ChatRoom:    m.RoomID,
		Content:     m.Content,
		MessageType: m.MessageType,
		Status:      m.Status,
		CreatedAt:   m.CreatedAt,
	}
	dto.Sender.ID = m.SenderID
	for _, u := range m.Mentions {
		dto.Mentions = append(dto.Mentions, UserRef{ID: u.ID, Username: u.Username})
	}
	return dto
}

// MemberDTO is one populated room membership.
type MemberDTO struct {
	User     UserRef   `json:"user"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

// RoomDTO is the wire shape of a group room.
type RoomDTO struct {
	ID          uint        `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Creator     uint        `json:"creator"`
	IsPrivate   bool        `json:"isPrivate"`
	Members     []MemberDTO `json:"members"`
	LastMessage *MessageDTO `json:"lastMessage,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}
