package models

import "time"

// Message type and status enums mirror the wire values; stored as strings.
const (
	TypeText  = "text"
	TypeImage = "image"
	TypeVideo = "video"
	TypeFile  = "file"

	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusSeen      = "seen"

	RoleAdmin  = "admin"
	RoleMember = "member"
)

type User struct {
	ID           uint   `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;size:64;not null"`
	PasswordHash string `gorm:"not null"`
	Avatar       string `gorm:"size:256"`
	Bio          string `gorm:"size:500"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Room struct {
	ID            uint   `gorm:"primaryKey"`
	Name          string `gorm:"size:128;not null"`
	Description   string `gorm:"size:500"`
	CreatorID     uint   `gorm:"not null"`
	IsPrivate     bool
	LastMessageID *uint
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Members     []RoomMember `gorm:"foreignKey:RoomID"`
	LastMessage *Message     `gorm:"foreignKey:LastMessageID"`
}

// RoomMember holds one membership record; a user appears at most once per room.
type RoomMember struct {
	ID       uint   `gorm:"primaryKey"`
	RoomID   uint   `gorm:"uniqueIndex:idx_room_user;not null"`
	UserID   uint   `gorm:"uniqueIndex:idx_room_user;not null"`
	Role     string `gorm:"size:16;not null;default:member"`
	JoinedAt time.Time

	User User `gorm:"foreignKey:UserID"`
}

// Message targets exactly one of ReceiverID (direct) or RoomID (group).
// The ingest pipeline rejects anything else before it reaches the store.
type Message struct {
	ID          uint   `gorm:"primaryKey"`
	SenderID    uint   `gorm:"index;not null"`
	ReceiverID  *uint  `gorm:"index"`
	RoomID      *uint  `gorm:"index:idx_msg_room"`
	Content     string `gorm:"type:text;not null"`
	MessageType string `gorm:"size:16;not null;default:text"`
	Status      string `gorm:"size:16;not null;default:sent"`
	CreatedAt   time.Time

	Sender   User   `gorm:"foreignKey:SenderID"`
	Mentions []User `gorm:"many2many:message_mentions"`
}

type RefreshToken struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"index;not null"`
	Token     string    `gorm:"uniqueIndex;size:128;not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	RevokedAt *time.Time
	CreatedAt time.Time
}
