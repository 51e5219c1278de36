package service

import (
	"time"

	"github.com/kesav2807/SocialMediaApplication/internal/apperr"
	"github.com/kesav2807/SocialMediaApplication/internal/models"
	"gorm.io/gorm"
)

// DirectConversation is one peer with the most recent message exchanged.
type DirectConversation struct {
	Peer        UserRef    `json:"peer"`
	Type        string     `json:"type"`
	LastMessage MessageDTO `json:"lastMessage"`
}

// GroupConversation is one room the user belongs to.
type GroupConversation struct {
	ID          uint        `json:"id"`
	Type        string      `json:"type"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	IsPrivate   bool        `json:"isPrivate"`
	Members     []MemberDTO `json:"members"`
	LastMessage *MessageDTO `json:"lastMessage,omitempty"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// ConversationList is the aggregator output: two independently sorted
// lists, interleaving left to the consumer.
type ConversationList struct {
	DirectMessages     []DirectConversation `json:"directMessages"`
	GroupConversations []GroupConversation  `json:"groupConversations"`
}

// ConversationService builds the on-demand conversation overview.
type ConversationService struct {
	db   *gorm.DB
	push Pusher
}

func NewConversationService(db *gorm.DB, push Pusher) *ConversationService {
	if push == nil {
		push = NopPusher{}
	}
	return &ConversationService{db: db, push: push}
}

// List merges direct and group conversations for one user. Direct entries
// keep only the newest message per distinct peer and sort by that
// message's creation time; group entries sort by room update time.
func (c *ConversationService) List(userID uint) (*ConversationList, error) {
	direct, err := c.directConversations(userID)
	if err != nil {
		return nil, err
	}
	groups, err := c.groupConversations(userID)
	if err != nil {
		return nil, err
	}
	return &ConversationList{DirectMessages: direct, GroupConversations: groups}, nil
}

func (c *ConversationService) directConversations(userID uint) ([]DirectConversation, error) {
	var msgs []models.Message
	err := c.db.
		Preload("Sender").
		Where("room_id IS NULL AND (sender_id = ? OR receiver_id = ?)", userID, userID).
		Order("created_at DESC, id DESC").
		Find(&msgs).Error
	if err != nil {
		return nil, apperr.Storage(err)
	}

	// First message per peer wins; the scan is newest-first.
	peerOrder := make([]uint, 0)
	latest := make(map[uint]models.Message)
	for _, m := range msgs {
		peer := m.SenderID
		if m.SenderID == userID && m.ReceiverID != nil {
			peer = *m.ReceiverID
		}
		if _, ok := latest[peer]; ok {
			continue
		}
		latest[peer] = m
		peerOrder = append(peerOrder, peer)
	}
	if len(peerOrder) == 0 {
		return []DirectConversation{}, nil
	}

	var peers []models.User
	if err := c.db.Where("id IN ?", peerOrder).Find(&peers).Error; err != nil {
		return nil, apperr.Storage(err)
	}
	peerByID := make(map[uint]models.User, len(peers))
	for _, p := range peers {
		peerByID[p.ID] = p
	}

	out := make([]DirectConversation, 0, len(peerOrder))
	for _, peerID := range peerOrder {
		peer, ok := peerByID[peerID]
		if !ok {
			continue
		}
		ref := toUserRef(peer)
		online := c.push.IsOnline(peer.ID)
		ref.IsOnline = &online
		out = append(out, DirectConversation{
			Peer:        ref,
			Type:        "direct",
			LastMessage: toMessageDTO(latest[peerID]),
		})
	}
	return out, nil
}

func (c *ConversationService) groupConversations(userID uint) ([]GroupConversation, error) {
	var rooms []models.Room
	err := c.db.
		Preload("Members.User").
		Preload("LastMessage.Sender").
		Joins("JOIN room_members rm ON rm.room_id = rooms.id AND rm.user_id = ?", userID).
		Order("rooms.updated_at DESC").
		Find(&rooms).Error
	if err != nil {
		return nil, apperr.Storage(err)
	}

	out := make([]GroupConversation, 0, len(rooms))
	for _, room := range rooms {
		gc := GroupConversation{
			ID:          room.ID,
			Type:        "group",
			Name:        room.Name,
			Description: room.Description,
			IsPrivate:   room.IsPrivate,
			UpdatedAt:   room.UpdatedAt,
		}
		for _, m := range room.Members {
			gc.Members = append(gc.Members, MemberDTO{User: toUserRef(m.User), Role: m.Role, JoinedAt: m.JoinedAt})
		}
		if room.LastMessage != nil {
			last := toMessageDTO(*room.LastMessage)
			gc.LastMessage = &last
		}
		out = append(out, gc)
	}
	return out, nil
}
