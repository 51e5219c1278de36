package service

import (
	"errors"
	"time"

	"github.com/kesav2807/SocialMediaApplication/internal/apperr"
	"github.com/kesav2807/SocialMediaApplication/internal/models"
	"gorm.io/gorm"
)

// Action names a capability checked against a room membership.
type Action string

const (
	ActionRead   Action = "read"
	ActionSend   Action = "send"
	ActionManage Action = "manage"
)

// Decision is the result of an authorization check.
type Decision struct {
	Allowed bool
	Reason  string
}

// Authorize is the single membership check shared by the REST and push
// paths. Read and send require membership; manage requires the admin role.
func Authorize(room *models.Room, userID uint, action Action) Decision {
	var member *models.RoomMember
	for i := range room.Members {
		if room.Members[i].UserID == userID {
			member = &room.Members[i]
			break
		}
	}
	if member == nil {
		return Decision{Reason: "Not a group member"}
	}
	if action == ActionManage && member.Role != models.RoleAdmin {
		return Decision{Reason: "admin role required"}
	}
	return Decision{Allowed: true}
}

// RoomService owns group room lifecycle and membership.
type RoomService struct {
	db *gorm.DB
}

func NewRoomService(db *gorm.DB) *RoomService {
	return &RoomService{db: db}
}

// Get loads a room with its membership, or a not-found error.
func (s *RoomService) Get(roomID uint) (*models.Room, error) {
	var room models.Room
	err := s.db.Preload("Members").First(&room, roomID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("Chat room not found")
	}
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return &room, nil
}

// CheckAccess loads the room and runs Authorize, mapping a denial to a
// forbidden error.
func (s *RoomService) CheckAccess(roomID, userID uint, action Action) error {
	room, err := s.Get(roomID)
	if err != nil {
		return err
	}
	if d := Authorize(room, userID, action); !d.Allowed {
		return apperr.Forbidden("%s", d.Reason)
	}
	return nil
}

// Create persists a room with the creator as admin plus the given members.
// Unknown member IDs are skipped rather than failing the creation.
func (s *RoomService) Create(creatorID uint, name, description string, isPrivate bool, memberIDs []uint) (*RoomDTO, error) {
	if name == "" {
		return nil, apperr.Validation("room name required")
	}
	if len(name) > 128 {
		return nil, apperr.Validation("room name too long")
	}
	if len(description) > 500 {
		return nil, apperr.Validation("description too long")
	}

	members := []models.RoomMember{{UserID: creatorID, Role: models.RoleAdmin, JoinedAt: time.Now()}}
	if len(memberIDs) > 0 {
		var users []models.User
		if err := s.db.Where("id IN ?", memberIDs).Find(&users).Error; err != nil {
			return nil, apperr.Storage(err)
		}
		for _, u := range users {
			if u.ID == creatorID {
				continue
			}
			members = append(members, models.RoomMember{UserID: u.ID, Role: models.RoleMember, JoinedAt: time.Now()})
		}
	}

	room := models.Room{Name: name, Description: description, CreatorID: creatorID, IsPrivate: isPrivate, Members: members}
	if err := s.db.Create(&room).Error; err != nil {
		return nil, apperr.Storage(err)
	}
	return s.toDTO(room.ID)
}

// Join adds the caller as a member. Rejects a second join for the same
// user.
func (s *RoomService) Join(roomID, userID uint) error {
	room, err := s.Get(roomID)
	if err != nil {
		return err
	}
	for _, m := range room.Members {
		if m.UserID == userID {
			return apperr.Validation("Already a member")
		}
	}
	member := models.RoomMember{RoomID: roomID, UserID: userID, Role: models.RoleMember, JoinedAt: time.Now()}
	if err := s.db.Create(&member).Error; err != nil {
		return apperr.Storage(err)
	}
	return nil
}

// Leave removes the caller's membership. Leaving when not a member is a
// no-op; the last admin may not leave, which would orphan the room.
func (s *RoomService) Leave(roomID, userID uint) error {
	room, err := s.Get(roomID)
	if err != nil {
		return err
	}
	if err := s.guardLastAdmin(room, userID); err != nil {
		return err
	}
	if err := s.db.Where("room_id = ? AND user_id = ?", roomID, userID).Delete(&models.RoomMember{}).Error; err != nil {
		return apperr.Storage(err)
	}
	return nil
}

// Remove drops a member; admin only.
func (s *RoomService) Remove(roomID, adminID, targetID uint) error {
	room, err := s.Get(roomID)
	if err != nil {
		return err
	}
	if d := Authorize(room, adminID, ActionManage); !d.Allowed {
		return apperr.Forbidden("Only admins can remove members")
	}
	if err := s.guardLastAdmin(room, targetID); err != nil {
		return err
	}
	if err := s.db.Where("room_id = ? AND user_id = ?", roomID, targetID).Delete(&models.RoomMember{}).Error; err != nil {
		return apperr.Storage(err)
	}
	return nil
}

// ChangeRole updates a member's role; admin only.
func (s *RoomService) ChangeRole(roomID, adminID, targetID uint, newRole string) error {
	if newRole != models.RoleAdmin && newRole != models.RoleMember {
		return apperr.Validation("unknown role %q", newRole)
	}
	room, err := s.Get(roomID)
	if err != nil {
		return err
	}
	if d := Authorize(room, adminID, ActionManage); !d.Allowed {
		return apperr.Forbidden("Only admins can change roles")
	}
	var target *models.RoomMember
	for i := range room.Members {
		if room.Members[i].UserID == targetID {
			target = &room.Members[i]
			break
		}
	}
	if target == nil {
		return apperr.NotFound("User not found in room")
	}
	if newRole == models.RoleMember {
		if err := s.guardLastAdmin(room, targetID); err != nil {
			return err
		}
	}
	if err := s.db.Model(&models.RoomMember{}).Where("room_id = ? AND user_id = ?", roomID, targetID).Update("role", newRole).Error; err != nil {
		return apperr.Storage(err)
	}
	return nil
}

// guardLastAdmin refuses any change that would leave the room without an
// admin.
func (s *RoomService) guardLastAdmin(room *models.Room, userID uint) error {
	admins := 0
	isAdmin := false
	for _, m := range room.Members {
		if m.Role == models.RoleAdmin {
			admins++
			if m.UserID == userID {
				isAdmin = true
			}
		}
	}
	if isAdmin && admins == 1 {
		return apperr.Forbidden("cannot remove the only admin")
	}
	return nil
}

func (s *RoomService) toDTO(roomID uint) (*RoomDTO, error) {
	var room models.Room
	if err := s.db.Preload("Members.User").Preload("LastMessage.Sender").First(&room, roomID).Error; err != nil {
		return nil, apperr.Storage(err)
	}
	dto := roomToDTO(room)
	return &dto, nil
}

func roomToDTO(room models.Room) RoomDTO {
	dto := RoomDTO{
		ID:          room.ID,
		Name:        room.Name,
		Description: room.Description,
		Creator:     room.CreatorID,
		IsPrivate:   room.IsPrivate,
		CreatedAt:   room.CreatedAt,
		UpdatedAt:   room.UpdatedAt,
	}
	for _, m := range room.Members {
		dto.Members = append(dto.Members, MemberDTO{User: toUserRef(m.User), Role: m.Role, JoinedAt: m.JoinedAt})
	}
	if room.LastMessage != nil {
		last := toMessageDTO(*room.LastMessage)
		dto.LastMessage = &last
	}
	return dto
}
