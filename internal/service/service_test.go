package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/kesav2807/SocialMediaApplication/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testDB opens a private in-memory database per test.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = gdb.AutoMigrate(&models.User{}, &models.Room{}, &models.RoomMember{}, &models.Message{}, &models.RefreshToken{})
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

func seedUser(t *testing.T, db *gorm.DB, username string) models.User {
	t.Helper()
	u := models.User{Username: username, PasswordHash: "x"}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return u
}

func seedRoom(t *testing.T, db *gorm.DB, name string, adminID uint, memberIDs ...uint) models.Room {
	t.Helper()
	members := []models.RoomMember{{UserID: adminID, Role: models.RoleAdmin, JoinedAt: time.Now()}}
	for _, id := range memberIDs {
		members = append(members, models.RoomMember{UserID: id, Role: models.RoleMember, JoinedAt: time.Now()})
	}
	room := models.Room{Name: name, CreatorID: adminID, Members: members}
	if err := db.Create(&room).Error; err != nil {
		t.Fatalf("seed room %s: %v", name, err)
	}
	return room
}

type pushRecord struct {
	RoomID  uint
	UserID  uint
	Event   string
	Data    interface{}
	Exclude uint
}

// recordPusher captures fanout calls instead of pushing anywhere.
type recordPusher struct {
	roomEvents []pushRecord
	userEvents []pushRecord
	online     map[uint]bool
}

func newRecordPusher(onlineUsers ...uint) *recordPusher {
	online := make(map[uint]bool)
	for _, id := range onlineUsers {
		online[id] = true
	}
	return &recordPusher{online: online}
}

func (p *recordPusher) BroadcastRoom(roomID uint, event string, data interface{}, excludeUserID uint) int {
	p.roomEvents = append(p.roomEvents, pushRecord{RoomID: roomID, Event: event, Data: data, Exclude: excludeUserID})
	return 1
}

func (p *recordPusher) NotifyUser(userID uint, event string, data interface{}) bool {
	if !p.online[userID] {
		return false
	}
	p.userEvents = append(p.userEvents, pushRecord{UserID: userID, Event: event, Data: data})
	return true
}

func (p *recordPusher) IsOnline(userID uint) bool { return p.online[userID] }

// newMessageService wires a message service over the given fakes.
func newTestMessages(t *testing.T, db *gorm.DB, push Pusher) *MessageService {
	t.Helper()
	rooms := NewRoomService(db)
	mentions := NewMentionService(db, nil)
	return NewMessageService(db, push, rooms, mentions)
}

func uintPtr(v uint) *uint { return &v }
