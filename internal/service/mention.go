package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/kesav2807/SocialMediaApplication/internal/apperr"
	"github.com/kesav2807/SocialMediaApplication/internal/cache"
	"github.com/kesav2807/SocialMediaApplication/internal/models"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const (
	suggestLimit    = 10
	suggestCacheTTL = 30 * time.Second
)

// ExtractMentions collects the @username tokens of a message body:
// whitespace-split words starting with '@', de-duplicated in order,
// trailing punctuation stripped. Resolution against real users happens
// separately; extraction is pure.
func ExtractMentions(content string) []string {
	var tokens []string
	seen := make(map[string]struct{})
	for _, word := range strings.Fields(content) {
		if len(word) < 2 || word[0] != '@' {
			continue
		}
		token := strings.TrimRight(word[1:], ".,!?:;")
		if token == "" {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		tokens = append(tokens, token)
	}
	return tokens
}

// MentionService resolves @tokens to users and serves typeahead
// suggestions, with an optional short-TTL cache in front of the search.
type MentionService struct {
	db    *gorm.DB
	cache cache.Cache
}

func NewMentionService(db *gorm.DB, c cache.Cache) *MentionService {
	if c == nil {
		c = cache.Noop{}
	}
	return &MentionService{db: db, cache: c}
}

// Resolve maps the message's @tokens to existing users. For room messages
// only room members count; unresolved tokens are dropped, never an error.
func (s *MentionService) Resolve(content string, room *models.Room) []models.User {
	tokens := ExtractMentions(content)
	if len(tokens) == 0 {
		return nil
	}
	var users []models.User
	if err := s.db.Where("username IN ?", tokens).Find(&users).Error; err != nil {
		log.Warn().Err(err).Msg("mention resolve query")
		return nil
	}
	if room == nil {
		return users
	}
	memberIDs := make(map[uint]struct{}, len(room.Members))
	for _, m := range room.Members {
		memberIDs[m.UserID] = struct{}{}
	}
	members := users[:0]
	for _, u := range users {
		if _, ok := memberIDs[u.ID]; ok {
			members = append(members, u)
		}
	}
	return members
}

// ResolveAll merges the @tokens found in the content with explicitly
// supplied mention IDs, applying the same membership filter and dropping
// duplicates and unknowns.
func (s *MentionService) ResolveAll(content string, explicit []uint, room *models.Room) []models.User {
	users := s.Resolve(content, room)
	if len(explicit) > 0 {
		var extra []models.User
		if err := s.db.Where("id IN ?", explicit).Find(&extra).Error; err != nil {
			log.Warn().Err(err).Msg("mention id lookup")
		} else {
			users = append(users, extra...)
		}
	}
	seen := make(map[uint]struct{}, len(users))
	out := users[:0]
	for _, u := range users {
		if _, dup := seen[u.ID]; dup {
			continue
		}
		if room != nil && !isRoomMember(room, u.ID) {
			continue
		}
		seen[u.ID] = struct{}{}
		out = append(out, u)
	}
	return out
}

func isRoomMember(room *models.Room, userID uint) bool {
	for _, m := range room.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// Suggest returns users matching the query, case-insensitive, with prefix
// matches ranked first. Results are cached briefly because the client
// calls this on every keystroke inside an unterminated @token.
func (s *MentionService) Suggest(ctx context.Context, query string) ([]UserRef, error) {
	query = strings.TrimSpace(strings.TrimPrefix(query, "@"))
	if query == "" {
		return []UserRef{}, nil
	}

	key := "mention:suggest:" + strings.ToLower(query)
	if cached, err := s.cache.Get(ctx, key); err == nil {
		var out []UserRef
		if json.Unmarshal([]byte(cached), &out) == nil {
			return out, nil
		}
	}

	lowered := strings.ToLower(query)
	var users []models.User
	err := s.db.
		Where("lower(username) LIKE ?", "%"+lowered+"%").
		Order("username").
		Limit(suggestLimit).
		Find(&users).Error
	if err != nil {
		return nil, apperr.Storage(err)
	}

	out := make([]UserRef, 0, len(users))
	for _, u := range users {
		if strings.HasPrefix(strings.ToLower(u.Username), lowered) {
			out = append(out, toUserRef(u))
		}
	}
	for _, u := range users {
		if !strings.HasPrefix(strings.ToLower(u.Username), lowered) {
			out = append(out, toUserRef(u))
		}
	}

	if b, err := json.Marshal(out); err == nil {
		if err := s.cache.Set(ctx, key, string(b), suggestCacheTTL); err != nil {
			log.Debug().Err(err).Msg("suggest cache set")
		}
	}
	return out, nil
}
