package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kesav2807/SocialMediaApplication/internal/apperr"
	"github.com/kesav2807/SocialMediaApplication/internal/auth"
	"github.com/kesav2807/SocialMediaApplication/internal/service"
	"github.com/rs/zerolog/log"
)

// Handler aggregates the HTTP handlers; services are injected.
type Handler struct {
	users         *service.UserService
	rooms         *service.RoomService
	messages      *service.MessageService
	conversations *service.ConversationService
	mentions      *service.MentionService
}

func NewHandler(users *service.UserService, rooms *service.RoomService, messages *service.MessageService, conversations *service.ConversationService, mentions *service.MentionService) *Handler {
	return &Handler{users: users, rooms: rooms, messages: messages, conversations: conversations, mentions: mentions}
}

// respondErr maps a service error onto its status code. Storage and
// unknown failures are logged server-side and reported generically.
func respondErr(c *gin.Context, err error) {
	status := apperr.Status(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": apperr.Message(err)})
}

func (h *Handler) Register(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if len(req.Username) < 2 || len(req.Username) > 64 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid username"})
		return
	}
	if len(req.Password) < 4 || len(req.Password) > 128 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid password"})
		return
	}
	user, err := h.users.Register(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrUsernameTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "username taken"})
			return
		}
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": user.ID, "username": user.Username})
}

func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	result, err := h.users.Login(strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  result.AccessToken,
		"refresh_token": result.RefreshToken,
		"user":          gin.H{"id": result.User.ID, "username": result.User.Username},
	})
}

func (h *Handler) RefreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	result, err := h.users.RefreshTokens(req.RefreshToken)
	if err != nil {
		log.Warn().Err(err).Msg("refresh token")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": result.AccessToken, "refresh_token": result.RefreshToken})
}

// SendDirect persists a direct message through the shared ingest pipeline.
func (h *Handler) SendDirect(c *gin.Context) {
	var req struct {
		Receiver *uint  `json:"receiver"`
		Content  string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Receiver == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "receiver and content are required"})
		return
	}
	msg, err := h.messages.Send(auth.GetUserID(c), service.SendInput{Content: req.Content, Receiver: req.Receiver})
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Message sent", "data": msg})
}

func (h *Handler) DirectHistory(c *gin.Context) {
	peerID, err := parseID(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	msgs, err := h.messages.DirectHistory(auth.GetUserID(c), peerID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (h *Handler) StartDirect(c *gin.Context) {
	var req struct {
		UserID *uint `json:"userId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User ID is required"})
		return
	}
	shape, msgs, err := h.messages.StartDirect(auth.GetUserID(c), *req.UserID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": shape, "messages": msgs})
}

func (h *Handler) CreateRoom(c *gin.Context) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		IsPrivate   bool   `json:"isPrivate"`
		MemberIDs   []uint `json:"memberIds"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	room, err := h.rooms.Create(auth.GetUserID(c), strings.TrimSpace(req.Name), req.Description, req.IsPrivate, req.MemberIDs)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Chat room created successfully", "chatRoom": room})
}

func (h *Handler) JoinRoom(c *gin.Context) {
	roomID, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}
	if err := h.rooms.Join(roomID, auth.GetUserID(c)); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Joined chat room successfully"})
}

func (h *Handler) LeaveRoom(c *gin.Context) {
	roomID, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}
	if err := h.rooms.Leave(roomID, auth.GetUserID(c)); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Left chat room successfully"})
}

func (h *Handler) RemoveMember(c *gin.Context) {
	roomID, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}
	var req struct {
		UserID *uint `json:"userId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User ID is required"})
		return
	}
	if err := h.rooms.Remove(roomID, auth.GetUserID(c), *req.UserID); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User removed successfully"})
}

func (h *Handler) ChangeRole(c *gin.Context) {
	roomID, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}
	var req struct {
		UserID  *uint  `json:"userId"`
		NewRole string `json:"newRole"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User ID and new role are required"})
		return
	}
	if err := h.rooms.ChangeRole(roomID, auth.GetUserID(c), *req.UserID, req.NewRole); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Role updated to " + req.NewRole})
}

// SendRoomMessage persists a room message through the shared ingest
// pipeline; membership is enforced inside it.
func (h *Handler) SendRoomMessage(c *gin.Context) {
	roomID, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}
	var req struct {
		Content  string `json:"content"`
		Mentions []uint `json:"mentions"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	msg, err := h.messages.Send(auth.GetUserID(c), service.SendInput{Content: req.Content, ChatRoom: &roomID, Mentions: req.Mentions})
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Message sent", "data": msg})
}

func (h *Handler) RoomMessages(c *gin.Context) {
	roomID, err := parseID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	msgs, err := h.messages.ListRoomMessages(roomID, auth.GetUserID(c), page, limit)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (h *Handler) Conversations(c *gin.Context) {
	list, err := h.conversations.List(auth.GetUserID(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) SearchUsers(c *gin.Context) {
	users, err := h.mentions.Suggest(c.Request.Context(), c.Query("query"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func parseID(raw string) (uint, error) {
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || v == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(v), nil
}
