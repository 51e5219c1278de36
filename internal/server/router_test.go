package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/kesav2807/SocialMediaApplication/internal/cache"
	"github.com/kesav2807/SocialMediaApplication/internal/config"
	"github.com/kesav2807/SocialMediaApplication/internal/db"
	"github.com/kesav2807/SocialMediaApplication/internal/ws"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := config.Config{Port: "0", JWTSecret: "test-secret", Env: "dev", AccessTokenTTLMinutes: 15, RefreshTokenTTLDays: 7}
	return SetupRouter(cfg, gdb, ws.NewHub(), cache.Noop{})
}

func doJSON(t *testing.T, engine *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

// signup registers and logs a user in, returning the user id and an
// access token.
func signup(t *testing.T, engine *gin.Engine, username string) (uint, string) {
	t.Helper()
	w := doJSON(t, engine, http.MethodPost, "/api/auth/register", "", gin.H{"username": username, "password": "password123"})
	if w.Code != http.StatusOK {
		t.Fatalf("register %s: %d %s", username, w.Code, w.Body.String())
	}
	id := uint(decode(t, w)["id"].(float64))

	w = doJSON(t, engine, http.MethodPost, "/api/auth/login", "", gin.H{"username": username, "password": "password123"})
	if w.Code != http.StatusOK {
		t.Fatalf("login %s: %d %s", username, w.Code, w.Body.String())
	}
	token, _ := decode(t, w)["access_token"].(string)
	if token == "" {
		t.Fatalf("login %s returned no access token", username)
	}
	return id, token
}

func TestHealthz(t *testing.T) {
	engine := newTestRouter(t)
	w := doJSON(t, engine, http.MethodGet, "/healthz", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestChatRequiresAuth(t *testing.T) {
	engine := newTestRouter(t)

	w := doJSON(t, engine, http.MethodGet, "/api/chat/conversations", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: expected 401, got %d", w.Code)
	}

	w = doJSON(t, engine, http.MethodGet, "/api/chat/conversations", "garbage-token", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: expected 401, got %d", w.Code)
	}
}

func TestRegisterValidation(t *testing.T) {
	engine := newTestRouter(t)

	w := doJSON(t, engine, http.MethodPost, "/api/auth/register", "", gin.H{"username": "x", "password": "password123"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("short username: expected 400, got %d", w.Code)
	}
	w = doJSON(t, engine, http.MethodPost, "/api/auth/register", "", gin.H{"username": "alice", "password": "x"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("short password: expected 400, got %d", w.Code)
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	engine := newTestRouter(t)
	signup(t, engine, "alice")

	w := doJSON(t, engine, http.MethodPost, "/api/auth/register", "", gin.H{"username": "alice", "password": "password123"})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d %s", w.Code, w.Body.String())
	}
}

func TestLoginWrongPassword(t *testing.T) {
	engine := newTestRouter(t)
	signup(t, engine, "alice")

	w := doJSON(t, engine, http.MethodPost, "/api/auth/login", "", gin.H{"username": "alice", "password": "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestRefreshTokenRotation(t *testing.T) {
	engine := newTestRouter(t)
	signup(t, engine, "alice")

	w := doJSON(t, engine, http.MethodPost, "/api/auth/login", "", gin.H{"username": "alice", "password": "password123"})
	refresh, _ := decode(t, w)["refresh_token"].(string)
	if refresh == "" {
		t.Fatal("login returned no refresh token")
	}

	w = doJSON(t, engine, http.MethodPost, "/api/auth/refresh", "", gin.H{"refresh_token": refresh})
	if w.Code != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d %s", w.Code, w.Body.String())
	}
	next, _ := decode(t, w)["refresh_token"].(string)
	if next == "" || next == refresh {
		t.Fatal("refresh should rotate the refresh token")
	}

	// The old token was revoked by the rotation.
	w = doJSON(t, engine, http.MethodPost, "/api/auth/refresh", "", gin.H{"refresh_token": refresh})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("reused refresh token: expected 401, got %d", w.Code)
	}
}

func TestRoomMessageFlow(t *testing.T) {
	engine := newTestRouter(t)
	_, aliceTok := signup(t, engine, "alice")
	bobID, bobTok := signup(t, engine, "bob")
	_, carolTok := signup(t, engine, "carol")

	w := doJSON(t, engine, http.MethodPost, "/api/chat/rooms", aliceTok, gin.H{"name": "general", "memberIds": []uint{bobID}})
	if w.Code != http.StatusCreated {
		t.Fatalf("create room: expected 201, got %d %s", w.Code, w.Body.String())
	}
	room := decode(t, w)["chatRoom"].(map[string]any)
	roomID := uint(room["id"].(float64))
	if n := len(room["members"].([]any)); n != 2 {
		t.Fatalf("members = %d, want 2", n)
	}
	msgPath := fmt.Sprintf("/api/chat/rooms/%d/messages", roomID)

	// A non-member cannot post.
	w = doJSON(t, engine, http.MethodPost, msgPath, carolTok, gin.H{"content": "hi"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("non-member post: expected 403, got %d", w.Code)
	}
	if got := decode(t, w)["error"]; got != "Not a group member" {
		t.Errorf("error = %q", got)
	}

	// A member can, and the mention of another member resolves.
	w = doJSON(t, engine, http.MethodPost, msgPath, bobTok, gin.H{"content": "hello @alice"})
	if w.Code != http.StatusCreated {
		t.Fatalf("member post: expected 201, got %d %s", w.Code, w.Body.String())
	}
	data := decode(t, w)["data"].(map[string]any)
	if data["sender"].(map[string]any)["username"] != "bob" {
		t.Errorf("sender = %v", data["sender"])
	}
	mentions := data["mentions"].([]any)
	if len(mentions) != 1 || mentions[0].(map[string]any)["username"] != "alice" {
		t.Errorf("mentions = %v", mentions)
	}

	// History is member-only and carries the populated sender.
	w = doJSON(t, engine, http.MethodGet, msgPath, carolTok, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("non-member history: expected 403, got %d", w.Code)
	}
	w = doJSON(t, engine, http.MethodGet, msgPath, aliceTok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("history: expected 200, got %d", w.Code)
	}
	msgs := decode(t, w)["messages"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(msgs))
	}

	// The group shows up in conversations with its last message.
	w = doJSON(t, engine, http.MethodGet, "/api/chat/conversations", aliceTok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("conversations: expected 200, got %d", w.Code)
	}
	groups := decode(t, w)["groupConversations"].([]any)
	if len(groups) != 1 {
		t.Fatalf("groups = %d, want 1", len(groups))
	}
	last := groups[0].(map[string]any)["lastMessage"].(map[string]any)
	if last["content"] != "hello @alice" {
		t.Errorf("lastMessage = %v", last)
	}
}

func TestDirectMessageFlow(t *testing.T) {
	engine := newTestRouter(t)
	aliceID, aliceTok := signup(t, engine, "alice")
	bobID, bobTok := signup(t, engine, "bob")

	w := doJSON(t, engine, http.MethodPost, "/api/chat/direct", aliceTok, gin.H{"receiver": bobID, "content": "hey bob"})
	if w.Code != http.StatusOK {
		t.Fatalf("send direct: expected 200, got %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, engine, http.MethodPost, "/api/chat/direct", aliceTok, gin.H{"receiver": bobID, "content": "   "})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("blank content: expected 400, got %d", w.Code)
	}

	w = doJSON(t, engine, http.MethodGet, fmt.Sprintf("/api/chat/direct/%d", aliceID), bobTok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("history: expected 200, got %d", w.Code)
	}
	msgs := decode(t, w)["messages"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(msgs))
	}
	if msgs[0].(map[string]any)["content"] != "hey bob" {
		t.Errorf("content = %v", msgs[0])
	}
}

func TestStartDirectUnknownUser(t *testing.T) {
	engine := newTestRouter(t)
	_, aliceTok := signup(t, engine, "alice")

	w := doJSON(t, engine, http.MethodPost, "/api/chat/direct/start", aliceTok, gin.H{"userId": 999})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d %s", w.Code, w.Body.String())
	}
	if got := decode(t, w)["error"]; got != "User not found" {
		t.Errorf("error = %q", got)
	}
}

func TestSearchUsers(t *testing.T) {
	engine := newTestRouter(t)
	_, aliceTok := signup(t, engine, "alice")
	signup(t, engine, "alina")
	signup(t, engine, "bob")

	w := doJSON(t, engine, http.MethodGet, "/api/chat/users/search?query=al", aliceTok, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	users := decode(t, w)["users"].([]any)
	if len(users) != 2 {
		t.Fatalf("users = %d, want 2", len(users))
	}
}
