package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kesav2807/SocialMediaApplication/internal/auth"
	"github.com/kesav2807/SocialMediaApplication/internal/cache"
	"github.com/kesav2807/SocialMediaApplication/internal/config"
	"github.com/kesav2807/SocialMediaApplication/internal/metrics"
	"github.com/kesav2807/SocialMediaApplication/internal/mw"
	"github.com/kesav2807/SocialMediaApplication/internal/service"
	"github.com/kesav2807/SocialMediaApplication/internal/ws"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// SetupRouter wires middleware, the REST API and the websocket endpoint.
func SetupRouter(cfg config.Config, db *gorm.DB, hub *ws.Hub, c cache.Cache) *gin.Engine {
	rooms := service.NewRoomService(db)
	mentions := service.NewMentionService(db, c)
	messages := service.NewMessageService(db, hub, rooms, mentions)
	conversations := service.NewConversationService(db, hub)
	users := service.NewUserService(db, cfg)
	h := NewHandler(users, rooms, messages, conversations, mentions)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(metrics.GinMiddleware())
	r.Use(mw.CORS(cfg.Env))
	r.Use(mw.RateLimit(rate.Every(time.Second/20), 40))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.POST("/register", h.Register)
	authGroup.POST("/login", h.Login)
	authGroup.POST("/refresh", h.RefreshToken)

	chat := api.Group("/chat")
	chat.Use(auth.AuthMiddleware(cfg, db))
	chat.POST("/direct", h.SendDirect)
	chat.GET("/direct/:userId", h.DirectHistory)
	chat.POST("/direct/start", h.StartDirect)
	chat.POST("/rooms", h.CreateRoom)
	chat.POST("/rooms/:id/join", h.JoinRoom)
	chat.POST("/rooms/:id/leave", h.LeaveRoom)
	chat.POST("/rooms/:id/remove", h.RemoveMember)
	chat.POST("/rooms/:id/role", h.ChangeRole)
	chat.POST("/rooms/:id/messages", h.SendRoomMessage)
	chat.GET("/rooms/:id/messages", h.RoomMessages)
	chat.GET("/conversations", h.Conversations)
	chat.GET("/users/search", h.SearchUsers)

	r.GET("/ws", ws.Serve(hub, db, cfg, ws.Deps{Messages: messages, Rooms: rooms}))

	return r
}
