package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"github.com/CypherNinjaa/social-media-sub000/internal/infra/config"
	"github.com/CypherNinjaa/social-media-sub000/internal/infra/obs"
)

type ChatHTTP interface {
	CreateConversation(c *gin.Context)
	Inbox(c *gin.Context)
	Unread(c *gin.Context)
	ListMessages(c *gin.Context)
	SendMessage(c *gin.Context)
	ClearConversation(c *gin.Context)
	MarkRead(c *gin.Context)
	EditMessage(c *gin.Context)
	DeleteMessage(c *gin.Context)
	ToggleReaction(c *gin.Context)
	Search(c *gin.Context)
}

type RealtimeHTTP interface {
	Stream(c *gin.Context)
	Changes(c *gin.Context)
}

type Handlers struct {
	Chat           ChatHTTP
	Realtime       RealtimeHTTP
	AuthMiddleware gin.HandlerFunc
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(cfg, obsMW, health, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewRouter builds the gin engine; split from NewServer for httptest.
func NewRouter(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(corsConfig(cfg.CORSOrigins)))
	if h.AuthMiddleware != nil {
		router.Use(h.AuthMiddleware)
	}

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	if h.Chat != nil {
		conversations := api.Group("/conversations")
		conversations.POST("", h.Chat.CreateConversation)
		conversations.GET("", h.Chat.Inbox)
		conversations.GET("/unread", h.Chat.Unread)
		conversations.GET("/:id/messages", h.Chat.ListMessages)
		conversations.POST("/:id/messages", h.Chat.SendMessage)
		conversations.DELETE("/:id/messages", h.Chat.ClearConversation)
		conversations.POST("/:id/read", h.Chat.MarkRead)

		messages := api.Group("/messages")
		messages.GET("/search", h.Chat.Search)
		messages.PATCH("/:id", h.Chat.EditMessage)
		messages.DELETE("/:id", h.Chat.DeleteMessage)
		messages.POST("/:id/reactions", h.Chat.ToggleReaction)
	}
	if h.Realtime != nil {
		api.GET("/realtime/stream", h.Realtime.Stream)
		api.GET("/realtime/changes", h.Realtime.Changes)
	}
	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cfg
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
