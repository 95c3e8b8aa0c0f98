package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/pixelclasses/chat-server/internal/auth"
	"github.com/pixelclasses/chat-server/internal/chat"
	"github.com/pixelclasses/chat-server/internal/config"
	"github.com/pixelclasses/chat-server/internal/store"
)

// NewServer builds the HTTP server: REST API plus the two WebSocket endpoints.
func NewServer(svc *chat.Service, hub *chat.Hub, authService *auth.Service, st store.Store, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	wsHandler := NewWSHandler(svc, hub, authService, st, cfg.SessionBuffer, logger)
	router.GET("/ws/chat", wsHandler.Chat)
	router.GET("/ws/notifications", wsHandler.Notifications)

	apiHandlers := NewAPIHandlers(authService, logger)
	messageHandlers := NewMessageHandlers(svc, st, logger)
	followHandlers := NewFollowHandlers(svc, st, logger)

	api := router.Group("/api")
	api.POST("/register", apiHandlers.Register)
	api.POST("/login", apiHandlers.Login)

	authorized := api.Group("")
	authorized.Use(AuthMiddleware(authService, logger))
	authorized.GET("/conversation/:peer", messageHandlers.Conversation)
	authorized.PUT("/message/:id", messageHandlers.EditMessage)
	authorized.DELETE("/message/:id", messageHandlers.DeleteMessage)
	authorized.GET("/inbox", messageHandlers.Inbox)
	authorized.POST("/follow/:username", followHandlers.Follow)
	authorized.DELETE("/follow/:username", followHandlers.Unfollow)
	authorized.GET("/follows", followHandlers.ListFollows)
	authorized.GET("/users/search", followHandlers.SearchUsers)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
