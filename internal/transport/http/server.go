package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/codeclash/codeclash-server/internal/auth"
	"github.com/codeclash/codeclash-server/internal/config"
	"github.com/codeclash/codeclash-server/internal/core"
	"github.com/codeclash/codeclash-server/internal/matchmaking"
	"github.com/codeclash/codeclash-server/internal/proto"
	"github.com/codeclash/codeclash-server/internal/store"
)

// NewServer builds the HTTP server: REST handoff surface plus the WebSocket
// entry point into the realtime coordinator.
func NewServer(hub *core.Hub, authService *auth.Service, st store.Store, queue *matchmaking.Queue, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(stdhttp.StatusOK, gin.H{
			"status":           "ok",
			"protocol_version": proto.ProtocolVersion,
			"connections":      hub.Registry().Len(),
		})
	})

	authHandlers := NewAuthHandlers(authService, logger)
	roomHandlers := NewRoomHandlers(hub, logger)
	matchHandlers := NewMatchHandlers(queue, st, logger)
	wsHandler := NewWSHandler(hub, authService, st, cfg.WSMessagesPerMinute, logger)

	api := router.Group("/api")
	{
		api.POST("/auth/register", authHandlers.Register)
		api.POST("/auth/login", authHandlers.Login)
		api.POST("/auth/guest", authHandlers.Guest)

		authed := api.Group("", AuthMiddleware(authService, logger))
		{
			authed.POST("/rooms", roomHandlers.CreateRoom)
			authed.GET("/rooms/:id", roomHandlers.GetRoom)
			authed.POST("/matchmaking/queue", matchHandlers.Enqueue)
			authed.GET("/matchmaking/queue", matchHandlers.Status)
			authed.DELETE("/matchmaking/queue", matchHandlers.Cancel)
		}
	}

	// Token validation happens inside the handler, pre-upgrade.
	router.GET("/ws/:room_id", func(c *gin.Context) {
		wsHandler.Serve(c.Writer, c.Request, c.Param("room_id"))
	})

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
