package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/auth"
	"github.com/vovakirdan/wirechat-relay/internal/config"
	"github.com/vovakirdan/wirechat-relay/internal/core"
	"github.com/vovakirdan/wirechat-relay/internal/service/groups"
)

// NewServer builds the HTTP server. /ws is served by a plain mux entry; the
// REST API, health and metrics go through gin.
func NewServer(hub *core.Hub, authService *auth.Service, groupService *groups.Service, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(MetricsMiddleware())
	router.Use(LoggerMiddleware(logger))

	router.GET("/health", healthHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	requireAuth := AuthMiddleware(authService, logger)

	apiHandlers := NewAPIHandlers(authService, logger)
	roomHandlers := NewRoomHandlers(hub, cfg.DefaultRooms, logger)
	groupHandlers := NewGroupHandlers(groupService, hub, logger)
	adminHandlers := NewAdminHandlers(authService, logger)
	userHandlers := NewUserHandlers(authService, logger)

	api := router.Group("/api")
	{
		api.POST("/register", apiHandlers.Register)
		api.POST("/login", apiHandlers.Login)

		authed := api.Group("", requireAuth)
		authed.POST("/logout", apiHandlers.Logout)

		authed.GET("/users", userHandlers.ListUsers)
		authed.GET("/rooms", roomHandlers.ListRooms)
		authed.GET("/rooms/:room/messages", roomHandlers.RoomHistory)
		authed.GET("/private/:peer/messages", roomHandlers.PrivateHistory)

		authed.GET("/groups", groupHandlers.ListGroups)
		authed.POST("/groups", groupHandlers.CreateGroup)
		authed.GET("/groups/:id/members", groupHandlers.ListMembers)
		authed.POST("/groups/:id/members", groupHandlers.AddMember)
		authed.GET("/groups/:id/messages", groupHandlers.GroupHistory)

		admin := authed.Group("/admin", AdminOnly(logger))
		admin.GET("/users", userHandlers.ListAllUsers)
		admin.POST("/users/:id/ban", adminHandlers.Ban)
		admin.POST("/users/:id/unban", adminHandlers.Unban)
	}

	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(hub, authService, cfg, logger))
	mux.Handle("/", router)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
