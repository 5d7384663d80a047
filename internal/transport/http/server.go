package http

import (
	stdhttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Will-23-K/chatsphere/internal/auth"
	"github.com/Will-23-K/chatsphere/internal/config"
	"github.com/Will-23-K/chatsphere/internal/core"
	"github.com/Will-23-K/chatsphere/internal/files"
)

// NewServer builds the HTTP server: REST API, static uploads and the
// WebSocket endpoint.
func NewServer(svc *core.Service, authService *auth.Service, fileService *files.Service, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	api := NewAPIHandlers(authService, logger)
	rooms := NewRoomHandlers(svc, logger)
	uploads := NewUploadHandlers(fileService, cfg.MaxUploadBytes, logger)
	ws := NewWSHandler(svc, authService, logger)

	router.GET("/health", api.Health)
	router.POST("/api/register", api.Register)
	router.POST("/api/login", api.Login)
	router.GET("/ws", ws.Handle)
	router.Static("/uploads", fileService.Dir())

	authorized := router.Group("/api", AuthMiddleware(authService, logger))
	authorized.POST("/upload", uploads.Upload)
	authorized.GET("/rooms", rooms.ListRooms)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}
