package rest

import (
	"log/slog"

	"chat-core/services"

	"github.com/gin-gonic/gin"
)

// NewRouter wires the REST surface and the websocket entrypoint into one
// gin engine. The register/login pair is public; everything else sits
// behind the bearer-token middleware. The socket route authenticates
// itself with close codes instead, so it stays outside the group.
func NewRouter(log *slog.Logger, auth services.IAuthService,
	handlers *Handlers, socket gin.HandlerFunc) *gin.Engine {

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(log))

	router.POST("/api/register", handlers.Register)
	router.POST("/api/login", handlers.Login)

	authorized := router.Group("/api", JWTAuth(auth))
	authorized.GET("/users", handlers.ListUsers)
	authorized.GET("/users/me", handlers.Me)
	authorized.GET("/rooms", handlers.ListRooms)
	authorized.POST("/rooms", handlers.CreateRoom)
	authorized.GET("/rooms/:roomID/messages", handlers.RoomMessages)
	authorized.POST("/rooms/:roomID/read", handlers.MarkRoomRead)
	authorized.GET("/stats", handlers.Stats)

	router.GET("/ws/chat/:roomID", socket)

	return router
}
