package http

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func SetupRouter(allowOrigins []string, roomController *RoomController, sessionController *SessionController, metrics http.Handler) *gin.Engine {
	router := gin.Default()
	config := cors.DefaultConfig()
	config.AllowOrigins = allowOrigins
	config.AllowCredentials = true
	config.AllowHeaders = []string{
		"Authorization",
		"Content-Type",
		"Origin",
		"Accept",
	}
	config.AllowMethods = []string{"GET", "POST", "HEAD", "OPTIONS"}
	router.Use(cors.New(config))
	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}

	api := router.Group("/api")

	if sessionController != nil {
		sessions := api.Group("/sessions")
		sessions.GET("/resolve", sessionController.Resolve)
	}

	if roomController != nil {
		rooms := api.Group("/rooms")
		rooms.POST("", roomController.CreateRoom)
		rooms.GET("/:code", roomController.GetRoom)
		rooms.GET("/:code/participants", roomController.ListParticipants)
		rooms.GET("/:code/panels/:panel", roomController.PanelSnapshot)
		rooms.GET("/:code/ws", roomController.JoinRoom)
	}

	return router
}
