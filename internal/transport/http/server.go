package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gopherai-chat/internal/bootstrap"
	"gopherai-chat/internal/transport/http/handler"
	"gopherai-chat/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(middleware.Logger(app.Logger.Named("http")), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	chatHandler := handler.NewChatHandler(app.ChatService)

	router.GET("/healthz", healthHandler.Check)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{})))

	api := router.Group("/api")
	api.POST("/chat", chatHandler.Chat)
	api.POST("/uchat", chatHandler.WidgetChat)
	api.GET("/messages/:id", chatHandler.GetMessage)

	return router
}
