package http

import (
	"github.com/gin-gonic/gin"

	"founderos-api/internal/bootstrap"
	"founderos-api/internal/transport/http/handler"
	"founderos-api/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	documentHandler := handler.NewDocumentHandler(app.DocumentService)
	chatHandler := handler.NewChatHandler(app.ChatService)
	milestoneHandler := handler.NewMilestoneHandler(app.ImportService)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret))

	documents := v1.Group("/documents")
	documents.POST("", documentHandler.Upload)
	documents.GET("", documentHandler.List)
	documents.GET("/:id", documentHandler.Get)
	documents.GET("/:id/status", documentHandler.Status)
	documents.DELETE("/:id", documentHandler.Delete)

	chat := v1.Group("/chat")
	chat.POST("/conversations", chatHandler.CreateConversation)
	chat.GET("/conversations", chatHandler.ListConversations)
	chat.GET("/conversations/:id/messages", chatHandler.GetMessages)
	chat.POST("/conversations/:id/messages", chatHandler.StreamMessage)
	chat.DELETE("/conversations/:id", chatHandler.DeleteConversation)

	milestones := v1.Group("/milestones")
	milestones.POST("/import/parse", milestoneHandler.ParseImport)

	return router
}
