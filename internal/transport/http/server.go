package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"groundedchat/internal/bootstrap"
	"groundedchat/internal/transport/http/handler"
	"groundedchat/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	if app.Config.Tracing.Enabled {
		router.Use(otelgin.Middleware(app.Config.App.Name))
	}
	router.Use(middleware.RequestID())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	Register(router.Group("/api/v1"), app.Config.Auth.JWTSecret, app.Services)
	return router
}

// Register mounts the versioned API on group.
func Register(v1 *gin.RouterGroup, jwtSecret string, svc bootstrap.Services) {
	authHandler := handler.NewAuthHandler(svc.Auth)
	chatHandler := handler.NewChatHandler(svc.Chat)
	documentHandler := handler.NewDocumentHandler(svc.Documents)
	questionnaireHandler := handler.NewQuestionnaireHandler(svc.Questionnaire)
	auth := middleware.AuthJWT(jwtSecret)

	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", auth, authHandler.Me)

	chatGroup := v1.Group("/chats", auth)
	chatGroup.POST("", chatHandler.CreateChat)
	chatGroup.GET("", chatHandler.ListChats)
	chatGroup.DELETE("/:id", chatHandler.DeleteChat)
	chatGroup.POST("/:id/messages", chatHandler.SendMessage)
	chatGroup.GET("/:id/messages", chatHandler.ListMessages)
	chatGroup.POST("/:id/stream", chatHandler.StreamMessage)

	v1.GET("/history", auth, chatHandler.History)

	docGroup := v1.Group("/documents", auth)
	docGroup.POST("", documentHandler.CreateDocument)
	docGroup.POST("/upload", documentHandler.UploadDocument)
	docGroup.GET("", documentHandler.ListDocuments)
	docGroup.PATCH("/:id", documentHandler.SetDocumentActive)
	docGroup.DELETE("/:id", documentHandler.DeleteDocument)

	questionnaireGroup := v1.Group("/questionnaire", auth)
	questionnaireGroup.GET("", questionnaireHandler.Get)
	questionnaireGroup.POST("", questionnaireHandler.Submit)
	questionnaireGroup.PUT("", questionnaireHandler.Update)

	v1.GET("/suggested-actions", auth, questionnaireHandler.SuggestedActions)
}
