package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"lexrag/internal/ai"
	appsvc "lexrag/internal/app"
	"lexrag/internal/bootstrap"
	"lexrag/internal/cache"
	"lexrag/internal/document"
	"lexrag/internal/platform/rabbitmq"
	"lexrag/internal/repository"
	"lexrag/internal/transport/http/handler"
	"lexrag/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(middleware.RequestID(), gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.StaticFile("/", "web/index.html")
	router.StaticFile("/login", "web/login.html")
	router.StaticFile("/register", "web/register.html")
	router.StaticFile("/chat", "web/chat.html")
	router.StaticFile("/documents", "web/documents.html")
	router.GET("/healthz", healthHandler.Check)

	userRepo := repository.NewUserRepository(app.MySQL)
	conversationRepo := repository.NewConversationRepository(app.MySQL)
	messageRepo := repository.NewMessageRepository(app.MySQL)
	docRepo := repository.NewDocumentRepository(app.MySQL)

	authService := appsvc.NewAuthService(
		userRepo,
		app.Config.Auth.JWTSecret,
		time.Duration(app.Config.Auth.JWTExpireMinute)*time.Minute,
	)

	publisher := rabbitmq.NewMessagePublisher(app.MQConn, app.Config.RabbitMQ.MessagePersistQueue)
	historyCache := cache.NewHistoryCache(
		app.Redis,
		time.Duration(app.Config.Redis.HistoryTTLSeconds)*time.Second,
		time.Duration(app.Config.Redis.HistoryDirtyTTLSeconds)*time.Second,
	)

	chatService := appsvc.NewChatService(
		conversationRepo,
		messageRepo,
		publisher,
		historyCache,
		app.Store,
		app.LLMClient,
		ai.ChatConfig{
			BaseURL:     app.Config.LLM.BaseURL,
			APIKey:      app.Config.LLM.APIKey,
			Model:       app.Config.LLM.Model,
			Temperature: app.Config.LLM.Temperature,
			MaxTokens:   app.Config.LLM.MaxTokens,
		},
		app.Config.Retrieval.TopK,
		app.Config.LLM.MaxContextMessage,
	)

	processor := document.NewProcessor(app.Config.Chunking.ChunkSize, app.Config.Chunking.ChunkOverlap)
	docService := appsvc.NewDocumentService(
		docRepo,
		app.Store,
		processor,
		app.Logger,
		app.Config.Upload.Dir,
		app.Config.MaxUploadBytes(),
		app.Config.Upload.AllowedExtensions,
		app.Config.LLM.EmbeddingModel,
		app.Config.Retrieval.TopK,
	)

	authHandler := handler.NewAuthHandler(authService)
	chatHandler := handler.NewChatHandler(chatService)
	docHandler := handler.NewDocumentHandler(docService)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", middleware.AuthJWT(app.Config.Auth.JWTSecret), authHandler.Me)

	chatGroup := v1.Group("/chat")
	chatGroup.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret))
	chatGroup.POST("/conversations", chatHandler.CreateConversation)
	chatGroup.GET("/conversations", chatHandler.ListConversations)
	chatGroup.DELETE("/conversations/:id", chatHandler.DeleteConversation)
	chatGroup.POST("/ask", chatHandler.Ask)
	chatGroup.POST("/ask/stream", chatHandler.AskStream)
	chatGroup.GET("/history", chatHandler.GetHistory)

	docGroup := v1.Group("/documents")
	docGroup.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret))
	docGroup.POST("", docHandler.Upload)
	docGroup.GET("", docHandler.List)
	docGroup.DELETE("/:id", docHandler.Delete)
	docGroup.GET("/stats", docHandler.Stats)

	return router
}
