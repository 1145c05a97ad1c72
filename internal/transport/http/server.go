package http

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	"studybot/internal/bootstrap"
	"studybot/internal/config"
	"studybot/internal/metrics"
	"studybot/internal/transport/http/handler"
	"studybot/internal/transport/http/middleware"
)

// NewHandler returns the router wrapped in the CORS policy from config.
func NewHandler(app *bootstrap.App) http.Handler {
	return cors.New(corsOptions(app.Config.CORS)).Handler(NewRouter(app))
}

// corsOptions never pairs a wildcard origin with credentials.
func corsOptions(cfg config.CORSConfig) cors.Options {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: cfg.AllowCredentials && !slices.Contains(origins, "*"),
	}
}

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.MaxMultipartMemory = int64(app.Config.Upload.MaxFileSizeMB) << 20
	router.Use(
		middleware.Recovery(app.Logger),
		middleware.RequestLogger(app.Logger.Named("http")),
		middleware.Metrics(),
	)

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	svc := app.Services
	authHandler := handler.NewAuthHandler(svc.Auth)
	documentHandler := handler.NewDocumentHandler(svc.Document)
	queryHandler := handler.NewQueryHandler(svc.Query)
	chatHandler := handler.NewChatHandler(svc.Chat)
	cardHandler := handler.NewFlashCardHandler(svc.FlashCard)
	setHandler := handler.NewFlashCardSetHandler(svc.FlashCardSet)

	auth := middleware.AuthJWT(app.Config.Auth.JWTSecret)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", auth, authHandler.Me)

	documentGroup := v1.Group("/documents", auth)
	documentGroup.POST("", documentHandler.Upload)
	documentGroup.GET("", documentHandler.List)
	documentGroup.DELETE("", documentHandler.Purge)
	documentGroup.GET("/stats", documentHandler.Stats)
	documentGroup.GET("/:id", documentHandler.Get)
	documentGroup.DELETE("/:id", documentHandler.Delete)

	v1.POST("/query", auth, queryHandler.Ask)

	chatGroup := v1.Group("/chats", auth)
	chatGroup.POST("", chatHandler.CreateChat)
	chatGroup.GET("", chatHandler.ListChats)
	chatGroup.GET("/stats", chatHandler.Stats)
	chatGroup.GET("/:id", chatHandler.GetChat)
	chatGroup.PUT("/:id", chatHandler.UpdateChat)
	chatGroup.DELETE("/:id", chatHandler.DeleteChat)
	chatGroup.POST("/:id/messages", chatHandler.SendMessage)
	chatGroup.GET("/:id/messages", chatHandler.GetHistory)
	chatGroup.GET("/:id/search", chatHandler.SearchMessages)

	cardGroup := v1.Group("/flashcards", auth)
	cardGroup.POST("/generate", cardHandler.Generate)
	cardGroup.GET("", cardHandler.List)
	cardGroup.GET("/stats", cardHandler.Stats)
	cardGroup.GET("/:id", cardHandler.Get)
	cardGroup.PUT("/:id", cardHandler.Update)
	cardGroup.DELETE("/:id", cardHandler.Delete)
	cardGroup.POST("/:id/review", cardHandler.Review)

	setGroup := v1.Group("/flashcard-sets", auth)
	setGroup.POST("", setHandler.Create)
	setGroup.GET("", setHandler.List)
	setGroup.GET("/:id", setHandler.Get)
	setGroup.PUT("/:id", setHandler.Update)
	setGroup.DELETE("/:id", setHandler.Delete)
	setGroup.POST("/:id/cards", setHandler.AddCards)
	setGroup.DELETE("/:id/cards", setHandler.RemoveCards)
	setGroup.POST("/:id/study-session", setHandler.StudySession)

	return router
}
