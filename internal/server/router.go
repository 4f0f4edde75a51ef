package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/docuchat/backend/internal/handlers"
)

type RouterConfig struct {
	ServiceName     string
	AllowOrigins    []string
	DocumentHandler *handlers.DocumentHandler
	StreamHandler   *handlers.StreamHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(otelgin.Middleware(cfg.ServiceName))

	// Cors
	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000", "http://localhost:5173"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	{
		api.POST("/upload", cfg.DocumentHandler.Upload)
		api.POST("/getdocuments", cfg.DocumentHandler.GetDocuments)
		api.POST("/rag/generate", cfg.StreamHandler.Generate)
		api.POST("/search", cfg.StreamHandler.Search)
		api.POST("/stocks", cfg.StreamHandler.Stocks)
	}

	return router
}
