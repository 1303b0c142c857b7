package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/yungbote/mindgraph-backend/internal/handlers"
	"github.com/yungbote/mindgraph-backend/internal/middleware"
)

type RouterConfig struct {
	ServiceName  string
	AllowOrigins []string
	TracingOn    bool

	UserHandler       *handlers.UserHandler
	IngestHandler     *handlers.IngestHandler
	RAGHandler        *handlers.RAGHandler
	CustomDataHandler *handlers.CustomDataHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	if cfg.TracingOn {
		name := strings.TrimSpace(cfg.ServiceName)
		if name == "" {
			name = "mindgraph"
		}
		router.Use(otelgin.Middleware(name))
	}

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With", middleware.RequestIDHeader},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api/v1")
	{
		api.GET("/version", handlers.GetVersion)

		users := api.Group("/users/:user_id")
		{
			users.POST("", cfg.UserHandler.Create)
			users.DELETE("", cfg.UserHandler.Delete)
			users.POST("/ingest", cfg.IngestHandler.Ingest)
			users.POST("/rag/query", cfg.RAGHandler.Query)
			users.POST("/rag/query-vector", cfg.RAGHandler.QueryVector)
			users.POST("/rag/search", cfg.RAGHandler.Search)
			users.POST("/ask", cfg.RAGHandler.Ask)
			users.POST("/custom-data", cfg.CustomDataHandler.Upsert)
		}
	}

	return router
}
