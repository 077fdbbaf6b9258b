package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/donbr-claude-code/starting-ragchatbot-codebase/internal/handlers"
	"github.com/donbr-claude-code/starting-ragchatbot-codebase/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	QueryHandler   *handlers.QueryHandler
	CourseHandler  *handlers.CourseHandler
	SessionHandler *handlers.SessionHandler
	HealthHandler  *handlers.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(AttachTraceContext())
	if cfg.Log != nil {
		router.Use(RequestLogger(cfg.Log))
	}

	// The chat frontend may be served from any origin, so origins are
	// reflected rather than wildcarded to stay compatible with credentials.
	router.Use(cors.New(cors.Config{
		AllowOriginFunc:  func(origin string) bool { return true },
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/health", cfg.HealthHandler.Health)

	api := router.Group("/api")
	{
		api.POST("/query", cfg.QueryHandler.Query)
		api.GET("/courses", cfg.CourseHandler.ListCourses)
		api.DELETE("/sessions/:id/clear", cfg.SessionHandler.ClearSession)
	}

	return router
}
