package app

import (
	"github.com/gin-gonic/gin"

	"github.com/donbr-claude-code/starting-ragchatbot-codebase/internal/platform/logger"
	"github.com/donbr-claude-code/starting-ragchatbot-codebase/internal/server"
)

func wireRouter(log *logger.Logger, handlers Handlers) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		Log:            log,
		QueryHandler:   handlers.Query,
		CourseHandler:  handlers.Course,
		SessionHandler: handlers.Session,
		HealthHandler:  handlers.Health,
	})
}
