package app

import (
	"github.com/donbr-claude-code/starting-ragchatbot-codebase/internal/handlers"
	"github.com/donbr-claude-code/starting-ragchatbot-codebase/internal/platform/logger"
)

type Handlers struct {
	Query   *handlers.QueryHandler
	Course  *handlers.CourseHandler
	Session *handlers.SessionHandler
	Health  *handlers.HealthHandler
}

func wireHandlers(log *logger.Logger, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Query:   handlers.NewQueryHandler(log, services.RAG),
		Course:  handlers.NewCourseHandler(log, services.RAG),
		Session: handlers.NewSessionHandler(log, services.RAG),
		Health:  handlers.NewHealthHandler(log, services.RAG),
	}
}
