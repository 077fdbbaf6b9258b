package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/donbr-claude-code/starting-ragchatbot-codebase/internal/platform/logger"
	"github.com/donbr-claude-code/starting-ragchatbot-codebase/internal/services"
)

type SessionHandler struct {
	log *logger.Logger
	rag services.RAGService
}

func NewSessionHandler(log *logger.Logger, rag services.RAGService) *SessionHandler {
	return &SessionHandler{
		log: log.With("handler", "SessionHandler"),
		rag: rag,
	}
}

// ClearSession serves DELETE /api/sessions/:id/clear. Clearing an unknown
// session succeeds; the frontend calls this to start a fresh conversation.
func (h *SessionHandler) ClearSession(c *gin.Context) {
	sessionID := c.Param("id")
	h.rag.ClearSession(c.Request.Context(), sessionID)
	RespondOK(c, gin.H{
		"message":    "Session cleared successfully",
		"session_id": sessionID,
	})
}
