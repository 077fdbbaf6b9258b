package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/donbr-claude-code/starting-ragchatbot-codebase/internal/platform/logger"
	"github.com/donbr-claude-code/starting-ragchatbot-codebase/internal/services"
)

// QueryRequest is the body of POST /api/query. SessionID is optional; when
// empty a new session is created and its id returned in the response.
type QueryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
}

type QueryResponse struct {
	Answer      string            `json:"answer"`
	Sources     []string          `json:"sources"`
	SourceLinks map[string]string `json:"source_links"`
	SessionID   string            `json:"session_id"`
}

type QueryHandler struct {
	log *logger.Logger
	rag services.RAGService
}

func NewQueryHandler(log *logger.Logger, rag services.RAGService) *QueryHandler {
	return &QueryHandler{log: log.With("handler", "QueryHandler"), rag: rag}
}

func (h *QueryHandler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusUnprocessableEntity, "invalid_request_body", err)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		RespondError(c, http.StatusUnprocessableEntity, "missing_query", errors.New("query must not be empty"))
		return
	}

	ctx := c.Request.Context()
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = h.rag.CreateSession(ctx)
	}

	answer, sources, sourceLinks, err := h.rag.Query(ctx, req.Query, sessionID)
	if err != nil {
		h.log.Error("RAG query failed", "session_id", sessionID, "error", err)
		RespondError(c, http.StatusInternalServerError, "query_failed", err)
		return
	}
	if sources == nil {
		sources = []string{}
	}
	if sourceLinks == nil {
		sourceLinks = map[string]string{}
	}
	RespondOK(c, QueryResponse{
		Answer:      answer,
		Sources:     sources,
		SourceLinks: sourceLinks,
		SessionID:   sessionID,
	})
}
