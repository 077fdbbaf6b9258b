package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/donbr-claude-code/starting-ragchatbot-codebase/internal/platform/logger"
	"github.com/donbr-claude-code/starting-ragchatbot-codebase/internal/services"
)

type CourseHandler struct {
	log *logger.Logger
	rag services.RAGService
}

func NewCourseHandler(log *logger.Logger, rag services.RAGService) *CourseHandler {
	return &CourseHandler{
		log: log.With("handler", "CourseHandler"),
		rag: rag,
	}
}

// ListCourses serves GET /api/courses with catalog statistics.
func (h *CourseHandler) ListCourses(c *gin.Context) {
	analytics, err := h.rag.GetCourseAnalytics(c.Request.Context())
	if err != nil {
		h.log.Error("Course analytics failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "load_courses_failed", err)
		return
	}
	titles := analytics.CourseTitles
	if titles == nil {
		titles = []string{}
	}
	RespondOK(c, gin.H{
		"total_courses": analytics.TotalCourses,
		"course_titles": titles,
	})
}
