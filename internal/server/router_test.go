package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/donbr-claude-code/starting-ragchatbot-codebase/internal/domain"
	"github.com/donbr-claude-code/starting-ragchatbot-codebase/internal/handlers"
	"github.com/donbr-claude-code/starting-ragchatbot-codebase/internal/platform/logger"
	"github.com/donbr-claude-code/starting-ragchatbot-codebase/internal/services"
)

type noopRAG struct{}

func (noopRAG) Query(ctx context.Context, query, sessionID string) (string, []string, map[string]string, error) {
	return "", nil, nil, nil
}

func (noopRAG) AddCourseDocument(ctx context.Context, path string) (domain.Course, int, error) {
	return domain.Course{}, 0, nil
}

func (noopRAG) AddCourseFolder(ctx context.Context, path string, clearExisting bool) (int, int, error) {
	return 0, 0, nil
}

func (noopRAG) GetCourseAnalytics(ctx context.Context) (services.CourseAnalytics, error) {
	return services.CourseAnalytics{}, nil
}

func (noopRAG) CreateSession(ctx context.Context) string { return "session_1" }

func (noopRAG) ClearSession(ctx context.Context, sessionID string) {}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New failed: %v", err)
	}
	t.Cleanup(log.Sync)
	rag := noopRAG{}
	return NewRouter(RouterConfig{
		Log:            log,
		QueryHandler:   handlers.NewQueryHandler(log, rag),
		CourseHandler:  handlers.NewCourseHandler(log, rag),
		SessionHandler: handlers.NewSessionHandler(log, rag),
		HealthHandler:  handlers.NewHealthHandler(log, rag),
	})
}

func TestRouterRegistersRoutes(t *testing.T) {
	router := newTestRouter(t)

	want := map[string]bool{
		"GET /health":                    false,
		"POST /api/query":                false,
		"GET /api/courses":               false,
		"DELETE /api/sessions/:id/clear": false,
	}
	for _, route := range router.Routes() {
		key := route.Method + " " + route.Path
		if _, ok := want[key]; ok {
			want[key] = true
		}
	}
	for key, found := range want {
		if !found {
			t.Fatalf("route %s not registered", key)
		}
	}
}

func TestRouterPreflightReflectsOrigin(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/query", nil)
	req.Header.Set("Origin", "http://frontend.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://frontend.example" {
		t.Fatalf("Access-Control-Allow-Origin = %q, want request origin", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Fatalf("Access-Control-Allow-Credentials = %q, want true", got)
	}
}

func TestRouterServesHealthWithCORSHeaders(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://frontend.example")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://frontend.example" {
		t.Fatalf("Access-Control-Allow-Origin = %q, want request origin", got)
	}
}
