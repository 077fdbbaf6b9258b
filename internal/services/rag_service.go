package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/donbr-claude-code/starting-ragchatbot-codebase/internal/domain"
	"github.com/donbr-claude-code/starting-ragchatbot-codebase/internal/platform/logger"
)

// CourseAnalytics summarizes what the course index currently holds.
type CourseAnalytics struct {
	TotalCourses int      `json:"total_courses"`
	CourseTitles []string `json:"course_titles"`
}

// RAGService is the orchestration facade over document processing, vector
// search, tool-assisted generation and session history.
type RAGService interface {
	// Query answers a user question, returning the answer text plus the
	// citation labels and label-to-link mapping collected during tool use.
	Query(ctx context.Context, query, sessionID string) (string, []string, map[string]string, error)

	// AddCourseDocument ingests a single course transcript file.
	AddCourseDocument(ctx context.Context, path string) (domain.Course, int, error)

	// AddCourseFolder ingests every supported document in a folder, skipping
	// courses whose titles are already indexed. A missing folder is not an
	// error. Returns the number of courses and chunks added.
	AddCourseFolder(ctx context.Context, path string, clearExisting bool) (int, int, error)

	GetCourseAnalytics(ctx context.Context) (CourseAnalytics, error)

	CreateSession(ctx context.Context) string
	ClearSession(ctx context.Context, sessionID string)
}

type ragService struct {
	log       *logger.Logger
	processor *DocumentProcessor
	store     CourseVectorStore
	generator AIGenerator
	sessions  SessionStore
	registry  *ToolRegistry
}

func NewRAGService(
	processor *DocumentProcessor,
	store CourseVectorStore,
	generator AIGenerator,
	sessions SessionStore,
	baseLog *logger.Logger,
) (RAGService, error) {
	registry := NewToolRegistry(baseLog)
	if err := registry.Register(NewCourseSearchTool(store)); err != nil {
		return nil, fmt.Errorf("register search tool: %w", err)
	}
	if err := registry.Register(NewCourseOutlineTool(store)); err != nil {
		return nil, fmt.Errorf("register outline tool: %w", err)
	}
	return &ragService{
		log:       baseLog.With("service", "RAGService"),
		processor: processor,
		store:     store,
		generator: generator,
		sessions:  sessions,
		registry:  registry,
	}, nil
}

func (s *ragService) Query(ctx context.Context, query, sessionID string) (string, []string, map[string]string, error) {
	prompt := fmt.Sprintf("Answer this question about course materials: %s", query)

	history := ""
	if sessionID != "" {
		history = s.sessions.GetConversationHistory(ctx, sessionID)
	}

	cites := NewCitationTracker()
	answer := s.generator.GenerateResponse(ctx, prompt, history, s.registry.Definitions(), s.registry, cites)

	sources := cites.Labels()
	sourceLinks := cites.Links()
	cites.Reset()

	if sessionID != "" {
		s.sessions.AddExchange(ctx, sessionID, query, answer)
	}
	return answer, sources, sourceLinks, nil
}

func (s *ragService) AddCourseDocument(ctx context.Context, path string) (domain.Course, int, error) {
	course, chunks, err := s.processor.ProcessCourseDocument(path)
	if err != nil {
		return domain.Course{}, 0, err
	}
	if err := s.store.AddCourseMetadata(ctx, course); err != nil {
		return domain.Course{}, 0, fmt.Errorf("add course metadata: %w", err)
	}
	if err := s.store.AddCourseContent(ctx, chunks); err != nil {
		return domain.Course{}, 0, fmt.Errorf("add course content: %w", err)
	}
	return course, len(chunks), nil
}

func (s *ragService) AddCourseFolder(ctx context.Context, path string, clearExisting bool) (int, int, error) {
	if clearExisting {
		s.log.Info("Clearing existing course data before reload")
		if err := s.store.ClearAllData(ctx); err != nil {
			return 0, 0, err
		}
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.log.Warn("Course documents folder missing", "path", path)
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("read course folder: %w", err)
	}

	existingTitles, err := s.store.GetExistingCourseTitles(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list existing courses: %w", err)
	}
	existing := make(map[string]struct{}, len(existingTitles))
	for _, title := range existingTitles {
		existing[title] = struct{}{}
	}

	totalCourses := 0
	totalChunks := 0
	for _, entry := range entries {
		if entry.IsDir() || !isCourseDocument(entry.Name()) {
			continue
		}
		filePath := filepath.Join(path, entry.Name())
		course, chunks, err := s.processor.ProcessCourseDocument(filePath)
		if err != nil {
			s.log.Warn("Failed to process course document", "path", filePath, "error", err)
			continue
		}
		if _, ok := existing[course.Title]; ok {
			s.log.Info("Course already indexed, skipping", "course", course.Title)
			continue
		}
		if err := s.store.AddCourseMetadata(ctx, course); err != nil {
			s.log.Warn("Failed to index course metadata", "course", course.Title, "error", err)
			continue
		}
		if err := s.store.AddCourseContent(ctx, chunks); err != nil {
			s.log.Warn("Failed to index course content", "course", course.Title, "error", err)
			continue
		}
		existing[course.Title] = struct{}{}
		totalCourses++
		totalChunks += len(chunks)
		s.log.Info("Course document indexed", "course", course.Title, "chunks", len(chunks))
	}
	return totalCourses, totalChunks, nil
}

func (s *ragService) GetCourseAnalytics(ctx context.Context) (CourseAnalytics, error) {
	count, err := s.store.GetCourseCount(ctx)
	if err != nil {
		return CourseAnalytics{}, err
	}
	titles, err := s.store.GetExistingCourseTitles(ctx)
	if err != nil {
		return CourseAnalytics{}, err
	}
	return CourseAnalytics{TotalCourses: count, CourseTitles: titles}, nil
}

func (s *ragService) CreateSession(ctx context.Context) string {
	return s.sessions.CreateSession(ctx)
}

func (s *ragService) ClearSession(ctx context.Context, sessionID string) {
	s.sessions.ClearSession(ctx, sessionID)
}

func isCourseDocument(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt", ".pdf", ".docx":
		return true
	}
	return false
}
