package services

import (
	"context"
	"errors"
	"testing"

	"github.com/donbr-claude-code/starting-ragchatbot-codebase/internal/domain"
)

type searchCall struct {
	query      string
	courseName string
	lesson     *int
	limit      int
}

// fakeCourseVectorStore is a scriptable CourseVectorStore for tool and
// facade tests.
type fakeCourseVectorStore struct {
	searchResults SearchResults
	searchCalls   []searchCall

	resolved map[string]string

	outlines   map[string]*domain.Course
	outlineErr error

	courseTitles []string
	titlesErr    error
	courseCount  int
	countErr     error
	allMetadata  []map[string]any

	metadataAdded []domain.Course
	metadataErr   error
	contentAdded  [][]domain.CourseChunk
	contentErr    error

	cleared  int
	clearErr error
}

func (f *fakeCourseVectorStore) Search(ctx context.Context, query, courseName string, lessonNumber *int, limit int) SearchResults {
	f.searchCalls = append(f.searchCalls, searchCall{query: query, courseName: courseName, lesson: lessonNumber, limit: limit})
	return f.searchResults
}

func (f *fakeCourseVectorStore) ResolveCourseName(ctx context.Context, courseName string) string {
	return f.resolved[courseName]
}

func (f *fakeCourseVectorStore) GetCourseOutlineData(ctx context.Context, courseTitle string) (*domain.Course, error) {
	if f.outlineErr != nil {
		return nil, f.outlineErr
	}
	return f.outlines[courseTitle], nil
}

func (f *fakeCourseVectorStore) AddCourseMetadata(ctx context.Context, course domain.Course) error {
	if f.metadataErr != nil {
		return f.metadataErr
	}
	f.metadataAdded = append(f.metadataAdded, course)
	return nil
}

func (f *fakeCourseVectorStore) AddCourseContent(ctx context.Context, chunks []domain.CourseChunk) error {
	if f.contentErr != nil {
		return f.contentErr
	}
	f.contentAdded = append(f.contentAdded, chunks)
	return nil
}

func (f *fakeCourseVectorStore) GetExistingCourseTitles(ctx context.Context) ([]string, error) {
	if f.titlesErr != nil {
		return nil, f.titlesErr
	}
	return f.courseTitles, nil
}

func (f *fakeCourseVectorStore) GetCourseCount(ctx context.Context) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.courseCount, nil
}

func (f *fakeCourseVectorStore) GetAllCoursesMetadata(ctx context.Context) ([]map[string]any, error) {
	return f.allMetadata, nil
}

func (f *fakeCourseVectorStore) GetCourseLink(ctx context.Context, courseTitle string) string {
	if course, ok := f.outlines[courseTitle]; ok && course != nil {
		return course.Link
	}
	return ""
}

func (f *fakeCourseVectorStore) GetLessonLink(ctx context.Context, courseTitle string, lessonNumber int) string {
	if course, ok := f.outlines[courseTitle]; ok && course != nil {
		return course.LessonLink(lessonNumber)
	}
	return ""
}

func (f *fakeCourseVectorStore) ClearAllData(ctx context.Context) error {
	if f.clearErr != nil {
		return f.clearErr
	}
	f.cleared++
	return nil
}

func intPtr(n int) *int { return &n }

func TestCourseSearchToolDefinition(t *testing.T) {
	def := NewCourseSearchTool(&fakeCourseVectorStore{}).Definition()

	if def.Name != "search_course_content" {
		t.Fatalf("name = %q", def.Name)
	}
	if len(def.InputSchema.Required) != 1 || def.InputSchema.Required[0] != "query" {
		t.Fatalf("required = %v, want [query]", def.InputSchema.Required)
	}
	for _, prop := range []string{"query", "course_name", "lesson_number"} {
		if _, ok := def.InputSchema.Properties[prop]; !ok {
			t.Fatalf("missing property %q", prop)
		}
	}
	if got := def.InputSchema.Properties["lesson_number"].Type; got != "integer" {
		t.Fatalf("lesson_number type = %q, want integer", got)
	}
}

func TestCourseSearchToolFormatsResultsAndRecordsCitations(t *testing.T) {
	store := &fakeCourseVectorStore{
		searchResults: SearchResults{
			Documents: []string{"chunk about embeddings", "chunk about retrieval"},
			Metadata: []map[string]any{
				{"course_title": "Building RAG Apps", "lesson_number": float64(3), "lesson_link": "https://learn.example/rag/3"},
				{"course_title": "Building RAG Apps", "course_link": "https://learn.example/rag"},
			},
			Distances: []float64{0.1, 0.2},
		},
	}
	tool := NewCourseSearchTool(store)
	cites := NewCitationTracker()

	got, err := tool.Execute(context.Background(), map[string]any{"query": "embeddings"}, cites)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	want := "[Building RAG Apps - Lesson 3]\nchunk about embeddings\n\n[Building RAG Apps]\nchunk about retrieval"
	if got != want {
		t.Fatalf("formatted = %q, want %q", got, want)
	}

	labels := cites.Labels()
	if len(labels) != 2 || labels[0] != "Building RAG Apps - Lesson 3" || labels[1] != "Building RAG Apps" {
		t.Fatalf("labels = %v", labels)
	}
	links := cites.Links()
	if links["Building RAG Apps - Lesson 3"] != "https://learn.example/rag/3" {
		t.Fatalf("lesson link = %q", links["Building RAG Apps - Lesson 3"])
	}
	if links["Building RAG Apps"] != "https://learn.example/rag" {
		t.Fatalf("course link = %q", links["Building RAG Apps"])
	}
}

func TestCourseSearchToolPassesFiltersToStore(t *testing.T) {
	store := &fakeCourseVectorStore{searchResults: emptySearchResults("")}
	tool := NewCourseSearchTool(store)

	input := map[string]any{"query": "what is MCP", "course_name": "MCP", "lesson_number": float64(2)}
	if _, err := tool.Execute(context.Background(), input, NewCitationTracker()); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if len(store.searchCalls) != 1 {
		t.Fatalf("search calls = %d, want 1", len(store.searchCalls))
	}
	call := store.searchCalls[0]
	if call.query != "what is MCP" || call.courseName != "MCP" {
		t.Fatalf("call = %+v", call)
	}
	if call.lesson == nil || *call.lesson != 2 {
		t.Fatalf("lesson = %v, want 2", call.lesson)
	}
	if call.limit != 0 {
		t.Fatalf("limit = %d, want 0 (store default)", call.limit)
	}
}

func TestCourseSearchToolMissingQueryStillSearches(t *testing.T) {
	store := &fakeCourseVectorStore{searchResults: emptySearchResults("")}
	tool := NewCourseSearchTool(store)

	if _, err := tool.Execute(context.Background(), map[string]any{}, NewCitationTracker()); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(store.searchCalls) != 1 || store.searchCalls[0].query != "" {
		t.Fatalf("search calls = %+v, want one empty-query call", store.searchCalls)
	}
}

func TestCourseSearchToolEmptyResultsEchoFilters(t *testing.T) {
	tests := []struct {
		name  string
		input map[string]any
		want  string
	}{
		{
			name:  "no filters",
			input: map[string]any{"query": "q"},
			want:  "No relevant content found",
		},
		{
			name:  "course filter",
			input: map[string]any{"query": "q", "course_name": "MCP"},
			want:  "No relevant content found in course 'MCP'",
		},
		{
			name:  "lesson filter",
			input: map[string]any{"query": "q", "lesson_number": float64(5)},
			want:  "No relevant content found in lesson 5",
		},
		{
			name:  "both filters",
			input: map[string]any{"query": "q", "course_name": "MCP", "lesson_number": float64(5)},
			want:  "No relevant content found in course 'MCP' in lesson 5",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tool := NewCourseSearchTool(&fakeCourseVectorStore{searchResults: emptySearchResults("")})
			got, err := tool.Execute(context.Background(), tc.input, NewCitationTracker())
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if got != tc.want {
				t.Fatalf("message = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestCourseSearchToolSurfacesStoreError(t *testing.T) {
	store := &fakeCourseVectorStore{searchResults: emptySearchResults("No course found matching 'Quantum'")}
	tool := NewCourseSearchTool(store)

	got, err := tool.Execute(context.Background(), map[string]any{"query": "q", "course_name": "Quantum"}, NewCitationTracker())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if want := "No course found matching 'Quantum'"; got != want {
		t.Fatalf("message = %q, want %q", got, want)
	}
}

func TestCourseSearchToolUnknownCourseTitleHeader(t *testing.T) {
	store := &fakeCourseVectorStore{
		searchResults: SearchResults{
			Documents: []string{"orphan chunk"},
			Metadata:  []map[string]any{{}},
			Distances: []float64{0.4},
		},
	}
	tool := NewCourseSearchTool(store)

	got, err := tool.Execute(context.Background(), map[string]any{"query": "q"}, NewCitationTracker())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if want := "[unknown]\norphan chunk"; got != want {
		t.Fatalf("formatted = %q, want %q", got, want)
	}
}

func TestCourseOutlineToolFormatsOutline(t *testing.T) {
	store := &fakeCourseVectorStore{
		resolved: map[string]string{"MCP": "MCP: Build Rich-Context AI Apps"},
		outlines: map[string]*domain.Course{
			"MCP: Build Rich-Context AI Apps": {
				Title:      "MCP: Build Rich-Context AI Apps",
				Link:       "https://learn.example/mcp",
				Instructor: "Elie Schoppik",
				Lessons: []domain.Lesson{
					{Number: 0, Title: "Introduction"},
					{Number: 1, Title: "Why MCP"},
					{Number: 2, Title: "Architecture"},
				},
			},
		},
	}
	tool := NewCourseOutlineTool(store)
	cites := NewCitationTracker()

	got, err := tool.Execute(context.Background(), map[string]any{"course_name": "MCP"}, cites)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	want := "**Course:** MCP: Build Rich-Context AI Apps\n" +
		"**Course Link:** https://learn.example/mcp\n" +
		"**Instructor:** Elie Schoppik\n" +
		"**Lessons (3 total):**\n" +
		"Lesson 0: Introduction\n" +
		"Lesson 1: Why MCP\n" +
		"Lesson 2: Architecture"
	if got != want {
		t.Fatalf("outline = %q, want %q", got, want)
	}

	labels := cites.Labels()
	if len(labels) != 1 || labels[0] != "MCP: Build Rich-Context AI Apps" {
		t.Fatalf("labels = %v", labels)
	}
	if link := cites.Links()["MCP: Build Rich-Context AI Apps"]; link != "https://learn.example/mcp" {
		t.Fatalf("link = %q", link)
	}
}

func TestCourseOutlineToolOmitsEmptyOptionalLines(t *testing.T) {
	store := &fakeCourseVectorStore{
		resolved: map[string]string{"Bare": "Bare Course"},
		outlines: map[string]*domain.Course{
			"Bare Course": {
				Title:   "Bare Course",
				Lessons: []domain.Lesson{{Number: 1, Title: "Only Lesson"}},
			},
		},
	}
	tool := NewCourseOutlineTool(store)

	got, err := tool.Execute(context.Background(), map[string]any{"course_name": "Bare"}, NewCitationTracker())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	want := "**Course:** Bare Course\n**Lessons (1 total):**\nLesson 1: Only Lesson"
	if got != want {
		t.Fatalf("outline = %q, want %q", got, want)
	}
}

func TestCourseOutlineToolNoMatch(t *testing.T) {
	tool := NewCourseOutlineTool(&fakeCourseVectorStore{resolved: map[string]string{}})

	got, err := tool.Execute(context.Background(), map[string]any{"course_name": "Quantum"}, NewCitationTracker())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if want := "No course found matching 'Quantum'"; got != want {
		t.Fatalf("message = %q, want %q", got, want)
	}
}

func TestCourseOutlineToolMissingMetadata(t *testing.T) {
	store := &fakeCourseVectorStore{
		resolved: map[string]string{"MCP": "MCP: Build Rich-Context AI Apps"},
		outlines: map[string]*domain.Course{},
	}
	tool := NewCourseOutlineTool(store)

	got, err := tool.Execute(context.Background(), map[string]any{"course_name": "MCP"}, NewCitationTracker())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if want := "Course metadata not found for 'MCP: Build Rich-Context AI Apps'"; got != want {
		t.Fatalf("message = %q, want %q", got, want)
	}
}

func TestCourseOutlineToolPropagatesLookupError(t *testing.T) {
	store := &fakeCourseVectorStore{
		resolved:   map[string]string{"MCP": "MCP Course"},
		outlineErr: errors.New("catalog offline"),
	}
	tool := NewCourseOutlineTool(store)

	_, err := tool.Execute(context.Background(), map[string]any{"course_name": "MCP"}, NewCitationTracker())
	if err == nil || err.Error() != "catalog offline" {
		t.Fatalf("err = %v, want catalog offline", err)
	}
}
