package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/donbr-claude-code/starting-ragchatbot-codebase/internal/platform/anthropic"
)

type fakeGenerator struct {
	answer    string
	citeLabel string
	citeLink  string

	calls       int
	lastQuery   string
	lastHistory string
	lastTools   []anthropic.Tool
}

func (f *fakeGenerator) GenerateResponse(ctx context.Context, query, conversationHistory string, tools []anthropic.Tool, registry *ToolRegistry, cites *CitationTracker) string {
	f.calls++
	f.lastQuery = query
	f.lastHistory = conversationHistory
	f.lastTools = tools
	if f.citeLabel != "" {
		cites.Add(f.citeLabel, f.citeLink)
	}
	return f.answer
}

func newRAGFixture(t *testing.T, store *fakeCourseVectorStore, gen *fakeGenerator) (RAGService, SessionStore) {
	t.Helper()
	log := newTestLogger(t)
	sessions := NewMemorySessionStore(2, log)
	processor := NewDocumentProcessor(800, 100, log)
	svc, err := NewRAGService(processor, store, gen, sessions, log)
	if err != nil {
		t.Fatalf("NewRAGService: %v", err)
	}
	return svc, sessions
}

func TestQueryWrapsPromptAndRecordsExchange(t *testing.T) {
	gen := &fakeGenerator{
		answer:    "RAG is retrieval augmented generation.",
		citeLabel: "Course A - Lesson 1",
		citeLink:  "https://learn.example/a/1",
	}
	svc, _ := newRAGFixture(t, &fakeCourseVectorStore{}, gen)
	ctx := context.Background()

	sessionID := svc.CreateSession(ctx)
	answer, sources, links, err := svc.Query(ctx, "What is RAG?", sessionID)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if answer != "RAG is retrieval augmented generation." {
		t.Fatalf("answer = %q", answer)
	}
	if want := "Answer this question about course materials: What is RAG?"; gen.lastQuery != want {
		t.Fatalf("prompt = %q, want %q", gen.lastQuery, want)
	}
	if gen.lastHistory != "" {
		t.Fatalf("first-query history = %q, want empty", gen.lastHistory)
	}
	if len(sources) != 1 || sources[0] != "Course A - Lesson 1" {
		t.Fatalf("sources = %v", sources)
	}
	if links["Course A - Lesson 1"] != "https://learn.example/a/1" {
		t.Fatalf("links = %v", links)
	}

	// The session records the raw user query, not the wrapped prompt.
	if _, _, _, err := svc.Query(ctx, "More please", sessionID); err != nil {
		t.Fatalf("second Query: %v", err)
	}
	want := "User: What is RAG?\nAssistant: RAG is retrieval augmented generation."
	if gen.lastHistory != want {
		t.Fatalf("history = %q, want %q", gen.lastHistory, want)
	}
}

func TestQueryWithoutSessionSkipsHistory(t *testing.T) {
	gen := &fakeGenerator{answer: "hi"}
	svc, _ := newRAGFixture(t, &fakeCourseVectorStore{}, gen)

	answer, _, _, err := svc.Query(context.Background(), "hello", "")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if answer != "hi" || gen.lastHistory != "" {
		t.Fatalf("answer = %q history = %q", answer, gen.lastHistory)
	}
}

func TestQueryPassesRegisteredToolDefinitions(t *testing.T) {
	gen := &fakeGenerator{answer: "ok"}
	svc, _ := newRAGFixture(t, &fakeCourseVectorStore{}, gen)

	if _, _, _, err := svc.Query(context.Background(), "q", ""); err != nil {
		t.Fatalf("Query: %v", err)
	}

	var names []string
	for _, def := range gen.lastTools {
		names = append(names, def.Name)
	}
	if len(names) != 2 || names[0] != "search_course_content" || names[1] != "get_course_outline" {
		t.Fatalf("tools = %v", names)
	}
}

func TestQueryCitationsAreFreshPerQuery(t *testing.T) {
	gen := &fakeGenerator{answer: "ok", citeLabel: "Course A"}
	svc, _ := newRAGFixture(t, &fakeCourseVectorStore{}, gen)
	ctx := context.Background()
	sessionID := svc.CreateSession(ctx)

	if _, sources, _, _ := mustQuery(t, svc, ctx, "first", sessionID); len(sources) != 1 {
		t.Fatalf("first sources = %v", sources)
	}
	if _, sources, _, _ := mustQuery(t, svc, ctx, "second", sessionID); len(sources) != 1 {
		t.Fatalf("second sources = %v, want citations from this query only", sources)
	}
}

func mustQuery(t *testing.T, svc RAGService, ctx context.Context, query, sessionID string) (string, []string, map[string]string, error) {
	t.Helper()
	answer, sources, links, err := svc.Query(ctx, query, sessionID)
	if err != nil {
		t.Fatalf("Query(%q): %v", query, err)
	}
	return answer, sources, links, err
}

func TestAddCourseDocumentIndexesMetadataAndChunks(t *testing.T) {
	store := &fakeCourseVectorStore{}
	svc, _ := newRAGFixture(t, store, &fakeGenerator{})

	doc := "Course Title: Course A\n\nLesson 1: One\nAlpha content here.\n"
	path := writeDoc(t, "a.txt", doc)

	course, count, err := svc.AddCourseDocument(context.Background(), path)
	if err != nil {
		t.Fatalf("AddCourseDocument: %v", err)
	}
	if course.Title != "Course A" {
		t.Fatalf("course = %+v", course)
	}
	if count != 1 {
		t.Fatalf("chunk count = %d, want 1", count)
	}
	if len(store.metadataAdded) != 1 || store.metadataAdded[0].Title != "Course A" {
		t.Fatalf("metadata added = %+v", store.metadataAdded)
	}
	if len(store.contentAdded) != 1 || len(store.contentAdded[0]) != 1 {
		t.Fatalf("content added = %+v", store.contentAdded)
	}
}

func TestAddCourseDocumentPropagatesStoreErrors(t *testing.T) {
	store := &fakeCourseVectorStore{metadataErr: errors.New("catalog rejected")}
	svc, _ := newRAGFixture(t, store, &fakeGenerator{})

	path := writeDoc(t, "a.txt", "Course Title: Course A\n\nLesson 1: One\nText.\n")
	_, _, err := svc.AddCourseDocument(context.Background(), path)
	if err == nil || !strings.Contains(err.Error(), "add course metadata") {
		t.Fatalf("err = %v, want metadata wrap", err)
	}
}

func TestAddCourseFolderSkipsExistingAndUnsupported(t *testing.T) {
	dir := t.TempDir()
	writeInto := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	writeInto("alpha.txt", "Course Title: Course A\n\nLesson 1: One\nAlpha content here.\n")
	writeInto("beta.txt", "Course Title: Course B\n\nLesson 1: One\nBeta content here.\n")
	writeInto("notes.md", "not a course document")

	store := &fakeCourseVectorStore{courseTitles: []string{"Course B"}}
	svc, _ := newRAGFixture(t, store, &fakeGenerator{})

	courses, chunks, err := svc.AddCourseFolder(context.Background(), dir, false)
	if err != nil {
		t.Fatalf("AddCourseFolder: %v", err)
	}
	if courses != 1 || chunks != 1 {
		t.Fatalf("totals = %d courses %d chunks, want 1/1", courses, chunks)
	}
	if len(store.metadataAdded) != 1 || store.metadataAdded[0].Title != "Course A" {
		t.Fatalf("metadata added = %+v", store.metadataAdded)
	}
	if store.cleared != 0 {
		t.Fatalf("cleared = %d, want 0", store.cleared)
	}
}

func TestAddCourseFolderClearsWhenAsked(t *testing.T) {
	store := &fakeCourseVectorStore{}
	svc, _ := newRAGFixture(t, store, &fakeGenerator{})

	if _, _, err := svc.AddCourseFolder(context.Background(), t.TempDir(), true); err != nil {
		t.Fatalf("AddCourseFolder: %v", err)
	}
	if store.cleared != 1 {
		t.Fatalf("cleared = %d, want 1", store.cleared)
	}
}

func TestAddCourseFolderMissingFolderIsNotAnError(t *testing.T) {
	svc, _ := newRAGFixture(t, &fakeCourseVectorStore{}, &fakeGenerator{})

	courses, chunks, err := svc.AddCourseFolder(context.Background(), filepath.Join(t.TempDir(), "nope"), false)
	if err != nil {
		t.Fatalf("AddCourseFolder: %v", err)
	}
	if courses != 0 || chunks != 0 {
		t.Fatalf("totals = %d/%d, want 0/0", courses, chunks)
	}
}

func TestGetCourseAnalytics(t *testing.T) {
	store := &fakeCourseVectorStore{courseCount: 3, courseTitles: []string{"A", "B", "C"}}
	svc, _ := newRAGFixture(t, store, &fakeGenerator{})

	analytics, err := svc.GetCourseAnalytics(context.Background())
	if err != nil {
		t.Fatalf("GetCourseAnalytics: %v", err)
	}
	if analytics.TotalCourses != 3 || len(analytics.CourseTitles) != 3 {
		t.Fatalf("analytics = %+v", analytics)
	}
}

func TestGetCourseAnalyticsPropagatesErrors(t *testing.T) {
	store := &fakeCourseVectorStore{countErr: errors.New("catalog offline")}
	svc, _ := newRAGFixture(t, store, &fakeGenerator{})

	if _, err := svc.GetCourseAnalytics(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestClearSessionDelegates(t *testing.T) {
	gen := &fakeGenerator{answer: "noted"}
	svc, sessions := newRAGFixture(t, &fakeCourseVectorStore{}, gen)
	ctx := context.Background()

	sessionID := svc.CreateSession(ctx)
	mustQuery(t, svc, ctx, "remember this", sessionID)
	if got := sessions.GetConversationHistory(ctx, sessionID); got == "" {
		t.Fatal("expected history before clear")
	}

	svc.ClearSession(ctx, sessionID)
	if got := sessions.GetConversationHistory(ctx, sessionID); got != "" {
		t.Fatalf("history after clear = %q, want empty", got)
	}
}
