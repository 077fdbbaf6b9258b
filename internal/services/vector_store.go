package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/donbr-claude-code/starting-ragchatbot-codebase/internal/domain"
	"github.com/donbr-claude-code/starting-ragchatbot-codebase/internal/platform/logger"
	"github.com/donbr-claude-code/starting-ragchatbot-codebase/internal/platform/openai"
	"github.com/donbr-claude-code/starting-ragchatbot-codebase/internal/platform/qdrant"
)

// SearchResults carries the outcome of one content search. Documents, Metadata
// and Distances are parallel slices. Error is a terminal, human-readable
// failure; it is mutually exclusive with populated data and is never raised as
// a Go error past the store.
type SearchResults struct {
	Documents []string
	Metadata  []map[string]any
	Distances []float64
	Error     string
}

func emptySearchResults(errMsg string) SearchResults {
	return SearchResults{
		Documents: []string{},
		Metadata:  []map[string]any{},
		Distances: []float64{},
		Error:     errMsg,
	}
}

func (r SearchResults) IsEmpty() bool {
	return len(r.Documents) == 0
}

// BuildFilter translates the optional course/lesson constraints into the
// store's filter dialect:
//
//	neither          -> nil
//	course only      -> {"course_title": title}
//	lesson only      -> {"lesson_number": n}
//	both             -> {"$and": [{"course_title": title}, {"lesson_number": n}]}
func BuildFilter(courseTitle string, lessonNumber *int) map[string]any {
	switch {
	case courseTitle == "" && lessonNumber == nil:
		return nil
	case lessonNumber == nil:
		return map[string]any{"course_title": courseTitle}
	case courseTitle == "":
		return map[string]any{"lesson_number": *lessonNumber}
	default:
		return map[string]any{"$and": []map[string]any{
			{"course_title": courseTitle},
			{"lesson_number": *lessonNumber},
		}}
	}
}

// CourseVectorStore is the retrieval engine over the catalog and content
// collections.
type CourseVectorStore interface {
	// Search embeds query and searches course content, optionally constrained
	// to a fuzzily resolved course and/or a lesson number. Failures come back
	// on SearchResults.Error.
	Search(ctx context.Context, query, courseName string, lessonNumber *int, limit int) SearchResults

	// ResolveCourseName maps a possibly partial course name to the single
	// best-matching catalog title, or "" when the catalog is empty or the
	// lookup fails.
	ResolveCourseName(ctx context.Context, courseName string) string

	// GetCourseOutlineData fetches the catalog outline for an exact, already
	// resolved title. A nil course with nil error means no catalog entry.
	GetCourseOutlineData(ctx context.Context, courseTitle string) (*domain.Course, error)

	AddCourseMetadata(ctx context.Context, course domain.Course) error
	AddCourseContent(ctx context.Context, chunks []domain.CourseChunk) error

	GetExistingCourseTitles(ctx context.Context) ([]string, error)
	GetCourseCount(ctx context.Context) (int, error)
	GetAllCoursesMetadata(ctx context.Context) ([]map[string]any, error)

	// GetCourseLink and GetLessonLink return "" when the course or lesson is
	// unknown; lookup failures are logged, not returned.
	GetCourseLink(ctx context.Context, courseTitle string) string
	GetLessonLink(ctx context.Context, courseTitle string, lessonNumber int) string

	// ClearAllData drops and recreates both collections.
	ClearAllData(ctx context.Context) error
}

type courseVectorStore struct {
	log        *logger.Logger
	catalog    qdrant.Store
	content    qdrant.Store
	embedder   openai.Client
	maxResults int
}

func NewCourseVectorStore(catalog, content qdrant.Store, embedder openai.Client, maxResults int, baseLog *logger.Logger) CourseVectorStore {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &courseVectorStore{
		log:        baseLog.With("service", "CourseVectorStore"),
		catalog:    catalog,
		content:    content,
		embedder:   embedder,
		maxResults: maxResults,
	}
}

// catalogLesson is the wire shape of one entry in the catalog's lessons_json
// payload value.
type catalogLesson struct {
	Number int    `json:"lesson_number"`
	Title  string `json:"lesson_title"`
	Link   string `json:"lesson_link,omitempty"`
}

func (s *courseVectorStore) Search(ctx context.Context, query, courseName string, lessonNumber *int, limit int) SearchResults {
	resolvedTitle := ""
	if courseName != "" {
		resolvedTitle = s.ResolveCourseName(ctx, courseName)
		if resolvedTitle == "" {
			return emptySearchResults(fmt.Sprintf("No course found matching '%s'", courseName))
		}
	}

	filter := BuildFilter(resolvedTitle, lessonNumber)

	topK := limit
	if topK <= 0 {
		topK = s.maxResults
	}

	// An empty query still embeds and searches; callers rely on the index to
	// decide what "nothing" matches.
	vector, err := s.embedOne(ctx, query)
	if err != nil {
		s.log.Error("Search embedding failed", "error", err)
		return emptySearchResults(fmt.Sprintf("Search error: %v", err))
	}

	matches, err := s.content.Query(ctx, vector, topK, filter)
	if err != nil {
		s.log.Error("Search query failed", "error", err)
		return emptySearchResults(fmt.Sprintf("Search error: %v", err))
	}

	results := SearchResults{
		Documents: make([]string, 0, len(matches)),
		Metadata:  make([]map[string]any, 0, len(matches)),
		Distances: make([]float64, 0, len(matches)),
	}
	for _, match := range matches {
		document, _ := match.Payload["content"].(string)
		meta := make(map[string]any, len(match.Payload))
		for k, v := range match.Payload {
			if k == "content" {
				continue
			}
			meta[k] = v
		}
		results.Documents = append(results.Documents, document)
		results.Metadata = append(results.Metadata, meta)
		// The store reports similarity; flip to a distance so lower still
		// reads as closer.
		results.Distances = append(results.Distances, 1-match.Score)
	}

	s.enrichMetadataWithLinks(ctx, results.Metadata)
	return results
}

// resolveMinScore is the similarity floor for course-name resolution. With a
// non-empty catalog a plain top-1 query always returns something; the floor is
// what turns "nearest title to an unrelated name" into a miss.
const resolveMinScore = 0.35

func (s *courseVectorStore) ResolveCourseName(ctx context.Context, courseName string) string {
	vector, err := s.embedOne(ctx, courseName)
	if err != nil {
		s.log.Error("Course name resolution embedding failed", "course_name", courseName, "error", err)
		return ""
	}

	matches, err := s.catalog.QueryWithMinScore(ctx, vector, 1, nil, resolveMinScore)
	if err != nil {
		s.log.Error("Course name resolution failed", "course_name", courseName, "error", err)
		return ""
	}
	if len(matches) == 0 {
		return ""
	}
	if title, ok := matches[0].Payload["title"].(string); ok && title != "" {
		return title
	}
	return matches[0].ID
}

func (s *courseVectorStore) GetCourseOutlineData(ctx context.Context, courseTitle string) (*domain.Course, error) {
	points, err := s.catalog.Retrieve(ctx, []string{courseTitle})
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, nil
	}

	course := courseFromCatalogPayload(points[0].Payload)
	if course.Title == "" {
		course.Title = courseTitle
	}
	sort.SliceStable(course.Lessons, func(i, j int) bool {
		return course.Lessons[i].Number < course.Lessons[j].Number
	})
	return &course, nil
}

func (s *courseVectorStore) AddCourseMetadata(ctx context.Context, course domain.Course) error {
	title := strings.TrimSpace(course.Title)
	if title == "" {
		return fmt.Errorf("course title is required")
	}

	vector, err := s.embedOne(ctx, title)
	if err != nil {
		return err
	}

	lessons := make([]catalogLesson, 0, len(course.Lessons))
	for _, lesson := range course.Lessons {
		lessons = append(lessons, catalogLesson{
			Number: lesson.Number,
			Title:  lesson.Title,
			Link:   lesson.Link,
		})
	}
	lessonsJSON, err := json.Marshal(lessons)
	if err != nil {
		return fmt.Errorf("encode lessons for %q: %w", title, err)
	}

	point := qdrant.Point{
		ID:     title,
		Vector: vector,
		Payload: map[string]any{
			"title":        title,
			"instructor":   course.Instructor,
			"course_link":  course.Link,
			"lesson_count": len(course.Lessons),
			"lessons_json": string(lessonsJSON),
		},
	}
	return s.catalog.Upsert(ctx, []qdrant.Point{point})
}

func (s *courseVectorStore) AddCourseContent(ctx context.Context, chunks []domain.CourseChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Content
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: chunks=%d vectors=%d", len(chunks), len(vectors))
	}

	points := make([]qdrant.Point, 0, len(chunks))
	for i, chunk := range chunks {
		payload := map[string]any{
			"content":      chunk.Content,
			"course_title": chunk.CourseTitle,
			"chunk_index":  chunk.ChunkIndex,
		}
		if chunk.LessonNumber != nil {
			payload["lesson_number"] = *chunk.LessonNumber
		}
		points = append(points, qdrant.Point{ID: chunk.ID(), Vector: vectors[i], Payload: payload})
	}
	return s.content.Upsert(ctx, points)
}

func (s *courseVectorStore) GetExistingCourseTitles(ctx context.Context) ([]string, error) {
	points, err := s.catalog.Scroll(ctx, 0)
	if err != nil {
		return nil, err
	}

	titles := make([]string, 0, len(points))
	for _, point := range points {
		title, _ := point.Payload["title"].(string)
		if title == "" {
			title = point.ID
		}
		if title != "" {
			titles = append(titles, title)
		}
	}
	sort.Strings(titles)
	return titles, nil
}

func (s *courseVectorStore) GetCourseCount(ctx context.Context) (int, error) {
	return s.catalog.Count(ctx)
}

func (s *courseVectorStore) GetAllCoursesMetadata(ctx context.Context) ([]map[string]any, error) {
	points, err := s.catalog.Scroll(ctx, 0)
	if err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(points))
	for _, point := range points {
		meta := make(map[string]any, len(point.Payload))
		for k, v := range point.Payload {
			meta[k] = v
		}
		if raw, ok := meta["lessons_json"].(string); ok {
			var lessons any
			if err := json.Unmarshal([]byte(raw), &lessons); err == nil {
				meta["lessons"] = lessons
			} else {
				s.log.Warn("Catalog lessons_json is malformed", "course_title", point.ID, "error", err)
			}
			delete(meta, "lessons_json")
		}
		out = append(out, meta)
	}
	return out, nil
}

func (s *courseVectorStore) GetCourseLink(ctx context.Context, courseTitle string) string {
	course, ok := s.catalogCourse(ctx, courseTitle)
	if !ok {
		return ""
	}
	return course.Link
}

func (s *courseVectorStore) GetLessonLink(ctx context.Context, courseTitle string, lessonNumber int) string {
	course, ok := s.catalogCourse(ctx, courseTitle)
	if !ok {
		return ""
	}
	return course.LessonLink(lessonNumber)
}

func (s *courseVectorStore) ClearAllData(ctx context.Context) error {
	for _, store := range []qdrant.Store{s.catalog, s.content} {
		if err := store.DeleteCollection(ctx); err != nil {
			return fmt.Errorf("clear collection %q: %w", store.Collection(), err)
		}
		if err := store.EnsureCollection(ctx); err != nil {
			return fmt.Errorf("recreate collection %q: %w", store.Collection(), err)
		}
	}
	s.log.Info("Cleared all course data")
	return nil
}

func (s *courseVectorStore) embedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("embedding service returned no vector")
	}
	return vectors[0], nil
}

// enrichMetadataWithLinks attaches lesson_link (or course_link for lesson-less
// chunks) to each result's metadata so citations can link out. Catalog lookups
// are memoized per search.
func (s *courseVectorStore) enrichMetadataWithLinks(ctx context.Context, metadata []map[string]any) {
	type cached struct {
		course domain.Course
		ok     bool
	}
	cache := make(map[string]cached)
	lookup := func(title string) (domain.Course, bool) {
		if entry, exists := cache[title]; exists {
			return entry.course, entry.ok
		}
		course, ok := s.catalogCourse(ctx, title)
		cache[title] = cached{course: course, ok: ok}
		return course, ok
	}

	for _, meta := range metadata {
		title, _ := meta["course_title"].(string)
		if title == "" {
			continue
		}
		course, ok := lookup(title)
		if !ok {
			continue
		}
		if lessonNumber, hasLesson := asInt(meta["lesson_number"]); hasLesson {
			if link := course.LessonLink(lessonNumber); link != "" {
				meta["lesson_link"] = link
			}
		} else if course.Link != "" {
			meta["course_link"] = course.Link
		}
	}
}

func (s *courseVectorStore) catalogCourse(ctx context.Context, title string) (domain.Course, bool) {
	if strings.TrimSpace(title) == "" {
		return domain.Course{}, false
	}
	points, err := s.catalog.Retrieve(ctx, []string{title})
	if err != nil {
		s.log.Warn("Catalog lookup failed", "course_title", title, "error", err)
		return domain.Course{}, false
	}
	if len(points) == 0 {
		return domain.Course{}, false
	}
	course := courseFromCatalogPayload(points[0].Payload)
	if course.Title == "" {
		course.Title = title
	}
	return course, true
}

func courseFromCatalogPayload(payload map[string]any) domain.Course {
	var course domain.Course
	course.Title, _ = payload["title"].(string)
	course.Link, _ = payload["course_link"].(string)
	course.Instructor, _ = payload["instructor"].(string)

	raw, ok := payload["lessons_json"].(string)
	if !ok || raw == "" {
		return course
	}
	var lessons []catalogLesson
	if err := json.Unmarshal([]byte(raw), &lessons); err != nil {
		return course
	}
	course.Lessons = make([]domain.Lesson, 0, len(lessons))
	for _, lesson := range lessons {
		course.Lessons = append(course.Lessons, domain.Lesson{
			Number: lesson.Number,
			Title:  lesson.Title,
			Link:   lesson.Link,
		})
	}
	return course
}

// asInt widens the numeric types JSON decoding can produce. Payload numbers
// come back as float64.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case float32:
		return int(n), true
	case json.Number:
		parsed, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(parsed), true
	default:
		return 0, false
	}
}
