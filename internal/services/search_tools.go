package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/donbr-claude-code/starting-ragchatbot-codebase/internal/domain"
	"github.com/donbr-claude-code/starting-ragchatbot-codebase/internal/platform/anthropic"
)

// Tool is one named capability the generative service can invoke mid
// conversation. Execute returns displayable text; a Go error is folded into
// inline text at the registry boundary, so a failing tool never aborts the
// round loop.
type Tool interface {
	Definition() anthropic.Tool
	Execute(ctx context.Context, input map[string]any, cites *CitationTracker) (string, error)
}

// CourseSearchTool searches course content with fuzzy course matching and
// optional lesson filtering, and records one citation per returned hit.
type CourseSearchTool struct {
	store CourseVectorStore
}

func NewCourseSearchTool(store CourseVectorStore) *CourseSearchTool {
	return &CourseSearchTool{store: store}
}

func (t *CourseSearchTool) Definition() anthropic.Tool {
	return anthropic.Tool{
		Name:        "search_course_content",
		Description: "Search course materials with smart course name matching and lesson filtering",
		InputSchema: anthropic.ToolInputSchema{
			Type: "object",
			Properties: map[string]anthropic.ToolProperty{
				"query": {
					Type:        "string",
					Description: "What to search for in the course content",
				},
				"course_name": {
					Type:        "string",
					Description: "Course title (partial matches work, e.g. 'MCP', 'Introduction')",
				},
				"lesson_number": {
					Type:        "integer",
					Description: "Specific lesson number to search within (e.g. 1, 2, 3)",
				},
			},
			Required: []string{"query"},
		},
	}
}

func (t *CourseSearchTool) Execute(ctx context.Context, input map[string]any, cites *CitationTracker) (string, error) {
	// A missing or blank query still searches; the engine embeds whatever it
	// is given.
	query, _ := input["query"].(string)
	courseName, _ := input["course_name"].(string)

	var lessonNumber *int
	if n, ok := asInt(input["lesson_number"]); ok {
		lessonNumber = &n
	}

	results := t.store.Search(ctx, query, courseName, lessonNumber, 0)
	if results.Error != "" {
		return results.Error, nil
	}
	if results.IsEmpty() {
		var filterInfo strings.Builder
		if courseName != "" {
			fmt.Fprintf(&filterInfo, " in course '%s'", courseName)
		}
		if lessonNumber != nil {
			fmt.Fprintf(&filterInfo, " in lesson %d", *lessonNumber)
		}
		return "No relevant content found" + filterInfo.String(), nil
	}
	return t.formatResults(results, cites), nil
}

// formatResults renders each hit as a bracketed course/lesson header followed
// by the chunk text, blocks joined by blank lines, in the engine's relevance
// order.
func (t *CourseSearchTool) formatResults(results SearchResults, cites *CitationTracker) string {
	formatted := make([]string, 0, len(results.Documents))
	for i, document := range results.Documents {
		var meta map[string]any
		if i < len(results.Metadata) {
			meta = results.Metadata[i]
		}

		courseTitle, _ := meta["course_title"].(string)
		if courseTitle == "" {
			courseTitle = "unknown"
		}

		header := fmt.Sprintf("[%s]", courseTitle)
		label := courseTitle
		link, _ := meta["course_link"].(string)
		if lessonNumber, ok := asInt(meta["lesson_number"]); ok {
			header = fmt.Sprintf("[%s - Lesson %d]", courseTitle, lessonNumber)
			label = fmt.Sprintf("%s - Lesson %d", courseTitle, lessonNumber)
			if lessonLink, hasLink := meta["lesson_link"].(string); hasLink {
				link = lessonLink
			}
		}

		cites.Add(label, link)
		formatted = append(formatted, header+"\n"+document)
	}
	return strings.Join(formatted, "\n\n")
}

// CourseOutlineTool returns a course's catalog outline: title, link,
// instructor and the numbered lesson list.
type CourseOutlineTool struct {
	store CourseVectorStore
}

func NewCourseOutlineTool(store CourseVectorStore) *CourseOutlineTool {
	return &CourseOutlineTool{store: store}
}

func (t *CourseOutlineTool) Definition() anthropic.Tool {
	return anthropic.Tool{
		Name:        "get_course_outline",
		Description: "Get the complete outline of a course, including the course title, course link, and all lessons with their numbers and titles",
		InputSchema: anthropic.ToolInputSchema{
			Type: "object",
			Properties: map[string]anthropic.ToolProperty{
				"course_name": {
					Type:        "string",
					Description: "Course title (partial matches work, e.g. 'MCP', 'Introduction')",
				},
			},
			Required: []string{"course_name"},
		},
	}
}

func (t *CourseOutlineTool) Execute(ctx context.Context, input map[string]any, cites *CitationTracker) (string, error) {
	courseName, _ := input["course_name"].(string)

	resolvedTitle := t.store.ResolveCourseName(ctx, courseName)
	if resolvedTitle == "" {
		return fmt.Sprintf("No course found matching '%s'", courseName), nil
	}

	course, err := t.store.GetCourseOutlineData(ctx, resolvedTitle)
	if err != nil {
		return "", err
	}
	if course == nil {
		// Resolution hit a catalog entry but its payload is gone; distinct
		// from the no-match message above so callers can tell them apart.
		return fmt.Sprintf("Course metadata not found for '%s'", resolvedTitle), nil
	}

	cites.Add(course.Title, course.Link)
	return formatCourseOutline(course), nil
}

func formatCourseOutline(course *domain.Course) string {
	lines := []string{fmt.Sprintf("**Course:** %s", course.Title)}
	if course.Link != "" {
		lines = append(lines, fmt.Sprintf("**Course Link:** %s", course.Link))
	}
	if course.Instructor != "" {
		lines = append(lines, fmt.Sprintf("**Instructor:** %s", course.Instructor))
	}
	lines = append(lines, fmt.Sprintf("**Lessons (%d total):**", len(course.Lessons)))
	for _, lesson := range course.Lessons {
		lines = append(lines, fmt.Sprintf("Lesson %d: %s", lesson.Number, lesson.Title))
	}
	return strings.Join(lines, "\n")
}
