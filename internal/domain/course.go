package domain

import (
	"fmt"
	"strings"
)

// Lesson is one lesson entry within a course. Link is empty when the source
// document carries no lesson link.
type Lesson struct {
	Number int    `json:"lesson_number"`
	Title  string `json:"title"`
	Link   string `json:"lesson_link,omitempty"`
}

// Course is the catalog identity of one course document. Title doubles as the
// unique catalog key.
type Course struct {
	Title      string   `json:"title"`
	Link       string   `json:"course_link,omitempty"`
	Instructor string   `json:"instructor,omitempty"`
	Lessons    []Lesson `json:"lessons"`
}

// LessonLink returns the link of the lesson with the given number, or "" when
// the course has no such lesson or the lesson carries no link.
func (c Course) LessonLink(lessonNumber int) string {
	for _, lesson := range c.Lessons {
		if lesson.Number == lessonNumber {
			return lesson.Link
		}
	}
	return ""
}

// CourseChunk is one indexed slice of course content. LessonNumber is nil for
// content that precedes any lesson marker.
type CourseChunk struct {
	Content      string `json:"content"`
	CourseTitle  string `json:"course_title"`
	LessonNumber *int   `json:"lesson_number,omitempty"`
	ChunkIndex   int    `json:"chunk_index"`
}

// ID returns the chunk's stable content-collection identity, derived from the
// course title (spaces replaced with underscores) and the chunk index.
func (c CourseChunk) ID() string {
	return fmt.Sprintf("%s_%d", strings.ReplaceAll(c.CourseTitle, " ", "_"), c.ChunkIndex)
}
