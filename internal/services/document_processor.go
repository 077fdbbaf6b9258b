package services

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/donbr-claude-code/starting-ragchatbot-codebase/internal/domain"
	"github.com/donbr-claude-code/starting-ragchatbot-codebase/internal/platform/logger"
)

var (
	courseTitleRe      = regexp.MustCompile(`(?i)^Course Title:\s*(.+)$`)
	courseLinkRe       = regexp.MustCompile(`(?i)^Course Link:\s*(.+)$`)
	courseInstructorRe = regexp.MustCompile(`(?i)^Course Instructor:\s*(.+)$`)
	lessonMarkerRe     = regexp.MustCompile(`(?i)^Lesson\s+(\d+):\s*(.*)$`)
	lessonLinkRe       = regexp.MustCompile(`(?i)^Lesson Link:\s*(.+)$`)
)

// DocumentProcessor parses course transcript documents into a Course record
// and sentence-chunked content.
//
// Document layout: `Course Title:` / `Course Link:` / `Course Instructor:`
// header lines, then `Lesson <n>: <title>` markers (each optionally followed
// by a `Lesson Link:` line) with transcript text under each marker.
type DocumentProcessor struct {
	log          *logger.Logger
	chunkSize    int
	chunkOverlap int
}

func NewDocumentProcessor(chunkSize, chunkOverlap int, baseLog *logger.Logger) *DocumentProcessor {
	if chunkSize <= 0 {
		chunkSize = 800
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	return &DocumentProcessor{
		log:          baseLog.With("service", "DocumentProcessor"),
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

func (p *DocumentProcessor) ProcessCourseDocument(path string) (domain.Course, []domain.CourseChunk, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.Course{}, nil, fmt.Errorf("read course document: %w", err)
	}
	course, chunks := p.parse(string(raw), filepath.Base(path))
	return course, chunks, nil
}

func (p *DocumentProcessor) parse(content, filename string) (domain.Course, []domain.CourseChunk) {
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")

	// The filename stands in for a missing title header.
	course := domain.Course{
		Title: strings.TrimSuffix(filename, filepath.Ext(filename)),
	}

	bodyStart := 0
	for bodyStart < len(lines) {
		line := strings.TrimSpace(lines[bodyStart])
		if line == "" {
			bodyStart++
			continue
		}
		if m := courseTitleRe.FindStringSubmatch(line); m != nil {
			course.Title = strings.TrimSpace(m[1])
		} else if m := courseLinkRe.FindStringSubmatch(line); m != nil {
			course.Link = strings.TrimSpace(m[1])
		} else if m := courseInstructorRe.FindStringSubmatch(line); m != nil {
			course.Instructor = strings.TrimSpace(m[1])
		} else {
			break
		}
		bodyStart++
	}

	var (
		chunks     []domain.CourseChunk
		chunkIndex int
		intro      []string
		current    *lessonAccumulator
	)

	flushIntro := func() {
		text := strings.TrimSpace(strings.Join(intro, "\n"))
		intro = nil
		if text == "" {
			return
		}
		for i, piece := range p.chunkText(text) {
			if i == 0 {
				piece = fmt.Sprintf("Course %s content: %s", course.Title, piece)
			}
			chunks = append(chunks, domain.CourseChunk{
				Content:     piece,
				CourseTitle: course.Title,
				ChunkIndex:  chunkIndex,
			})
			chunkIndex++
		}
	}

	flushLesson := func() {
		if current == nil {
			return
		}
		text := strings.TrimSpace(strings.Join(current.content, "\n"))
		if text == "" {
			current = nil
			return
		}
		course.Lessons = append(course.Lessons, domain.Lesson{
			Number: current.number,
			Title:  current.title,
			Link:   current.link,
		})
		for i, piece := range p.chunkText(text) {
			if i == 0 {
				piece = fmt.Sprintf("Lesson %d content: %s", current.number, piece)
			}
			lessonNumber := current.number
			chunks = append(chunks, domain.CourseChunk{
				Content:      piece,
				CourseTitle:  course.Title,
				LessonNumber: &lessonNumber,
				ChunkIndex:   chunkIndex,
			})
			chunkIndex++
		}
		current = nil
	}

	for i := bodyStart; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if m := lessonMarkerRe.FindStringSubmatch(trimmed); m != nil {
			if current == nil {
				flushIntro()
			} else {
				flushLesson()
			}
			number, _ := strconv.Atoi(m[1])
			current = &lessonAccumulator{number: number, title: strings.TrimSpace(m[2])}

			// A Lesson Link line directly under the marker belongs to it and
			// is not transcript text.
			if i+1 < len(lines) {
				if lm := lessonLinkRe.FindStringSubmatch(strings.TrimSpace(lines[i+1])); lm != nil {
					current.link = strings.TrimSpace(lm[1])
					i++
				}
			}
			continue
		}

		if current != nil {
			current.content = append(current.content, lines[i])
		} else {
			intro = append(intro, lines[i])
		}
	}
	if current != nil {
		flushLesson()
	} else {
		flushIntro()
	}

	return course, chunks
}

type lessonAccumulator struct {
	number  int
	title   string
	link    string
	content []string
}

// chunkText packs whole sentences into chunks of at most chunkSize characters
// with chunkOverlap characters of trailing-sentence overlap carried into the
// next chunk. A sentence longer than chunkSize becomes its own chunk.
func (p *DocumentProcessor) chunkText(text string) []string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	var current []string
	currentSize := 0

	for _, sentence := range sentences {
		totalSize := currentSize + len(sentence)
		if len(current) > 0 {
			totalSize++
		}

		if totalSize <= p.chunkSize || len(current) == 0 {
			current = append(current, sentence)
			currentSize = totalSize
			continue
		}

		chunks = append(chunks, strings.Join(current, " "))

		var overlap []string
		overlapSize := 0
		for i := len(current) - 1; i >= 0; i-- {
			size := len(current[i])
			if len(overlap) > 0 {
				size++
			}
			if overlapSize+size > p.chunkOverlap {
				break
			}
			overlap = append([]string{current[i]}, overlap...)
			overlapSize += size
		}

		current = append(overlap, sentence)
		currentSize = overlapSize + len(sentence)
		if len(overlap) > 0 {
			currentSize++
		}
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}

// splitSentences splits whitespace-normalized text after `.`, `!` or `?`
// followed by a space, keeping dotted abbreviations ("e.g.") and honorifics
// ("Dr.") inside their sentence.
func splitSentences(text string) []string {
	normalized := strings.Join(strings.Fields(text), " ")
	if normalized == "" {
		return nil
	}

	runes := []rune(normalized)
	var sentences []string
	start := 0
	for i := 0; i < len(runes)-1; i++ {
		ch := runes[i]
		if ch != '.' && ch != '!' && ch != '?' {
			continue
		}
		if runes[i+1] != ' ' {
			continue
		}
		if !isSentenceBoundary(runes, i) {
			continue
		}
		sentence := strings.TrimSpace(string(runes[start : i+1]))
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
		start = i + 1
	}
	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

func isSentenceBoundary(runes []rune, i int) bool {
	// Dotted abbreviation, "e.g." or "U.S.": word, dot, word, punct.
	if i >= 3 && isWordRune(runes[i-3]) && runes[i-2] == '.' && isWordRune(runes[i-1]) {
		return false
	}
	// Honorific, "Dr." or "Mr.": upper, lower, dot.
	if runes[i] == '.' && i >= 2 && unicode.IsUpper(runes[i-2]) && unicode.IsLower(runes[i-1]) {
		return false
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
