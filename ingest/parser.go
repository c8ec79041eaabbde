package ingest

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/lectern/lectern"
)

// CourseDocument is the parsed form of one course file: header metadata,
// lesson structure, and the raw text of each lesson body.
type CourseDocument struct {
	Course      lectern.Course
	LessonTexts map[int]string // lesson number -> body text
	Preamble    string         // text between the header and the first lesson marker
}

var (
	lessonMarkerRe = regexp.MustCompile(`(?i)^lesson\s+(\d+)\s*:\s*(.*)$`)
	lessonLinkRe   = regexp.MustCompile(`(?i)^lesson link:\s*(.*)$`)
)

// stripPrefix removes a case-insensitive "Label:" prefix from a header line
// if present, returning the trimmed remainder.
func stripPrefix(line, label string) string {
	if len(line) >= len(label) && strings.EqualFold(line[:len(label)], label) {
		return strings.TrimSpace(line[len(label):])
	}
	return strings.TrimSpace(line)
}

// ParseCourseDocument parses extracted course text. The first three non-empty
// lines form the header: title, link, instructor, each with an optional
// labeled prefix ("Course Title:", "Course Link:", "Course Instructor:").
// A lesson marker ends the header early, leaving the unreached fields empty.
// A missing or blank title makes the document malformed. Lesson sections
// start at "Lesson N:" markers; an optional "Lesson Link:" line directly
// under a marker attaches a link to that lesson. Lesson numbers must
// strictly increase. source names the document in errors.
func ParseCourseDocument(source, text string) (*CourseDocument, error) {
	lines := strings.Split(text, "\n")

	// Header: up to three non-empty lines. A lesson marker ends the header
	// early so documents without link or instructor lines do not swallow
	// their first lesson; the missing fields stay empty.
	var header []string
	rest := len(lines)
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if lessonMarkerRe.MatchString(trimmed) {
			rest = i
			break
		}
		header = append(header, trimmed)
		if len(header) == 3 {
			rest = i + 1
			break
		}
	}
	if len(header) == 0 {
		if rest < len(lines) {
			return nil, &lectern.ErrMalformedDocument{Source: source, Reason: "missing course title"}
		}
		return nil, &lectern.ErrMalformedDocument{Source: source, Reason: "empty document"}
	}

	title := lectern.NormalizeTitle(stripPrefix(header[0], "Course Title:"))
	if title == "" {
		return nil, &lectern.ErrMalformedDocument{Source: source, Reason: "missing course title"}
	}
	doc := &CourseDocument{
		Course:      lectern.Course{Title: title, CreatedAt: lectern.NowUnix()},
		LessonTexts: make(map[int]string),
	}
	if len(header) > 1 {
		doc.Course.Link = stripPrefix(header[1], "Course Link:")
	}
	if len(header) > 2 {
		doc.Course.Instructor = stripPrefix(header[2], "Course Instructor:")
	}

	// Body: partition by lesson markers.
	var (
		current  = -1 // -1 = preamble
		body     strings.Builder
		preamble strings.Builder
	)
	flush := func() {
		if current >= 0 {
			doc.LessonTexts[current] = strings.TrimSpace(body.String())
			body.Reset()
		}
	}

	for i := rest; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		if m := lessonMarkerRe.FindStringSubmatch(trimmed); m != nil {
			num, err := strconv.Atoi(m[1])
			if err == nil {
				prev := -1
				if n := len(doc.Course.Lessons); n > 0 {
					prev = doc.Course.Lessons[n-1].Number
				}
				if num <= prev {
					return nil, &lectern.ErrOutOfOrderLesson{Source: source, Number: num, Prev: prev}
				}
				flush()
				current = num
				doc.Course.Lessons = append(doc.Course.Lessons, lectern.Lesson{
					Number: num,
					Title:  strings.TrimSpace(m[2]),
				})
				continue
			}
		}

		// "Lesson Link:" directly under a marker attaches to that lesson.
		if current >= 0 && body.Len() == 0 {
			if m := lessonLinkRe.FindStringSubmatch(trimmed); m != nil {
				doc.Course.Lessons[len(doc.Course.Lessons)-1].Link = strings.TrimSpace(m[1])
				continue
			}
		}

		if current >= 0 {
			body.WriteString(line)
			body.WriteByte('\n')
		} else {
			preamble.WriteString(line)
			preamble.WriteByte('\n')
		}
	}
	flush()
	doc.Preamble = strings.TrimSpace(preamble.String())

	return doc, nil
}
