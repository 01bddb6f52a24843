package splitter

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
)

// Section is a structurally delimited span of a document: the text of its
// heading (empty when none was found) and the body up to the next heading.
type Section struct {
	Heading string
	Body    string
}

// Semantic splits markdown text into sections along heading lines.
type Semantic struct{}

func NewSemantic() *Semantic {
	return &Semantic{}
}

// Split returns the ordered sections of text. Text before the first heading
// becomes a heading-less leading section; when no heading exists at all the
// whole input is returned as a single heading-less section.
func (s *Semantic) Split(text string) []Section {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	source := []byte(text)
	md := goldmark.New()
	doc := md.Parser().Parse(gmtext.NewReader(source))

	type mark struct {
		title string
		start int
	}
	var marks []mark
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		heading, ok := node.(*ast.Heading)
		if !ok || heading.Lines().Len() == 0 {
			continue
		}
		// Lines() points at the heading text; walk back to the start of
		// the line so the section boundary includes the marker itself.
		start := heading.Lines().At(0).Start
		for start > 0 && source[start-1] != '\n' {
			start--
		}
		// Only ATX headings delimit sections. A setext heading's first
		// line is plain text and its underline would survive into the
		// body, so it stays part of the surrounding section.
		if !isATXHeadingLine(source, start) {
			continue
		}
		marks = append(marks, mark{
			title: strings.TrimSpace(string(heading.Text(source))),
			start: start,
		})
	}

	if len(marks) == 0 {
		return []Section{{Body: strings.TrimSpace(text)}}
	}

	var sections []Section
	if lead := strings.TrimSpace(text[:marks[0].start]); lead != "" {
		sections = append(sections, Section{Body: lead})
	}
	for i, m := range marks {
		end := len(text)
		if i+1 < len(marks) {
			end = marks[i+1].start
		}
		block := strings.TrimSpace(text[m.start:end])
		if block == "" {
			continue
		}
		body := ""
		if idx := strings.IndexByte(block, '\n'); idx >= 0 {
			body = strings.TrimSpace(block[idx+1:])
		}
		sections = append(sections, Section{Heading: m.title, Body: body})
	}
	return sections
}

// isATXHeadingLine reports whether the line starting at offset opens with a
// `#` marker, allowing the up-to-three spaces of indentation markdown
// permits.
func isATXHeadingLine(source []byte, offset int) bool {
	for i := 0; i < 3 && offset < len(source) && source[offset] == ' '; i++ {
		offset++
	}
	return offset < len(source) && source[offset] == '#'
}
