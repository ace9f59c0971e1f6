// Package citation implements the <CIT image_url="...">text</CIT> marker
// protocol: extracting citations from model output and rendering them as
// interactive HTML with hover previews and a shared image modal.
package citation

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Citation is one extracted marker: the evidence image and the claim text it
// backs. IDs are fresh per extraction, citations are not persisted anywhere.
type Citation struct {
	ImageURL string `json:"image_url"`
	Text     string `json:"text"`
	ID       string `json:"citation_id"`
}

// NewCitation builds a citation with a generated ID.
func NewCitation(imageURL, text string) Citation {
	id := uuid.New()
	return Citation{
		ImageURL: imageURL,
		Text:     text,
		ID:       fmt.Sprintf("citation_%x", id[:4]),
	}
}

// HasCitations reports whether text contains a citation open token. A cheap
// pre-check before the full scan; it may report true for text whose markers
// all turn out malformed.
func HasCitations(text string) bool {
	return strings.Contains(text, "<CIT")
}

// Extract returns the well-formed citations of text in document order. URLs
// and claim text are whitespace-trimmed and a single trailing "?" is stripped
// from the URL (presigned links sometimes arrive with an empty query).
func Extract(text string) []Citation {
	var citations []Citation
	scan(text, func(m match) {
		citations = append(citations, NewCitation(cleanURL(m.url), strings.TrimSpace(m.text)))
	})
	return citations
}

// Process renders text for display: each well-formed marker is replaced in
// place by its inline HTML fragment, the surrounding text is normalized for
// HTML, and the extracted citations are returned alongside. Malformed markers
// pass through as literal text.
func Process(text string) (string, []Citation) {
	var (
		out       strings.Builder
		citations []Citation
		last      int
	)
	scan(text, func(m match) {
		c := NewCitation(cleanURL(m.url), strings.TrimSpace(m.text))
		citations = append(citations, c)

		out.WriteString(normalizeNewlines(text[last:m.start]))
		out.WriteString(c.HTML())
		last = m.end
	})
	out.WriteString(normalizeNewlines(text[last:]))
	return out.String(), citations
}

// match is one well-formed marker: its attribute URL, inner text, and byte
// range [start, end) in the scanned string.
type match struct {
	url   string
	text  string
	start int
	end   int
}

// scan walks text and calls visit for each well-formed marker, left to right.
// The grammar is deliberately tiny and is matched byte by byte rather than
// with an HTML parser: open token `<CIT` + whitespace + `image_url="` + a
// non-empty quote-free URL + `">`, then non-empty text without `<`, then
// `</CIT>`. When a candidate fails to parse, scanning resumes one byte past
// its `<CIT` so overlapping candidates are still found.
func scan(text string, visit func(match)) {
	i := 0
	for {
		rel := strings.Index(text[i:], "<CIT")
		if rel < 0 {
			return
		}
		start := i + rel

		m, ok := parseAt(text, start)
		if !ok {
			i = start + 1
			continue
		}
		visit(m)
		i = m.end
	}
}

func parseAt(s string, start int) (match, bool) {
	p := start + len("<CIT")

	ws := p
	for p < len(s) && isSpace(s[p]) {
		p++
	}
	if p == ws {
		return match{}, false
	}

	const attr = `image_url="`
	if !strings.HasPrefix(s[p:], attr) {
		return match{}, false
	}
	p += len(attr)

	q := strings.IndexByte(s[p:], '"')
	if q <= 0 {
		return match{}, false
	}
	url := s[p : p+q]
	p += q + 1

	if p >= len(s) || s[p] != '>' {
		return match{}, false
	}
	p++

	lt := strings.IndexByte(s[p:], '<')
	if lt <= 0 {
		return match{}, false
	}
	text := s[p : p+lt]
	p += lt

	const closeTok = "</CIT>"
	if !strings.HasPrefix(s[p:], closeTok) {
		return match{}, false
	}

	return match{url: url, text: text, start: start, end: p + len(closeTok)}, true
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}

func cleanURL(raw string) string {
	url := strings.TrimSpace(raw)
	return strings.TrimSuffix(url, "?")
}

// normalizeNewlines converts plain text line structure into HTML. Text with
// no newlines comes back byte-identical. Blank lines separate paragraphs,
// each wrapped in <p>; remaining single newlines become <br>.
func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	if !strings.Contains(s, "\n") {
		return s
	}
	if !containsBlankLine(s) {
		return strings.ReplaceAll(s, "\n", "<br>")
	}
	return buildParagraphs(s)
}

func containsBlankLine(s string) bool {
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) == "" {
			return true
		}
	}
	return false
}

func buildParagraphs(s string) string {
	lines := strings.Split(s, "\n")

	var out strings.Builder
	var current []string
	flush := func() {
		if len(current) == 0 {
			return
		}
		out.WriteString("<p>")
		out.WriteString(strings.Join(current, "<br>"))
		out.WriteString("</p>")
		current = current[:0]
	}

	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()
	return out.String()
}
