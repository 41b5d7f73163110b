// Package sanitize cleans text that crosses the MCP boundary. Identifiers
// sent by agents are trimmed and stripped of control characters; labels
// taken from domain files are flattened before they are rendered into
// markdown an agent will read.
package sanitize

import (
	"regexp"
	"strings"
)

// MaxIdentifierLength bounds competence and unit identifiers.
const MaxIdentifierLength = 128

// MaxLabelLength bounds titles rendered into agent-facing markdown.
const MaxLabelLength = 120

var (
	// reTag matches XML/HTML tags and processing instructions.
	reTag = regexp.MustCompile(`<[/?!]?[a-zA-Z][a-zA-Z0-9]*(?:\s+[^>]*)?/?>|<\?[^?]*\?>`)

	// reHeading matches markdown heading markers anywhere in a flattened label.
	reHeading = regexp.MustCompile(`#{1,6}\s+`)

	// reBackticks matches runs of two or more backticks.
	reBackticks = regexp.MustCompile("`{2,}")

	reSpaces = regexp.MustCompile(`\s{2,}`)
)

// Identifier trims surrounding whitespace and removes every control
// character. Identifiers longer than MaxIdentifierLength are cut.
// The result is compared against the graph as-is; no case folding.
func Identifier(input string) string {
	s := strings.TrimSpace(stripControlChars(input, false))
	if len(s) > MaxIdentifierLength {
		s = s[:MaxIdentifierLength]
	}
	return s
}

// Label flattens a title to one line of plain text: control characters,
// tags and heading markers are removed, backtick runs collapse to one and
// whitespace collapses to single spaces. Long labels end in "...".
func Label(input string) string {
	if input == "" {
		return ""
	}
	s := stripControlChars(input, true)
	s = reTag.ReplaceAllString(s, "")
	s = reHeading.ReplaceAllString(s, "")
	s = reBackticks.ReplaceAllString(s, "`")
	s = strings.TrimSpace(reSpaces.ReplaceAllString(s, " "))
	if len(s) > MaxLabelLength {
		s = s[:MaxLabelLength] + "..."
	}
	return s
}

// stripControlChars drops ASCII control characters. With keepSpace set,
// newlines and tabs become spaces instead of being dropped.
func stripControlChars(s string, keepSpace bool) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			if keepSpace && (r == '\n' || r == '\t' || r == '\r') {
				b.WriteByte(' ')
			}
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
