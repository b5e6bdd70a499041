package indexer

import (
	"regexp"
	"strings"
)

var blankRuns = regexp.MustCompile(`\n{3,}`)

// Normalize prepares extracted text for splitting: CRLF becomes LF, trailing spaces are trimmed
// from each line, runs of blank lines collapse to one, and the result is trimmed.
// Paragraph and line breaks survive so the splitter can prefer them.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t ")
	}
	text = strings.Join(lines, "\n")
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
