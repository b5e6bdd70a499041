package extract

import (
	"context"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

// extractPlain returns content as string, validating it is valid UTF-8.
// Invalid UTF-8 sequences are replaced with the replacement character.
func extractPlain(_ context.Context, content []byte) (string, error) {
	if !utf8.Valid(content) {
		content = []byte(strings.ToValidUTF8(string(content), "\ufffd"))
	}
	return string(content), nil
}

var (
	htmlDropped = regexp.MustCompile(`(?is)<(script|style|head)(?:\s[^>]*)?>.*?</(script|style|head)>|<!--.*?-->`)
	htmlBreak   = regexp.MustCompile(`(?i)<br\s*/?>|</(p|div|h[1-6]|li|tr|section|article|blockquote|pre)>`)
	htmlTag     = regexp.MustCompile(`<[^>]*>`)
	blankRuns   = regexp.MustCompile(`[ \t]+`)
)

// extractHTML strips markup and keeps block boundaries as newlines.
func extractHTML(ctx context.Context, content []byte) (string, error) {
	s, _ := extractPlain(ctx, content)
	s = htmlDropped.ReplaceAllString(s, "")
	s = htmlBreak.ReplaceAllString(s, "\n")
	s = htmlTag.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(blankRuns.ReplaceAllString(line, " "))
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}
