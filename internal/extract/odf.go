package extract

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// odfContentPath is the main content inside every OpenDocument package.
const odfContentPath = "content.xml"

// Headings and paragraphs in document order; spans inside them are flattened.
var odfParagraph = regexp.MustCompile(`(?s)<text:(p|h)(?:\s[^>]*[^/>])?>(.*?)</text:(?:p|h)>`)

func extractODF(format string, content []byte) (string, error) {
	zr, err := openZip(content, format)
	if err != nil {
		return "", err
	}
	xml, found, err := readZipEntry(zr, odfContentPath)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", format, err)
	}
	if !found {
		return "", fmt.Errorf("extract %s: %s not found", format, odfContentPath)
	}
	return strings.Join(paragraphs(xml, odfParagraph, nil), "\n"), nil
}

func extractODT(_ context.Context, content []byte) (string, error) {
	return extractODF("ODT", content)
}

func extractODP(_ context.Context, content []byte) (string, error) {
	return extractODF("ODP", content)
}

func extractODS(_ context.Context, content []byte) (string, error) {
	return extractODF("ODS", content)
}
