package extract

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// docxDocumentXMLPath is the default path to the main document body inside a .docx zip.
const docxDocumentXMLPath = "word/document.xml"

// contentTypesPath is the path to [Content_Types].xml in OOXML packages.
const contentTypesPath = "[Content_Types].xml"

// docxMainContentType is the content type for the main document in DOCX files.
const docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"

var (
	// Override elements may list PartName and ContentType in either order.
	partNameRe  = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"`)
	partNameRe2 = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"[^>]+PartName="([^"]+)"`)

	wParagraph = regexp.MustCompile(`(?s)<w:p(?:\s[^>]*[^/>])?>(.*?)</w:p>`)
	wText      = regexp.MustCompile(`<w:t(?:\s[^>]*)?>([^<]*)</w:t>`)
	aParagraph = regexp.MustCompile(`(?s)<a:p(?:\s[^>]*[^/>])?>(.*?)</a:p>`)
	aText      = regexp.MustCompile(`<a:t(?:\s[^>]*)?>([^<]*)</a:t>`)
	slideName  = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
)

// docxMainPart finds the main document path from [Content_Types].xml, without a leading slash.
func docxMainPart(types string) string {
	if m := partNameRe.FindStringSubmatch(types); len(m) > 1 {
		return strings.TrimPrefix(m[1], "/")
	}
	if m := partNameRe2.FindStringSubmatch(types); len(m) > 1 {
		return strings.TrimPrefix(m[1], "/")
	}
	return ""
}

// extractDOCX returns one line per <w:p> paragraph. Parsing the runs directly keeps paragraphs
// whose start tags carry attributes, e.g. <w:p w:rsidR="...">.
func extractDOCX(_ context.Context, content []byte) (string, error) {
	zr, err := openZip(content, "DOCX")
	if err != nil {
		return "", err
	}
	docPath := docxDocumentXMLPath
	types, found, err := readZipEntry(zr, contentTypesPath)
	if err != nil {
		return "", err
	}
	if found {
		if p := docxMainPart(types); p != "" {
			docPath = p
		}
	}
	docXML, found, err := readZipEntry(zr, docPath)
	if err != nil {
		return "", err
	}
	if !found {
		return "", fmt.Errorf("extract DOCX: %s not found", docPath)
	}
	return strings.Join(paragraphs(docXML, wParagraph, wText), "\n"), nil
}

// extractPPTX returns the slides in slide-number order, one line per text paragraph and a blank
// line between slides.
func extractPPTX(_ context.Context, content []byte) (string, error) {
	zr, err := openZip(content, "PPTX")
	if err != nil {
		return "", err
	}
	type slide struct {
		num  int
		text string
	}
	var slides []slide
	for _, f := range zr.File {
		m := slideName.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		num, _ := strconv.Atoi(m[1])
		xml, err := readZipFile(f)
		if err != nil {
			return "", fmt.Errorf("extract PPTX: %w", err)
		}
		if text := strings.Join(paragraphs(xml, aParagraph, aText), "\n"); text != "" {
			slides = append(slides, slide{num: num, text: text})
		}
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })
	texts := make([]string, len(slides))
	for i, s := range slides {
		texts[i] = s.text
	}
	return strings.Join(texts, "\n\n"), nil
}
