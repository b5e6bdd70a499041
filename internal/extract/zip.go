package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"
)

// maxZipEntry bounds how much of one archive member is read.
const maxZipEntry = 256 << 20

func openZip(content []byte, format string) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("extract %s: not a zip: %w", format, err)
	}
	return zr, nil
}

func readZipFile(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, maxZipEntry))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", f.Name, err)
	}
	return string(data), nil
}

// readZipEntry returns the named member, or found=false when the archive lacks it.
func readZipEntry(zr *zip.Reader, name string) (content string, found bool, err error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		content, err = readZipFile(f)
		return content, true, err
	}
	return "", false, nil
}

var anyTag = regexp.MustCompile(`<[^>]*>`)

// paragraphs extracts the text of every paragraph matched by para, in document order.
// Within a paragraph only runs matched by run are kept (or all character data when run is nil),
// concatenated without separators since runs split words arbitrarily.
func paragraphs(xml string, para, run *regexp.Regexp) []string {
	var out []string
	for _, m := range para.FindAllStringSubmatch(xml, -1) {
		inner := m[len(m)-1]
		var text string
		if run == nil {
			text = anyTag.ReplaceAllString(inner, "")
		} else {
			var b strings.Builder
			for _, r := range run.FindAllStringSubmatch(inner, -1) {
				b.WriteString(r[1])
			}
			text = b.String()
		}
		text = strings.TrimSpace(html.UnescapeString(text))
		if text != "" {
			out = append(out, text)
		}
	}
	return out
}
