package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// openDocContentPath is the main content part of OpenDocument packages.
const openDocContentPath = "content.xml"

var (
	odfTextP    = regexp.MustCompile(`<text:p[^>]*>([^<]*)</text:p>`)
	odfTextSpan = regexp.MustCompile(`<text:span[^>]*>([^<]*)</text:span>`)
	odfTextH    = regexp.MustCompile(`<text:h[^>]*>([^<]*)</text:h>`)
	odpPage     = regexp.MustCompile(`<draw:page[\s>]`)
)

func readOpenDocContent(content []byte, format string) (string, error) {
	zr, err := openZip(content, format)
	if err != nil {
		return "", err
	}
	data, err := readZipFile(zr, openDocContentPath)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", format, err)
	}
	if data == nil {
		return "", fmt.Errorf("extract %s: %s not found", format, openDocContentPath)
	}
	return string(data), nil
}

// extractODP returns one section per <draw:page>, numbered as slides.
func extractODP(content []byte) ([]Section, error) {
	s, err := readOpenDocContent(content, "ODP")
	if err != nil {
		return nil, err
	}
	pages := odpPage.Split(s, -1)
	var sections []Section
	// pages[0] is everything before the first slide.
	for i, page := range pages[1:] {
		sections = append(sections, Section{
			Text:  joinMatches(page, odfTextH, odfTextP, odfTextSpan),
			Slide: i + 1,
		})
	}
	return sections, nil
}

// extractODS extracts all cell text from an OpenDocument spreadsheet.
func extractODS(content []byte) (string, error) {
	s, err := readOpenDocContent(content, "ODS")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(joinMatches(s, odfTextP, odfTextSpan)), nil
}
