package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// atTag matches <a:t>text</a:t> or <a:t xml:space="preserve">text</a:t> (and any other attributes).
var atTag = regexp.MustCompile(`<a:t[^>]*>([^<]*)</a:t>`)

var (
	slidePath = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
	notesPath = "ppt/notesSlides/notesSlide%d.xml"
)

// extractPPTX returns one section per slide in slide order. Speaker notes, when present,
// are appended to their slide as "Speaker Notes: ...".
func extractPPTX(content []byte) ([]Section, error) {
	zr, err := openZip(content, "PPTX")
	if err != nil {
		return nil, err
	}
	var slides []int
	for _, f := range zr.File {
		if m := slidePath.FindStringSubmatch(f.Name); m != nil {
			n, _ := strconv.Atoi(m[1])
			slides = append(slides, n)
		}
	}
	sort.Ints(slides)

	sections := make([]Section, 0, len(slides))
	for _, n := range slides {
		name := fmt.Sprintf("ppt/slides/slide%d.xml", n)
		data, err := readZipFile(zr, name)
		if err != nil {
			return nil, fmt.Errorf("extract PPTX: %w", err)
		}
		text := joinMatches(string(data), atTag)

		notes, err := readZipFile(zr, fmt.Sprintf(notesPath, n))
		if err != nil {
			return nil, fmt.Errorf("extract PPTX: %w", err)
		}
		if noteText := joinMatches(string(notes), atTag); noteText != "" {
			text = strings.TrimSpace(text + "\n\nSpeaker Notes: " + noteText)
		}
		sections = append(sections, Section{Text: text, Slide: n})
	}
	return sections, nil
}
