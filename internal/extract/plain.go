package extract

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// extractPlain decodes text files. UTF-8 (with or without BOM) and BOM-marked UTF-16 are
// decoded as such; anything else that is not valid UTF-8 is read as Windows-1252, which
// also covers Latin-1 printable text.
func extractPlain(content []byte) (string, error) {
	if bytes.HasPrefix(content, utf8BOM) {
		content = content[len(utf8BOM):]
	}
	var dec *encoding.Decoder
	switch {
	case bytes.HasPrefix(content, []byte{0xFF, 0xFE}), bytes.HasPrefix(content, []byte{0xFE, 0xFF}):
		dec = unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder()
	case utf8.Valid(content):
		return string(content), nil
	default:
		dec = charmap.Windows1252.NewDecoder()
	}
	out, err := dec.Bytes(content)
	if err != nil {
		return "", fmt.Errorf("decode text: %w", err)
	}
	return string(out), nil
}
