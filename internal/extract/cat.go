package extract

import (
	"fmt"

	"github.com/lu4p/cat"
)

// extractCat handles ODT and RTF, which lu4p/cat reads without attribute-sensitive regexes.
func extractCat(content []byte) (string, error) {
	text, err := cat.FromBytes(content)
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	return text, nil
}
