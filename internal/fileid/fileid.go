// Package fileid derives deterministic document and chunk IDs so re-ingestion is idempotent.
package fileid

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
)

const docPrefix = "doc:"

// DocumentID returns a stable document ID for a filename uploaded to a session.
// The same session and base filename always yield the same ID.
func DocumentID(sessionID, filename string) string {
	key := sessionID + "/" + normalizeName(filename)
	hash := sha256.Sum256([]byte(key))
	return docPrefix + hex.EncodeToString(hash[:16])
}

// ChunkID returns the globally addressable chunk ID
// "{session}_{filename}_{index}_{md5(content)[:8]}".
func ChunkID(sessionID, filename string, index int, content string) string {
	sum := md5.Sum([]byte(content))
	return fmt.Sprintf("%s_%s_%d_%s", sessionID, normalizeName(filename), index, hex.EncodeToString(sum[:])[:8])
}

func normalizeName(filename string) string {
	return strings.TrimSpace(filepath.Base(filepath.Clean(filename)))
}
