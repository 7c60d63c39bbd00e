package rules

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// MirrorFile is the flat-file copy of one session's extraction.
type MirrorFile struct {
	SessionID              string    `json:"session_id"`
	ExtractedAt            time.Time `json:"extracted_at"`
	TotalMessagesProcessed int       `json:"total_messages_processed"`
	RulesCount             int       `json:"rules_count"`
	Rules                  []any     `json:"rules"`
}

// FileMirror writes extraction results to extracted_rules_{session_id}.json in a directory.
type FileMirror struct {
	dir string
}

// NewFileMirror returns a mirror rooted at dir. The directory is created on first write.
func NewFileMirror(dir string) *FileMirror {
	return &FileMirror{dir: dir}
}

// Path returns the mirror file path for a session.
func (m *FileMirror) Path(sessionID string) string {
	return filepath.Join(m.dir, fmt.Sprintf("extracted_rules_%s.json", filepath.Base(sessionID)))
}

// Write replaces the session's mirror file. The file is written to a temporary name first
// so readers never observe a partial file.
func (m *FileMirror) Write(f MirrorFile) (string, error) {
	if f.Rules == nil {
		f.Rules = []any{}
	}
	f.RulesCount = len(f.Rules)
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal rules: %w", err)
	}
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create rules dir: %w", err)
	}
	path := m.Path(f.SessionID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write rules file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("failed to move rules file: %w", err)
	}
	return path, nil
}

// Read loads a session's mirror file.
func (m *FileMirror) Read(sessionID string) (*MirrorFile, error) {
	data, err := os.ReadFile(m.Path(sessionID))
	if err != nil {
		return nil, err
	}
	var f MirrorFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}
	return &f, nil
}
