package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db          *sql.DB
	listRetries int
	retryDelay  time.Duration
	logger      *zap.Logger
}

// Option configures a SQLiteStorage.
type Option func(*SQLiteStorage)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *SQLiteStorage) { s.logger = l }
}

// WithListRetry sets how often ListAllRules retries a failed read and the fixed delay between attempts.
func WithListRetry(retries int, delay time.Duration) Option {
	return func(s *SQLiteStorage) {
		s.listRetries = retries
		s.retryDelay = delay
	}
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string, opts ...Option) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s := &SQLiteStorage{db: db, listRetries: 3, retryDelay: time.Second, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		expert_name TEXT NOT NULL DEFAULT '',
		expert_email TEXT NOT NULL DEFAULT '',
		expertise_area TEXT NOT NULL DEFAULT 'General',
		companion_id INTEGER,
		companion_slug TEXT NOT NULL DEFAULT '',
		transcript TEXT NOT NULL DEFAULT '[]',
		question_index INTEGER NOT NULL DEFAULT 0,
		state TEXT NOT NULL,
		is_complete INTEGER NOT NULL DEFAULT 0,
		extraction_status TEXT NOT NULL DEFAULT 'none',
		rules_count INTEGER NOT NULL DEFAULT 0,
		extraction_error TEXT NOT NULL DEFAULT '',
		extracted_at TIMESTAMP,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		completed_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON sessions(created_at);

	CREATE TABLE IF NOT EXISTS documents (
		id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		title TEXT NOT NULL,
		doc_type TEXT NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		page_count INTEGER NOT NULL DEFAULT 0,
		chunk_count INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		uploaded_at TIMESTAMP NOT NULL,
		PRIMARY KEY (session_id, id)
	);

	CREATE TABLE IF NOT EXISTS rules (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		expert_name TEXT NOT NULL DEFAULT '',
		expertise_area TEXT NOT NULL DEFAULT '',
		rule_text TEXT NOT NULL,
		trigger_text TEXT NOT NULL DEFAULT '',
		action_text TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL DEFAULT '',
		priority TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		signature TEXT NOT NULL,
		structured TEXT,
		created_at TIMESTAMP NOT NULL,
		UNIQUE (session_id, signature)
	);

	CREATE INDEX IF NOT EXISTS idx_rules_session ON rules(session_id);
	CREATE INDEX IF NOT EXISTS idx_rules_status ON rules(status);
	`
	_, err := db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
