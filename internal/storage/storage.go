// Package storage defines durable persistence for interview sessions, documents and extracted rules.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/interviewd/internal/models"
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrDocumentNotFound = errors.New("document not found")
	ErrRuleNotFound     = errors.New("rule not found")
	// ErrVersionConflict is returned by UpdateSession when the stored version moved on.
	ErrVersionConflict   = errors.New("session version conflict")
	ErrInvalidRuleStatus = errors.New("invalid rule status")
)

// Storage defines session, document and rule persistence operations.
// Every document and rule operation is scoped by session id.
type Storage interface {
	// Session operations
	CreateSession(ctx context.Context, s *models.InterviewSession) error
	GetSession(ctx context.Context, id string) (*models.InterviewSession, error)
	ListSessions(ctx context.Context, offset, limit int) ([]*models.SessionSummary, error)
	// UpdateSession writes s only if the stored version equals expectedVersion, then sets
	// s.Version to expectedVersion+1.
	UpdateSession(ctx context.Context, s *models.InterviewSession, expectedVersion int64) error

	// Document operations
	UpsertDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, sessionID, id string) (*models.Document, error)
	ListDocuments(ctx context.Context, sessionID string) ([]*models.Document, error)
	DeleteDocument(ctx context.Context, sessionID, id string) error
	DeleteSessionDocuments(ctx context.Context, sessionID string) (int, error)

	// Rule operations
	// InsertRules skips rules whose (session_id, signature) already exists and returns how many were inserted.
	InsertRules(ctx context.Context, rules []*models.ExtractedRule) (int, error)
	ListRules(ctx context.Context, sessionID string) ([]*models.ExtractedRule, error)
	ListAllRules(ctx context.Context) ([]*models.ExtractedRule, error)
	GetRule(ctx context.Context, id string) (*models.ExtractedRule, error)
	UpdateRuleStatus(ctx context.Context, id, status string) error
	DeleteSessionRules(ctx context.Context, sessionID string) (int, error)

	// Stats
	Stats(ctx context.Context) (*models.RuleStats, error)

	Close() error
}
