package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/hyperjump/interviewd/internal/models"
)

const sessionColumns = `id, expert_name, expert_email, expertise_area, companion_id, companion_slug,
	transcript, question_index, state, is_complete, extraction_status, rules_count, extraction_error,
	extracted_at, version, created_at, updated_at, completed_at`

// CreateSession inserts s, assigning the next monotonically increasing id and version 1.
func (s *SQLiteStorage) CreateSession(ctx context.Context, sess *models.InterviewSession) error {
	transcript, err := json.Marshal(nonNilTurns(sess.Transcript))
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %w", err)
	}
	now := time.Now().UTC()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	sess.UpdatedAt = now
	sess.Version = 1
	if sess.Extraction.Status == "" {
		sess.Extraction.Status = models.ExtractionNone
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (expert_name, expert_email, expertise_area, companion_id, companion_slug,
			transcript, question_index, state, is_complete, extraction_status, rules_count, extraction_error,
			extracted_at, version, created_at, updated_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.Expert.Name, sess.Expert.Email, sess.Expert.ExpertiseArea, nullInt(sess.Expert.CompanionID),
		sess.Expert.CompanionSlug, string(transcript), sess.QuestionIndex, string(sess.State), sess.IsComplete,
		sess.Extraction.Status, sess.Extraction.RulesCount, sess.Extraction.Error, nullTime(sess.Extraction.ExtractedAt),
		sess.Version, sess.CreatedAt, sess.UpdatedAt, nullTime(sess.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read session id: %w", err)
	}
	sess.ID = strconv.FormatInt(id, 10)
	return nil
}

// GetSession returns the session with its full transcript.
func (s *SQLiteStorage) GetSession(ctx context.Context, id string) (*models.InterviewSession, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, n)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// ListSessions returns session summaries, newest first.
func (s *SQLiteStorage) ListSessions(ctx context.Context, offset, limit int) ([]*models.SessionSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions ORDER BY id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.SessionSummary
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, &models.SessionSummary{
			ID:             sess.ID,
			ExpertName:     sess.Expert.Name,
			ExpertiseArea:  sess.Expert.ExpertiseArea,
			QuestionsAsked: sess.QuestionIndex,
			State:          sess.State,
			IsComplete:     sess.IsComplete,
			CreatedAt:      sess.CreatedAt,
			CompletedAt:    sess.CompletedAt,
		})
	}
	return out, rows.Err()
}

// UpdateSession is a compare-and-swap on version.
func (s *SQLiteStorage) UpdateSession(ctx context.Context, sess *models.InterviewSession, expectedVersion int64) error {
	n, err := strconv.ParseInt(sess.ID, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sess.ID)
	}
	transcript, err := json.Marshal(nonNilTurns(sess.Transcript))
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %w", err)
	}
	updated := time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET transcript = ?, question_index = ?, state = ?, is_complete = ?,
			extraction_status = ?, rules_count = ?, extraction_error = ?, extracted_at = ?,
			completed_at = ?, updated_at = ?, version = version + 1
		 WHERE id = ? AND version = ?`,
		string(transcript), sess.QuestionIndex, string(sess.State), sess.IsComplete,
		sess.Extraction.Status, sess.Extraction.RulesCount, sess.Extraction.Error, nullTime(sess.Extraction.ExtractedAt),
		nullTime(sess.CompletedAt), updated, n, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE id = ?`, n).Scan(&exists); err == nil && exists == 0 {
			return fmt.Errorf("%w: %s", ErrSessionNotFound, sess.ID)
		}
		return fmt.Errorf("%w: session %s is no longer at version %d", ErrVersionConflict, sess.ID, expectedVersion)
	}
	sess.Version = expectedVersion + 1
	sess.UpdatedAt = updated
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.InterviewSession, error) {
	var (
		sess        models.InterviewSession
		id          int64
		companionID sql.NullInt64
		transcript  string
		state       string
		extractedAt sql.NullTime
		completedAt sql.NullTime
	)
	err := row.Scan(&id, &sess.Expert.Name, &sess.Expert.Email, &sess.Expert.ExpertiseArea, &companionID,
		&sess.Expert.CompanionSlug, &transcript, &sess.QuestionIndex, &state, &sess.IsComplete,
		&sess.Extraction.Status, &sess.Extraction.RulesCount, &sess.Extraction.Error, &extractedAt,
		&sess.Version, &sess.CreatedAt, &sess.UpdatedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	sess.ID = strconv.FormatInt(id, 10)
	sess.State = models.State(state)
	if companionID.Valid {
		v := int(companionID.Int64)
		sess.Expert.CompanionID = &v
	}
	sess.Extraction.ExtractedAt = timePtr(extractedAt)
	sess.CompletedAt = timePtr(completedAt)
	if err := json.Unmarshal([]byte(transcript), &sess.Transcript); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transcript of session %d: %w", id, err)
	}
	return &sess, nil
}

func nonNilTurns(t []models.Turn) []models.Turn {
	if t == nil {
		return []models.Turn{}
	}
	return t
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
