package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/interviewd/internal/models"
	"go.uber.org/zap"
)

const ruleColumns = `id, session_id, expert_name, expertise_area, rule_text, trigger_text, action_text,
	category, priority, status, signature, structured, created_at`

// InsertRules inserts rules in one transaction. Rules whose (session_id, signature) is already
// stored are skipped, so re-running extraction for a session never duplicates rules.
func (s *SQLiteStorage) InsertRules(ctx context.Context, rules []*models.ExtractedRule) (int, error) {
	if len(rules) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO rules (`+ruleColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	inserted := 0
	for _, r := range rules {
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		if r.Status == "" {
			r.Status = models.RulePending
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		var structured sql.NullString
		if r.Structured != nil {
			b, err := json.Marshal(r.Structured)
			if err != nil {
				return 0, fmt.Errorf("failed to marshal structured rule: %w", err)
			}
			structured = sql.NullString{String: string(b), Valid: true}
		}
		res, err := stmt.ExecContext(ctx, r.ID, r.SessionID, r.ExpertName, r.ExpertiseArea, r.Text, r.Trigger,
			r.Action, r.Category, r.Priority, r.Status, r.Signature, structured, r.CreatedAt)
		if err != nil {
			return 0, fmt.Errorf("failed to insert rule: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// ListRules returns the rules of one session in insertion order.
func (s *SQLiteStorage) ListRules(ctx context.Context, sessionID string) ([]*models.ExtractedRule, error) {
	return s.queryRules(ctx, `SELECT `+ruleColumns+` FROM rules WHERE session_id = ? ORDER BY created_at, rowid`, sessionID)
}

// ListAllRules returns every rule, newest first. Failed reads are retried with a fixed delay.
func (s *SQLiteStorage) ListAllRules(ctx context.Context) ([]*models.ExtractedRule, error) {
	var lastErr error
	for attempt := 0; attempt <= s.listRetries; attempt++ {
		if attempt > 0 {
			s.logger.Warn("storage retrying rule listing", zap.Int("attempt", attempt), zap.Error(lastErr))
			select {
			case <-time.After(s.retryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		rules, err := s.queryRules(ctx, `SELECT `+ruleColumns+` FROM rules ORDER BY created_at DESC, rowid DESC`)
		if err == nil {
			return rules, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("failed to list rules after %d attempts: %w", s.listRetries+1, lastErr)
}

// GetRule returns a rule by id.
func (s *SQLiteStorage) GetRule(ctx context.Context, id string) (*models.ExtractedRule, error) {
	rules, err := s.queryRules(ctx, `SELECT `+ruleColumns+` FROM rules WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	return rules[0], nil
}

// UpdateRuleStatus sets the approval status of a rule.
func (s *SQLiteStorage) UpdateRuleStatus(ctx context.Context, id, status string) error {
	switch status {
	case models.RulePending, models.RuleApproved, models.RuleRejected:
	default:
		return fmt.Errorf("%w %q", ErrInvalidRuleStatus, status)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE rules SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	return nil
}

// DeleteSessionRules removes every rule of a session.
func (s *SQLiteStorage) DeleteSessionRules(ctx context.Context, sessionID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rules WHERE session_id = ?`, sessionID)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Stats aggregates interview and rule counts.
func (s *SQLiteStorage) Stats(ctx context.Context) (*models.RuleStats, error) {
	var st models.RuleStats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(is_complete), 0) FROM sessions`,
	).Scan(&st.TotalInterviews, &st.CompletedInterviews)
	if err != nil {
		return nil, fmt.Errorf("failed to count sessions: %w", err)
	}
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
			COALESCE(SUM(status = 'pending'), 0),
			COALESCE(SUM(status = 'approved'), 0),
			COALESCE(SUM(status = 'rejected'), 0)
		 FROM rules`,
	).Scan(&st.TotalRules, &st.PendingRules, &st.ApprovedRules, &st.RejectedRules)
	if err != nil {
		return nil, fmt.Errorf("failed to count rules: %w", err)
	}
	return &st, nil
}

func (s *SQLiteStorage) queryRules(ctx context.Context, query string, args ...any) ([]*models.ExtractedRule, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*models.ExtractedRule
	for rows.Next() {
		var (
			r          models.ExtractedRule
			structured sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.SessionID, &r.ExpertName, &r.ExpertiseArea, &r.Text, &r.Trigger, &r.Action,
			&r.Category, &r.Priority, &r.Status, &r.Signature, &structured, &r.CreatedAt); err != nil {
			return nil, err
		}
		if structured.Valid && structured.String != "" {
			var sr models.StructuredRule
			if err := json.Unmarshal([]byte(structured.String), &sr); err != nil {
				return nil, fmt.Errorf("failed to unmarshal structured rule %s: %w", r.ID, err)
			}
			r.Structured = &sr
		}
		rules = append(rules, &r)
	}
	return rules, rows.Err()
}
