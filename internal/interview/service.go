// Package interview runs the expert interview state machine and schedules rule extraction
// when an interview completes.
package interview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hyperjump/interviewd/internal/classifier"
	"github.com/hyperjump/interviewd/internal/config"
	"github.com/hyperjump/interviewd/internal/llm"
	"github.com/hyperjump/interviewd/internal/metrics"
	"github.com/hyperjump/interviewd/internal/models"
	"github.com/hyperjump/interviewd/internal/rules"
	"github.com/hyperjump/interviewd/internal/storage"
	"go.uber.org/zap"
)

var (
	// ErrEmptyMessage is returned when a chat message is blank after trimming.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrConcurrentTurn is returned when another turn for the same session was saved first.
	ErrConcurrentTurn = errors.New("concurrent turn for session")
	// ErrCompletionFailed wraps completion gateway failures during a turn.
	ErrCompletionFailed = errors.New("failed to generate interviewer turn")
)

// ContextSource renders the document context of a session.
type ContextSource interface {
	SessionContext(ctx context.Context, sessionID string) string
}

// Reply is the result of one chat turn.
type Reply struct {
	Message        string  `json:"message"`
	QuestionNumber int     `json:"question_number"`
	IsComplete     bool    `json:"is_complete"`
	FinalNote      *string `json:"final_note"`
}

// StartResult is the opening of a new session.
type StartResult struct {
	SessionID      string `json:"session_id"`
	Message        string `json:"message"`
	QuestionNumber int    `json:"question_number"`
}

// FinalizeResult acknowledges a submitted interview.
type FinalizeResult struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// StatusResult reports the extraction progress of a session.
type StatusResult struct {
	Status      string     `json:"status"`
	RulesCount  int        `json:"rules_count"`
	ExtractedAt *time.Time `json:"extracted_at,omitempty"`
	Message     string     `json:"message,omitempty"`
}

// Service owns the interview flow. Turns are computed from a session snapshot without holding
// locks across completion calls; the write is a compare-and-swap on the session version.
type Service struct {
	store      storage.Storage
	completer  llm.Completer
	classifier *classifier.Classifier
	source     ContextSource
	runner     *Runner
	script     *Script
	config     config.InterviewConfig
	persona    config.PersonaConfig
	turnParams llm.Params
	logger     *zap.Logger
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithContextSource adds document context to generated turns.
func WithContextSource(src ContextSource) Option {
	return func(s *Service) { s.source = src }
}

// NewService creates the interview service. runner may be nil, in which case completed
// interviews are not extracted.
func NewService(store storage.Storage, completer llm.Completer, runner *Runner, cfg *config.Config, opts ...Option) *Service {
	s := &Service{
		store:      store,
		completer:  completer,
		classifier: classifier.NewFromPersona(cfg.Persona),
		runner:     runner,
		script:     NewScript(cfg.Persona),
		config:     cfg.Interview,
		persona:    cfg.Persona,
		turnParams: llm.ParamsFor(llm.CallSiteTurn, cfg.LLM.Turn),
		logger:     zap.NewNop(),
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens a session for expert and returns the introduction turn.
func (s *Service) Start(ctx context.Context, expert models.ExpertInfo) (*StartResult, error) {
	expert.Normalize(s.persona.DefaultSlug)
	now := s.now()
	sess := &models.InterviewSession{
		Expert:    expert,
		State:     models.StateGreeting,
		CreatedAt: now,
	}
	sess.Append(models.RoleInterviewer, s.script.Intro, now)
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	s.logger.Info("interview started", zap.String("session_id", sess.ID), zap.String("expert", expert.Name))
	return &StartResult{SessionID: sess.ID, Message: s.script.Intro, QuestionNumber: 0}, nil
}

// Chat records an expert message and returns the next interviewer turn.
func (s *Service) Chat(ctx context.Context, sessionID, message string) (*Reply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		metrics.TurnsTotal.WithLabelValues("rejected").Inc()
		return nil, ErrEmptyMessage
	}
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.IsComplete {
		metrics.TurnsTotal.WithLabelValues("rejected").Inc()
		return &Reply{Message: CompletedMessage, QuestionNumber: sess.QuestionIndex + 1, IsComplete: true}, nil
	}

	next := sess.Clone()
	now := s.now()

	if next.QuestionIndex == 0 {
		label := s.classifier.Classify(message)
		if label.IsDetour() {
			reply := s.script.Canned(label)
			next.Append(models.RoleExpert, message, now)
			next.Append(models.RoleInterviewer, reply, now)
			if err := s.save(ctx, next, sess.Version); err != nil {
				return nil, err
			}
			metrics.TurnsTotal.WithLabelValues("canned").Inc()
			s.logger.Debug("interview answered detour", zap.String("session_id", sessionID), zap.String("label", string(label)))
			return &Reply{Message: reply, QuestionNumber: 1}, nil
		}
		if s.config.OverviewOnAffirmative && s.classifier.IsAffirmative(message) {
			next.Append(models.RoleExpert, message, now)
			next.Append(models.RoleInterviewer, s.script.Overview, now)
			next.QuestionIndex = 1
			next.State = models.StateInProgress
			if err := s.save(ctx, next, sess.Version); err != nil {
				return nil, err
			}
			metrics.TurnsTotal.WithLabelValues("canned").Inc()
			return &Reply{Message: s.script.Overview, QuestionNumber: 2}, nil
		}
	}

	reply, err := s.generate(ctx, sess, message)
	if err != nil {
		metrics.TurnsTotal.WithLabelValues("failed").Inc()
		s.logger.Error("interview completion failed", zap.String("session_id", sessionID), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrCompletionFailed, err)
	}

	next.Append(models.RoleExpert, message, now)
	next.Append(models.RoleInterviewer, reply, now)
	next.QuestionIndex++
	next.State = models.StateInProgress

	var finalNote *string
	if s.shouldComplete(next.QuestionIndex, reply) {
		note := ClosingNote
		finalNote = &note
		next.Append(models.RoleInterviewer, note, now)
		s.markComplete(next, now)
	}

	if err := s.save(ctx, next, sess.Version); err != nil {
		return nil, err
	}
	if next.IsComplete {
		metrics.TurnsTotal.WithLabelValues("completed").Inc()
		s.logger.Info("interview complete", zap.String("session_id", sessionID), zap.Int("questions", next.QuestionIndex))
		s.schedule(sessionID)
	} else {
		metrics.TurnsTotal.WithLabelValues("generated").Inc()
	}
	return &Reply{
		Message:        reply,
		QuestionNumber: next.QuestionIndex + 1,
		IsComplete:     next.IsComplete,
		FinalNote:      finalNote,
	}, nil
}

// generate asks the completion gateway for the next interviewer turn.
func (s *Service) generate(ctx context.Context, sess *models.InterviewSession, message string) (string, error) {
	var docContext string
	if s.source != nil {
		docContext = s.source.SessionContext(ctx, sess.ID)
	}
	system := s.script.BuildSystemPrompt(PreviousQuestions(sess.Transcript, s.config.PreviousQuestions), docContext)

	messages := make([]llm.Message, 0, len(sess.Transcript)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: system})
	for _, t := range sess.Transcript {
		role := llm.RoleUser
		if t.Role == models.RoleInterviewer {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: t.Content})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: message})

	raw, err := s.completer.Complete(ctx, messages, s.turnParams)
	if err != nil {
		return "", err
	}
	reply := Sanitize(raw)
	if reply == "" {
		return "", llm.ErrEmptyCompletion
	}
	return reply, nil
}

func (s *Service) shouldComplete(index int, reply string) bool {
	if s.config.MaxQuestions > 0 && index >= s.config.MaxQuestions {
		return true
	}
	lower := strings.ToLower(reply)
	for _, k := range s.config.CompletionKeywords {
		if k != "" && strings.Contains(lower, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

func (s *Service) markComplete(sess *models.InterviewSession, now time.Time) {
	sess.IsComplete = true
	sess.State = models.StateComplete
	sess.CompletedAt = &now
	if s.runner != nil {
		sess.Extraction = models.ExtractionStatus{Status: models.ExtractionProcessing}
	}
}

func (s *Service) schedule(sessionID string) {
	if s.runner == nil {
		return
	}
	s.runner.Schedule(sessionID)
}

func (s *Service) save(ctx context.Context, sess *models.InterviewSession, expected int64) error {
	err := s.store.UpdateSession(ctx, sess, expected)
	if errors.Is(err, storage.ErrVersionConflict) {
		metrics.TurnsTotal.WithLabelValues("conflict").Inc()
		return fmt.Errorf("%w: %s", ErrConcurrentTurn, sess.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Finalize completes the interview if it is still running and starts extraction. Once an
// extraction is running or has finished, Finalize only reports its status; extracting again
// is left to Reextract.
func (s *Service) Finalize(ctx context.Context, sessionID string) (*FinalizeResult, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.IsComplete {
		switch sess.Extraction.Status {
		case models.ExtractionProcessing, models.ExtractionCompleted:
			return &FinalizeResult{Message: FinalizeMessage, Status: sess.Extraction.Status}, nil
		}
	}

	next := sess.Clone()
	if next.IsComplete {
		if s.runner != nil {
			next.Extraction = models.ExtractionStatus{Status: models.ExtractionProcessing}
		}
	} else {
		s.markComplete(next, s.now())
	}
	if err := s.save(ctx, next, sess.Version); err != nil {
		return nil, err
	}
	s.logger.Info("interview finalized", zap.String("session_id", sessionID), zap.Int("questions", next.QuestionIndex))
	s.schedule(sessionID)
	return &FinalizeResult{Message: FinalizeMessage, Status: models.ExtractionProcessing}, nil
}

// Get returns a session with its transcript.
func (s *Service) Get(ctx context.Context, sessionID string) (*models.InterviewSession, error) {
	return s.store.GetSession(ctx, sessionID)
}

// List returns session summaries, newest first.
func (s *Service) List(ctx context.Context, offset, limit int) ([]*models.SessionSummary, error) {
	return s.store.ListSessions(ctx, offset, limit)
}

// Status reports the extraction progress of a session.
func (s *Service) Status(ctx context.Context, sessionID string) (*StatusResult, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !sess.IsComplete {
		return &StatusResult{Status: string(models.StateInProgress)}, nil
	}
	res := &StatusResult{
		Status:      sess.Extraction.Status,
		RulesCount:  sess.Extraction.RulesCount,
		ExtractedAt: sess.Extraction.ExtractedAt,
	}
	switch sess.Extraction.Status {
	case models.ExtractionFailed:
		res.Message = ExtractionFailedMessage
	case models.ExtractionProcessing, models.ExtractionNone:
		res.Message = FinalizeMessage
	}
	return res, nil
}

// Rules returns the persisted rules of a session.
func (s *Service) Rules(ctx context.Context, sessionID string) ([]*models.ExtractedRule, error) {
	if _, err := s.store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.store.ListRules(ctx, sessionID)
}

// Reextract replaces a session's rules with a fresh synchronous extraction.
func (s *Service) Reextract(ctx context.Context, sessionID, mode string) (*rules.Result, error) {
	if s.runner == nil {
		return nil, errors.New("rule extraction is not configured")
	}
	return s.runner.Rerun(ctx, sessionID, mode)
}
