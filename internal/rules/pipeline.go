package rules

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/interviewd/internal/metrics"
	"github.com/hyperjump/interviewd/internal/models"
	"github.com/hyperjump/interviewd/internal/storage"
	"github.com/hyperjump/interviewd/pkg/utils"
	"go.uber.org/zap"
)

// ContextSource renders the document context of a session.
type ContextSource interface {
	SessionContext(ctx context.Context, sessionID string) string
}

// RuleIndex receives persisted rules for full-text search.
type RuleIndex interface {
	IndexRules(rules []*models.ExtractedRule) error
	DeleteSession(sessionID string) error
}

// Result describes one extraction run.
type Result struct {
	SessionID  string                  `json:"session_id"`
	Mode       string                  `json:"mode"`
	Rules      []*models.ExtractedRule `json:"rules"`
	Inserted   int                     `json:"inserted"`
	MirrorPath string                  `json:"mirror_path,omitempty"`
}

// Pipeline runs extraction for a session and fans the rules out to the durable store, the
// flat-file mirror and the keyword index. The side effects are independent: each one is
// attempted and logged on its own.
type Pipeline struct {
	store     storage.Storage
	source    ContextSource
	extractor *Extractor
	mirror    *FileMirror
	index     RuleIndex
	mode      string
	assistant string
	logger    *zap.Logger
	now       func() time.Time
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithPipelineLogger sets the logger.
func WithPipelineLogger(l *zap.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

// WithMirror mirrors every run to m.
func WithMirror(m *FileMirror) PipelineOption {
	return func(p *Pipeline) { p.mirror = m }
}

// WithIndex indexes persisted rules in idx.
func WithIndex(idx RuleIndex) PipelineOption {
	return func(p *Pipeline) { p.index = idx }
}

// NewPipeline creates a pipeline running mode (structured when empty).
func NewPipeline(store storage.Storage, source ContextSource, extractor *Extractor, mode string, opts ...PipelineOption) *Pipeline {
	if mode == "" {
		mode = ModeStructured
	}
	p := &Pipeline{
		store:     store,
		source:    source,
		extractor: extractor,
		mode:      mode,
		assistant: extractor.persona.AssistantName,
		logger:    zap.NewNop(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Mode returns the configured extraction mode.
func (p *Pipeline) Mode() string {
	return p.mode
}

// Run extracts rules from sess using the configured mode.
func (p *Pipeline) Run(ctx context.Context, sess *models.InterviewSession) (*Result, error) {
	return p.RunMode(ctx, sess, p.mode)
}

// RunMode extracts rules from sess using mode. An extraction failure is returned as is. When
// rules were extracted, the run fails only if neither the store nor the mirror kept them.
func (p *Pipeline) RunMode(ctx context.Context, sess *models.InterviewSession, mode string) (*Result, error) {
	if mode == "" {
		mode = p.mode
	}
	transcript := sess.TranscriptText()
	var docContext string
	if p.source != nil {
		docContext = p.source.SessionContext(ctx, sess.ID)
	}

	extracted, payload, err := p.extract(ctx, sess, mode, transcript, docContext)
	if err != nil {
		metrics.ExtractionRuns.WithLabelValues("error").Inc()
		p.logger.Error("rules extraction failed", zap.String("session_id", sess.ID), zap.String("mode", mode), zap.Error(err))
		return nil, err
	}
	metrics.RulesExtracted.WithLabelValues(mode).Add(float64(len(extracted)))

	res := &Result{SessionID: sess.ID, Mode: mode, Rules: extracted}

	var storeErr, mirrorErr error
	if len(extracted) > 0 {
		res.Inserted, storeErr = p.store.InsertRules(ctx, extracted)
		if storeErr != nil {
			p.logger.Error("rules persistence failed", zap.String("session_id", sess.ID), zap.Error(storeErr))
		}
	}
	if p.mirror != nil {
		res.MirrorPath, mirrorErr = p.mirror.Write(MirrorFile{
			SessionID:              sess.ID,
			ExtractedAt:            p.now(),
			TotalMessagesProcessed: len(sess.Transcript),
			Rules:                  payload,
		})
		if mirrorErr != nil {
			p.logger.Error("rules mirror failed", zap.String("session_id", sess.ID), zap.Error(mirrorErr))
		}
	}
	if p.index != nil && storeErr == nil && len(extracted) > 0 {
		p.indexSession(ctx, sess.ID)
	}

	if storeErr != nil && (p.mirror == nil || mirrorErr != nil) {
		metrics.ExtractionRuns.WithLabelValues("error").Inc()
		return res, fmt.Errorf("failed to save extracted rules: %w", errors.Join(storeErr, mirrorErr))
	}
	if len(extracted) == 0 {
		metrics.ExtractionRuns.WithLabelValues("empty").Inc()
	} else {
		metrics.ExtractionRuns.WithLabelValues("success").Inc()
	}
	p.logger.Info("rules extracted",
		zap.String("session_id", sess.ID),
		zap.String("mode", mode),
		zap.Int("rules", len(extracted)),
		zap.Int("inserted", res.Inserted),
		zap.Int("messages", len(sess.Transcript)))
	return res, nil
}

// Purge removes a session's stored and indexed rules ahead of a fresh extraction.
func (p *Pipeline) Purge(ctx context.Context, sessionID string) (int, error) {
	n, err := p.store.DeleteSessionRules(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete rules: %w", err)
	}
	if p.index != nil {
		if err := p.index.DeleteSession(sessionID); err != nil {
			p.logger.Warn("rules index purge failed", zap.String("session_id", sessionID), zap.Error(err))
		}
	}
	return n, nil
}

// indexSession re-indexes the session's persisted rules, so the index holds the stored ids
// even when some inserts were ignored as duplicates.
func (p *Pipeline) indexSession(ctx context.Context, sessionID string) {
	stored, err := p.store.ListRules(ctx, sessionID)
	if err != nil {
		p.logger.Warn("rules index skipped, could not list rules", zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	if err := p.index.IndexRules(stored); err != nil {
		p.logger.Warn("rules index failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}

func (p *Pipeline) extract(ctx context.Context, sess *models.InterviewSession, mode, transcript, docContext string) ([]*models.ExtractedRule, []any, error) {
	now := p.now()
	base := func() *models.ExtractedRule {
		return &models.ExtractedRule{
			ID:            uuid.New().String(),
			SessionID:     sess.ID,
			ExpertName:    sess.Expert.Name,
			ExpertiseArea: sess.Expert.ExpertiseArea,
			Status:        models.RulePending,
			CreatedAt:     now,
		}
	}

	switch mode {
	case ModeText:
		statements, err := p.extractor.ExtractText(ctx, transcript, docContext)
		if err != nil {
			return nil, nil, err
		}
		rules := make([]*models.ExtractedRule, 0, len(statements))
		payload := make([]any, 0, len(statements))
		for _, s := range statements {
			r := base()
			r.Text = s
			r.Category = "general"
			r.Priority = "medium"
			r.Signature = utils.NormalizeKey(s)
			rules = append(rules, r)
			payload = append(payload, s)
		}
		return rules, payload, nil
	case ModeStructured:
		structured, err := p.extractor.ExtractStructured(ctx, transcript, docContext)
		if err != nil {
			return nil, nil, err
		}
		rules := make([]*models.ExtractedRule, 0, len(structured))
		payload := make([]any, 0, len(structured))
		for i := range structured {
			s := structured[i]
			r := base()
			r.Structured = &s
			r.Trigger = firstNonEmpty(s.If.Event, s.If.Context)
			r.Action = firstNonEmpty(s.Then.Action, s.Then.Response)
			r.Category = s.Category
			r.Priority = s.Priority
			r.Signature = Signature(s)
			r.Text = RenderRule(s, p.assistant)
			rules = append(rules, r)
			payload = append(payload, s)
		}
		return rules, payload, nil
	default:
		return nil, nil, fmt.Errorf("%w %q", ErrUnknownMode, mode)
	}
}

// RenderRule phrases a structured rule as a single sentence naming the assistant.
func RenderRule(r models.StructuredRule, assistant string) string {
	var b strings.Builder
	trigger := firstNonEmpty(r.If.Event, r.If.Context)
	b.WriteString("When ")
	b.WriteString(strings.TrimRight(trigger, "."))
	if r.If.Event != "" && r.If.Context != "" {
		b.WriteString(" (")
		b.WriteString(r.If.Context)
		b.WriteString(")")
	}
	b.WriteString(", ")
	if assistant != "" {
		b.WriteString(assistant)
		b.WriteString(" should ")
	}
	action := firstNonEmpty(r.Then.Action, r.Then.Response)
	b.WriteString(strings.TrimRight(action, "."))
	if r.Then.Action != "" && r.Then.Response != "" {
		b.WriteString(`: "`)
		b.WriteString(strings.Trim(r.Then.Response, `"`))
		b.WriteString(`"`)
	}
	if r.Then.Tone != "" {
		b.WriteString(" (tone: ")
		b.WriteString(r.Then.Tone)
		b.WriteString(")")
	}
	b.WriteString(".")
	return b.String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
