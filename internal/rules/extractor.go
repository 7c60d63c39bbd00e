// Package rules extracts, validates and deduplicates behavioral rules from finished interviews.
package rules

import (
	"context"
	"errors"
	"fmt"

	"github.com/hyperjump/interviewd/internal/config"
	"github.com/hyperjump/interviewd/internal/llm"
	"github.com/hyperjump/interviewd/internal/models"
	"go.uber.org/zap"
)

// Extraction modes.
const (
	ModeStructured = "structured"
	ModeText       = "text"
)

// ErrUnknownMode is returned for an extraction mode other than structured or text.
var ErrUnknownMode = errors.New("unknown extraction mode")

// ValidateMode accepts the extraction modes and the empty string, which selects the
// configured mode.
func ValidateMode(mode string) error {
	switch mode {
	case "", ModeStructured, ModeText:
		return nil
	}
	return fmt.Errorf("%w %q", ErrUnknownMode, mode)
}

// Extractor asks the completion gateway for rules and cleans its output. It never invents
// rules: unusable output yields an empty list.
type Extractor struct {
	completer  llm.Completer
	persona    config.PersonaConfig
	textParams llm.Params
	jsonParams llm.Params
	filter     *BehaviorFilter
	logger     *zap.Logger
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ExtractorOption {
	return func(e *Extractor) { e.logger = l }
}

// NewExtractor creates an extractor using the extraction and structured call parameters of cfg.
func NewExtractor(completer llm.Completer, cfg config.LLMConfig, persona config.PersonaConfig, opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		completer:  completer,
		persona:    persona,
		textParams: llm.ParamsFor(llm.CallSiteExtraction, cfg.Extraction),
		jsonParams: llm.ParamsFor(llm.CallSiteStructured, cfg.Structured),
		filter:     NewBehaviorFilter(persona.AssistantName, persona.ChildName),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExtractText returns free-text rule statements ("<assistant> should ...").
func (e *Extractor) ExtractText(ctx context.Context, transcript, docContext string) ([]string, error) {
	out, err := e.completer.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: textSystemMessage},
		{Role: llm.RoleUser, Content: textPrompt(e.persona.AssistantName, e.persona.ChildName, transcript, docContext)},
	}, e.textParams)
	if err != nil {
		return nil, fmt.Errorf("text extraction failed: %w", err)
	}
	statements := FilterStatements(out, e.persona.AssistantName)
	e.logger.Debug("rules text extraction", zap.Int("output_chars", len(out)), zap.Int("statements", len(statements)))
	return statements, nil
}

// ExtractStructured returns validated, behavior-only, deduplicated structured rules.
func (e *Extractor) ExtractStructured(ctx context.Context, transcript, docContext string) ([]models.StructuredRule, error) {
	out, err := e.completer.Complete(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: structuredSystemMessage},
		{Role: llm.RoleUser, Content: structuredPrompt(e.persona.AssistantName, e.persona.ChildName, transcript, docContext)},
	}, e.jsonParams)
	if err != nil {
		return nil, fmt.Errorf("structured extraction failed: %w", err)
	}

	raw := ParseJSON(out)
	if raw == nil && out != "" {
		e.logger.Warn("rules could not parse structured output", zap.Int("output_chars", len(out)))
	}
	validated := Validate(raw, e.logger)
	behavioral := make([]models.StructuredRule, 0, len(validated))
	for _, r := range validated {
		if e.filter.IsBehaviorRule(r) {
			behavioral = append(behavioral, r)
		}
	}
	unique := Dedupe(behavioral, e.logger)
	e.logger.Debug("rules structured extraction",
		zap.Int("parsed", len(raw)),
		zap.Int("valid", len(validated)),
		zap.Int("behavioral", len(behavioral)),
		zap.Int("unique", len(unique)))
	return unique, nil
}
