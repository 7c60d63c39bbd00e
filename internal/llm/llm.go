// Package llm provides the completion gateway used for interview turns and rule extraction.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyperjump/interviewd/internal/config"
	"go.uber.org/zap"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Call sites, used to pick parameters and label metrics.
const (
	CallSiteTurn       = "turn"
	CallSiteExtraction = "extraction"
	CallSiteStructured = "structured"
)

// ErrEmptyCompletion is returned when the endpoint answers without any choice.
var ErrEmptyCompletion = errors.New("empty completion")

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Params are the per-call completion parameters. Model may be empty to use the client default.
type Params struct {
	CallSite    string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// ParamsFor builds Params for a call site from its configuration.
func ParamsFor(callSite string, c config.CallConfig) Params {
	return Params{
		CallSite:    callSite,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
		Timeout:     c.Timeout,
	}
}

// Completer produces the next assistant message for a conversation.
type Completer interface {
	Complete(ctx context.Context, messages []Message, params Params) (string, error)
}

// New creates the completer selected by cfg.Provider.
func New(cfg config.LLMConfig, logger *zap.Logger) (Completer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Provider {
	case "openai", "":
		return NewOpenAIClient(cfg, WithLogger(logger))
	case "mock":
		logger.Warn("llm using scripted completer, replies are canned")
		return NewScriptedCompleter().WithFallback("Could you tell me more about that?"), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
