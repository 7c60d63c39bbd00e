package rules

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hyperjump/interviewd/internal/config"
	"github.com/hyperjump/interviewd/internal/llm"
	"github.com/hyperjump/interviewd/internal/models"
	"github.com/hyperjump/interviewd/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const structuredReply = "```json\n" + `[
  {"if": {"event": "child refuses homework", "context": "after school"}, "then": {"action": "offer a five minute break", "response": "Let's pause and try again.", "tone": "calm"}, "priority": "high", "category": "motivation"},
  {"if": {"event": "Child refuses homework"}, "then": {"action": "Offer a five minute break"}, "priority": "low"},
  {"if": {"event": "expert asks an interview question"}, "then": {"action": "answer the child"}},
  {"if": {"event": "bedtime approaches"}, "then": {"action": "dim the lights and start the routine"}, "category": "Routines"}
]` + "\n```"

var persona = config.PersonaConfig{AssistantName: "Jamie", ChildName: "Timmy"}

func testLLMConfig() config.LLMConfig {
	return config.LLMConfig{
		Extraction: config.CallConfig{Model: "text-model", MaxTokens: 1000, Temperature: 0.3},
		Structured: config.CallConfig{Model: "json-model", MaxTokens: 3000, Temperature: 0.2},
	}
}

type staticSource string

func (s staticSource) SessionContext(context.Context, string) string { return string(s) }

type recordingIndex struct {
	mu      sync.Mutex
	indexed []*models.ExtractedRule
	err     error
}

func (r *recordingIndex) IndexRules(rules []*models.ExtractedRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indexed = append(r.indexed, rules...)
	return r.err
}

func (r *recordingIndex) DeleteSession(string) error { return nil }

type pipelineFixture struct {
	store     *storage.SQLiteStorage
	completer *llm.ScriptedCompleter
	mirror    *FileMirror
	index     *recordingIndex
	session   *models.InterviewSession
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "rules.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	sess := &models.InterviewSession{
		Expert: models.ExpertInfo{Name: "Dr. Rivera", ExpertiseArea: "Child psychology"},
		State:  models.StateComplete,
	}
	now := time.Now()
	sess.Append(models.RoleInterviewer, "What do you do when homework becomes a fight?", now)
	sess.Append(models.RoleExpert, "I offer a short break and then we try again.", now)
	require.NoError(t, store.CreateSession(context.Background(), sess))

	return &pipelineFixture{
		store:     store,
		completer: llm.NewScriptedCompleter(),
		mirror:    NewFileMirror(t.TempDir()),
		index:     &recordingIndex{},
		session:   sess,
	}
}

func (f *pipelineFixture) pipeline(mode string) *Pipeline {
	ex := NewExtractor(f.completer, testLLMConfig(), persona)
	return NewPipeline(f.store, staticSource("DOCUMENT CONTEXT: reward chart"), ex, mode,
		WithMirror(f.mirror), WithIndex(f.index))
}

func TestExtractor_structuredUsesStructuredParams(t *testing.T) {
	c := llm.NewScriptedCompleter(structuredReply)
	ex := NewExtractor(c, testLLMConfig(), persona)

	got, err := ex.ExtractStructured(context.Background(), "EXPERT: hi", "")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "child refuses homework", got[0].If.Event)
	assert.Equal(t, "high", got[0].Priority, "the first duplicate wins")
	assert.Equal(t, "routines", got[1].Category)

	calls := c.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "json-model", calls[0].Params.Model)
	assert.Equal(t, llm.CallSiteStructured, calls[0].Params.CallSite)
	require.Len(t, calls[0].Messages, 2)
	assert.Equal(t, llm.RoleSystem, calls[0].Messages[0].Role)
	assert.Contains(t, calls[0].Messages[1].Content, "EXPERT: hi")
}

func TestExtractor_textSentinel(t *testing.T) {
	c := llm.NewScriptedCompleter("NONE")
	ex := NewExtractor(c, testLLMConfig(), persona)
	got, err := ex.ExtractText(context.Background(), "EXPERT: hi", "")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, "text-model", c.Calls()[0].Params.Model)
}

func TestExtractor_unparseableOutputYieldsNothing(t *testing.T) {
	ex := NewExtractor(llm.NewScriptedCompleter("Sorry, I can't help with that."), testLLMConfig(), persona)
	got, err := ex.ExtractStructured(context.Background(), "EXPERT: hi", "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestExtractor_completionError(t *testing.T) {
	c := llm.NewScriptedCompleter()
	c.PushError(errors.New("upstream down"))
	ex := NewExtractor(c, testLLMConfig(), persona)
	_, err := ex.ExtractText(context.Background(), "EXPERT: hi", "")
	assert.ErrorContains(t, err, "upstream down")
}

func TestPipeline_structuredPersistsMirrorsAndIndexes(t *testing.T) {
	f := newPipelineFixture(t)
	f.completer.Push(structuredReply)
	ctx := context.Background()

	res, err := f.pipeline(ModeStructured).Run(ctx, f.session)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Inserted)
	require.Len(t, res.Rules, 2)

	r := res.Rules[0]
	assert.Equal(t, f.session.ID, r.SessionID)
	assert.Equal(t, "Dr. Rivera", r.ExpertName)
	assert.Equal(t, models.RulePending, r.Status)
	assert.Equal(t, "child refuses homework", r.Trigger)
	assert.Equal(t, "offer a five minute break", r.Action)
	assert.True(t, strings.HasPrefix(r.Text, "When child refuses homework"))
	assert.NotNil(t, r.Structured)

	stored, err := f.store.ListRules(ctx, f.session.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	mirror, err := f.mirror.Read(f.session.ID)
	require.NoError(t, err)
	assert.Equal(t, res.MirrorPath, f.mirror.Path(f.session.ID))
	assert.Equal(t, 2, mirror.RulesCount)
	assert.Equal(t, 2, mirror.TotalMessagesProcessed)

	assert.Len(t, f.index.indexed, 2)
	assert.Contains(t, f.completer.Calls()[0].Messages[1].Content, "reward chart")
}

func TestPipeline_rerunIsDedupSafe(t *testing.T) {
	f := newPipelineFixture(t)
	f.completer.Push(structuredReply)
	f.completer.Push(structuredReply)
	ctx := context.Background()
	p := f.pipeline(ModeStructured)

	_, err := p.Run(ctx, f.session)
	require.NoError(t, err)
	res, err := p.Run(ctx, f.session)
	require.NoError(t, err)
	assert.Zero(t, res.Inserted)

	stored, err := f.store.ListRules(ctx, f.session.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestPipeline_textNoneStoresNothing(t *testing.T) {
	f := newPipelineFixture(t)
	f.completer.Push("NONE")
	ctx := context.Background()

	res, err := f.pipeline(ModeText).Run(ctx, f.session)
	require.NoError(t, err)
	assert.Empty(t, res.Rules)
	assert.Zero(t, res.Inserted)

	stored, err := f.store.ListRules(ctx, f.session.ID)
	require.NoError(t, err)
	assert.Empty(t, stored)
	assert.Empty(t, f.index.indexed)

	mirror, err := f.mirror.Read(f.session.ID)
	require.NoError(t, err)
	assert.Zero(t, mirror.RulesCount)
}

func TestPipeline_textModeOverride(t *testing.T) {
	f := newPipelineFixture(t)
	f.completer.Push("1. Jamie should offer a short break when a child fights homework\n2. NONE")

	res, err := f.pipeline(ModeStructured).RunMode(context.Background(), f.session, ModeText)
	require.NoError(t, err)
	assert.Equal(t, ModeText, res.Mode)
	require.Len(t, res.Rules, 1)
	assert.Equal(t, "Jamie should offer a short break when a child fights homework", res.Rules[0].Text)
	assert.Equal(t, "general", res.Rules[0].Category)
}

func TestPipeline_extractionErrorIsReturned(t *testing.T) {
	f := newPipelineFixture(t)
	f.completer.PushError(errors.New("timeout"))

	_, err := f.pipeline(ModeStructured).Run(context.Background(), f.session)
	assert.Error(t, err)

	_, mirrorErr := f.mirror.Read(f.session.ID)
	assert.Error(t, mirrorErr, "nothing is mirrored when extraction fails")
}

func TestPipeline_indexFailureIsNotFatal(t *testing.T) {
	f := newPipelineFixture(t)
	f.index.err = errors.New("index closed")
	f.completer.Push(structuredReply)

	res, err := f.pipeline(ModeStructured).Run(context.Background(), f.session)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Inserted)
}

func TestPipeline_unknownMode(t *testing.T) {
	f := newPipelineFixture(t)
	_, err := f.pipeline(ModeStructured).RunMode(context.Background(), f.session, "magic")
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestPipeline_purge(t *testing.T) {
	f := newPipelineFixture(t)
	f.completer.Push(structuredReply)
	ctx := context.Background()
	p := f.pipeline(ModeStructured)

	_, err := p.Run(ctx, f.session)
	require.NoError(t, err)
	n, err := p.Purge(ctx, f.session.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	stored, err := f.store.ListRules(ctx, f.session.ID)
	require.NoError(t, err)
	assert.Empty(t, stored)
}
