package rules

import (
	"testing"

	"github.com/hyperjump/interviewd/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{"array", `[{"if":{},"then":{}},{"if":{},"then":{}}]`, 2},
		{"object", `{"if":{"event":"x"},"then":{"action":"y"}}`, 1},
		{"fenced array", "Here you go:\n```json\n[{\"if\":{\"event\":\"a\"},\"then\":{\"action\":\"b\"}}]\n```", 1},
		{"embedded object", `Sure! {"if":{"event":"a"},"then":{"action":"b"}} Hope that helps.`, 1},
		{"empty array", `[]`, 0},
		{"garbage", `I could not find any rules.`, 0},
		{"broken json", `[{"if": {"event": "a"}`, 0},
		{"scalar", `42`, 0},
		{"blank", "  ", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, ParseJSON(tt.raw), tt.want)
		})
	}
}

func TestValidate(t *testing.T) {
	raw := ParseJSON(`[
		{"if": {"event": " child refuses homework ", "context": ""}, "then": {"action": "offer a short break", "tone": "calm"}, "priority": "HIGH", "category": "Motivation"},
		{"if": {"context": "after school"}, "then": {"response": "Let's take five."}, "priority": "urgent"},
		{"if": "bedtime resistance", "then": "use a visual schedule"},
		{"if": {"event": "no action"}, "then": {"tone": "warm"}},
		{"if": {"user_type": "child"}, "then": {"action": "x"}},
		{"then": {"action": "missing if"}},
		"not an object",
		{"if": {"event": "tantrum", "user_type": ""}, "then": {"action": "stay calm"}, "category": ""}
	]`)
	got := Validate(raw, nil)
	require.Len(t, got, 4)

	assert.Equal(t, models.StructuredRule{
		If:       models.RuleCondition{Event: "child refuses homework", UserType: "general"},
		Then:     models.RuleAction{Action: "offer a short break", Tone: "calm"},
		Priority: "high",
		Category: "motivation",
	}, got[0])

	assert.Equal(t, "after school", got[1].If.Context)
	assert.Equal(t, "medium", got[1].Priority, "unknown priority falls back to medium")
	assert.Equal(t, "general", got[1].Category)

	assert.Equal(t, "bedtime resistance", got[2].If.Event)
	assert.Equal(t, "use a visual schedule", got[2].Then.Action)
	assert.Equal(t, "general", got[2].If.UserType)

	assert.Equal(t, "general", got[3].If.UserType, "an explicitly empty user_type falls back to general")
	assert.Equal(t, "general", got[3].Category)
}

func TestBehaviorFilter(t *testing.T) {
	f := NewBehaviorFilter("Jamie", "Timmy")
	rule := func(event, action string) models.StructuredRule {
		return models.StructuredRule{If: models.RuleCondition{Event: event}, Then: models.RuleAction{Action: action}}
	}
	tests := []struct {
		name string
		rule models.StructuredRule
		want bool
	}{
		{"behavior", rule("child is frustrated", "lower the voice"), true},
		{"routine", rule("morning routine slips", "show the checklist"), true},
		{"interview meta", rule("expert asks an interview question", "answer the child"), false},
		{"persona definition", rule("someone asks who is Timmy", "describe the child"), false},
		{"assistant definition", rule("what is jamie", "explain the family assistant"), false},
		{"no behavior term", rule("weather is sunny", "mention the forecast"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.IsBehaviorRule(tt.rule))
		})
	}
}

func TestDedupe(t *testing.T) {
	mk := func(event, action, tone string) models.StructuredRule {
		return models.StructuredRule{
			If:   models.RuleCondition{Event: event},
			Then: models.RuleAction{Action: action, Tone: tone},
		}
	}
	in := []models.StructuredRule{
		mk("Child refuses homework", "Offer a break", "calm"),
		mk("  child   refuses homework", "offer a BREAK", "firm"),
		mk("child refuses homework", "praise effort", ""),
		mk("", "", "warm"),
		mk("bedtime", "dim the lights", ""),
	}
	got := Dedupe(in, nil)
	require.Len(t, got, 3)
	assert.Equal(t, "calm", got[0].Then.Tone, "the first rule of a signature wins")
	assert.Equal(t, "praise effort", got[1].Then.Action)
	assert.Equal(t, "bedtime", got[2].If.Event)

	seen := map[string]bool{}
	for _, r := range got {
		sig := Signature(r)
		assert.False(t, seen[sig], "duplicate signature %q", sig)
		seen[sig] = true
	}
}

func TestSignature(t *testing.T) {
	r := models.StructuredRule{If: models.RuleCondition{Event: " A  B "}, Then: models.RuleAction{Action: "C"}}
	assert.Equal(t, "a b|c", Signature(r))
	assert.Equal(t, "|", Signature(models.StructuredRule{}))
}

func TestRenderRule(t *testing.T) {
	r := models.StructuredRule{
		If:   models.RuleCondition{Event: "child refuses homework", Context: "after school"},
		Then: models.RuleAction{Action: "offer a five minute break", Response: "Let's pause and try again.", Tone: "calm"},
	}
	assert.Equal(t,
		`When child refuses homework (after school), Jamie should offer a five minute break: "Let's pause and try again." (tone: calm).`,
		RenderRule(r, "Jamie"))

	onlyResponse := models.StructuredRule{
		If:   models.RuleCondition{Context: "bedtime"},
		Then: models.RuleAction{Response: "say goodnight calmly."},
	}
	assert.Equal(t, "When bedtime, Jamie should say goodnight calmly.", RenderRule(onlyResponse, "Jamie"))
}

func TestValidateMode(t *testing.T) {
	for _, m := range []string{"", ModeStructured, ModeText} {
		assert.NoError(t, ValidateMode(m))
	}
	assert.ErrorIs(t, ValidateMode("magic"), ErrUnknownMode)
}
