package rules

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/hyperjump/interviewd/internal/models"
	"github.com/hyperjump/interviewd/pkg/utils"
	"go.uber.org/zap"
)

var (
	embeddedArray  = regexp.MustCompile(`(?s)\[.*\]`)
	embeddedObject = regexp.MustCompile(`(?s)\{.*\}`)
)

// ParseJSON decodes model output into a list of raw rule values. Output that is not JSON is
// scanned for an embedded array, then an embedded object. A single object becomes a one-element
// list. Anything else yields an empty list.
func ParseJSON(raw string) []any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if v, ok := decode(raw); ok {
		return asList(v)
	}
	for _, re := range []*regexp.Regexp{embeddedArray, embeddedObject} {
		if m := re.FindString(raw); m != "" {
			if v, ok := decode(m); ok {
				return asList(v)
			}
		}
	}
	return nil
}

func decode(s string) (any, bool) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	return v, true
}

func asList(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case map[string]any:
		return []any{t}
	default:
		return nil
	}
}

// Validate cleans raw rule values. A rule needs both an "if" and a "then" section, an event or
// context, and an action or response. Empty fields are dropped, a missing or empty user_type becomes general,
// priority must be high, medium or low (default medium) and category is lowercased (default general).
func Validate(raw []any, logger *zap.Logger) []models.StructuredRule {
	if logger == nil {
		logger = zap.NewNop()
	}
	var out []models.StructuredRule
	for i, item := range raw {
		obj, ok := item.(map[string]any)
		if !ok {
			logger.Debug("rules skipped non-object", zap.Int("index", i))
			continue
		}
		ifPart, hasIf := obj["if"]
		thenPart, hasThen := obj["then"]
		if !hasIf || !hasThen {
			logger.Debug("rules skipped rule without if/then", zap.Int("index", i))
			continue
		}

		var rule models.StructuredRule
		if m, ok := ifPart.(map[string]any); ok {
			rule.If = models.RuleCondition{
				Event:    field(m, "event", ""),
				Context:  field(m, "context", ""),
				UserType: field(m, "user_type", "general"),
			}
		} else {
			rule.If.Event = stringify(ifPart)
		}
		if rule.If.UserType == "" {
			rule.If.UserType = "general"
		}
		if m, ok := thenPart.(map[string]any); ok {
			rule.Then = models.RuleAction{
				Action:   field(m, "action", ""),
				Response: field(m, "response", ""),
				Duration: field(m, "duration", ""),
				Tone:     field(m, "tone", ""),
			}
		} else {
			rule.Then.Action = stringify(thenPart)
		}

		if (rule.If.Event == "" && rule.If.Context == "") || (rule.Then.Action == "" && rule.Then.Response == "") {
			logger.Debug("rules skipped rule with insufficient content", zap.Int("index", i))
			continue
		}

		rule.Priority = strings.ToLower(field(obj, "priority", "medium"))
		switch rule.Priority {
		case "high", "medium", "low":
		default:
			rule.Priority = "medium"
		}
		rule.Category = strings.ToLower(field(obj, "category", "general"))
		if rule.Category == "" {
			rule.Category = "general"
		}
		out = append(out, rule)
	}
	return out
}

// field returns m[key] as trimmed text, or def when the key is absent.
func field(m map[string]any, key, def string) string {
	v, ok := m[key]
	if !ok {
		return def
	}
	return stringify(v)
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64, bool:
		return fmt.Sprint(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// BehaviorFilter decides whether a rule is about child or family behavior rather than the
// interview itself.
type BehaviorFilter struct {
	metaTerms     []string
	behaviorTerms []string
}

// NewBehaviorFilter builds the filter; meta questions about the assistant and child persona
// are rejected alongside the fixed interview vocabulary.
func NewBehaviorFilter(assistant, child string) *BehaviorFilter {
	assistant = strings.ToLower(strings.TrimSpace(assistant))
	child = strings.ToLower(strings.TrimSpace(child))
	return &BehaviorFilter{
		metaTerms: []string{
			"interview", "question", "script", "facilitate", "introduce yourself",
			"who is " + assistant, "who is " + child, "what is " + assistant,
			"project context", "characters", "definition", "i'm here to help",
			"let's dive right in", "area of expertise", "describe your expertise",
		},
		behaviorTerms: []string{
			"child", "kid", "parent", "family", "behavior", "behaviour", "routine", "task",
			"reward", "consequence", "reinforcement", "positive", "timeout", "break",
			"homework", "bedtime", "screen", "calm", "de-escalation", "encourage", "motivate",
			"red zone", "green zone", "blue zone", "emotion", "frustrated", "angry", "upset",
			"praise", "token", "sticker", "chore", "schedule", "reminder",
		},
	}
}

// IsBehaviorRule rejects rules mentioning any meta term and requires at least one behavior term.
func (f *BehaviorFilter) IsBehaviorRule(r models.StructuredRule) bool {
	text := strings.ToLower(strings.Join([]string{
		r.If.Event, r.If.Context, r.If.UserType,
		r.Then.Action, r.Then.Response, r.Then.Duration, r.Then.Tone,
		r.Priority, r.Category,
	}, " \n "))
	for _, t := range f.metaTerms {
		if strings.Contains(text, t) {
			return false
		}
	}
	for _, t := range f.behaviorTerms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

// Signature is the dedup key of a structured rule: the normalized event and action.
func Signature(r models.StructuredRule) string {
	return utils.NormalizeKey(r.If.Event) + "|" + utils.NormalizeKey(r.Then.Action)
}

// Dedupe keeps the first rule for each signature. Rules with neither event nor action have the
// empty signature "|" and are dropped. Every collision is logged.
func Dedupe(rules []models.StructuredRule, logger *zap.Logger) []models.StructuredRule {
	if logger == nil {
		logger = zap.NewNop()
	}
	seen := make(map[string]bool, len(rules))
	out := make([]models.StructuredRule, 0, len(rules))
	for _, r := range rules {
		sig := Signature(r)
		if sig == "|" || seen[sig] {
			logger.Info("rules removed duplicate",
				zap.String("event", r.If.Event),
				zap.String("action", r.Then.Action))
			continue
		}
		seen[sig] = true
		out = append(out, r)
	}
	return out
}
