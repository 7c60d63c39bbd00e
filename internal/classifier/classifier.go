// Package classifier labels expert messages that arrive before the interview has started.
package classifier

import (
	"regexp"
	"strings"

	"github.com/hyperjump/interviewd/internal/config"
	"github.com/hyperjump/interviewd/internal/metrics"
)

// Label is the category of an inbound message.
type Label string

const (
	LabelGreeting         Label = "greeting"
	LabelSmalltalk        Label = "smalltalk"
	LabelIdentityQuestion Label = "identity-question"
	LabelProductQuestion  Label = "product-question"
	LabelPersonaQuestion  Label = "persona-question"
	LabelMetaQuestion     Label = "meta-question"
	LabelNone             Label = "none"
)

// IsDetour reports whether a message with this label gets a canned answer instead of a question.
func (l Label) IsDetour() bool {
	return l != LabelNone && l != ""
}

// Rule maps a label to the phrases that trigger it.
type Rule struct {
	Label   Label
	Phrases []string
}

var affirmatives = []string{
	"yes", "yeah", "yep", "sure", "ok", "okay", "ready", "let's start", "lets start",
	"begin", "start", "go ahead", "yup",
}

// DefaultRules returns the phrase table for the given assistant and child persona names,
// in evaluation order.
func DefaultRules(assistant, child string) []Rule {
	assistant = strings.ToLower(strings.TrimSpace(assistant))
	child = strings.ToLower(strings.TrimSpace(child))
	return []Rule{
		{LabelGreeting, []string{"hello", "hi", "hey"}},
		{LabelSmalltalk, []string{"how are you", "how r u", "how are u", "how's it going"}},
		{LabelIdentityQuestion, []string{"who are you", "who r u", "what are you"}},
		{LabelProductQuestion, []string{"who is " + assistant, "what is " + assistant}},
		{LabelPersonaQuestion, []string{"who is " + child, "what is " + child}},
		{LabelMetaQuestion, []string{
			"what is this about", "what is this interview about", "what is this interview",
			"what's this about", "why am i here", "what will you ask", "purpose of this interview",
			"what is this for",
		}},
	}
}

type compiledRule struct {
	label    Label
	patterns []*regexp.Regexp
}

// Classifier matches lowercased messages against a rule table; the first matching rule wins.
type Classifier struct {
	rules       []compiledRule
	affirmative []*regexp.Regexp
}

// New compiles rules into a Classifier.
func New(rules []Rule) *Classifier {
	c := &Classifier{affirmative: compile(affirmatives)}
	for _, r := range rules {
		c.rules = append(c.rules, compiledRule{label: r.Label, patterns: compile(r.Phrases)})
	}
	return c
}

// NewFromPersona builds the default table for the configured persona.
func NewFromPersona(p config.PersonaConfig) *Classifier {
	return New(DefaultRules(p.AssistantName, p.ChildName))
}

func compile(phrases []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(phrases))
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		out = append(out, regexp.MustCompile(`\b`+regexp.QuoteMeta(p)+`\b`))
	}
	return out
}

// Classify labels message. Empty or unmatched input is LabelNone.
func (c *Classifier) Classify(message string) Label {
	label := c.classify(message)
	metrics.ClassifierLabels.WithLabelValues(string(label)).Inc()
	return label
}

func (c *Classifier) classify(message string) Label {
	m := strings.ToLower(strings.TrimSpace(message))
	if m == "" {
		return LabelNone
	}
	for _, r := range c.rules {
		if anyMatch(m, r.patterns) {
			return r.label
		}
	}
	return LabelNone
}

// IsAffirmative reports whether message agrees to continue ("yes", "ok", "let's start", ...).
func (c *Classifier) IsAffirmative(message string) bool {
	m := strings.ToLower(strings.TrimSpace(message))
	return m != "" && anyMatch(m, c.affirmative)
}

func anyMatch(s string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}
