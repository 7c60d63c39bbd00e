package classifier

import (
	"testing"

	"github.com/hyperjump/interviewd/internal/config"
)

func TestClassify(t *testing.T) {
	c := NewFromPersona(config.PersonaConfig{AssistantName: "Jamie", ChildName: "Timmy"})
	tests := []struct {
		msg  string
		want Label
	}{
		{"hi", LabelGreeting},
		{"Hello there!", LabelGreeting},
		{"HEY", LabelGreeting},
		{"How are you today?", LabelSmalltalk},
		{"how's it going", LabelSmalltalk},
		{"Who are you?", LabelIdentityQuestion},
		{"who is Jamie", LabelProductQuestion},
		{"So what is jamie exactly?", LabelProductQuestion},
		{"who is timmy?", LabelPersonaQuestion},
		{"What is this interview about?", LabelMetaQuestion},
		{"why am I here", LabelMetaQuestion},
		{"Hi, what is this about?", LabelGreeting},
		{"this is my answer", LabelNone},
		{"I work with children on high-stakes transitions", LabelNone},
		{"thinking about it", LabelNone},
		{"", LabelNone},
		{"   ", LabelNone},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			if got := c.Classify(tt.msg); got != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.msg, got, tt.want)
			}
		})
	}
}

func TestClassify_customAssistant(t *testing.T) {
	c := NewFromPersona(config.PersonaConfig{AssistantName: "Mr. French", ChildName: "Ava"})
	if got := c.Classify("who is mr. french"); got != LabelProductQuestion {
		t.Errorf("got %q, want product-question", got)
	}
	if got := c.Classify("who is jamie"); got != LabelNone {
		t.Errorf("got %q, want none for a different assistant", got)
	}
	if got := c.Classify("what is ava"); got != LabelPersonaQuestion {
		t.Errorf("got %q, want persona-question", got)
	}
}

func TestClassify_customTable(t *testing.T) {
	c := New([]Rule{
		{Label: LabelMetaQuestion, Phrases: []string{"agenda"}},
		{Label: LabelGreeting, Phrases: []string{"agenda please"}},
	})
	if got := c.Classify("Agenda please"); got != LabelMetaQuestion {
		t.Errorf("first matching rule should win, got %q", got)
	}
}

func TestIsAffirmative(t *testing.T) {
	c := NewFromPersona(config.PersonaConfig{AssistantName: "Jamie", ChildName: "Timmy"})
	tests := []struct {
		msg  string
		want bool
	}{
		{"yes", true},
		{"Sure, go ahead", true},
		{"Let's start", true},
		{"okay then", true},
		{"no thanks", false},
		{"yesterday was busy", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := c.IsAffirmative(tt.msg); got != tt.want {
			t.Errorf("IsAffirmative(%q) = %v, want %v", tt.msg, got, tt.want)
		}
	}
}

func TestLabelIsDetour(t *testing.T) {
	if LabelNone.IsDetour() {
		t.Error("none is not a detour")
	}
	for _, l := range []Label{LabelGreeting, LabelSmalltalk, LabelIdentityQuestion, LabelProductQuestion, LabelPersonaQuestion, LabelMetaQuestion} {
		if !l.IsDetour() {
			t.Errorf("%q should be a detour", l)
		}
	}
}
