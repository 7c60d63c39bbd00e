package models

import (
	"testing"
	"time"
)

func TestRuleSearchQuery_Validate(t *testing.T) {
	tests := []struct {
		name      string
		query     *RuleSearchQuery
		wantErr   bool
		wantLimit int
	}{
		{"empty query", &RuleSearchQuery{Query: ""}, true, 0},
		{"whitespace query", &RuleSearchQuery{Query: "   "}, true, 0},
		{"sets default limit", &RuleSearchQuery{Query: "bedtime"}, false, 10},
		{"caps limit at 100", &RuleSearchQuery{Query: "x", Limit: 200}, false, 100},
		{"keeps limit", &RuleSearchQuery{Query: "x", Limit: 7}, false, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && tt.query.Limit != tt.wantLimit {
				t.Errorf("limit = %d, want %d", tt.query.Limit, tt.wantLimit)
			}
		})
	}
}

func TestExpertInfo_Normalize(t *testing.T) {
	e := ExpertInfo{Name: "  Dana ", CompanionSlug: " JAMIE "}
	e.Normalize("jamie")
	if e.Name != "Dana" || e.ExpertiseArea != "General" || e.CompanionSlug != "jamie" {
		t.Errorf("unexpected normalized expert: %+v", e)
	}
	empty := ExpertInfo{}
	empty.Normalize("my_persona")
	if empty.CompanionSlug != "my_persona" {
		t.Errorf("slug = %q, want default", empty.CompanionSlug)
	}
}

func TestInterviewSession_AppendAndClone(t *testing.T) {
	s := &InterviewSession{ID: "1"}
	s.Append(RoleInterviewer, "Hi! Ready?", timeZero)
	s.Append(RoleExpert, "yes", timeZero)
	c := s.Clone()
	c.Append(RoleInterviewer, "Great.", timeZero)

	if len(s.Transcript) != 2 {
		t.Errorf("clone must not alias transcript, original has %d turns", len(s.Transcript))
	}
	if c.Transcript[2].Position != 2 {
		t.Errorf("position = %d, want 2", c.Transcript[2].Position)
	}
	if got := s.TranscriptText(); got != "INTERVIEWER: Hi! Ready?\nEXPERT: yes" {
		t.Errorf("TranscriptText() = %q", got)
	}
}

var timeZero = time.Time{}
