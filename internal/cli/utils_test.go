package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/interviewd/internal/models"
)

func sampleRules() []*models.ExtractedRule {
	return []*models.ExtractedRule{
		{ID: "r1", SessionID: "1", Text: "When child refuses homework, Jamie should offer a short break.", Category: "motivation", Priority: "high", Status: models.RulePending},
		{ID: "r2", SessionID: "1", Text: "When bedtime approaches, Jamie should dim the lights.", Status: models.RuleApproved},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputText, false},
		{"text", OutputText, false},
		{"JSON", OutputJSON, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestWriteRules_text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRules(&buf, sampleRules(), OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"2 rule(s)", "1. [pending] When child refuses homework", "category motivation, priority high", "id r1", "2. [approved]"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteRules_emptyJSONIsArray(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRules(&buf, nil, OutputJSON); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("got %q, want []", buf.String())
	}

	buf.Reset()
	_ = WriteRules(&buf, nil, OutputText)
	if !strings.Contains(buf.String(), "No rules.") {
		t.Errorf("got %q", buf.String())
	}
}

func TestWriteRuleSearch(t *testing.T) {
	resp := &models.RuleSearchResponse{
		Query:          "bedtme",
		CorrectedQuery: "bedtime",
		Hits:           []*models.RuleHit{{Rule: sampleRules()[1], Score: 1}},
		Total:          1,
		QueryTime:      3,
	}
	var buf bytes.Buffer
	if err := WriteRuleSearch(&buf, resp, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "Found 1 rule(s) in 3ms") || !strings.Contains(out, `Showing results for "bedtime"`) {
		t.Errorf("unexpected output:\n%s", out)
	}
	if !strings.Contains(out, "Rank: 1 | Score: 1.0000 | Session: 1") {
		t.Errorf("missing hit line:\n%s", out)
	}

	buf.Reset()
	if err := WriteRuleSearch(&buf, resp, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded models.RuleSearchResponse
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded.CorrectedQuery != "bedtime" || len(decoded.Hits) != 1 {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestWriteSessions(t *testing.T) {
	sessions := []*models.SessionSummary{{
		ID: "3", ExpertName: "Dr. Rivera", ExpertiseArea: "Sleep", QuestionsAsked: 4,
		State: models.StateInProgress, CreatedAt: time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC),
	}}
	var buf bytes.Buffer
	if err := WriteSessions(&buf, sessions, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "ID ") || !strings.Contains(out, "Dr. Rivera") || !strings.Contains(out, "2024-05-01 09:30") {
		t.Errorf("unexpected table:\n%s", out)
	}
}

func TestWriteTranscript(t *testing.T) {
	sess := &models.InterviewSession{ID: "2", Expert: models.ExpertInfo{Name: "Ana", ExpertiseArea: "General"}, State: models.StateInProgress}
	sess.Append(models.RoleInterviewer, "Hi! Shall we begin?", time.Now())
	sess.Append(models.RoleExpert, "Yes.", time.Now())

	var buf bytes.Buffer
	if err := WriteTranscript(&buf, sess, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "Interviewer: Hi! Shall we begin?") || !strings.Contains(out, "Expert: Yes.") {
		t.Errorf("unexpected transcript:\n%s", out)
	}
}

func TestWriteDocumentStats(t *testing.T) {
	stats := &models.DocumentStats{
		SessionID:   "4",
		TotalChunks: 7,
		Documents:   []models.DocumentSummary{{DocumentID: "d1", Title: "routines.pdf", DocType: "pdf", Chunks: 7}},
	}
	var buf bytes.Buffer
	if err := WriteDocumentStats(&buf, stats, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "1 document(s), 7 chunk(s)") || !strings.Contains(buf.String(), "routines.pdf") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}
