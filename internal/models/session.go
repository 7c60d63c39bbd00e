package models

import (
	"strings"
	"time"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleInterviewer Role = "interviewer"
	RoleExpert      Role = "expert"
)

// State is the interview state machine position.
type State string

const (
	StateGreeting   State = "greeting"
	StateInProgress State = "in_progress"
	StateComplete   State = "complete"
	StateExtracted  State = "extracted"
)

// Extraction status values.
const (
	ExtractionNone       = "none"
	ExtractionProcessing = "processing"
	ExtractionCompleted  = "completed"
	ExtractionFailed     = "failed"
)

// Turn is one message in a session transcript.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Position  int       `json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

// ExpertInfo identifies the interviewed expert and the assistant persona being trained.
type ExpertInfo struct {
	Name          string `json:"expert_name"`
	Email         string `json:"expert_email"`
	ExpertiseArea string `json:"expertise_area"`
	CompanionID   *int   `json:"companion_id,omitempty"`
	CompanionSlug string `json:"companion_slug,omitempty"`
}

// Normalize trims fields and fills defaults.
func (e *ExpertInfo) Normalize(defaultSlug string) {
	e.Name = strings.TrimSpace(e.Name)
	e.Email = strings.TrimSpace(e.Email)
	e.ExpertiseArea = strings.TrimSpace(e.ExpertiseArea)
	if e.ExpertiseArea == "" {
		e.ExpertiseArea = "General"
	}
	e.CompanionSlug = strings.ToLower(strings.TrimSpace(e.CompanionSlug))
	if e.CompanionSlug == "" {
		e.CompanionSlug = defaultSlug
	}
}

// ExtractionStatus tracks the post-completion rule extraction run.
type ExtractionStatus struct {
	Status      string     `json:"status"`
	RulesCount  int        `json:"rules_count"`
	Error       string     `json:"error,omitempty"`
	ExtractedAt *time.Time `json:"extracted_at,omitempty"`
}

// InterviewSession is one expert interview. Transcript is append-only and Version
// increases by one on every persisted change.
type InterviewSession struct {
	ID            string           `json:"session_id"`
	Expert        ExpertInfo       `json:"expert"`
	Transcript    []Turn           `json:"transcript"`
	QuestionIndex int              `json:"question_index"`
	State         State            `json:"state"`
	IsComplete    bool             `json:"is_complete"`
	Extraction    ExtractionStatus `json:"extraction"`
	Version       int64            `json:"version"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	CompletedAt   *time.Time       `json:"completed_at,omitempty"`
}

// Append adds a turn at the end of the transcript.
func (s *InterviewSession) Append(role Role, content string, at time.Time) {
	s.Transcript = append(s.Transcript, Turn{
		Role:      role,
		Content:   content,
		Position:  len(s.Transcript),
		CreatedAt: at,
	})
}

// Clone returns a deep copy so callers can build a new state without touching the snapshot.
func (s *InterviewSession) Clone() *InterviewSession {
	c := *s
	c.Transcript = append([]Turn(nil), s.Transcript...)
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	if s.Extraction.ExtractedAt != nil {
		t := *s.Extraction.ExtractedAt
		c.Extraction.ExtractedAt = &t
	}
	return &c
}

// TranscriptText renders the transcript as "ROLE: content" lines.
func (s *InterviewSession) TranscriptText() string {
	var b strings.Builder
	for i, t := range s.Transcript {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strings.ToUpper(string(t.Role)))
		b.WriteString(": ")
		b.WriteString(t.Content)
	}
	return b.String()
}

// SessionSummary is a listing row for a session.
type SessionSummary struct {
	ID             string     `json:"session_id"`
	ExpertName     string     `json:"expert_name"`
	ExpertiseArea  string     `json:"expertise_area"`
	QuestionsAsked int        `json:"questions_asked"`
	State          State      `json:"state"`
	IsComplete     bool       `json:"is_complete"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}
