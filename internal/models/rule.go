package models

import "time"

// Rule approval status values.
const (
	RulePending  = "pending"
	RuleApproved = "approved"
	RuleRejected = "rejected"
)

// RuleCondition is the trigger half of a structured rule.
type RuleCondition struct {
	Event    string `json:"event,omitempty"`
	Context  string `json:"context,omitempty"`
	UserType string `json:"user_type,omitempty"`
}

// RuleAction is the response half of a structured rule.
type RuleAction struct {
	Action   string `json:"action,omitempty"`
	Response string `json:"response,omitempty"`
	Duration string `json:"duration,omitempty"`
	Tone     string `json:"tone,omitempty"`
}

// StructuredRule is the JSON rule shape produced by structured extraction.
type StructuredRule struct {
	If       RuleCondition `json:"if"`
	Then     RuleAction    `json:"then"`
	Priority string        `json:"priority"`
	Category string        `json:"category"`
}

// ExtractedRule is a persisted behavioral rule derived from one session.
type ExtractedRule struct {
	ID            string          `json:"id"`
	SessionID     string          `json:"session_id"`
	ExpertName    string          `json:"expert_name"`
	ExpertiseArea string          `json:"expertise_area"`
	Text          string          `json:"rule_text"`
	Trigger       string          `json:"trigger,omitempty"`
	Action        string          `json:"action,omitempty"`
	Category      string          `json:"category,omitempty"`
	Priority      string          `json:"priority,omitempty"`
	Status        string          `json:"status"`
	Signature     string          `json:"signature"`
	Structured    *StructuredRule `json:"structured,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// RuleStats aggregates rule and interview counts for the dashboard.
type RuleStats struct {
	TotalInterviews     int `json:"total_interviews"`
	CompletedInterviews int `json:"completed_interviews"`
	TotalRules          int `json:"total_rules"`
	PendingRules        int `json:"pending_rules"`
	ApprovedRules       int `json:"approved_rules"`
	RejectedRules       int `json:"rejected_rules"`
}
