package rules

import (
	"fmt"
	"strings"
)

// SentinelNone is the literal the text extraction prompt asks for when nothing is actionable.
const SentinelNone = "NONE"

const textSystemMessage = "You extract simple task statements from behavioral expert interviews. Return only clear, actionable statements."

const structuredSystemMessage = "You extract structured CHILD/FAMILY BEHAVIOR rules strictly from the given conversation. " +
	"Exclude meta-interview/logistics/project-definition content. Only return valid JSON."

func textPrompt(assistant, child, transcript, docContext string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are analyzing an interview with a behavioral expert to extract specific rules for %s.\n\n", assistant)
	fmt.Fprintf(&b, "**ABOUT %s:**\n", strings.ToUpper(assistant))
	fmt.Fprintf(&b, "%s is a conversational AI family assistant that helps manage children's routines, tasks, and behavior. It has three chat modes:\n", assistant)
	fmt.Fprintf(&b, "1. Parent ↔ %s (task management, progress reports)\n", assistant)
	fmt.Fprintf(&b, "2. %s (child) ↔ %s (reminders, encouragement, task completion)\n", child, assistant)
	fmt.Fprintf(&b, "3. Parent ↔ %s (capturing family instructions)\n\n", child)
	fmt.Fprintf(&b, "%s uses a zone system: Red (frustrated/stressed), Green (normal), Blue (tired/low energy).\n\n", assistant)
	b.WriteString("**EXTRACTION RULES:**\n")
	b.WriteString("- CRITICAL: Extract rules from BOTH the conversation AND any provided document content\n")
	b.WriteString("- If documents are provided, they contain valuable expert knowledge that MUST be converted into rules\n")
	b.WriteString("- If the conversation is short but documents contain rich content, extract rules primarily from the documents\n")
	b.WriteString("- ONLY extract rules if the expert provided specific behavioral advice or recommendations (from conversation OR documents)\n")
	fmt.Fprintf(&b, "- If neither conversation nor documents contain meaningful advice, return \"%s\"\n", SentinelNone)
	b.WriteString("- Ignore general interview questions and AI interviewer responses\n")
	fmt.Fprintf(&b, "- Extract actionable rules %s can implement\n", assistant)
	fmt.Fprintf(&b, "- Each rule should start with \"%s should...\"\n", assistant)
	b.WriteString("- Focus on child behavior management, communication strategies, and family dynamics\n")
	b.WriteString("- Ignore meta-conversation about the interview itself\n")
	b.WriteString("- DO NOT generate rules from your own knowledge - only from what the expert explicitly stated in conversation OR documents\n")
	b.WriteString("- Look for specific strategies, techniques, or guidelines in the documents\n")
	fmt.Fprintf(&b, "- Convert document advice into \"%s should...\" format\n\n", assistant)
	b.WriteString("**EXAMPLES:**\n")
	fmt.Fprintf(&b, "- \"%s should use calm, reassuring language when a child is in the red zone\"\n", assistant)
	fmt.Fprintf(&b, "- \"%s should break complex tasks into 2-3 smaller steps for better completion\"\n", assistant)
	fmt.Fprintf(&b, "- \"%s should offer specific praise for effort rather than general compliments\"\n\n", assistant)
	b.WriteString("**CONVERSATION:**\n")
	b.WriteString(transcript)
	b.WriteString("\n")
	b.WriteString(docContext)
	fmt.Fprintf(&b, "\n\n**IMPORTANT:** If no actionable behavioral rules can be extracted from either the conversation or documents, respond with exactly \"%s\". Do not create generic or made-up rules.\n\n", SentinelNone)
	b.WriteString("**EXTRACTED RULES:**")
	return b.String()
}

func structuredPrompt(assistant, child, transcript, docContext string) string {
	var b strings.Builder
	b.WriteString("From the following interview, extract ONLY actionable CHILD/FAMILY BEHAVIOR rules in JSON.\n\n")
	fmt.Fprintf(&b, "STRICTLY EXCLUDE: interview logistics, facilitator phrases, character definitions (%s, %s), or general chit-chat. ", assistant, child)
	fmt.Fprintf(&b, "Include only rules %s can apply for children's behavior, routines, motivation, de-escalation, rewards/consequences, communication, or parent guidance.\n\n", assistant)
	b.WriteString(`Each rule format:
{
  "if": {
    "event": "specific trigger or situation",
    "context": "additional context (only if needed)",
    "user_type": "target audience"
  },
  "then": {
    "action": "specific action to take",
    "response": "exact words or approach",
    "duration": "time duration (if applicable)",
    "tone": "communication style"
  },
  "priority": "high/medium/low",
  "category": "rule category"
}

CONVERSATION:
`)
	b.WriteString(transcript)
	if docContext != "" {
		b.WriteString("\n\n")
		b.WriteString(docContext)
	}
	b.WriteString("\n\nIf no applicable behavior rules exist, return [].")
	return b.String()
}
