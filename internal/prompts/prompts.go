// Package prompts builds the role-conditioned LLM prompts for the three
// engine phases: analyze/delegate, execute directly, and aggregate.
package prompts

import (
	"fmt"
	"strings"

	"github.com/OrgWeave/OrgWeave/internal/org"
)

// SystemPrompt is the base system prompt shared by all phases.
const SystemPrompt = `You are an AI assistant operating as part of an AI-powered organizational structure.
You represent a specific role in the organization and must act professionally and effectively.
Your responses should be structured, actionable, and appropriate for your role level.
Always respond in valid JSON format when requested.`

var roleDescriptions = map[string]string{
	org.RoleExecutive:   "a senior executive responsible for strategic decisions and overall coordination",
	org.RoleManager:     "a middle manager responsible for coordinating teams and synthesizing work",
	org.RoleAnalyst:     "an analyst responsible for detailed research, analysis, and producing findings",
	org.RoleCoordinator: "a coordinator responsible for cross-functional collaboration",
}

// Builder renders prompt strings. It is a pure function of its inputs.
type Builder struct{}

// RoleSystemPrompt returns the system prompt conditioned on the node's role.
func (Builder) RoleSystemPrompt(node *org.Node) string {
	desc, ok := roleDescriptions[node.RoleType]
	if !ok {
		desc = "a professional team member"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, %s in an AI-powered organization.\n", node.RoleName, desc)
	if node.Description != "" {
		b.WriteString(node.Description + "\n")
	}
	b.WriteString(`
Your responsibilities include:
- Analyzing tasks assigned to you
- Producing high-quality, actionable outputs
- Communicating clearly and professionally
- Following organizational protocols

Always structure your responses as JSON when requested.`)
	return b.String()
}

// AnalysisPrompt asks the node to decide between direct execution and
// delegation to its subordinates.
func (Builder) AnalysisPrompt(task *org.Task, node *org.Node, subordinates []*org.Node) string {
	var subInfo strings.Builder
	if len(subordinates) > 0 {
		subInfo.WriteString("Your direct reports:\n")
		for _, sub := range subordinates {
			desc := sub.Description
			if desc == "" {
				desc = "Available for tasks"
			}
			fmt.Fprintf(&subInfo, "  - %s (%s): %s [node_id: %s]\n", sub.RoleName, sub.RoleType, desc, sub.NodeID)
		}
	} else {
		subInfo.WriteString("You have no direct reports - you must complete tasks yourself.")
	}

	return fmt.Sprintf(`Analyze the following task and determine how to proceed.

**Task Information:**
Title: %s
Description: %s
Priority: %s
Context: %s

**Input Data:**
%s

%s

**Your Decision:**
Analyze this task and decide:
1. Can you complete this task yourself, or should you delegate to your direct reports?
2. If delegating, how should the work be divided?

Respond in JSON format:
`+"```json"+`
{
    "needs_delegation": true/false,
    "reasoning": "Your analysis of why delegation is or isn't needed",
    "delegation_plan": {
        "strategy": "parallel" or "sequential",
        "subtasks": [
            {
                "title": "Subtask title",
                "description": "What this subordinate should do",
                "assigned_to": "node_id of subordinate",
                "priority": "high/medium/low",
                "instructions": "Specific instructions"
            }
        ],
        "summary_instructions": "How to synthesize the results"
    },
    "direct_response": {
        "findings": "Your analysis",
        "recommendations": ["List of recommendations"],
        "summary": "Executive summary"
    }
}
`+"```"+`
`, task.Title, task.Description, task.Priority, formatMap(task.Context), formatMap(task.InputData), subInfo.String())
}

// ExecutionPrompt asks the node to complete the task itself.
func (Builder) ExecutionPrompt(task *org.Task, node *org.Node) string {
	desc := node.Description
	if desc == "" {
		desc = "Team member"
	}
	return fmt.Sprintf(`Execute the following task and provide your analysis.

**Your Role:** %s
**Role Description:** %s

**Task:**
Title: %s
Description: %s
Priority: %s

**Context from Manager:**
%s

**Input Data:**
%s

**Instructions:**
Analyze this task thoroughly and provide your professional findings.
Be comprehensive, accurate, and actionable.

Respond in JSON format:
`+"```json"+`
{
    "findings": {
        "summary": "Brief summary of your findings",
        "details": ["Detailed finding 1", "Detailed finding 2"],
        "data_points": ["Relevant data or facts discovered"],
        "issues_identified": ["Any problems or concerns found"]
    },
    "analysis": {
        "methodology": "How you approached this task",
        "assumptions": ["Any assumptions made"],
        "limitations": ["Limitations of your analysis"]
    },
    "recommendations": [
        {
            "recommendation": "What you recommend",
            "rationale": "Why this is recommended",
            "priority": "high/medium/low"
        }
    ],
    "summary": "Executive summary for your manager",
    "confidence_level": "high/medium/low",
    "additional_notes": "Any other relevant information"
}
`+"```"+`
`, node.RoleName, desc, task.Title, task.Description, task.Priority, formatMap(task.Context), formatMap(task.InputData))
}

// SubtaskResult carries one subordinate outcome into the aggregation prompt.
type SubtaskResult struct {
	SubtaskTitle string         `json:"subtask_title"`
	AssignedNode string         `json:"assigned_node"`
	Summary      string         `json:"summary"`
	Response     map[string]any `json:"response,omitempty"`
	Failed       bool           `json:"failed,omitempty"`
}

// AggregationPrompt asks the node to synthesize its team's responses.
func (Builder) AggregationPrompt(task *org.Task, node *org.Node, results []SubtaskResult) string {
	var responses strings.Builder
	for i, r := range results {
		summary := r.Summary
		if summary == "" {
			summary = "No summary"
		}
		fmt.Fprintf(&responses, `
**Response %d - %s:**
Summary: %s
Content: %s
---
`, i+1, r.SubtaskTitle, summary, formatMap(r.Response))
		if r.Failed {
			responses.WriteString("Note: this subtask did not complete successfully.\n")
		}
	}

	return fmt.Sprintf(`Synthesize the following responses from your team into a comprehensive report.

**Original Task:**
Title: %s
Description: %s

**Your Role:** %s

**Team Responses:**
%s

**Instructions:**
1. Review all subordinate responses
2. Identify key findings and themes
3. Note any conflicts or gaps
4. Synthesize into a coherent summary
5. Provide actionable conclusions

Respond in JSON format:
`+"```json"+`
{
    "executive_summary": "High-level summary for leadership",
    "key_findings": [
        {
            "finding": "Key finding",
            "source": "Which subordinate(s) contributed",
            "importance": "high/medium/low"
        }
    ],
    "synthesis": {
        "themes": ["Common themes identified"],
        "agreements": ["Points where subordinates agreed"],
        "conflicts": ["Any conflicting information"],
        "gaps": ["Information gaps or areas needing more research"]
    },
    "consolidated_recommendations": [
        {
            "recommendation": "Action item",
            "rationale": "Why this is recommended",
            "priority": "high/medium/low",
            "supporting_inputs": ["Which subordinate responses support this"]
        }
    ],
    "risk_assessment": {
        "identified_risks": ["Risk 1", "Risk 2"],
        "mitigation_suggestions": ["How to address risks"]
    },
    "next_steps": ["Recommended next steps"],
    "confidence_level": "high/medium/low",
    "summary": "Final summary paragraph for the report"
}
`+"```"+`
`, task.Title, task.Description, node.RoleName, responses.String())
}

func formatMap(m map[string]any) string {
	if len(m) == 0 {
		return "{}"
	}
	var b strings.Builder
	b.WriteString("{")
	first := true
	for k, v := range m {
		if !first {
			b.WriteString(", ")
		}
		first = false
		fmt.Fprintf(&b, "%q: %v", k, v)
	}
	b.WriteString("}")
	return b.String()
}
