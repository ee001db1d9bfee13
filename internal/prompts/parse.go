package prompts

import (
	"encoding/json"
	"strings"
)

// ParseResponse extracts the JSON object from an LLM completion. It
// accepts a fenced ```json block or a bare object. Anything else degrades
// to {"text_response": <raw>, "needs_delegation": false} so a confused
// model can never crash a task.
func ParseResponse(text string) map[string]any {
	if idx := strings.Index(text, "```json"); idx >= 0 {
		rest := text[idx+len("```json"):]
		if end := strings.Index(rest, "```"); end >= 0 {
			if m := tryUnmarshal(rest[:end]); m != nil {
				return m
			}
		}
	}
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "{") {
		if m := tryUnmarshal(trimmed); m != nil {
			return m
		}
	}
	return map[string]any{"text_response": text, "needs_delegation": false}
}

func tryUnmarshal(s string) map[string]any {
	var m map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &m); err != nil {
		return nil
	}
	return m
}
