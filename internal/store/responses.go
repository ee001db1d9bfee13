package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/OrgWeave/OrgWeave/internal/org"
)

const responseColumns = `response_id, task_id, node_id, response_type, content, summary, reasoning,
	confidence_score, quality_score, is_human_modified, original_ai_content,
	modification_reason, modified_by, modified_at, created_at`

// SaveResponse appends a response. Responses are never updated in place;
// a human correction arrives as a new human_override row.
func (s *Store) SaveResponse(r *org.Response) error {
	_, err := s.db.Exec(`
		INSERT INTO ai_responses (response_id, task_id, node_id, response_type, content, summary, reasoning,
			confidence_score, quality_score, is_human_modified, original_ai_content,
			modification_reason, modified_by, modified_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ResponseID, r.TaskID, r.NodeID, r.ResponseType,
		marshalJSON(r.Content), r.Summary, r.Reasoning,
		r.ConfidenceScore, r.QualityScore, boolInt(r.IsHumanModified),
		originalContent(r), nullable(r.ModificationReason), nullable(r.ModifiedBy),
		timeValue(r.ModifiedAt), r.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("save response %s: %w", r.ResponseID, err)
	}
	return nil
}

// GetResponse loads a response by id.
func (s *Store) GetResponse(responseID string) (*org.Response, error) {
	row := s.db.QueryRow(`SELECT `+responseColumns+` FROM ai_responses WHERE response_id = ?`, responseID)
	return scanResponse(row)
}

// GetTaskResponses returns a task's responses in insertion order.
func (s *Store) GetTaskResponses(taskID string) ([]*org.Response, error) {
	rows, err := s.db.Query(`SELECT `+responseColumns+` FROM ai_responses
		WHERE task_id = ? ORDER BY created_at, id`, taskID)
	if err != nil {
		return nil, fmt.Errorf("query responses: %w", err)
	}
	defer rows.Close()

	var responses []*org.Response
	for rows.Next() {
		r, err := scanResponse(rows)
		if err != nil {
			return nil, err
		}
		responses = append(responses, r)
	}
	return responses, rows.Err()
}

// OutcomeResponse returns the authoritative outcome for a task: the most
// recent human_override if any, otherwise the latest non-delegation_plan
// response.
func OutcomeResponse(responses []*org.Response) *org.Response {
	var outcome *org.Response
	for _, r := range responses {
		if r.ResponseType == org.ResponseHumanOverride {
			outcome = r
			continue
		}
		if outcome != nil && outcome.ResponseType == org.ResponseHumanOverride {
			continue
		}
		if r.ResponseType != org.ResponseDelegationPlan {
			outcome = r
		}
	}
	return outcome
}

func originalContent(r *org.Response) any {
	if r.OriginalAIContent == nil {
		return nil
	}
	return marshalJSON(r.OriginalAIContent)
}

func scanResponse(row rowScanner) (*org.Response, error) {
	var r org.Response
	var content, summary, reasoning, original, modReason, modBy sql.NullString
	var modified sql.NullTime
	var humanModified int
	err := row.Scan(&r.ResponseID, &r.TaskID, &r.NodeID, &r.ResponseType,
		&content, &summary, &reasoning, &r.ConfidenceScore, &r.QualityScore,
		&humanModified, &original, &modReason, &modBy, &modified, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan response: %w", err)
	}
	r.Content = unmarshalJSON(content)
	r.Summary = nullString(summary)
	r.Reasoning = nullString(reasoning)
	r.IsHumanModified = humanModified != 0
	r.OriginalAIContent = unmarshalJSON(original)
	r.ModificationReason = nullString(modReason)
	r.ModifiedBy = nullString(modBy)
	r.ModifiedAt = timePtr(modified)
	return &r, nil
}
