package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/OrgWeave/OrgWeave/internal/org"
)

// ErrHasChildren is returned when deleting a node that still has children.
var ErrHasChildren = errors.New("node has children")

const nodeColumns = `node_id, org_id, parent_node_id, role_name, role_type, description,
	agent_id, agent_config, human_name, human_email, human_teams_id, human_slack_id,
	hitl_enabled, hitl_approval_required, hitl_review_delegation, hitl_timeout_hours, hitl_auto_proceed,
	notification_channels, position_x, position_y, status, current_task_id, created_at, updated_at`

// SaveNode inserts or updates a node.
func (s *Store) SaveNode(n *org.Node) error {
	n.UpdatedAt = time.Now().UTC()
	_, err := s.db.Exec(`
		INSERT INTO ai_nodes (node_id, org_id, parent_node_id, role_name, role_type, description,
			agent_id, agent_config, human_name, human_email, human_teams_id, human_slack_id,
			hitl_enabled, hitl_approval_required, hitl_review_delegation, hitl_timeout_hours, hitl_auto_proceed,
			notification_channels, position_x, position_y, status, current_task_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(node_id) DO UPDATE SET
			parent_node_id = excluded.parent_node_id,
			role_name = excluded.role_name,
			role_type = excluded.role_type,
			description = excluded.description,
			agent_id = excluded.agent_id,
			agent_config = excluded.agent_config,
			human_name = excluded.human_name,
			human_email = excluded.human_email,
			human_teams_id = excluded.human_teams_id,
			human_slack_id = excluded.human_slack_id,
			hitl_enabled = excluded.hitl_enabled,
			hitl_approval_required = excluded.hitl_approval_required,
			hitl_review_delegation = excluded.hitl_review_delegation,
			hitl_timeout_hours = excluded.hitl_timeout_hours,
			hitl_auto_proceed = excluded.hitl_auto_proceed,
			notification_channels = excluded.notification_channels,
			position_x = excluded.position_x,
			position_y = excluded.position_y,
			status = excluded.status,
			current_task_id = excluded.current_task_id,
			updated_at = excluded.updated_at`,
		n.NodeID, n.OrgID, nullable(n.ParentNodeID), n.RoleName, n.RoleType, n.Description,
		nullable(n.AgentID), marshalJSON(n.AgentConfig),
		n.Human.Name, n.Human.Email, n.Human.TeamsID, n.Human.SlackID,
		boolInt(n.HITL.Enabled), boolInt(n.HITL.ApprovalRequired), boolInt(n.HITL.ReviewDelegation),
		n.HITL.TimeoutHours, boolInt(n.HITL.AutoProceed),
		marshalStrings(n.NotificationChannels), n.PositionX, n.PositionY,
		n.Status, nullable(n.CurrentTaskID), n.CreatedAt.UTC(), n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save node %s: %w", n.NodeID, err)
	}
	return nil
}

// GetNode loads a node by id.
func (s *Store) GetNode(nodeID string) (*org.Node, error) {
	row := s.db.QueryRow(`SELECT `+nodeColumns+` FROM ai_nodes WHERE node_id = ?`, nodeID)
	return scanNode(row)
}

// GetRootNode returns the org's node without a parent, or ErrNotFound.
func (s *Store) GetRootNode(orgID string) (*org.Node, error) {
	row := s.db.QueryRow(`SELECT `+nodeColumns+` FROM ai_nodes
		WHERE org_id = ? AND parent_node_id IS NULL LIMIT 1`, orgID)
	return scanNode(row)
}

// GetChildNodes returns the direct children of a node ordered by creation.
func (s *Store) GetChildNodes(nodeID string) ([]*org.Node, error) {
	return s.queryNodes(`SELECT `+nodeColumns+` FROM ai_nodes
		WHERE parent_node_id = ? ORDER BY created_at`, nodeID)
}

// GetOrgNodes returns every node in an org ordered by creation.
func (s *Store) GetOrgNodes(orgID string) ([]*org.Node, error) {
	return s.queryNodes(`SELECT `+nodeColumns+` FROM ai_nodes
		WHERE org_id = ? ORDER BY created_at`, orgID)
}

// GetNodesByEmail returns the nodes mirrored by the given human email.
func (s *Store) GetNodesByEmail(email string) ([]*org.Node, error) {
	return s.queryNodes(`SELECT `+nodeColumns+` FROM ai_nodes
		WHERE human_email = ? ORDER BY created_at`, email)
}

// DeleteNode removes a node. Nodes with children are refused.
func (s *Store) DeleteNode(nodeID string) error {
	var children int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM ai_nodes WHERE parent_node_id = ?`, nodeID).Scan(&children); err != nil {
		return fmt.Errorf("count children of %s: %w", nodeID, err)
	}
	if children > 0 {
		return ErrHasChildren
	}
	if _, err := s.db.Exec(`DELETE FROM ai_nodes WHERE node_id = ?`, nodeID); err != nil {
		return fmt.Errorf("delete node %s: %w", nodeID, err)
	}
	return nil
}

// UpdateNodeStatus sets a node's status.
func (s *Store) UpdateNodeStatus(nodeID, status string) error {
	_, err := s.db.Exec(`UPDATE ai_nodes SET status = ?, updated_at = ? WHERE node_id = ?`,
		status, time.Now().UTC(), nodeID)
	if err != nil {
		return fmt.Errorf("update node status %s: %w", nodeID, err)
	}
	return nil
}

// SetCurrentTask records (or clears, with an empty id) the task a node is
// working on.
func (s *Store) SetCurrentTask(nodeID, taskID string) error {
	_, err := s.db.Exec(`UPDATE ai_nodes SET current_task_id = ?, updated_at = ? WHERE node_id = ?`,
		nullable(taskID), time.Now().UTC(), nodeID)
	if err != nil {
		return fmt.Errorf("set current task on %s: %w", nodeID, err)
	}
	return nil
}

func (s *Store) queryNodes(query string, args ...any) ([]*org.Node, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()

	var nodes []*org.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

func scanNode(row rowScanner) (*org.Node, error) {
	var n org.Node
	var parent, desc, agentID, agentCfg, hName, hEmail, hTeams, hSlack, channels, current sql.NullString
	var enabled, approval, reviewDel, autoProceed int
	err := row.Scan(&n.NodeID, &n.OrgID, &parent, &n.RoleName, &n.RoleType, &desc,
		&agentID, &agentCfg, &hName, &hEmail, &hTeams, &hSlack,
		&enabled, &approval, &reviewDel, &n.HITL.TimeoutHours, &autoProceed,
		&channels, &n.PositionX, &n.PositionY, &n.Status, &current, &n.CreatedAt, &n.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan node: %w", err)
	}
	n.ParentNodeID = nullString(parent)
	n.Description = nullString(desc)
	n.AgentID = nullString(agentID)
	n.AgentConfig = unmarshalJSON(agentCfg)
	n.Human = org.HumanMirror{
		Name: nullString(hName), Email: nullString(hEmail),
		TeamsID: nullString(hTeams), SlackID: nullString(hSlack),
	}
	n.HITL.Enabled = enabled != 0
	n.HITL.ApprovalRequired = approval != 0
	n.HITL.ReviewDelegation = reviewDel != 0
	n.HITL.AutoProceed = autoProceed != 0
	n.NotificationChannels = unmarshalStrings(channels)
	n.CurrentTaskID = nullString(current)
	return &n, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
