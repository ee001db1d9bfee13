package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/OrgWeave/OrgWeave/internal/org"
)

// ErrNotFound is returned by Get* methods when no row matches.
var ErrNotFound = errors.New("not found")

// SaveOrg inserts or updates an org.
func (s *Store) SaveOrg(o *org.Org) error {
	o.UpdatedAt = time.Now().UTC()
	_, err := s.db.Exec(`
		INSERT INTO ai_orgs (org_id, name, description, status, config, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(org_id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			status = excluded.status,
			config = excluded.config,
			updated_at = excluded.updated_at`,
		o.OrgID, o.Name, o.Description, o.Status, marshalJSON(o.Config),
		o.CreatedBy, o.CreatedAt.UTC(), o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save org %s: %w", o.OrgID, err)
	}
	return nil
}

// GetOrg loads an org by id.
func (s *Store) GetOrg(orgID string) (*org.Org, error) {
	row := s.db.QueryRow(`
		SELECT org_id, name, description, status, config, created_by, created_at, updated_at
		FROM ai_orgs WHERE org_id = ?`, orgID)
	return scanOrg(row)
}

// ListOrgs returns all orgs ordered by creation.
func (s *Store) ListOrgs() ([]*org.Org, error) {
	rows, err := s.db.Query(`
		SELECT org_id, name, description, status, config, created_by, created_at, updated_at
		FROM ai_orgs ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list orgs: %w", err)
	}
	defer rows.Close()

	var orgs []*org.Org
	for rows.Next() {
		o, err := scanOrg(rows)
		if err != nil {
			return nil, err
		}
		orgs = append(orgs, o)
	}
	return orgs, rows.Err()
}

// DeleteOrg removes an org; nodes, tasks, actions, and events cascade.
func (s *Store) DeleteOrg(orgID string) error {
	if _, err := s.db.Exec(`DELETE FROM ai_orgs WHERE org_id = ?`, orgID); err != nil {
		return fmt.Errorf("delete org %s: %w", orgID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrg(row rowScanner) (*org.Org, error) {
	var o org.Org
	var desc, config, createdBy sql.NullString
	err := row.Scan(&o.OrgID, &o.Name, &desc, &o.Status, &config, &createdBy, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan org: %w", err)
	}
	o.Description = nullString(desc)
	o.Config = unmarshalJSON(config)
	o.CreatedBy = nullString(createdBy)
	return &o, nil
}
