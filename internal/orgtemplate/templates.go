// Package orgtemplate ships built-in org blueprints that can be
// instantiated into a draft org with its node tree in one call.
package orgtemplate

import (
	"fmt"

	"github.com/OrgWeave/OrgWeave/internal/org"
	"github.com/OrgWeave/OrgWeave/internal/store"
)

// NodeSpec describes one role in a template. Parent refers to another
// spec's Key; the spec with an empty Parent is the root.
type NodeSpec struct {
	Key         string
	Parent      string
	RoleName    string
	RoleType    string
	Description string
}

// Template is an org blueprint.
type Template struct {
	ID          string
	Name        string
	Description string
	Category    string
	Nodes       []NodeSpec
}

// Builtin returns the built-in templates.
func Builtin() []Template {
	return []Template{
		{
			ID:          "solo-analyst",
			Name:        "Solo Analyst",
			Description: "A single analyst handling every task directly.",
			Category:    "fundamental",
			Nodes: []NodeSpec{
				{Key: "analyst", RoleName: "Analyst", RoleType: org.RoleAnalyst,
					Description: "Performs research and produces findings."},
			},
		},
		{
			ID:          "research-team",
			Name:        "Research Team",
			Description: "An executive delegating to a manager and two analysts.",
			Category:    "fundamental",
			Nodes: []NodeSpec{
				{Key: "ceo", RoleName: "Chief Executive", RoleType: org.RoleExecutive,
					Description: "Owns incoming tasks and the final report."},
				{Key: "manager", Parent: "ceo", RoleName: "Research Manager", RoleType: org.RoleManager,
					Description: "Coordinates the analysts and synthesizes their work."},
				{Key: "analyst-a", Parent: "manager", RoleName: "Market Analyst", RoleType: org.RoleAnalyst,
					Description: "Market and competitive research."},
				{Key: "analyst-b", Parent: "manager", RoleName: "Data Analyst", RoleType: org.RoleAnalyst,
					Description: "Quantitative analysis and data points."},
			},
		},
	}
}

// Get returns a built-in template by id.
func Get(id string) (Template, bool) {
	for _, t := range Builtin() {
		if t.ID == id {
			return t, true
		}
	}
	return Template{}, false
}

// Instantiate creates a draft org with the template's node tree. The
// returned org must be activated before it accepts tasks.
func Instantiate(st *store.Store, tpl Template, orgName, createdBy string) (*org.Org, error) {
	if orgName == "" {
		orgName = tpl.Name
	}
	o := org.NewOrg(orgName, tpl.Description, createdBy)
	if err := st.SaveOrg(o); err != nil {
		return nil, fmt.Errorf("instantiate %s: %w", tpl.ID, err)
	}

	created := make(map[string]*org.Node, len(tpl.Nodes))
	for _, spec := range tpl.Nodes {
		parentID := ""
		if spec.Parent != "" {
			parent, ok := created[spec.Parent]
			if !ok {
				return nil, fmt.Errorf("instantiate %s: node %q references unknown parent %q", tpl.ID, spec.Key, spec.Parent)
			}
			parentID = parent.NodeID
		}
		node := org.NewNode(o.OrgID, parentID, spec.RoleName, spec.RoleType, spec.Description)
		if err := st.SaveNode(node); err != nil {
			return nil, fmt.Errorf("instantiate %s: %w", tpl.ID, err)
		}
		created[spec.Key] = node
	}
	return o, nil
}
