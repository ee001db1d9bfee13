package org

import (
	"testing"
)

func TestFindRootSingle(t *testing.T) {
	root := NewNode("org-1", "", "CEO", RoleExecutive, "")
	child := NewNode("org-1", root.NodeID, "Analyst", RoleAnalyst, "")

	got := FindRoot([]*Node{root, child})
	if got == nil || got.NodeID != root.NodeID {
		t.Fatalf("expected root %s, got %+v", root.NodeID, got)
	}
}

func TestFindRootMultipleRootsIsNil(t *testing.T) {
	a := NewNode("org-1", "", "A", RoleExecutive, "")
	b := NewNode("org-1", "", "B", RoleExecutive, "")
	if got := FindRoot([]*Node{a, b}); got != nil {
		t.Fatalf("expected nil for two roots, got %s", got.NodeID)
	}
}

func TestAncestorsWalkTerminates(t *testing.T) {
	root := NewNode("org-1", "", "CEO", RoleExecutive, "")
	mid := NewNode("org-1", root.NodeID, "Manager", RoleManager, "")
	leaf := NewNode("org-1", mid.NodeID, "Analyst", RoleAnalyst, "")
	idx := NodeIndex([]*Node{root, mid, leaf})

	chain := Ancestors(idx, leaf.NodeID)
	if len(chain) != 2 {
		t.Fatalf("expected 2 ancestors, got %d", len(chain))
	}
	if chain[0].NodeID != mid.NodeID || chain[1].NodeID != root.NodeID {
		t.Fatalf("unexpected ancestor order: %s, %s", chain[0].NodeID, chain[1].NodeID)
	}
}

func TestAncestorsCycleSafe(t *testing.T) {
	a := NewNode("org-1", "", "A", RoleManager, "")
	b := NewNode("org-1", a.NodeID, "B", RoleManager, "")
	// Corrupt the snapshot into a cycle.
	a.ParentNodeID = b.NodeID
	idx := NodeIndex([]*Node{a, b})

	chain := Ancestors(idx, b.NodeID)
	if len(chain) > 2 {
		t.Fatalf("cycle walk did not terminate, got %d ancestors", len(chain))
	}
}

func TestValidateTree(t *testing.T) {
	root := NewNode("org-1", "", "CEO", RoleExecutive, "")
	child := NewNode("org-1", root.NodeID, "Analyst", RoleAnalyst, "")
	if !ValidateTree([]*Node{root, child}) {
		t.Fatal("valid tree rejected")
	}

	orphan := NewNode("org-1", "node-missing", "Lost", RoleAnalyst, "")
	if ValidateTree([]*Node{root, orphan}) {
		t.Fatal("tree with dangling parent accepted")
	}
}

func TestChildrenOf(t *testing.T) {
	root := NewNode("org-1", "", "CEO", RoleExecutive, "")
	a := NewNode("org-1", root.NodeID, "A", RoleAnalyst, "")
	b := NewNode("org-1", root.NodeID, "B", RoleAnalyst, "")
	c := NewNode("org-1", a.NodeID, "C", RoleAnalyst, "")

	children := ChildrenOf([]*Node{root, a, b, c}, root.NodeID)
	if len(children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(children))
	}
}

func TestTaskTerminal(t *testing.T) {
	task := NewTask("org-1", "node-1", "", "T", "", nil, "")
	if task.IsTerminal() {
		t.Fatal("pending task reported terminal")
	}
	for _, status := range []string{TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled} {
		task.Status = status
		if !task.IsTerminal() {
			t.Fatalf("status %s not terminal", status)
		}
	}
}

func TestNewTaskDefaultPriority(t *testing.T) {
	task := NewTask("org-1", "node-1", "", "T", "", nil, "")
	if task.Priority != PriorityMedium {
		t.Fatalf("expected medium priority default, got %s", task.Priority)
	}
}
