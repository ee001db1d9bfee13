package org

// Tree navigation helpers over a node snapshot. Nodes are kept as a flat
// {id → node} map with parent edges; children are derived at query time so
// no owning pointers can form cycles.

// NodeIndex indexes a slice of nodes by id.
func NodeIndex(nodes []*Node) map[string]*Node {
	idx := make(map[string]*Node, len(nodes))
	for _, n := range nodes {
		idx[n.NodeID] = n
	}
	return idx
}

// FindRoot returns the single node without a parent, or nil when the
// snapshot has zero or multiple roots.
func FindRoot(nodes []*Node) *Node {
	var root *Node
	for _, n := range nodes {
		if n.IsRoot() {
			if root != nil {
				return nil
			}
			root = n
		}
	}
	return root
}

// ChildrenOf returns the direct children of a node, preserving input order.
func ChildrenOf(nodes []*Node, nodeID string) []*Node {
	var children []*Node
	for _, n := range nodes {
		if n.ParentNodeID == nodeID {
			children = append(children, n)
		}
	}
	return children
}

// Ancestors returns the parent chain from the given node up to the root.
// The walk terminates on a repeated id, so a corrupted snapshot cannot
// loop forever.
func Ancestors(idx map[string]*Node, nodeID string) []*Node {
	var chain []*Node
	seen := map[string]bool{nodeID: true}
	current, ok := idx[nodeID]
	for ok && current.ParentNodeID != "" && !seen[current.ParentNodeID] {
		seen[current.ParentNodeID] = true
		parent, found := idx[current.ParentNodeID]
		if !found {
			break
		}
		chain = append(chain, parent)
		current, ok = parent, true
	}
	return chain
}

// ValidateTree checks the org invariants on a node snapshot: exactly one
// root and an acyclic parent graph.
func ValidateTree(nodes []*Node) bool {
	if FindRoot(nodes) == nil {
		return len(nodes) == 0
	}
	idx := NodeIndex(nodes)
	for _, n := range nodes {
		seen := map[string]bool{}
		current := n
		for current.ParentNodeID != "" {
			if seen[current.NodeID] {
				return false
			}
			seen[current.NodeID] = true
			parent, ok := idx[current.ParentNodeID]
			if !ok {
				return false
			}
			current = parent
		}
	}
	return true
}
