package spatial

// RemoveFromNode removes the entity from the given node, typically the query
// responder cached on the entity. Removing an entity the node does not hold
// does nothing, even when the node is an empty leaf.
//
// When the node becomes an empty leaf, its leaf siblings first drop the
// entities that moved out of their region. If every sibling is then an empty
// leaf, the parent drops its children and becomes a leaf again. The merge is
// never propagated to the grandparent.
//
// An entity on a shared face is held by every touching leaf and only the given
// node forgets it. Use Remove to drop it from the whole tree.
func (t *Tree) RemoveFromNode(n *Node, e Entity) {
	if n == nil || e == nil {
		return
	}

	if !n.remove(e) {
		return
	}

	if !n.IsLeaf() || n.Len() != 0 || n.parent == nil || n.detached(t) {
		t.metrics.ObserveRemove(false, 0)
		return
	}

	parent := n.parent
	evicted := 0
	for _, s := range parent.children {
		if s == n || !s.IsLeaf() {
			continue
		}
		evicted += t.evictStale(s)
	}
	t.stats.Evictions += evicted

	merged := canMerge(parent)
	if merged {
		for _, c := range parent.children {
			c.dropped = true
		}
		parent.children = nil
		t.stats.Merges++
	}

	t.metrics.ObserveRemove(merged, evicted)
}

// evictStale removes from the leaf the entities whose current position is
// outside its region. It returns the number of evicted entities.
func (t *Tree) evictStale(leaf *Node) int {
	var stale []Entity
	for e := range leaf.entities {
		if !t.geometry.Contains(leaf.bounds, e.Position()) {
			stale = append(stale, e)
		}
	}

	for _, e := range stale {
		leaf.remove(e)
	}
	return len(stale)
}

// canMerge reports whether all the children of n are empty leaves.
func canMerge(n *Node) bool {
	for _, c := range n.children {
		if !c.IsLeaf() || c.Len() != 0 {
			return false
		}
	}
	return true
}

// Remove scans the tree and removes the entity from every leaf holding it. It
// is the slow path for entities without a cached query responder.
func (t *Tree) Remove(e Entity) {
	if e == nil || t.root == nil {
		return
	}

	var leaves []*Node
	t.VisitLeaves(func(n *Node) {
		if n.Has(e) {
			leaves = append(leaves, n)
		}
	})

	for _, n := range leaves {
		t.RemoveFromNode(n, e)
	}
}
