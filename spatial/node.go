package spatial

// Node is a region of a tree. A node is either a leaf holding entity
// references or an internal node whose children tile its region exactly.
type Node struct {
	bounds   Box
	depth    int
	parent   *Node
	children []*Node
	entities map[Entity]struct{}

	tree    *Tree
	epoch   uint64
	dropped bool
}

func newNode(t *Tree, parent *Node, bounds Box, depth int) *Node {
	return &Node{
		bounds: bounds,
		depth:  depth,
		parent: parent,
		tree:   t,
		epoch:  t.epoch,
	}
}

func (n *Node) Bounds() Box {
	return n.bounds
}

func (n *Node) Depth() int {
	return n.depth
}

// Parent returns the node that owns n, nil for a root.
func (n *Node) Parent() *Node {
	return n.parent
}

func (n *Node) IsLeaf() bool {
	return len(n.children) == 0
}

// Children returns a copy of the node children.
func (n *Node) Children() []*Node {
	if n.IsLeaf() {
		return nil
	}

	children := make([]*Node, len(n.children))
	copy(children, n.children)
	return children
}

// Len returns the number of entities held by the node.
func (n *Node) Len() int {
	return len(n.entities)
}

func (n *Node) Has(e Entity) bool {
	_, ok := n.entities[e]
	return ok
}

// Entities returns a copy of the entities held by the node.
func (n *Node) Entities() []Entity {
	entities := make([]Entity, 0, len(n.entities))
	for e := range n.entities {
		entities = append(entities, e)
	}
	return entities
}

func (n *Node) add(e Entity) {
	if n.entities == nil {
		n.entities = make(map[Entity]struct{})
	}
	n.entities[e] = struct{}{}
}

func (n *Node) remove(e Entity) bool {
	if _, ok := n.entities[e]; !ok {
		return false
	}
	delete(n.entities, e)
	return true
}

// detached reports whether the node is no longer part of the live hierarchy
// of t: it belongs to another tree, was dropped by a merge or predates the
// last clear.
func (n *Node) detached(t *Tree) bool {
	return n.tree != t || n.dropped || n.epoch != t.epoch
}
