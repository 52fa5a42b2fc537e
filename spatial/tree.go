package spatial

import (
	"time"

	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/golang/geo/r3"
)

const (
	DefaultMaxDepth           = 4
	DefaultMaxEntitiesPerLeaf = 4
)

// Tree is a dynamic spatial partition of movable point entities. Leaves split
// when they exceed their capacity and sibling leaves merge back into their
// parent once they are all empty.
//
// A tree is not safe for concurrent use. It is meant to be owned and mutated
// by a single simulation loop.
type Tree struct {
	geometry           Geometry
	name               string
	maxDepth           int
	maxEntitiesPerLeaf int
	metrics            Metrics

	root        *Node
	worldBounds Box
	built       bool
	epoch       uint64

	stats Stats
}

// Option configures a tree.
type Option func(*Tree)

// WithMaxDepth sets the depth at which leaves stop splitting and grow past
// their capacity instead.
func WithMaxDepth(v int) Option {
	return func(t *Tree) {
		if v < 0 {
			v = 0
		}
		t.maxDepth = v
	}
}

// WithMaxEntitiesPerLeaf sets the number of entities a leaf holds before it
// splits.
func WithMaxEntitiesPerLeaf(v int) Option {
	return func(t *Tree) {
		if v < 1 {
			v = 1
		}
		t.maxEntitiesPerLeaf = v
	}
}

// WithMetrics sets the sink notified of every tree operation.
func WithMetrics(m Metrics) Option {
	return func(t *Tree) {
		if m != nil {
			t.metrics = m
		}
	}
}

// WithName overrides the name used in logs. It defaults to the geometry name.
func WithName(v string) Option {
	return func(t *Tree) {
		t.name = v
	}
}

// New creates an unbuilt tree partitioning space with the given geometry.
func New(g Geometry, options ...Option) *Tree {
	t := &Tree{
		geometry:           g,
		name:               g.Name(),
		maxDepth:           DefaultMaxDepth,
		maxEntitiesPerLeaf: DefaultMaxEntitiesPerLeaf,
		metrics:            noopMetrics{},
	}

	for _, o := range options {
		o(t)
	}
	return t
}

// NewQuadtree creates an unbuilt planar tree with 4 children per split.
func NewQuadtree(heightTolerance float64, options ...Option) *Tree {
	return New(Planar{HeightTolerance: heightTolerance}, options...)
}

// NewOctree creates an unbuilt volumetric tree with 8 children per split.
func NewOctree(options ...Option) *Tree {
	return New(Volumetric{}, options...)
}

func (t *Tree) Name() string {
	return t.name
}

func (t *Tree) Geometry() Geometry {
	return t.geometry
}

func (t *Tree) MaxDepth() int {
	return t.maxDepth
}

func (t *Tree) MaxEntitiesPerLeaf() int {
	return t.maxEntitiesPerLeaf
}

// Root returns the root node, nil when the tree is not built.
func (t *Tree) Root() *Node {
	return t.root
}

func (t *Tree) WorldBounds() Box {
	return t.worldBounds
}

func (t *Tree) IsBuilt() bool {
	return t.built
}

// IsInsideBounds reports whether the entity is inside the world bounds.
func (t *Tree) IsInsideBounds(e Entity) bool {
	return e != nil && t.geometry.Contains(t.worldBounds, e.Position())
}

// Build creates the root over the given bounds. Calling Build on a built tree
// does nothing: bounds can only change through ClearTree.
func (t *Tree) Build(bounds Box) {
	if t.built {
		return
	}

	t.worldBounds = bounds
	t.root = newNode(t, nil, bounds, 0)
	t.built = true
}

// ClearTree discards the whole hierarchy. When rebuild is true, a single root
// leaf is immediately recreated over the previous world bounds.
func (t *Tree) ClearTree(rebuild bool) {
	t.root = nil
	t.built = false
	t.epoch++

	logs.WithTag("tree", t.name).
		WithTag("rebuild", rebuild).
		Debug("tree cleared")

	if rebuild {
		t.Build(t.worldBounds)
	}
}

// Insert adds the entity to every leaf containing its current position.
// Entities outside the world bounds are ignored.
func (t *Tree) Insert(e Entity) {
	start := time.Now()
	defer t.observeInsert(start)

	if e == nil || t.root == nil {
		return
	}

	p := e.Position()
	if !t.geometry.Contains(t.worldBounds, p) {
		return
	}
	t.insertNode(t.root, e, p)
}

func (t *Tree) insertNode(n *Node, e Entity, p r3.Vector) {
	if !t.geometry.Contains(n.bounds, p) {
		return
	}

	if !n.IsLeaf() {
		for _, c := range n.children {
			t.insertNode(c, e, p)
		}
		return
	}

	if n.Has(e) {
		return
	}

	if n.Len() < t.maxEntitiesPerLeaf {
		n.add(e)
		return
	}

	if n.depth < t.maxDepth {
		held := n.entities
		n.entities = nil
		t.subdivide(n)

		for _, c := range n.children {
			if t.geometry.Contains(c.bounds, p) {
				t.insertNode(c, e, p)
			}

			for he := range held {
				if hp := he.Position(); t.geometry.Contains(c.bounds, hp) {
					t.insertNode(c, he, hp)
				}
			}
		}
		return
	}

	// Max depth reached: the leaf overflows rather than splitting further.
	n.add(e)
}

func (t *Tree) subdivide(n *Node) {
	boxes := t.geometry.Split(n.bounds)

	n.children = make([]*Node, len(boxes))
	for i, b := range boxes {
		n.children[i] = newNode(t, n, b, n.depth+1)
	}

	t.stats.Subdivisions++
	t.metrics.ObserveSubdivide(n.depth)
}

// Query returns the entities sharing a leaf with the given point, excluding
// the instigator. This is a same-leaf membership query, not a radius search.
//
// Every returned entity and the instigator are tagged with the leaf that
// resolved the query when they implement QueryResponderSetter.
func (t *Tree) Query(point r3.Vector, instigator Entity) []Entity {
	start := time.Now()
	defer t.observeQuery(start)

	if t.root == nil {
		return nil
	}

	q := query{
		point:      point,
		instigator: instigator,
		seen:       make(map[Entity]struct{}),
	}
	if instigator != nil {
		q.instigatorPos = instigator.Position()
	}

	t.queryNode(t.root, &q)
	return q.results
}

type query struct {
	point         r3.Vector
	instigator    Entity
	instigatorPos r3.Vector
	results       []Entity
	seen          map[Entity]struct{}
}

func (t *Tree) queryNode(n *Node, q *query) {
	if !t.geometry.Contains(n.bounds, q.point) {
		return
	}

	if !n.IsLeaf() {
		for _, c := range n.children {
			t.queryNode(c, q)
		}
		return
	}

	for e := range n.entities {
		if e == q.instigator {
			continue
		}

		p := e.Position()
		if !t.geometry.Contains(n.bounds, p) {
			// Moved away since its insertion.
			continue
		}

		if q.instigator != nil && !t.geometry.Accept(p, q.instigatorPos) {
			continue
		}

		if _, ok := q.seen[e]; !ok {
			q.seen[e] = struct{}{}
			q.results = append(q.results, e)
		}
		t.tagResponder(e, n)
	}

	if q.instigator != nil {
		t.tagResponder(q.instigator, n)
	}
}

func (t *Tree) tagResponder(e Entity, leaf *Node) {
	if s, ok := e.(QueryResponderSetter); ok {
		s.SetQueryResponder(t, leaf)
	}
}

// VisitLeaves calls visit for every leaf of the tree, children in order.
func (t *Tree) VisitLeaves(visit func(*Node)) {
	if t.root == nil {
		return
	}
	visitLeaves(t.root, visit)
}

func visitLeaves(n *Node, visit func(*Node)) {
	if n.IsLeaf() {
		visit(n)
		return
	}

	for _, c := range n.children {
		visitLeaves(c, visit)
	}
}

// FindLeaf returns the first leaf, in child order, whose region contains p.
func (t *Tree) FindLeaf(p r3.Vector) *Node {
	if t.root == nil || !t.geometry.Contains(t.root.bounds, p) {
		return nil
	}

	n := t.root
	for !n.IsLeaf() {
		var next *Node
		for _, c := range n.children {
			if t.geometry.Contains(c.bounds, p) {
				next = c
				break
			}
		}
		if next == nil {
			return nil
		}
		n = next
	}
	return n
}
