package spatial

import "github.com/golang/geo/r3"

// Entity is a movable point indexed by a tree. Trees only keep references to
// entities, they never own them. Implementations must be comparable with a
// stable identity, pointer types are the natural choice.
type Entity interface {
	// Returns the current position of the entity.
	Position() r3.Vector
}

// QueryResponderSetter is implemented by entities that want to know which
// leaf resolved their last query, or the last query they were returned by.
// The leaf can later be handed to Tree.RemoveFromNode to skip a traversal
// from the root.
type QueryResponderSetter interface {
	SetQueryResponder(t *Tree, leaf *Node)
}
