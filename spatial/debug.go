package spatial

// Color is an RGB color used to draw debug regions.
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// DepthToColor maps a depth to a color going linearly from green at the
// root to red at maxDepth. Channels are truncated.
func DepthToColor(depth, maxDepth int) Color {
	if maxDepth <= 0 {
		return Color{G: 255}
	}

	if depth < 0 {
		depth = 0
	}
	if depth > maxDepth {
		depth = maxDepth
	}

	factor := float64(depth) / float64(maxDepth)
	return Color{
		R: uint8(255 * factor),
		G: uint8(255 * (1 - factor)),
	}
}

// DrawFunc draws a region at the given depth with the given color.
type DrawFunc func(bounds Box, depth int, color Color)

// Visualize calls draw for every leaf region, colored by depth.
func (t *Tree) Visualize(draw DrawFunc) {
	t.VisitLeaves(func(n *Node) {
		draw(n.bounds, n.depth, DepthToColor(n.depth, t.maxDepth))
	})
}

// LeafInfo describes a leaf for debugging purposes.
type LeafInfo struct {
	Bounds      Box   `json:"bounds"`
	Depth       int   `json:"depth"`
	EntityCount int   `json:"entity_count"`
	Color       Color `json:"color"`
}

// DebugInfo summarizes the structure of a tree.
type DebugInfo struct {
	Name               string     `json:"name"`
	FanOut             int        `json:"fan_out"`
	MaxDepth           int        `json:"max_depth"`
	MaxEntitiesPerLeaf int        `json:"max_entities_per_leaf"`
	WorldBounds        Box        `json:"world_bounds"`
	NodeCount          int        `json:"node_count"`
	LeafCount          int        `json:"leaf_count"`
	EntityCount        int        `json:"entity_count"`
	DeepestLeaf        int        `json:"deepest_leaf"`
	OverflowingLeaves  int        `json:"overflowing_leaves"`
	Stats              Stats      `json:"stats"`
	Leaves             []LeafInfo `json:"leaves"`
}

// DebugInfo walks the tree and returns its summary. EntityCount counts leaf
// references, an entity on a shared face is counted once per leaf.
func (t *Tree) DebugInfo() DebugInfo {
	info := DebugInfo{
		Name:               t.name,
		FanOut:             t.geometry.FanOut(),
		MaxDepth:           t.maxDepth,
		MaxEntitiesPerLeaf: t.maxEntitiesPerLeaf,
		WorldBounds:        t.worldBounds,
		Stats:              t.stats,
	}

	if t.root == nil {
		return info
	}

	var walk func(n *Node)
	walk = func(n *Node) {
		info.NodeCount++

		if !n.IsLeaf() {
			for _, c := range n.children {
				walk(c)
			}
			return
		}

		info.LeafCount++
		info.EntityCount += n.Len()
		if n.depth > info.DeepestLeaf {
			info.DeepestLeaf = n.depth
		}
		if n.Len() > t.maxEntitiesPerLeaf {
			info.OverflowingLeaves++
		}

		info.Leaves = append(info.Leaves, LeafInfo{
			Bounds:      n.bounds,
			Depth:       n.depth,
			EntityCount: n.Len(),
			Color:       DepthToColor(n.depth, t.maxDepth),
		})
	}
	walk(t.root)

	return info
}
