package main

// anchorSides is the fixed iteration order; Nearest breaks distance ties in
// favor of the first side encountered.
var anchorSides = [4]AnchorSide{AnchorTop, AnchorRight, AnchorBottom, AnchorLeft}

// AnchorRegistry holds the derived connection anchors for every node on the
// canvas. Rebuild regenerates the whole set from scratch; the registry never
// patches individual anchors, so stale positions cannot survive a node move.
// Highlight and active flags are mutated by the connection machine only.
type AnchorRegistry struct {
	anchors []Anchor
	byNode  map[string][]int
}

func NewAnchorRegistry() *AnchorRegistry {
	return &AnchorRegistry{byNode: make(map[string][]int)}
}

// anchorPosition returns the canvas-space position of one of a node's four
// anchors: half a dimension along the node's border, pushed outward (and
// centered) by anchorOffset.
func anchorPosition(n Node, side AnchorSide) Point {
	switch side {
	case AnchorTop:
		return Point{X: n.X + nodeWidth/2 + anchorOffset, Y: n.Y - anchorOffset}
	case AnchorRight:
		return Point{X: n.X + nodeWidth + anchorOffset, Y: n.Y + nodeHeight/2 + anchorOffset}
	case AnchorBottom:
		return Point{X: n.X + nodeWidth/2 + anchorOffset, Y: n.Y + nodeHeight + anchorOffset}
	case AnchorLeft:
		return Point{X: n.X - anchorOffset, Y: n.Y + nodeHeight/2 + anchorOffset}
	}
	return Point{}
}

// Rebuild regenerates all anchors from the given nodes. Previous flags are
// discarded along with the previous anchors.
func (r *AnchorRegistry) Rebuild(nodes []Node) {
	r.anchors = r.anchors[:0]
	clear(r.byNode)
	for _, n := range nodes {
		for _, side := range anchorSides {
			r.byNode[n.ID] = append(r.byNode[n.ID], len(r.anchors))
			r.anchors = append(r.anchors, Anchor{
				ID:       n.ID + "-" + string(side),
				NodeID:   n.ID,
				Side:     side,
				Position: anchorPosition(n, side),
			})
		}
	}
}

// All returns the current anchors. The slice is owned by the registry and
// valid until the next Rebuild.
func (r *AnchorRegistry) All() []Anchor {
	return r.anchors
}

// Nearest returns the closest anchor within snapDistance of the canvas-space
// position, skipping all anchors of excludeNodeID. Returns nil when nothing
// is in range.
func (r *AnchorRegistry) Nearest(p Point, excludeNodeID string, snapDistance float64) *Anchor {
	var best *Anchor
	var bestDist float64
	for i := range r.anchors {
		a := &r.anchors[i]
		if a.NodeID == excludeNodeID {
			continue
		}
		d := a.Position.DistanceTo(p)
		if d > snapDistance {
			continue
		}
		if best == nil || d < bestDist {
			bestDist = d
			best = a
		}
	}
	return best
}

// NearestForNode is Nearest restricted to a single node's anchors, used to
// decide whether a pointer-down on a node starts a connection drag.
func (r *AnchorRegistry) NearestForNode(nodeID string, p Point, snapDistance float64) *Anchor {
	var best *Anchor
	var bestDist float64
	for _, i := range r.byNode[nodeID] {
		a := &r.anchors[i]
		d := a.Position.DistanceTo(p)
		if d > snapDistance {
			continue
		}
		if best == nil || d < bestDist {
			bestDist = d
			best = a
		}
	}
	return best
}

// Get returns the anchor with the given id, or nil.
func (r *AnchorRegistry) Get(id string) *Anchor {
	for i := range r.anchors {
		if r.anchors[i].ID == id {
			return &r.anchors[i]
		}
	}
	return nil
}

// ClearFlags resets highlight and active state on every anchor.
func (r *AnchorRegistry) ClearFlags() {
	for i := range r.anchors {
		r.anchors[i].IsHighlighted = false
		r.anchors[i].IsActive = false
	}
}
