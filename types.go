package main

import "math"

// Point is a position in either screen or canvas space, depending on context.
type Point struct {
	X float64
	Y float64
}

func (p Point) DistanceTo(o Point) float64 {
	dx := p.X - o.X
	dy := p.Y - o.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Node is a box on the canvas. Position is the top-left corner in canvas
// space; all nodes share the fixed nodeWidth x nodeHeight dimensions.
type Node struct {
	ID    string
	Label string
	X     float64
	Y     float64
}

func (n Node) Center() Point {
	return Point{X: n.X + nodeWidth/2, Y: n.Y + nodeHeight/2}
}

func (n Node) Contains(p Point) bool {
	return p.X >= n.X && p.X < n.X+nodeWidth &&
		p.Y >= n.Y && p.Y < n.Y+nodeHeight
}

// EdgeType is the kind of relationship an edge expresses.
type EdgeType string

const (
	EdgeTypeRelated  EdgeType = "related"
	EdgeTypeSupports EdgeType = "supports"
	EdgeTypeContains EdgeType = "contains"
)

// Edge is a directed connection between two nodes.
type Edge struct {
	ID          string
	FromNodeID  string
	ToNodeID    string
	Type        EdgeType
	Description string
	AISummary   string
	Strength    float64
}

// AnchorSide identifies one of the four connection points on a node.
type AnchorSide string

const (
	AnchorTop    AnchorSide = "top"
	AnchorRight  AnchorSide = "right"
	AnchorBottom AnchorSide = "bottom"
	AnchorLeft   AnchorSide = "left"
)

// Anchor is a connection point on a node's perimeter. Anchors are derived
// data: they are regenerated in full whenever node positions change and are
// never persisted.
type Anchor struct {
	ID            string
	NodeID        string
	Side          AnchorSide
	Position      Point
	IsHighlighted bool
	IsActive      bool
}

// Transform maps canvas coordinates to screen coordinates: a point p in
// canvas space appears on screen at origin + p*Scale + (PanX, PanY).
type Transform struct {
	PanX  float64
	PanY  float64
	Scale float64
}

// PreviewLine is the rubber-band line shown while a connection is dragged.
type PreviewLine struct {
	From Point
	To   Point
}
