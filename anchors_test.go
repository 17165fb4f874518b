package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnchorPositions(t *testing.T) {
	n := Node{ID: "a", X: 0, Y: 0}

	assert.Equal(t, Point{X: 128, Y: -8}, anchorPosition(n, AnchorTop))
	assert.Equal(t, Point{X: 248, Y: 68}, anchorPosition(n, AnchorRight))
	assert.Equal(t, Point{X: 128, Y: 128}, anchorPosition(n, AnchorBottom))
	assert.Equal(t, Point{X: -8, Y: 68}, anchorPosition(n, AnchorLeft))
}

func TestRebuildGeneratesFourAnchorsPerNode(t *testing.T) {
	r := NewAnchorRegistry()
	r.Rebuild([]Node{{ID: "a"}, {ID: "b", X: 500}})

	require.Len(t, r.All(), 8)
	assert.Equal(t, "a-top", r.All()[0].ID)
	assert.Equal(t, "b-left", r.All()[7].ID)
}

func TestRebuildReplacesStalePositions(t *testing.T) {
	r := NewAnchorRegistry()
	r.Rebuild([]Node{{ID: "a", X: 0, Y: 0}})
	r.Rebuild([]Node{{ID: "a", X: 100, Y: 0}})

	right := r.Get("a-right")
	require.NotNil(t, right)
	assert.Equal(t, Point{X: 348, Y: 68}, right.Position)
}

func TestNearestSnapsWithinThreshold(t *testing.T) {
	r := NewAnchorRegistry()
	r.Rebuild([]Node{{ID: "a", X: 0, Y: 0}})

	// 20px from the right anchor at (248, 68): inside the 25px snap radius.
	a := r.Nearest(Point{X: 268, Y: 68}, "", defaultSnapDistance)
	require.NotNil(t, a)
	assert.Equal(t, "a-right", a.ID)

	// 26px away: out of range.
	assert.Nil(t, r.Nearest(Point{X: 274, Y: 68}, "", defaultSnapDistance))
}

func TestNearestAtExactThreshold(t *testing.T) {
	r := NewAnchorRegistry()
	r.Rebuild([]Node{{ID: "a", X: 0, Y: 0}})

	a := r.Nearest(Point{X: 248 + defaultSnapDistance, Y: 68}, "", defaultSnapDistance)
	require.NotNil(t, a)
	assert.Equal(t, "a-right", a.ID)
}

func TestNearestExcludesNode(t *testing.T) {
	r := NewAnchorRegistry()
	r.Rebuild([]Node{{ID: "a", X: 0, Y: 0}, {ID: "b", X: 300, Y: 0}})

	// Dead on a's right anchor, but a is excluded; b's left anchor at
	// (292, 68) is 44px away, outside snap range.
	assert.Nil(t, r.Nearest(Point{X: 248, Y: 68}, "a", defaultSnapDistance))

	// Between the two: a excluded leaves b's left anchor.
	a := r.Nearest(Point{X: 270, Y: 68}, "a", defaultSnapDistance)
	require.NotNil(t, a)
	assert.Equal(t, "b-left", a.ID)
}

func TestNearestForNodeIgnoresOtherNodes(t *testing.T) {
	r := NewAnchorRegistry()
	r.Rebuild([]Node{{ID: "a", X: 0, Y: 0}, {ID: "b", X: 300, Y: 0}})

	// b's left anchor (292, 68) is closest overall, but we only ask about a.
	a := r.NearestForNode("a", Point{X: 270, Y: 68}, defaultSnapDistance)
	require.NotNil(t, a)
	assert.Equal(t, "a-right", a.ID)

	assert.Nil(t, r.NearestForNode("missing", Point{X: 270, Y: 68}, defaultSnapDistance))
}

func TestClearFlags(t *testing.T) {
	r := NewAnchorRegistry()
	r.Rebuild([]Node{{ID: "a"}})
	r.Get("a-top").IsActive = true
	r.Get("a-left").IsHighlighted = true

	r.ClearFlags()
	for _, a := range r.All() {
		assert.False(t, a.IsActive)
		assert.False(t, a.IsHighlighted)
	}
}
