package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScreenToCanvasIdentity(t *testing.T) {
	p := screenToCanvas(Point{X: 100, Y: 50}, Point{}, Transform{Scale: 1})
	assert.Equal(t, Point{X: 100, Y: 50}, p)
}

func TestScreenToCanvasPanAndScale(t *testing.T) {
	tr := Transform{PanX: 20, PanY: -10, Scale: 2}
	p := screenToCanvas(Point{X: 120, Y: 90}, Point{X: 0, Y: 0}, tr)
	assert.InDelta(t, 50, p.X, 1e-9)
	assert.InDelta(t, 50, p.Y, 1e-9)
}

func TestScreenToCanvasOrigin(t *testing.T) {
	tr := Transform{Scale: 1}
	p := screenToCanvas(Point{X: 30, Y: 40}, Point{X: 10, Y: 16}, tr)
	assert.Equal(t, Point{X: 20, Y: 24}, p)
}

func TestConversionRoundTrip(t *testing.T) {
	transforms := []Transform{
		{Scale: 1},
		{PanX: 123.4, PanY: -55.5, Scale: 0.5},
		{PanX: -7, PanY: 300, Scale: 2},
		{PanX: 0.25, PanY: 0.75, Scale: 1.37},
	}
	points := []Point{{0, 0}, {-100, 42.5}, {999.9, -0.001}, {248, 68}}
	origin := Point{X: 8, Y: 16}

	for _, tr := range transforms {
		for _, p := range points {
			back := screenToCanvas(canvasToScreen(p, origin, tr), origin, tr)
			assert.InDelta(t, p.X, back.X, 1e-9)
			assert.InDelta(t, p.Y, back.Y, 1e-9)
		}
	}
}

func TestClampScale(t *testing.T) {
	assert.Equal(t, minScale, clampScale(0.01))
	assert.Equal(t, maxScale, clampScale(10))
	assert.Equal(t, 1.5, clampScale(1.5))
}

func TestZoomAtKeepsPointFixed(t *testing.T) {
	tr := Transform{PanX: 40, PanY: -20, Scale: 1}
	screen := Point{X: 320, Y: 240}
	before := screenToCanvas(screen, Point{}, tr)

	zoomed := zoomAt(tr, Point{}, screen, 1.5)
	require.InDelta(t, 1.5, zoomed.Scale, 1e-9)

	after := screenToCanvas(screen, Point{}, zoomed)
	assert.InDelta(t, before.X, after.X, 1e-9)
	assert.InDelta(t, before.Y, after.Y, 1e-9)
}

func TestZoomAtClampsScale(t *testing.T) {
	tr := Transform{Scale: maxScale}
	zoomed := zoomAt(tr, Point{}, Point{X: 100, Y: 100}, 4)
	assert.Equal(t, maxScale, zoomed.Scale)
}
