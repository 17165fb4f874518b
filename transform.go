package main

// screenToCanvas converts a screen-space point to canvas space. origin is
// the canvas viewport's top-left corner in screen space. This is the single
// conversion used by anchor hit-testing, pointer tracking and rendering, so
// all of them round identically.
func screenToCanvas(screen Point, origin Point, t Transform) Point {
	return Point{
		X: (screen.X - origin.X - t.PanX) / t.Scale,
		Y: (screen.Y - origin.Y - t.PanY) / t.Scale,
	}
}

// canvasToScreen is the inverse of screenToCanvas.
func canvasToScreen(canvas Point, origin Point, t Transform) Point {
	return Point{
		X: canvas.X*t.Scale + origin.X + t.PanX,
		Y: canvas.Y*t.Scale + origin.Y + t.PanY,
	}
}

// clampScale keeps the zoom factor inside [minScale, maxScale].
func clampScale(scale float64) float64 {
	if scale < minScale {
		return minScale
	}
	if scale > maxScale {
		return maxScale
	}
	return scale
}

func (t Transform) Clamped() Transform {
	t.Scale = clampScale(t.Scale)
	return t
}

// zoomAt rescales the transform by factor while keeping the canvas point
// under the given screen position fixed.
func zoomAt(t Transform, origin Point, screen Point, factor float64) Transform {
	anchor := screenToCanvas(screen, origin, t)
	t.Scale = clampScale(t.Scale * factor)
	t.PanX = screen.X - origin.X - anchor.X*t.Scale
	t.PanY = screen.Y - origin.Y - anchor.Y*t.Scale
	return t
}
