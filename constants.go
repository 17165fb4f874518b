package main

import "time"

// Mode is the connection state machine's interaction mode.
type Mode int

const (
	ModeIdle Mode = iota
	ModeConnecting
	ModeDraggingConnection
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeConnecting:
		return "connecting"
	case ModeDraggingConnection:
		return "dragging-connection"
	default:
		return "unknown"
	}
}

// GestureMode is what the renderer sees: the machine's connection modes plus
// the editor-side gestures that also require unconditional redraws.
type GestureMode int

const (
	GestureNone GestureMode = iota
	GestureConnecting
	GestureDraggingConnection
	GestureMovingNode
	GesturePanning
)

const (
	// Fixed node dimensions in canvas pixels.
	nodeWidth  = 240.0
	nodeHeight = 120.0

	// Anchors sit this far outside the node border.
	anchorOffset = 8.0

	// A pointer within this many pixels of an anchor counts as "at" it.
	defaultSnapDistance = 25.0

	// Edge endpoints are shifted from the node center by this fixed
	// world-space offset so strokes may extend past the visible viewport.
	edgeEndpointOffset = 4.0

	// A press becomes a confirmed drag once it lasts this long or travels
	// this far; anything shorter is a click.
	minDragTime     = 100 * time.Millisecond
	minDragDistance = 5.0

	// Zoom bounds.
	minScale = 0.25
	maxScale = 2.0

	// Clicking within this many canvas pixels of an edge selects it.
	edgeHitDistance = 10.0

	frameInterval = time.Second / 60

	// Keyboard panning moves the viewport by this many screen pixels.
	panStep = 4 * cellWidth

	// Terminal cells map to canvas pixels at this fixed size, the same
	// cell metrics the raster exporter uses.
	cellWidth  = 8.0
	cellHeight = 16.0
)
